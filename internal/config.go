package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

type Config struct {
	FolderPath     string `json:"folder-path"`
	DBName         string `json:"db-name"`
	HTTPServerPort uint16 `json:"http-server-port"`
	ReadTimeout    int64  `json:"read-timeout"`
	WriteTimeout   int64  `json:"write-timeout"`
	SecretKey      string `json:"secret-key"`
	EnableLogging  bool   `json:"enable-logging"`
	LogDirectory   string `json:"log-directory"`

	RetentionHours  int64 `json:"retention-hours"`   // Messages older than this are swept
	MaxMessages     int   `json:"max-messages"`      // Cap on retained/returned messages
	PollIntervalMs  int64 `json:"poll-interval-ms"`  // Deliverer wait between polls
	PollBatchLimit  int   `json:"poll-batch-limit"`  // Max messages fetched per poll
	SweepIntervalMs int64 `json:"sweep-interval-ms"` // Retention sweeper period

	NatsURL string `json:"nats-url"` // Optional; empty disables the live fan-out
}

func LoadConfig(folderPath string) (*Config, error) {

	file, err := os.OpenFile(folderPath+"/.cfg", os.O_RDONLY, 0755)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var config *Config = &Config{}
	if err = json.Unmarshal(payload, config); err != nil {
		return nil, err
	}
	config.FolderPath = folderPath
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) ApplyDefaults() {
	if c.DBName == "" {
		c.DBName = "chat.db"
	}
	if c.LogDirectory == "" {
		c.LogDirectory = "logs"
	}
	if c.RetentionHours == 0 {
		c.RetentionHours = 24
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = 100
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 500
	}
	if c.PollBatchLimit == 0 {
		c.PollBatchLimit = 100
	}
	if c.SweepIntervalMs == 0 {
		c.SweepIntervalMs = 60_000
	}
}

func (c *Config) Validate() error {
	if c.HTTPServerPort == 0 {
		return fmt.Errorf("The HTTP server port must be set")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("The cookie secret key must be set")
	}
	if c.RetentionHours < 0 {
		return fmt.Errorf("The retention window cannot be negative")
	}
	if c.MaxMessages < 0 {
		return fmt.Errorf("The message cap cannot be negative")
	}
	if c.PollIntervalMs < 0 {
		return fmt.Errorf("The poll interval cannot be negative")
	}
	if c.SweepIntervalMs < 0 {
		return fmt.Errorf("The sweep interval cannot be negative")
	}
	return nil
}

func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}
