package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"chatserver/internal"
	"chatserver/internal/data"
	"chatserver/internal/input"
	"chatserver/internal/nlog"
	"chatserver/internal/notify"
	"chatserver/internal/presence"
	"chatserver/internal/service"
)

func main() {
	folder := "."
	if len(os.Args) > 1 {
		folder = os.Args[1]
	}

	cfg, err := internal.LoadConfig(folder)
	if err != nil {
		fmt.Printf("Could not load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := nlog.NewServiceLogger(filepath.Join(cfg.FolderPath, cfg.LogDirectory), cfg.EnableLogging)
	if err != nil {
		fmt.Printf("Could not set up logging: %v\n", err)
		os.Exit(1)
	}
	go logger.Run(ctx)
	defer logger.CloseAll()

	chatLog, _ := logger.RegisterSubsystem("chat")
	friendLog, _ := logger.RegisterSubsystem("friends")
	sweepLog, _ := logger.RegisterSubsystem("sweeper")
	httpLog, _ := logger.RegisterSubsystem("http")

	db, err := data.Open(filepath.Join(cfg.FolderPath, cfg.DBName))
	if err != nil {
		fmt.Printf("Could not open the chat database: %v\n", err)
		os.Exit(1)
	}
	storage := data.NewStorageManager(db)

	var publisher service.Publisher
	if cfg.NatsURL != "" {
		broker, err := notify.NewBroker(cfg.NatsURL)
		if err != nil {
			fmt.Printf("Could not reach NATS: %v\n", err)
			os.Exit(1)
		}
		defer broker.Close()
		publisher = broker
	}

	chatService := service.NewChatService(
		presence.NewRegistry(),
		storage.GetMessageRepository(),
		publisher,
		chatLog,
		cfg.RetentionWindow(),
		cfg.MaxMessages,
		cfg.PollBatchLimit,
	)
	relationshipService := service.NewRelationshipService(storage.GetRelationshipRepository(), friendLog)

	sweeper := service.NewRetentionSweeper(
		storage.GetMessageRepository(),
		cfg.RetentionWindow(),
		cfg.MaxMessages,
		cfg.SweepInterval(),
		sweepLog,
	)
	go sweeper.Run(ctx)

	inputManager := input.NewInputManager()
	inputManager.SetLogger(httpLog)
	inputManager.SetChatService(chatService)
	inputManager.SetRelationshipService(relationshipService)

	if err := inputManager.Run(ctx, &input.IptConfig{
		ServerPort:   cfg.HTTPServerPort,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		SecretKey:    cfg.SecretKey,
		PollInterval: cfg.PollInterval(),
	}); err != nil {
		fmt.Printf("HTTP server error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Shutting off...\n")
}
