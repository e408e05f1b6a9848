package nlog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

type Logger interface {
	Logf(format string, v ...any)
}

type subsystemLogger struct {
	name   string
	logger *ServiceLogger
}

func (s *subsystemLogger) Logf(format string, v ...any) {
	s.logger.Logf(s.name, format, v...)
}

type logEntry struct {
	name      string
	formatted string
}

// ServiceLogger owns one log file per registered subsystem and drains an
// inbox channel from its own goroutine, so callers never block on disk writes.
type ServiceLogger struct {
	dir string

	fileMapper map[string]*os.File
	logMapper  map[string]*log.Logger

	lock           sync.RWMutex
	currentLogFunc func(*log.Logger, string, ...any)

	inbox chan logEntry
}

func NewServiceLogger(dir string, logging bool) (*ServiceLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &ServiceLogger{
		dir:            dir,
		fileMapper:     make(map[string]*os.File),
		logMapper:      make(map[string]*log.Logger),
		currentLogFunc: nilLogf,
		inbox:          make(chan logEntry, 600),
	}

	if logging {
		s.currentLogFunc = defaultLogf
	}

	return s, nil
}

func (s *ServiceLogger) RegisterSubsystem(name string) (Logger, error) {
	file, err := os.OpenFile(filepath.Join(s.dir, name+".log"), os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.logMapper[name] = log.New(file, fmt.Sprintf("[chatserver/%s]: ", name), log.Ldate|log.Ltime)
	s.fileMapper[name] = file
	return &subsystemLogger{name, s}, nil
}

func (s *ServiceLogger) GetSubsystemLogger(name string) (Logger, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if _, ok := s.logMapper[name]; !ok {
		return nil, fmt.Errorf("The subsystem was not registered")
	}
	return &subsystemLogger{name, s}, nil
}

func (s *ServiceLogger) EnableLogging() {
	s.lock.Lock()
	s.currentLogFunc = defaultLogf
	s.lock.Unlock()
}

func (s *ServiceLogger) DisableLogging() {
	s.lock.Lock()
	s.currentLogFunc = nilLogf
	s.lock.Unlock()
}

func (s *ServiceLogger) Logf(name, format string, v ...any) {
	s.inbox <- logEntry{name, fmt.Sprintf(format, v...)}
}

func (s *ServiceLogger) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.inbox:
			s.actualWrite(msg.name, msg.formatted)
		}
	}
}

func (s *ServiceLogger) actualWrite(name, formatted string) error {
	s.lock.Lock()
	logFunc := s.currentLogFunc
	logger, ok := s.logMapper[name]
	s.lock.Unlock()

	if !ok {
		return fmt.Errorf("Logger is not setup for this subsystem")
	}
	if logFunc != nil {
		logFunc(logger, formatted)
	}
	return nil
}

func (s *ServiceLogger) CloseAll() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, file := range s.fileMapper {
		file.Sync()
		file.Close()
	}
	clear(s.fileMapper)
	clear(s.logMapper)
}

func defaultLogf(l *log.Logger, format string, a ...any) {
	l.Printf(format, a...)
}

func nilLogf(*log.Logger, string, ...any) {}
