package service

import (
	"context"
	"time"

	"chatserver/internal/nlog"
	"chatserver/internal/repository"
)

// RetentionSweeper trims the message log in the background: first by age,
// then down to the configured cap. Retention is best-effort; a session slow
// enough to poll past the window may miss evicted rows.
type RetentionSweeper struct {
	repo        repository.MessageRepository
	window      time.Duration
	maxMessages int
	interval    time.Duration
	logger      nlog.Logger
}

func NewRetentionSweeper(repo repository.MessageRepository, window time.Duration, maxMessages int, interval time.Duration, logger nlog.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		repo:        repo,
		window:      window,
		maxMessages: maxMessages,
		interval:    interval,
		logger:      logger,
	}
}

func (s *RetentionSweeper) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(); err != nil {
				s.Logf("Sweep failed {%v}", err)
			}
		}
	}
}

// Sweep runs one eviction pass.
func (s *RetentionSweeper) Sweep() error {
	expired, err := s.repo.DeleteOlderThan(time.Now().Add(-s.window))
	if err != nil {
		return err
	}

	excess, err := s.repo.TrimToNewest(s.maxMessages)
	if err != nil {
		return err
	}

	if expired > 0 || excess > 0 {
		s.Logf("Swept %d expired and %d excess messages", expired, excess)
	}
	return nil
}
