package service

import (
	"context"
	"errors"
	"time"

	"chatserver/internal/entity"
	"chatserver/internal/nlog"
	apperr "chatserver/pkg/errors"
)

// Deliverer turns the poll-based contract into a push: it repeatedly polls on
// behalf of one session and hands every non-empty batch to the emit callback,
// in store order. Duplicates and gaps are ruled out by the exclusive cursor
// boundary of Poll.
type Deliverer struct {
	chat     ChatService
	token    string
	interval time.Duration
	emit     func(batch []*entity.Message)
	logger   nlog.Logger
}

func NewDeliverer(chat ChatService, token string, interval time.Duration, emit func([]*entity.Message), logger nlog.Logger) *Deliverer {
	return &Deliverer{
		chat:     chat,
		token:    token,
		interval: interval,
		emit:     emit,
		logger:   logger,
	}
}

// Run loops until the context is cancelled or the session goes away.
func (d *Deliverer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := d.chat.Poll(d.token)
			if err != nil {
				if errors.Is(err, apperr.ErrSessionClosed) || errors.Is(err, apperr.ErrSessionNotFound) {
					return
				}
				// Transient storage failure: the cursor did not move, retry on
				// the next tick.
				d.logger.Logf("Poll failed for session %s {%v}", d.token, err)
				continue
			}
			if len(batch) > 0 {
				d.emit(batch)
			}
		}
	}
}
