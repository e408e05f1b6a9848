package repository

import (
	"time"

	"chatserver/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageScope selects which part of the log a bulk deletion touches.
type MessageScope int

const (
	ScopePublic MessageScope = iota // public messages only, private conversations survive
	ScopeAll
)

type MessageRepository interface {
	Create(message *entity.Message) error

	QuerySince(sinceID uint64, limit int, viewer string) ([]*entity.Message, error)
	History(viewer string, window time.Duration, limit int) ([]*entity.Message, error)

	DeleteAll(scope MessageScope) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
	TrimToNewest(n int) (int64, error)
}

type SQLiteMessageRepository struct {
	db *gorm.DB
}

func NewSQLiteMessageRepository(db *gorm.DB) MessageRepository {
	return &SQLiteMessageRepository{db}
}

// visibleTo is the query-side form of entity.Visible. Both QuerySince and
// History go through this scope, so the initial history load and every poll
// apply the identical rule.
func visibleTo(viewer string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("recipient IS NULL OR sender = ? OR recipient = ?", viewer, viewer)
	}
}

// Create assigns the message id and timestamp inside a transaction that locks
// the chat state row. Ids are handed out strictly increasing and the timestamp
// is clamped so it never moves backwards with respect to the previous message.
func (repo *SQLiteMessageRepository) Create(message *entity.Message) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		var state entity.ChatState
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&state, 1).Error; err != nil {
			return err
		}

		now := time.Now()
		if now.Before(state.LastTimestamp) {
			now = state.LastTimestamp
		}

		state.LastMessageID++
		state.LastTimestamp = now
		if err := tx.Save(&state).Error; err != nil {
			return err
		}

		message.ID = state.LastMessageID
		message.CreatedAt = now

		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return nil
	})
}

// QuerySince returns the messages the viewer may see with id strictly greater
// than sinceID, in store order. The boundary is exclusive: a cursor pointing at
// the last delivered message never re-fetches it.
func (repo *SQLiteMessageRepository) QuerySince(sinceID uint64, limit int, viewer string) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := repo.db.Scopes(visibleTo(viewer)).
		Where("id > ?", sinceID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// History returns the newest limit messages inside the retention window that
// the viewer may see, in ascending store order. Used once, at session start.
func (repo *SQLiteMessageRepository) History(viewer string, window time.Duration, limit int) ([]*entity.Message, error) {
	cutoff := time.Now().Add(-window)

	var messages []*entity.Message
	err := repo.db.Scopes(visibleTo(viewer)).
		Where("created_at > ?", cutoff).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (repo *SQLiteMessageRepository) DeleteAll(scope MessageScope) error {
	tx := repo.db
	if scope == ScopePublic {
		tx = tx.Where("recipient IS NULL")
	} else {
		tx = tx.Where("id > 0")
	}
	return tx.Delete(&entity.Message{}).Error
}

func (repo *SQLiteMessageRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := repo.db.Where("created_at < ?", cutoff).Delete(&entity.Message{})
	return res.RowsAffected, res.Error
}

// TrimToNewest removes everything but the n most recent messages.
func (repo *SQLiteMessageRepository) TrimToNewest(n int) (int64, error) {
	newest := repo.db.Model(&entity.Message{}).Select("id").Order("id DESC").Limit(n)
	res := repo.db.Where("id NOT IN (?)", newest).Delete(&entity.Message{})
	return res.RowsAffected, res.Error
}
