package entity

import "time"

// Chat state, represented by the couple (LastMessageID, LastTimestamp)
// ID is used only to have a unique record to lock when assigning message ids.
type ChatState struct {
	ID            uint64    `gorm:"primaryKey"`
	LastMessageID uint64    `gorm:"not null;default=0"` // Highest message id handed out so far; never reused, even after deletions
	LastTimestamp time.Time // Timestamp of the newest message; new messages are clamped to be no older than this
}
