package entity

import "time"

// SystemSender is the reserved identity used for join/leave/clear announcements.
// It can never be claimed through the presence registry.
const SystemSender = "📢"

type Message struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Sender    string    `gorm:"not null;index" json:"sender"`
	Recipient *string   `gorm:"index" json:"recipient"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// Public reports whether the message has no recipient and is addressed to everyone.
func (m *Message) Public() bool {
	return m.Recipient == nil
}

// Announcement reports whether the message was generated by the system itself.
func (m *Message) Announcement() bool {
	return m.Sender == SystemSender
}

// Visible is the single visibility rule of the chat: public messages are
// visible to everyone, private messages only to their sender and recipient.
// Announcements carry no recipient and are therefore always public.
func Visible(m *Message, viewer string) bool {
	if m.Recipient == nil {
		return true
	}
	return viewer == m.Sender || viewer == *m.Recipient
}
