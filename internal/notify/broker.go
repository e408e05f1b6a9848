package notify

import (
	"encoding/json"
	"fmt"

	"chatserver/internal/entity"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "chat"

// Broker pushes appended messages onto NATS subjects so interested clients can
// ride a live feed instead of polling. The SQLite log stays the source of
// truth; a lost publish costs nothing, the next poll picks the message up.
type Broker struct {
	nc *nats.Conn
}

func NewBroker(url string) (*Broker, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Broker{nc: nc}, nil
}

func (b *Broker) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}

// PublishMessage sends a message to the appropriate NATS subject.
func (b *Broker) PublishMessage(message *entity.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	subject := subjectFor(message)
	if err := b.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish message to subject '%s': %w", subject, err)
	}
	return nil
}

// subjectFor routes public traffic to one shared subject and private traffic
// to a per-recipient subject, mirroring the visibility split of the store.
func subjectFor(m *entity.Message) string {
	if m.Recipient != nil {
		return fmt.Sprintf("%s.dm.%s", subjectPrefix, *m.Recipient)
	}
	return fmt.Sprintf("%s.public", subjectPrefix)
}
