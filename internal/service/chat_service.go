package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"chatserver/internal/entity"
	"chatserver/internal/nlog"
	"chatserver/internal/presence"
	"chatserver/internal/repository"
	apperr "chatserver/pkg/errors"
)

// Publisher fans appended messages out to a live transport (NATS).
// The chat works without one; delivery then relies on polling alone.
type Publisher interface {
	PublishMessage(message *entity.Message) error
}

// ChatService is the session boundary of the chat core: everything the
// surrounding HTTP layer may do on behalf of a client goes through here.
type ChatService interface {
	Join(name string) (*Session, []*entity.Message, error)
	Send(token, body, recipient string) (*entity.Message, error)
	Poll(token string) ([]*entity.Message, error)
	Leave(token string) error
	Clear(scope repository.MessageScope) error

	Lookup(token string) (*Session, bool)
	IsActive(name string) bool
}

type chatService struct {
	presence    *presence.Registry
	messageRepo repository.MessageRepository
	publisher   Publisher
	logger      nlog.Logger

	window         time.Duration // Retention window used for history at join
	historyLimit   int           // Cap on history rows returned at join
	pollBatchLimit int           // Cap on rows fetched per poll

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewChatService(reg *presence.Registry, messageRepo repository.MessageRepository, publisher Publisher, logger nlog.Logger, window time.Duration, historyLimit, pollBatchLimit int) ChatService {
	return &chatService{
		presence:       reg,
		messageRepo:    messageRepo,
		publisher:      publisher,
		logger:         logger,
		window:         window,
		historyLimit:   historyLimit,
		pollBatchLimit: pollBatchLimit,
		sessions:       make(map[string]*Session),
	}
}

func (c *chatService) Logf(format string, v ...any) {
	c.logger.Logf(format, v...)
}

// Join claims the display name, announces the arrival and returns the initial
// history. The announcement id seeds the cursor, so the first poll resumes
// exactly where the history ended.
func (c *chatService) Join(name string) (*Session, []*entity.Message, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil, apperr.ErrEmptyName
	}

	if err := c.presence.Join(name); err != nil {
		c.Logf("Join rejected for %q {%v}", name, err)
		return nil, nil, err
	}

	announcement := &entity.Message{
		Sender: entity.SystemSender,
		Body:   fmt.Sprintf("`%s` joined the chat!", name),
	}
	if err := c.messageRepo.Create(announcement); err != nil {
		c.presence.Leave(name)
		return nil, nil, apperr.ErrStorage(err)
	}
	c.publish(announcement)

	history, err := c.messageRepo.History(name, c.window, c.historyLimit)
	if err != nil {
		c.presence.Leave(name)
		return nil, nil, apperr.ErrStorage(err)
	}

	// The announcement id is the baseline watermark: a concurrent clear may
	// wipe the log between the append and the read, leaving history empty.
	// When history extends past the announcement, resume after its last row
	// instead so the first poll re-delivers nothing.
	cursor := announcement.ID
	if n := len(history); n > 0 && history[n-1].ID > cursor {
		cursor = history[n-1].ID
	}
	session := newSession(name, cursor)

	c.mu.Lock()
	c.sessions[session.Token] = session
	c.mu.Unlock()

	c.Logf("%q joined with session %s, cursor at %d", name, session.Token, session.Cursor())
	return session, history, nil
}

// Send appends a message to the log. An empty recipient means public.
// A failed append leaves every cursor untouched.
func (c *chatService) Send(token, body, recipient string) (*entity.Message, error) {
	session, ok := c.Lookup(token)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	if session.State() != StateActive {
		return nil, apperr.ErrSessionClosed
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperr.ErrEmptyMessage
	}

	message := &entity.Message{
		Sender: session.Name,
		Body:   body,
	}
	if recipient != "" {
		if recipient == entity.SystemSender {
			return nil, apperr.ErrReservedName
		}
		r := recipient
		message.Recipient = &r
	}

	if err := c.messageRepo.Create(message); err != nil {
		return nil, apperr.ErrStorage(err)
	}
	c.publish(message)

	return message, nil
}

// Poll returns the messages appended since the session's cursor that the
// viewer may see and did not author. The cursor advances to the last row of
// the fetched batch regardless of sender, so self-authored messages are never
// re-fetched either.
func (c *chatService) Poll(token string) ([]*entity.Message, error) {
	session, ok := c.Lookup(token)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != StateActive {
		return nil, apperr.ErrSessionClosed
	}

	batch, err := c.messageRepo.QuerySince(session.cursor, c.pollBatchLimit, session.Name)
	if err != nil {
		// Cursor untouched: the next poll retries the same window.
		return nil, apperr.ErrStorage(err)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	delivery := make([]*entity.Message, 0, len(batch))
	for _, message := range batch {
		if message.Sender != session.Name {
			delivery = append(delivery, message)
		}
	}

	session.cursor = batch[len(batch)-1].ID
	return delivery, nil
}

// Leave tears the session down: deliverer first, then the announcement, then
// the presence entry. Once Leave returns the name is free for reuse.
func (c *chatService) Leave(token string) error {
	session, ok := c.Lookup(token)
	if !ok {
		return apperr.ErrSessionNotFound
	}
	if !session.beginLeave() {
		return nil // Another leave already won
	}

	session.cancelStream()

	announcement := &entity.Message{
		Sender: entity.SystemSender,
		Body:   fmt.Sprintf("`%s` left the chat!", session.Name),
	}
	if err := c.messageRepo.Create(announcement); err != nil {
		session.abortLeave()
		return apperr.ErrStorage(err)
	}
	c.publish(announcement)

	c.presence.Leave(session.Name)
	session.close()

	c.mu.Lock()
	delete(c.sessions, token)
	c.mu.Unlock()

	c.Logf("%q left, session %s closed", session.Name, session.Token)
	return nil
}

// Clear wipes the selected part of the log. Not reversible.
func (c *chatService) Clear(scope repository.MessageScope) error {
	if err := c.messageRepo.DeleteAll(scope); err != nil {
		return apperr.ErrStorage(err)
	}

	announcement := &entity.Message{
		Sender: entity.SystemSender,
		Body:   "Chat history was cleared!",
	}
	if err := c.messageRepo.Create(announcement); err != nil {
		return apperr.ErrStorage(err)
	}
	c.publish(announcement)

	c.Logf("Chat history cleared, scope %d", scope)
	return nil
}

func (c *chatService) Lookup(token string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[token]
	return session, ok
}

func (c *chatService) IsActive(name string) bool {
	return c.presence.IsActive(name)
}

func (c *chatService) publish(message *entity.Message) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishMessage(message); err != nil {
		c.Logf("Could not publish message %d {%v}", message.ID, err)
	}
}
