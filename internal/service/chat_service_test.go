package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"chatserver/internal/entity"
	"chatserver/internal/presence"
	"chatserver/internal/repository"
	apperr "chatserver/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type MockLogger struct{}

func (m *MockLogger) Logf(format string, v ...any) {}

// MockPublisher records everything pushed to the live feed.
type MockPublisher struct {
	published []*entity.Message
}

func (p *MockPublisher) PublishMessage(message *entity.Message) error {
	p.published = append(p.published, message)
	return nil
}

func newTestMessageRepo(t *testing.T) repository.MessageRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Could not open test database: %v", err)
	}
	if err := db.AutoMigrate(&entity.ChatState{}, &entity.Message{}); err != nil {
		t.Fatalf("Could not migrate schema: %v", err)
	}
	if err := db.Create(&entity.ChatState{ID: 1}).Error; err != nil {
		t.Fatalf("Could not seed chat state: %v", err)
	}
	return repository.NewSQLiteMessageRepository(db)
}

func newTestChat(t *testing.T) ChatService {
	t.Helper()
	return NewChatService(presence.NewRegistry(), newTestMessageRepo(t), nil, &MockLogger{}, 24*time.Hour, 100, 100)
}

func mustJoin(t *testing.T, chat ChatService, name string) (*Session, []*entity.Message) {
	t.Helper()
	session, history, err := chat.Join(name)
	if err != nil {
		t.Fatalf("%s could not join: %v", name, err)
	}
	return session, history
}

func mustPoll(t *testing.T, chat ChatService, session *Session) []*entity.Message {
	t.Helper()
	batch, err := chat.Poll(session.Token)
	if err != nil {
		t.Fatalf("%s could not poll: %v", session.Name, err)
	}
	return batch
}

func TestJoinReturnsHistoryEndingWithAnnouncement(t *testing.T) {
	chat := newTestChat(t)

	session, history := mustJoin(t, chat, "alice")

	if len(history) == 0 {
		t.Fatalf("Join must return at least its own announcement")
	}
	last := history[len(history)-1]
	if !last.Announcement() {
		t.Errorf("The newest history row must be the join announcement")
	}
	if session.Cursor() != last.ID {
		t.Errorf("Cursor must seed from the end of history. GOT[%d], EXPECTED[%d]", session.Cursor(), last.ID)
	}
}

func TestJoinRejectsDuplicateAndSentinel(t *testing.T) {
	chat := newTestChat(t)
	mustJoin(t, chat, "alice")

	if _, _, err := chat.Join("alice"); !errors.Is(err, apperr.ErrNameTaken) {
		t.Errorf("Expected ErrNameTaken, got %v", err)
	}
	if _, _, err := chat.Join(entity.SystemSender); !errors.Is(err, apperr.ErrReservedName) {
		t.Errorf("Expected ErrReservedName, got %v", err)
	}
	if _, _, err := chat.Join("  "); !errors.Is(err, apperr.ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}
}

func TestPublicAndPrivateDeliveryScenario(t *testing.T) {
	chat := newTestChat(t)

	alice, _ := mustJoin(t, chat, "A")
	bob, _ := mustJoin(t, chat, "B")
	carol, _ := mustJoin(t, chat, "C")

	// Flush the join announcements out of everyone's cursor.
	mustPoll(t, chat, alice)
	mustPoll(t, chat, bob)
	mustPoll(t, chat, carol)

	if _, err := chat.Send(alice.Token, "hello", ""); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	batch := mustPoll(t, chat, bob)
	if len(batch) != 1 {
		t.Fatalf("B's poll must yield exactly one message. GOT[%d]", len(batch))
	}
	if batch[0].Sender != "A" || batch[0].Body != "hello" || batch[0].Recipient != nil {
		t.Errorf("Wrong message delivered: %+v", batch[0])
	}
	mustPoll(t, chat, carol) // C flushes the public message too

	if _, err := chat.Send(alice.Token, "hey", "B"); err != nil {
		t.Fatalf("Private send failed: %v", err)
	}

	if batch := mustPoll(t, chat, carol); len(batch) != 0 {
		t.Errorf("C must never receive a private message between A and B, got %d", len(batch))
	}

	batch = mustPoll(t, chat, bob)
	if len(batch) != 1 {
		t.Fatalf("B's poll must yield exactly the private message. GOT[%d]", len(batch))
	}
	if batch[0].Sender != "A" || batch[0].Recipient == nil || *batch[0].Recipient != "B" || batch[0].Body != "hey" {
		t.Errorf("Wrong private message delivered: %+v", batch[0])
	}
}

func TestNoSelfDeliveryButCursorAdvances(t *testing.T) {
	chat := newTestChat(t)

	alice, _ := mustJoin(t, chat, "alice")
	mustPoll(t, chat, alice)

	sent, err := chat.Send(alice.Token, "talking to myself", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	batch := mustPoll(t, chat, alice)
	if len(batch) != 0 {
		t.Errorf("Own messages are never re-delivered, got %d", len(batch))
	}
	if alice.Cursor() != sent.ID {
		t.Errorf("Cursor still advances past own messages. GOT[%d], EXPECTED[%d]", alice.Cursor(), sent.ID)
	}

	// And the next poll does not re-fetch it either.
	if batch := mustPoll(t, chat, alice); len(batch) != 0 {
		t.Errorf("Nothing new, nothing delivered; got %d", len(batch))
	}
}

func TestPollDeliversInStoreOrder(t *testing.T) {
	chat := newTestChat(t)

	alice, _ := mustJoin(t, chat, "alice")
	bob, _ := mustJoin(t, chat, "bob")
	mustPoll(t, chat, bob)

	for i := 1; i <= 5; i++ {
		if _, err := chat.Send(alice.Token, fmt.Sprintf("message %d", i), ""); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	batch := mustPoll(t, chat, bob)
	if len(batch) != 5 {
		t.Fatalf("Expected the whole backlog, got %d", len(batch))
	}
	for i := 1; i < len(batch); i++ {
		if batch[i].ID <= batch[i-1].ID {
			t.Errorf("Delivery order must equal store order")
		}
	}
}

func TestSendValidation(t *testing.T) {
	chat := newTestChat(t)
	alice, _ := mustJoin(t, chat, "alice")

	if _, err := chat.Send(alice.Token, "", ""); !errors.Is(err, apperr.ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
	if _, err := chat.Send(alice.Token, "   ", ""); !errors.Is(err, apperr.ErrEmptyMessage) {
		t.Errorf("Whitespace-only bodies are empty too, got %v", err)
	}
	if _, err := chat.Send(alice.Token, "hi", entity.SystemSender); !errors.Is(err, apperr.ErrReservedName) {
		t.Errorf("Expected ErrReservedName, got %v", err)
	}
	if _, err := chat.Send("no-such-token", "hi", ""); !errors.Is(err, apperr.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestLeaveReleasesNameAndClosesSession(t *testing.T) {
	chat := newTestChat(t)

	alice, _ := mustJoin(t, chat, "alice")
	bob, _ := mustJoin(t, chat, "bob")
	mustPoll(t, chat, bob)

	if err := chat.Leave(alice.Token); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	if chat.IsActive("alice") {
		t.Errorf("The name must be free after leave")
	}
	if _, err := chat.Poll(alice.Token); !errors.Is(err, apperr.ErrSessionNotFound) {
		t.Errorf("A closed session must not poll, got %v", err)
	}

	batch := mustPoll(t, chat, bob)
	if len(batch) != 1 || !batch[0].Announcement() {
		t.Fatalf("Others must see the leave announcement, got %d rows", len(batch))
	}

	// Immediate reuse of the released name
	if _, _, err := chat.Join("alice"); err != nil {
		t.Errorf("A released name must be claimable again, got %v", err)
	}
}

func TestClearPublicKeepsPrivateConversations(t *testing.T) {
	chat := newTestChat(t)

	alice, _ := mustJoin(t, chat, "alice")
	bob, _ := mustJoin(t, chat, "bob")
	mustPoll(t, chat, bob)

	chat.Send(alice.Token, "public chatter", "")
	private, err := chat.Send(alice.Token, "just for you", "bob")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := chat.Clear(repository.ScopePublic); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	batch := mustPoll(t, chat, bob)
	// The private message and the clear announcement survive; the public
	// chatter is gone.
	if len(batch) != 2 {
		t.Fatalf("Expected private message plus clear announcement, got %d", len(batch))
	}
	if batch[0].ID != private.ID {
		t.Errorf("The private message must survive a public clear")
	}
	if !batch[1].Announcement() {
		t.Errorf("Clear must announce itself")
	}
}

// ClearedHistoryRepo simulates a clear racing a join: the announcement lands,
// but the history read comes back empty.
type ClearedHistoryRepo struct {
	repository.MessageRepository
}

func (r *ClearedHistoryRepo) History(viewer string, window time.Duration, limit int) ([]*entity.Message, error) {
	return nil, nil
}

func TestJoinSurvivesConcurrentClear(t *testing.T) {
	cleared := &ClearedHistoryRepo{newTestMessageRepo(t)}
	chat := NewChatService(presence.NewRegistry(), cleared, nil, &MockLogger{}, 24*time.Hour, 100, 100)

	session, history, err := chat.Join("alice")
	if err != nil {
		t.Fatalf("Join must handle an empty history, got %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("Expected an empty history, got %d rows", len(history))
	}
	if session.Cursor() == 0 {
		t.Errorf("Cursor must seed from the join announcement even without history")
	}

	// The cursor sits on the announcement: nothing to re-deliver.
	if batch := mustPoll(t, chat, session); len(batch) != 0 {
		t.Errorf("Expected nothing past the announcement, got %d rows", len(batch))
	}
}

// FlakyMessageRepo fails on demand to simulate the storage layer going away.
type FlakyMessageRepo struct {
	repository.MessageRepository
	fail bool
}

func (f *FlakyMessageRepo) QuerySince(sinceID uint64, limit int, viewer string) ([]*entity.Message, error) {
	if f.fail {
		return nil, errors.New("disk gone")
	}
	return f.MessageRepository.QuerySince(sinceID, limit, viewer)
}

func (f *FlakyMessageRepo) Create(message *entity.Message) error {
	if f.fail {
		return errors.New("disk gone")
	}
	return f.MessageRepository.Create(message)
}

func TestPollFailureDoesNotAdvanceCursor(t *testing.T) {
	flaky := &FlakyMessageRepo{MessageRepository: newTestMessageRepo(t)}
	chat := NewChatService(presence.NewRegistry(), flaky, nil, &MockLogger{}, 24*time.Hour, 100, 100)

	alice, _ := mustJoin(t, chat, "alice")
	bob, _ := mustJoin(t, chat, "bob")
	mustPoll(t, chat, bob)

	if _, err := chat.Send(alice.Token, "hello", ""); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	before := bob.Cursor()
	flaky.fail = true
	if _, err := chat.Poll(bob.Token); apperr.CodeOf(err) != apperr.CodeStorageUnavailable {
		t.Fatalf("Expected a storage error, got %v", err)
	}
	if bob.Cursor() != before {
		t.Errorf("A failed poll must not move the cursor")
	}

	// Once storage is back the message arrives exactly once.
	flaky.fail = false
	batch := mustPoll(t, chat, bob)
	if len(batch) != 1 || batch[0].Body != "hello" {
		t.Fatalf("The retried poll must deliver the pending message, got %d rows", len(batch))
	}
	if batch := mustPoll(t, chat, bob); len(batch) != 0 {
		t.Errorf("No duplicates after recovery, got %d rows", len(batch))
	}
}

func TestFailedLeaveKeepsSessionUsable(t *testing.T) {
	flaky := &FlakyMessageRepo{MessageRepository: newTestMessageRepo(t)}
	chat := NewChatService(presence.NewRegistry(), flaky, nil, &MockLogger{}, 24*time.Hour, 100, 100)

	alice, _ := mustJoin(t, chat, "alice")

	flaky.fail = true
	if err := chat.Leave(alice.Token); apperr.CodeOf(err) != apperr.CodeStorageUnavailable {
		t.Fatalf("Expected a storage error, got %v", err)
	}

	// The leave was aborted: the name is still held and the session works.
	if !chat.IsActive("alice") {
		t.Errorf("An aborted leave must not release the name")
	}
	flaky.fail = false
	if _, err := chat.Send(alice.Token, "still here", ""); err != nil {
		t.Errorf("The session must still accept sends, got %v", err)
	}
}

func TestPublisherReceivesAppendedMessages(t *testing.T) {
	publisher := &MockPublisher{}
	chat := NewChatService(presence.NewRegistry(), newTestMessageRepo(t), publisher, &MockLogger{}, 24*time.Hour, 100, 100)

	alice, _ := mustJoin(t, chat, "alice")
	chat.Send(alice.Token, "hello", "")

	// Join announcement plus the message itself
	if len(publisher.published) != 2 {
		t.Fatalf("Publisher calls. GOT[%d], EXPECTED[2]", len(publisher.published))
	}
	if publisher.published[1].Body != "hello" {
		t.Errorf("The appended message must reach the publisher")
	}
}
