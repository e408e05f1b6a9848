package service

import (
	"context"
	"testing"
	"time"

	"chatserver/internal/entity"
)

func TestDelivererEmitsBatchesInOrder(t *testing.T) {
	chat := newTestChat(t)

	alice, _ := mustJoin(t, chat, "alice")
	bob, _ := mustJoin(t, chat, "bob")
	mustPoll(t, chat, bob)

	delivered := make(chan []*entity.Message, 8)
	deliverer := NewDeliverer(chat, bob.Token, 5*time.Millisecond, func(batch []*entity.Message) {
		delivered <- batch
	}, &MockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		deliverer.Run(ctx)
		close(done)
	}()

	chat.Send(alice.Token, "first", "")
	chat.Send(alice.Token, "second", "")

	var got []*entity.Message
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case batch := <-delivered:
			got = append(got, batch...)
		case <-deadline:
			t.Fatalf("Timed out waiting for delivery, have %d messages", len(got))
		}
	}

	if got[0].Body != "first" || got[1].Body != "second" {
		t.Errorf("Delivery must follow store order. GOT[%s, %s]", got[0].Body, got[1].Body)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Deliverer did not stop on cancel")
	}
}

func TestDelivererStopsWhenSessionLeaves(t *testing.T) {
	chat := newTestChat(t)

	alice, _ := mustJoin(t, chat, "alice")

	deliverer := NewDeliverer(chat, alice.Token, 5*time.Millisecond, func([]*entity.Message) {}, &MockLogger{})

	done := make(chan struct{})
	go func() {
		deliverer.Run(context.Background())
		close(done)
	}()

	if err := chat.Leave(alice.Token); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Deliverer must stop once the session is gone")
	}
}
