package presence

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"chatserver/internal/entity"
	apperr "chatserver/pkg/errors"
)

func TestJoinLeaveCycle(t *testing.T) {
	r := NewRegistry()

	if err := r.Join("alice"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !r.IsActive("alice") {
		t.Errorf("alice should be active after join")
	}

	if err := r.Join("alice"); !errors.Is(err, apperr.ErrNameTaken) {
		t.Errorf("Expected ErrNameTaken, got %v", err)
	}

	r.Leave("alice")
	if r.IsActive("alice") {
		t.Errorf("alice should not be active after leave")
	}

	// Name is reusable right after leave
	if err := r.Join("alice"); err != nil {
		t.Errorf("Expected rejoin to succeed, got %v", err)
	}
}

func TestJoinRejectsSentinel(t *testing.T) {
	r := NewRegistry()

	if err := r.Join(entity.SystemSender); !errors.Is(err, apperr.ErrReservedName) {
		t.Errorf("Expected ErrReservedName, got %v", err)
	}
	if r.IsActive(entity.SystemSender) {
		t.Errorf("Sentinel must never become active")
	}
}

func TestJoinIsCaseSensitive(t *testing.T) {
	r := NewRegistry()

	if err := r.Join("Alice"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := r.Join("alice"); err != nil {
		t.Errorf("Names differing in case are distinct, got %v", err)
	}
}

func TestLeaveUnknownIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Leave("nobody")

	if r.Count() != 0 {
		t.Errorf("Expected empty registry, got %d entries", r.Count())
	}
}

func TestConcurrentJoinsSameName(t *testing.T) {
	r := NewRegistry()

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Join("bob")
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("Exactly one concurrent join may win. GOT[%d], EXPECTED[1]", wins)
	}
}

func TestConcurrentDistinctJoins(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := r.Join(fmt.Sprintf("user-%d", n)); err != nil {
				t.Errorf("Distinct names must all join, got %v", err)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 16 {
		t.Errorf("Expected 16 active names, got %d", r.Count())
	}
}
