package presence

import (
	"sync"

	"chatserver/internal/entity"
	apperr "chatserver/pkg/errors"
)

// Registry tracks the display names of the currently active sessions.
// Join is an atomic check-and-insert, so two concurrent joins with the same
// name can never both succeed.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]struct{}),
	}
}

func (r *Registry) Join(name string) error {
	if name == entity.SystemSender {
		return apperr.ErrReservedName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.active[name]; taken {
		return apperr.ErrNameTaken
	}
	r.active[name] = struct{}{}
	return nil
}

// Leave releases the name. Removing a name that is not present is a no-op.
func (r *Registry) Leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, name)
}

func (r *Registry) IsActive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[name]
	return ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
