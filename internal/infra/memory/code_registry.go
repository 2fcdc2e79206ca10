package memory

import (
	"context"
	"sync"
)

// CodeRegistry tracks reserved join codes in-process. Codes stay reserved
// until the session that holds them finishes and releases them.
type CodeRegistry struct {
	mu       sync.Mutex
	reserved map[string]struct{}
}

func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{reserved: make(map[string]struct{})}
}

func (r *CodeRegistry) Reserve(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.reserved[code]; taken {
		return false, nil
	}
	r.reserved[code] = struct{}{}
	return true, nil
}

func (r *CodeRegistry) Release(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, code)
	return nil
}
