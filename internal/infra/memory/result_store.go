package memory

import (
	"context"
	"sync"

	"pinquiz-service/internal/domain"
)

// ResultArchive keeps finished session records in memory. It backs the
// service when no Postgres is configured and doubles as a test double.
type ResultArchive struct {
	mu      sync.RWMutex
	results map[string]domain.SessionResult
}

func NewResultArchive() *ResultArchive {
	return &ResultArchive{results: make(map[string]domain.SessionResult)}
}

func (a *ResultArchive) SaveSessionResult(_ context.Context, result domain.SessionResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[result.SessionID] = result
	return nil
}

// Result returns a saved record, if present.
func (a *ResultArchive) Result(sessionID string) (domain.SessionResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result, ok := a.results[sessionID]
	return result, ok
}
