package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pinquiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in-process: they carry mutexes, timers and
//     subscriber channels that cannot live in Redis.
//   - Redis mirrors a liveness marker per session (id -> join code) so other
//     instances and operators can see which sessions this node is running.
//   - For true distribution you'd pair this with a pub/sub projector that
//     routes actions to the owning instance.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	byID   map[string]*app.Session
	byCode map[string]string
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		byID:   make(map[string]*app.Session),
		byCode: make(map[string]string),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[session.ID()] = session
	s.byCode[session.JoinCode()] = session.ID()
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(session.ID()), session.JoinCode(), s.ttl).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[sessionID]
	return session, ok
}

func (s *SessionStore) GetByCode(joinCode string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[joinCode]
	if !ok {
		return nil, false
	}
	session, ok := s.byID[id]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[sessionID]
	if !ok {
		return
	}
	delete(s.byID, sessionID)
	if current, ok := s.byCode[session.JoinCode()]; ok && current == sessionID {
		delete(s.byCode, session.JoinCode())
	}
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
