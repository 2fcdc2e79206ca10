package memory

import (
	"sync"

	"pinquiz-service/internal/app"
)

// SessionStore is the in-process arena of live sessions: a map keyed by
// session id plus a join-code index. It implements app.SessionRepository.
type SessionStore struct {
	mu     sync.RWMutex
	byID   map[string]*app.Session
	byCode map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:   make(map[string]*app.Session),
		byCode: make(map[string]string),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[session.ID()] = session
	s.byCode[session.JoinCode()] = session.ID()
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
}
