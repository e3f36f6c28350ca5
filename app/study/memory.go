package study

import (
	"context"
	"sync"
	"time"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

type memoryEntry struct {
	session   models.StudySession
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Entries idle longer than ttl are
// treated as missing and removed by a periodic sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

// NewMemoryStore starts the sweeper; call Close to stop it.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	go s.sweepLoop(interval)
	return s
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if !e.expiresAt.After(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func cloneSession(in models.StudySession) models.StudySession {
	out := in
	out.Turns = append([]models.Turn(nil), in.Turns...)
	return out
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || !e.expiresAt.After(s.now()) {
		delete(s.sessions, id)
		return models.StudySession{}, ErrNotFound
	}
	return cloneSession(e.session), nil
}

func (s *MemoryStore) Create(_ context.Context, session models.StudySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.sessions[session.ID]; ok && e.expiresAt.After(now) {
		return ErrConflict
	}
	s.sessions[session.ID] = memoryEntry{session: cloneSession(session), expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Save(_ context.Context, session models.StudySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = memoryEntry{session: cloneSession(session), expiresAt: s.now().Add(s.ttl)}
	return nil
}
