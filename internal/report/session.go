package report

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dsigen/internal/cache"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
)

// HistoryLimit is how many generated documents History returns.
const HistoryLimit = 10

// Session is the caller-owned state shared by successive generations: the
// event cache and the list of documents created so far. Nothing is
// persisted beyond the process.
type Session struct {
	store cache.Store
	now   func() time.Time

	mu      sync.Mutex
	history []model.HistoryEntry
}

// NewSession wraps store; a nil store disables caching.
func NewSession(store cache.Store) *Session {
	if store == nil {
		store = cache.Nop{}
	}
	return &Session{store: store, now: time.Now}
}

// Cache is the event store the session invalidates on Refresh.
func (s *Session) Cache() cache.Store {
	return s.store
}

// Refresh drops every cached event list.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.store.Invalidate(ctx); err != nil {
		return err
	}
	appLog.Info("event cache invalidated")
	return nil
}

// Record appends a generated document to the history.
func (s *Session) Record(number int, period, documentID string) model.HistoryEntry {
	e := model.HistoryEntry{
		ID:         uuid.NewString(),
		Number:     number,
		Period:     period,
		DocumentID: documentID,
		CreatedAt:  s.now(),
	}
	s.mu.Lock()
	s.history = append(s.history, e)
	s.mu.Unlock()
	return e
}

// History returns the latest HistoryLimit entries, newest first.
func (s *Session) History() []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(len(s.history), HistoryLimit)
	out := make([]model.HistoryEntry, 0, n)
	for i := len(s.history) - 1; i >= len(s.history)-n; i-- {
		out = append(out, s.history[i])
	}
	return out
}
