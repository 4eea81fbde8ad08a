package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SessionTTL is how long an idle session is kept before the registry
// drops it. Any access through the service resets the clock.
var SessionTTL = 30 * time.Minute

// cleanupInterval is how often the registry sweeps for idle sessions.
const cleanupInterval = time.Minute

// ReferenceFetcher loads the lookup tables used at commit time. Tables are
// fetched fresh for every commit; the resolver receives them as an
// explicit argument, never as ambient state.
type ReferenceFetcher interface {
	FetchReferenceTables(ctx context.Context) (ReferenceTables, error)
}

// Store is the slice of the persistence layer the import engine needs.
type Store interface {
	ReferenceFetcher
	ChunkInserter
}

// Service owns all live import sessions and drives the pipeline
// end-to-end: parse -> validate -> resolve -> batch commit. Stages for one
// session run strictly sequentially; the service never starts a stage
// before the previous one settles.
type Service struct {
	store     Store
	batchSize int
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	sess       *Session
	lastActive time.Time
}

// NewService creates a session service committing in chunks of batchSize.
func NewService(store Store, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := &Service{
		store:     store,
		batchSize: batchSize,
		now:       time.Now,
		sessions:  make(map[string]*sessionEntry),
	}
	go s.cleanupSessions()
	return s
}

// CreateFileSession parses an uploaded document into a new session. The
// session is registered even when parsing fails so the client can read the
// failure state, and is dropped once idle for SessionTTL.
func (s *Service) CreateFileSession(fileName string, fileData []byte) (*Session, error) {
	sess, err := NewFileSession(fileName, fileData)
	s.register(sess)
	return sess, err
}

// CreateGridSession starts a new manual-entry session.
func (s *Service) CreateGridSession() *Session {
	sess := NewGridSession()
	s.register(sess)
	return sess
}

// Get returns a live session by ID and marks it active, deferring idle
// expiry.
func (s *Service) Get(sessionID string) (*Session, error) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if ok {
		entry.lastActive = s.now()
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("import session not found: %s", sessionID)
	}
	return entry.sess, nil
}

// Commit runs the commit pipeline for a session: fetch reference tables,
// resolve every record, then submit chunks sequentially. Returns the count
// of rows persisted. On failure the session moves to Failed with its data
// preserved for a user-initiated retry.
func (s *Service) Commit(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return 0, err
	}

	records, err := sess.BeginCommit()
	if err != nil {
		return 0, err
	}

	log := slog.Default().With("session_id", sess.ID, "rows", len(records))

	refs, err := s.store.FetchReferenceTables(ctx)
	if err != nil {
		err = fmt.Errorf("fetch reference tables: %w", err)
		sess.FailCommit(0, err)
		log.Error("import commit failed", "error", err)
		return 0, err
	}

	resolved, err := Resolve(records, refs)
	if err != nil {
		sess.FailCommit(0, err)
		log.Error("import commit failed", "error", err)
		return 0, err
	}

	count, err := NewBatchCommitter(s.store, s.batchSize).Commit(ctx, resolved)
	if err != nil {
		sess.FailCommit(count, err)
		log.Error("import commit failed", "committed", count, "error", err)
		return count, err
	}

	sess.CompleteCommit(count)
	log.Info("import committed", "committed", count)
	return count, nil
}

// Reset clears a session back to Empty.
func (s *Service) Reset(sessionID string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.Reset()
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) register(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{sess: sess, lastActive: s.now()}
	s.mu.Unlock()
}

// cleanupSessions periodically drops sessions that have been idle for
// SessionTTL. Sessions are process-local and never persisted; sweeping
// keeps an abandoned browser tab from pinning memory forever.
func (s *Service) cleanupSessions() {
	for {
		time.Sleep(cleanupInterval)
		s.expireIdle()
	}
}

// expireIdle removes every session whose last access is older than
// SessionTTL. A session mid-commit is never expired, whatever its age.
func (s *Service) expireIdle() {
	cutoff := s.now().Add(-SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		if entry.lastActive.After(cutoff) {
			continue
		}
		if entry.sess.State() == StateCommitting {
			continue
		}
		delete(s.sessions, id)
	}
}
