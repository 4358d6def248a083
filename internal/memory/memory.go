// Package memory holds per-session conversational state: ordered turn
// history and the slot values carried across turns. All state is
// in-process and lives at most for the process lifetime.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/seriesbot-go/internal/models"
)

// Store owns all sessions. Sessions are never shared or merged; turns
// for one session serialize via Lock while different sessions proceed
// independently.
type Store struct {
	ttl         time.Duration
	maxSessions int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	// turnMu serializes whole turns for this session. Held by the
	// orchestrator for the duration of a turn, which also protects the
	// session from eviction mid-turn.
	turnMu sync.Mutex

	turns      []models.Turn
	slots      models.CarriedSlots
	lastAccess time.Time
}

// NewStore creates a session store. ttl bounds session age since last
// access; maxSessions caps the session count (oldest evicted first).
// Zero values disable the respective policy.
func NewStore(ttl time.Duration, maxSessions int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		ttl:         ttl,
		maxSessions: maxSessions,
		logger:      logger,
		sessions:    make(map[string]*session),
	}
}

// Create registers a new session and returns its identifier.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{lastAccess: time.Now()}
	s.mu.Unlock()
	return id
}

// GetOrCreate returns id if the session exists, refreshing its access
// time. An empty or unknown id yields a freshly created session; caller
// ids are never adopted, session identifiers stay server-generated.
func (s *Store) GetOrCreate(id string) string {
	if id != "" {
		s.mu.Lock()
		if sess, ok := s.sessions[id]; ok {
			sess.lastAccess = time.Now()
			s.mu.Unlock()
			return id
		}
		s.mu.Unlock()
	}
	return s.Create()
}

// Lock acquires the per-session turn lock and returns the release func.
// Auto-creates unknown sessions so a lock is always obtainable.
func (s *Store) Lock(id string) func() {
	sess := s.getOrCreateSession(id)
	sess.turnMu.Lock()
	return sess.turnMu.Unlock
}

// Append adds a turn to a session's history. Unknown sessions are
// auto-created, a defensive fallback: the orchestrator is expected to
// call GetOrCreate first.
func (s *Store) Append(id string, turn models.Turn) {
	sess := s.getOrCreateSession(id)
	s.mu.Lock()
	sess.turns = append(sess.turns, turn)
	sess.lastAccess = time.Now()
	s.mu.Unlock()
}

// History returns the most recent maxTurns turns in arrival order.
// maxTurns <= 0 returns the full history.
func (s *Store) History(id string, maxTurns int) []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	sess.lastAccess = time.Now()

	turns := sess.turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out
}

// Slots returns a copy of the session's carried slots.
func (s *Store) Slots(id string) models.CarriedSlots {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return models.CarriedSlots{}
	}
	sess.lastAccess = time.Now()
	return sess.slots
}

// SetSlots merges a partial slot update into the session's carried
// slots. Existing values persist unless the update carries a non-zero
// replacement.
func (s *Store) SetSlots(id string, update models.CarriedSlots) {
	sess := s.getOrCreateSession(id)
	s.mu.Lock()
	sess.slots = sess.slots.Merge(update)
	sess.lastAccess = time.Now()
	s.mu.Unlock()
}

// Len reports the current session count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions past the TTL and, if over the cap, the least
// recently used ones. Sessions whose turn lock is held are skipped so a
// session is never evicted mid-turn. Returns the number evicted.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	evicted := 0

	if s.ttl > 0 {
		for id, sess := range s.sessions {
			if now.Sub(sess.lastAccess) <= s.ttl {
				continue
			}
			if !sess.turnMu.TryLock() {
				continue // turn in flight
			}
			sess.turnMu.Unlock()
			delete(s.sessions, id)
			evicted++
		}
	}

	if s.maxSessions > 0 && len(s.sessions) > s.maxSessions {
		type entry struct {
			id         string
			lastAccess time.Time
		}
		entries := make([]entry, 0, len(s.sessions))
		for id, sess := range s.sessions {
			entries = append(entries, entry{id, sess.lastAccess})
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].lastAccess.Before(entries[j].lastAccess)
		})
		for _, e := range entries {
			if len(s.sessions) <= s.maxSessions {
				break
			}
			sess := s.sessions[e.id]
			if !sess.turnMu.TryLock() {
				continue
			}
			sess.turnMu.Unlock()
			delete(s.sessions, e.id)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Debug("evicted sessions", "count", evicted, "remaining", len(s.sessions))
	}
	return evicted
}

// StartJanitor sweeps periodically until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

func (s *Store) getOrCreateSession(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{lastAccess: time.Now()}
		s.sessions[id] = sess
	}
	return sess
}
