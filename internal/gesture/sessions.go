package gesture

import (
	"sort"
	"sync"
	"time"
)

// Session table defaults.
const (
	DefaultSessionIdle = 10 * time.Minute
	DefaultMaxSessions = 1024
)

type sessionEntry struct {
	rec  *Recognizer
	used time.Time
}

// Sessions maps stream ids to their own Recognizer. Sessions untouched for
// longer than the idle limit are dropped, and when the table is full the
// least recently used session makes room for a new one.
type Sessions struct {
	engine *Engine

	mu          sync.Mutex
	recognizers map[string]*sessionEntry
	idle        time.Duration
	max         int
	onEvict     func(id string)
	now         func() time.Time
}

// NewSessions creates an empty session table backed by engine.
func NewSessions(engine *Engine) *Sessions {
	return &Sessions{
		engine:      engine,
		recognizers: make(map[string]*sessionEntry),
		idle:        DefaultSessionIdle,
		max:         DefaultMaxSessions,
		now:         time.Now,
	}
}

// SetLimits changes the idle expiry and the table size. Zero values disable
// the respective limit.
func (s *Sessions) SetLimits(idle time.Duration, maxSessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = idle
	s.max = maxSessions
}

// OnEvict registers fn to be called with the id of every session dropped by
// expiry or by the size limit. It is not called for Close.
func (s *Sessions) OnEvict(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Get returns the Recognizer for id, creating it on first use.
func (s *Sessions) Get(id string) *Recognizer {
	s.mu.Lock()
	now := s.now()

	if e, ok := s.recognizers[id]; ok {
		e.used = now
		s.mu.Unlock()
		return e.rec
	}

	evicted := s.expireLocked(now)
	if s.max > 0 && len(s.recognizers) >= s.max {
		evicted = append(evicted, s.evictOldestLocked())
	}
	r := s.engine.NewRecognizer()
	s.recognizers[id] = &sessionEntry{rec: r, used: now}
	onEvict := s.onEvict
	s.mu.Unlock()

	s.notify(onEvict, evicted)
	return r
}

// Lookup returns the Recognizer for id if it exists.
func (s *Sessions) Lookup(id string) (*Recognizer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.recognizers[id]
	if !ok {
		return nil, false
	}
	return e.rec, true
}

// Close drops the session. It reports whether the session existed.
func (s *Sessions) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recognizers[id]; !ok {
		return false
	}
	delete(s.recognizers, id)
	return true
}

// Expire drops every session idle for longer than the idle limit.
func (s *Sessions) Expire() {
	s.mu.Lock()
	evicted := s.expireLocked(s.now())
	onEvict := s.onEvict
	s.mu.Unlock()
	s.notify(onEvict, evicted)
}

// Len returns the number of open sessions, after dropping expired ones.
func (s *Sessions) Len() int {
	s.Expire()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recognizers)
}

// IDs returns the open session ids in sorted order.
func (s *Sessions) IDs() []string {
	s.Expire()
	s.mu.Lock()
	ids := make([]string, 0, len(s.recognizers))
	for id := range s.recognizers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	return ids
}

func (s *Sessions) expireLocked(now time.Time) []string {
	if s.idle <= 0 {
		return nil
	}
	var evicted []string
	for id, e := range s.recognizers {
		if now.Sub(e.used) > s.idle {
			delete(s.recognizers, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (s *Sessions) evictOldestLocked() string {
	var oldest string
	var oldestUsed time.Time
	first := true
	for id, e := range s.recognizers {
		if first || e.used.Before(oldestUsed) {
			oldest, oldestUsed = id, e.used
			first = false
		}
	}
	delete(s.recognizers, oldest)
	return oldest
}

func (s *Sessions) notify(fn func(string), ids []string) {
	if fn == nil {
		return
	}
	for _, id := range ids {
		fn(id)
	}
}
