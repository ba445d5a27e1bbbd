package history

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
)

// DefaultLimit is the maximum number of entries kept.
const DefaultLimit = 50

// Entry is one past identification. Entries are never modified after creation.
type Entry struct {
	ID       string        `json:"id"`
	Image    string        `json:"image"`
	Analysis fish.Analysis `json:"analysis"`

	// Timestamp is unix milliseconds
	Timestamp int64 `json:"timestamp"`
}

// Time returns the creation time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	e.Analysis = e.Analysis.Clone()
	return e
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures a Store.
type Options struct {
	// Limit caps the number of entries. Default: DefaultLimit.
	Limit int

	// Clock defaults to the system clock.
	Clock Clock
}

// Store is the ordered, size-bounded history log, newest first. Every
// mutation is written through to the backend before it returns.
type Store struct {
	backend Backend
	limit   int
	clock   Clock

	mu      sync.Mutex
	entropy io.Reader
	entries []Entry
}

// Open loads the stored history once. An unreadable payload is logged and
// the store starts empty; any other load failure is returned.
func Open(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	s := &Store{
		backend: backend,
		limit:   opts.Limit,
		clock:   opts.Clock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if s.limit <= 0 {
		s.limit = DefaultLimit
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}

	entries, err := backend.Load(ctx)
	switch {
	case stderrors.Is(err, ErrCorrupt):
		log.Printf("history: %v; starting empty", err)
		entries = nil
	case err != nil:
		return nil, err
	}
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.entries = entries
	return s, nil
}

// Add records a new entry at the front, evicting the oldest beyond the
// limit, and persists the result. The returned entry and the in-memory
// state are valid even when err is non-nil; err is then a
// PERSISTENCE_WARNING.
func (s *Store) Add(ctx context.Context, image string, analysis *fish.Analysis) (Entry, error) {
	if analysis == nil {
		return Entry{}, errors.NewInvalidRequest("analysis is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return Entry{}, errors.NewInternal(err)
	}
	entry := Entry{
		ID:        id.String(),
		Image:     image,
		Analysis:  analysis.Clone(),
		Timestamp: now.UnixMilli(),
	}

	next := make([]Entry, 0, min(len(s.entries)+1, s.limit))
	next = append(next, entry)
	for _, e := range s.entries {
		if len(next) == s.limit {
			break
		}
		next = append(next, e)
	}
	s.entries = next

	return entry.Clone(), s.persist(ctx)
}

// Remove deletes the entry with id. An unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}
	next := make([]Entry, 0, len(s.entries)-1)
	next = append(next, s.entries[:idx]...)
	next = append(next, s.entries[idx+1:]...)
	s.entries = next

	return s.persist(ctx)
}

// Merge adds entries in bulk, as done by history import. Entries whose id
// is already present are skipped, or overwritten when replace is set. The
// result is ordered newest first by timestamp, truncated to the limit and
// persisted once. It returns how many entries were added or replaced.
func (s *Store) Merge(ctx context.Context, entries []Entry, replace bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Entry, len(s.entries), len(s.entries)+len(entries))
	copy(next, s.entries)

	changed := 0
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		idx := slices.IndexFunc(next, func(x Entry) bool { return x.ID == e.ID })
		switch {
		case idx < 0:
			next = append(next, e.Clone())
		case replace:
			next[idx] = e.Clone()
		default:
			continue
		}
		changed++
	}
	if changed == 0 {
		return 0, nil
	}

	slices.SortStableFunc(next, func(a, b Entry) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	if len(next) > s.limit {
		next = next[:s.limit]
	}
	s.entries = next

	return changed, s.persist(ctx)
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	return s.persist(ctx)
}

// List returns a snapshot of all entries, newest first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Get returns the entry with id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Entry{}, false
	}
	return s.entries[idx].Clone(), true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Limit returns the configured capacity.
func (s *Store) Limit() int {
	return s.limit
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	if err := s.backend.Save(ctx, s.entries); err != nil {
		return errors.NewPersistenceWarning(err)
	}
	return nil
}
