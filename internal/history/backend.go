package history

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/hpungsan/fishscroll/internal/db"
	"github.com/hpungsan/fishscroll/internal/errors"
)

// StorageKey is the fixed record name holding the serialized history.
const StorageKey = "fish-history-storage"

var (
	// ErrCorrupt wraps a stored payload that cannot be deserialized.
	ErrCorrupt = stderrors.New("stored history is unreadable")

	// ErrQuotaExceeded is returned when a save would exceed the storage quota.
	ErrQuotaExceeded = stderrors.New("history storage quota exceeded")
)

// Backend persists the whole ordered collection as one unit.
type Backend interface {
	// Load returns the stored entries, nil if nothing has been stored yet.
	// An undecodable payload is reported as ErrCorrupt.
	Load(ctx context.Context) ([]Entry, error)

	// Save replaces the stored collection atomically.
	Save(ctx context.Context, entries []Entry) error
}

func encodeEntries(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

func decodeEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrCorrupt, i)
		}
	}
	return entries, nil
}

// SQLBackend stores history as a single row in the records table.
type SQLBackend struct {
	db       *sql.DB
	key      string
	maxBytes int64
}

// NewSQLBackend stores under StorageKey. maxBytes > 0 caps the serialized size.
func NewSQLBackend(conn *sql.DB, maxBytes int64) *SQLBackend {
	return &SQLBackend{db: conn, key: StorageKey, maxBytes: maxBytes}
}

// Load implements Backend.
func (b *SQLBackend) Load(ctx context.Context) ([]Entry, error) {
	rec, err := db.GetRecord(ctx, b.db, b.key)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntries([]byte(rec.Value))
}

// Save implements Backend.
func (b *SQLBackend) Save(ctx context.Context, entries []Entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if b.maxBytes > 0 && int64(len(data)) > b.maxBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrQuotaExceeded, len(data), b.maxBytes)
	}
	return db.PutRecord(ctx, b.db, b.key, string(data))
}

// MemoryBackend keeps the serialized collection in memory. It round-trips
// through JSON like the durable backend does.
type MemoryBackend struct {
	mu       sync.Mutex
	data     []byte
	maxBytes int64
	saves    int

	// SaveErr, when set, is returned by every Save
	SaveErr error
}

// NewMemoryBackend returns an empty backend. maxBytes > 0 caps the serialized size.
func NewMemoryBackend(maxBytes int64) *MemoryBackend {
	return &MemoryBackend{maxBytes: maxBytes}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, nil
	}
	return decodeEntries(b.data)
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, entries []Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SaveErr != nil {
		return b.SaveErr
	}
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if b.maxBytes > 0 && int64(len(data)) > b.maxBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrQuotaExceeded, len(data), b.maxBytes)
	}
	b.data = data
	b.saves++
	return nil
}

// SetRaw replaces the stored payload verbatim.
func (b *MemoryBackend) SetRaw(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
}

// Raw returns the stored payload.
func (b *MemoryBackend) Raw() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Saves returns how many successful saves have happened.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}
