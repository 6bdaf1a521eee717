package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/cfd-invoice/internal/bill"
)

// StorageKey is the fixed key the whole history document is stored under
const StorageKey = "cfd_invoice_history"

// ErrNotPersisted is returned when the in-memory history changed but could not be written
var ErrNotPersisted = errors.New("history not persisted")

// Store owns the ordered history, most recent first. Every mutation rewrites the
// whole document under StorageKey.
type Store struct {
	kv        KV
	ids       IDGenerator
	strictIDs bool
	clock     TimeSource
	logger    *slog.Logger

	mu      sync.Mutex
	entries []bill.Entry
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator sets the id generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Store) {
		s.ids = ids
	}
}

// WithStrictIDs makes the default id generator fail instead of falling back to weak ids
func WithStrictIDs(strict bool) Option {
	return func(s *Store) {
		s.strictIDs = strict
	}
}

// WithTimeSource sets the clock used for entry timestamps and weak ids
func WithTimeSource(clock TimeSource) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty Store over kv. Call Load to read the persisted history.
func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		clock:  &defaultTimeSource{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = NewUUIDGenerator(s.strictIDs, s.clock)
	}
	return s
}

// Load reads the persisted history. Missing or corrupt data yields an empty history;
// the problem is logged, never returned.
func (s *Store) Load() []bill.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil

	data, err := s.kv.Get(StorageKey)
	if err != nil {
		s.logger.Error("Failed to read history", "key", StorageKey, "error", err)
		return []bill.Entry{}
	}
	if data == nil {
		return []bill.Entry{}
	}

	var entries []bill.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Error("Failed to parse history", "key", StorageKey, "bytes", len(data), "error", err)
		return []bill.Entry{}
	}

	s.entries = entries
	return s.snapshot()
}

// Entries returns a copy of the history, most recent first
func (s *Store) Entries() []bill.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns the entry with the given id
func (s *Store) Get(id string) (bill.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return bill.Entry{}, false
}

// Append creates an entry for record and puts it at the head of the history.
// If only the write fails, the returned entry is valid and the error wraps ErrNotPersisted.
func (s *Store) Append(record bill.Record) (bill.Entry, error) {
	id, err := s.ids.Generate()
	if err != nil {
		return bill.Entry{}, fmt.Errorf("generating history id: %w", err)
	}

	entry := bill.Entry{
		ID:        id,
		Timestamp: s.clock.Now().UnixMilli(),
		Data:      record,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]bill.Entry{entry}, s.entries...)
	if err := s.persist(); err != nil {
		return entry, err
	}
	return entry, nil
}

// Remove drops the entry with the given id. Unknown ids leave the history unchanged.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]bill.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept

	return s.persist()
}

// Clear deletes the persisted document and empties the history. If the delete
// fails the history is left as it was.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(StorageKey); err != nil {
		s.logger.Error("Failed to delete history", "key", StorageKey, "entries", len(s.entries), "error", err)
		return fmt.Errorf("%w: deleting %s: %v", ErrNotPersisted, StorageKey, err)
	}
	s.entries = nil
	return nil
}

// persist rewrites the whole document. Callers hold mu.
func (s *Store) persist() error {
	entries := s.entries
	if entries == nil {
		entries = []bill.Entry{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: marshaling history: %v", ErrNotPersisted, err)
	}
	if err := s.kv.Put(StorageKey, data); err != nil {
		s.logger.Error("Failed to write history", "key", StorageKey, "entries", len(entries), "error", err)
		return fmt.Errorf("%w: writing %s: %v", ErrNotPersisted, StorageKey, err)
	}
	return nil
}

// snapshot copies the entries. Callers hold mu.
func (s *Store) snapshot() []bill.Entry {
	out := make([]bill.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
