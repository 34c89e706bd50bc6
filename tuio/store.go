package tuio

import (
	"log/slog"
	"sort"
	"time"

	"github.com/LdDl/surface-tuio/metrics"
)

// DefaultElementTimeout is the staleness limit used by NewStoreDefault.
const DefaultElementTimeout = time.Second

// StoreConfig configures a Store
type StoreConfig struct {
	// Timeout after which an element without updates is evicted. Non-positive disables eviction.
	Timeout   time.Duration
	Clock     Clock
	Allocator Allocator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Store keeps live patterns and pointers received over the wire.
//
// Store is not safe for concurrent use: Drain (or the Apply* methods) is the single writer and
// readers are expected to call accessors between drain cycles from the same goroutine.
type Store struct {
	patterns        map[PatternKey]*ImagePattern
	patternsUpdated map[PatternKey]time.Time
	pointers        map[PointerKey]*Pointer
	pointersUpdated map[PointerKey]time.Time

	// Carried keys without a session id mapped to the element created for them.
	patternAliases map[PatternKey]PatternKey
	pointerAliases map[PointerKey]PointerKey

	timeout   time.Duration
	clock     Clock
	allocator Allocator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewStoreDefault creates store with one second timeout, wall clock and its own allocator
func NewStoreDefault() *Store {
	return NewStore(StoreConfig{Timeout: DefaultElementTimeout})
}

// NewStore creates new instance of Store
func NewStore(cfg StoreConfig) *Store {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}
	allocator := cfg.Allocator
	if allocator == nil {
		allocator = NewSessionAllocator()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		patterns:        make(map[PatternKey]*ImagePattern),
		patternsUpdated: make(map[PatternKey]time.Time),
		pointers:        make(map[PointerKey]*Pointer),
		pointersUpdated: make(map[PointerKey]time.Time),
		patternAliases:  make(map[PatternKey]PatternKey),
		pointerAliases:  make(map[PointerKey]PointerKey),
		timeout:         cfg.Timeout,
		clock:           clock,
		allocator:       allocator,
		metrics:         cfg.Metrics,
		logger:          logger,
	}
}

// Timeout returns the eviction timeout
func (store *Store) Timeout() time.Duration {
	return store.timeout
}

// Drain applies every queued update (bnd, sym, ptr, dat; FIFO within a kind) and then runs one
// eviction pass. Only updates queued when Drain starts are consumed.
func (store *Store) Drain(q *Queues) ChangeLog {
	var log ChangeLog
	now := store.clock.Now()
	if q != nil {
		for n := len(q.Bounds); n > 0; n-- {
			store.ApplyBounds(<-q.Bounds, now, &log)
		}
		for n := len(q.Symbols); n > 0; n-- {
			store.ApplySymbol(<-q.Symbols, now, &log)
		}
		for n := len(q.Pointers); n > 0; n-- {
			store.ApplyPointer(<-q.Pointers, now, &log)
		}
		for n := len(q.Data); n > 0; n-- {
			store.ApplyData(<-q.Data, now, &log)
		}
	}
	log.EvictedPatterns, log.EvictedPointers = store.Evict(now)
	store.metrics.SetLive(metrics.KindPattern, len(store.patterns))
	store.metrics.SetLive(metrics.KindPointer, len(store.pointers))
	return log
}

// ApplyBounds creates the pattern if needed and overwrites its bounds. A negative session
// identifier is replaced by an allocated one; later updates carrying the same key without a
// session reach the same pattern until it is evicted.
func (store *Store) ApplyBounds(u BoundsUpdate, now time.Time, log *ChangeLog) {
	key := store.patternKey(u.Key())
	pattern, ok := store.patterns[key]
	if !ok {
		pattern = store.createPattern(key)
	}
	pattern.Bounds = u.Bounds
	store.patternsUpdated[key] = now
	if log != nil {
		log.markBounds(key)
	}
}

// ApplySymbol creates the pattern if needed. The symbol is written, and the pattern refreshed,
// only when it differs from the stored one.
func (store *Store) ApplySymbol(u SymbolUpdate, now time.Time, log *ChangeLog) {
	key := store.patternKey(u.Key())
	pattern, ok := store.patterns[key]
	if !ok {
		pattern = store.createPattern(key)
		store.patternsUpdated[key] = now
	}
	if pattern.Symbol.Equal(u.Symbol) {
		return
	}
	pattern.Symbol = u.Symbol
	store.patternsUpdated[key] = now
	if log != nil {
		log.markSymbol(key)
	}
}

// ApplyPointer replaces the stored pointer. Data attached to the previous occupant of the key
// is carried over to the new one.
func (store *Store) ApplyPointer(u PointerUpdate, now time.Time, log *ChangeLog) {
	ptr := u.Pointer.Clone()
	key := store.pointerKey(ptr.Key())
	ptr.SessionID = key.SessionID
	if prev, ok := store.pointers[key]; ok {
		ptr.Data = prev.Data
	} else {
		store.allocator.Reserve(ptr.SessionID)
		ptr.Data = nil
	}
	store.pointers[key] = ptr
	store.pointersUpdated[key] = now
	if log != nil {
		log.markPointer(key)
	}
}

// ApplyData attaches the datum to an existing pointer, replacing the one of the same mime type.
// Updates for unknown pointers are dropped.
func (store *Store) ApplyData(u DataUpdate, now time.Time, log *ChangeLog) {
	key := u.Key()
	if alias, ok := store.pointerAliases[key]; ok {
		key = alias
	}
	ptr, ok := store.pointers[key]
	if !ok {
		store.logger.Debug("data for unknown pointer dropped", "key", key.String(), "mime_type", u.Data.MimeType)
		return
	}
	ptr.Data = ptr.Data.Append(u.Data, true)
	store.pointersUpdated[key] = now
	if log != nil {
		log.markData(key)
	}
}

// Evict removes every element whose last update is older than the timeout.
// Returned keys are sorted.
func (store *Store) Evict(now time.Time) ([]PatternKey, []PointerKey) {
	if store.timeout <= 0 {
		return nil, nil
	}
	var patterns []PatternKey
	for key, updated := range store.patternsUpdated {
		if now.Sub(updated) > store.timeout {
			delete(store.patterns, key)
			delete(store.patternsUpdated, key)
			patterns = append(patterns, key)
		}
	}
	var pointers []PointerKey
	for key, updated := range store.pointersUpdated {
		if now.Sub(updated) > store.timeout {
			delete(store.pointers, key)
			delete(store.pointersUpdated, key)
			pointers = append(pointers, key)
		}
	}
	for carried, key := range store.patternAliases {
		if _, ok := store.patterns[key]; !ok {
			delete(store.patternAliases, carried)
		}
	}
	for carried, key := range store.pointerAliases {
		if _, ok := store.pointers[key]; !ok {
			delete(store.pointerAliases, carried)
		}
	}
	sortPatternKeys(patterns)
	sortPointerKeys(pointers)
	store.metrics.AddEvictions(metrics.KindPattern, len(patterns))
	store.metrics.AddEvictions(metrics.KindPointer, len(pointers))
	return patterns, pointers
}

// Pattern returns a copy of the stored pattern
func (store *Store) Pattern(key PatternKey) (*ImagePattern, bool) {
	pattern, ok := store.patterns[key]
	if !ok {
		return nil, false
	}
	return pattern.Clone(), true
}

// Patterns returns copies of the patterns with given keys, skipping unknown ones.
// Without keys every live pattern is returned, sorted by key.
func (store *Store) Patterns(keys ...PatternKey) []*ImagePattern {
	if len(keys) == 0 {
		keys = make([]PatternKey, 0, len(store.patterns))
		for key := range store.patterns {
			keys = append(keys, key)
		}
		sortPatternKeys(keys)
	}
	out := make([]*ImagePattern, 0, len(keys))
	for _, key := range keys {
		if pattern, ok := store.patterns[key]; ok {
			out = append(out, pattern.Clone())
		}
	}
	return out
}

// Pointer returns a copy of the stored pointer
func (store *Store) Pointer(key PointerKey) (*Pointer, bool) {
	ptr, ok := store.pointers[key]
	if !ok {
		return nil, false
	}
	return ptr.Clone(), true
}

// Pointers returns copies of the pointers with given keys, skipping unknown ones.
// Without keys every live pointer is returned, sorted by key.
func (store *Store) Pointers(keys ...PointerKey) []*Pointer {
	if len(keys) == 0 {
		keys = make([]PointerKey, 0, len(store.pointers))
		for key := range store.pointers {
			keys = append(keys, key)
		}
		sortPointerKeys(keys)
	}
	out := make([]*Pointer, 0, len(keys))
	for _, key := range keys {
		if ptr, ok := store.pointers[key]; ok {
			out = append(out, ptr.Clone())
		}
	}
	return out
}

// PatternUpdatedAt returns time of the last accepted update of the pattern
func (store *Store) PatternUpdatedAt(key PatternKey) (time.Time, bool) {
	t, ok := store.patternsUpdated[key]
	return t, ok
}

// PointerUpdatedAt returns time of the last accepted update of the pointer
func (store *Store) PointerUpdatedAt(key PointerKey) (time.Time, bool) {
	t, ok := store.pointersUpdated[key]
	return t, ok
}

// Len returns number of live patterns and pointers
func (store *Store) Len() (int, int) {
	return len(store.patterns), len(store.pointers)
}

func (store *Store) patternKey(key PatternKey) PatternKey {
	if key.SessionID >= 0 {
		return key
	}
	if alias, ok := store.patternAliases[key]; ok {
		return alias
	}
	alias := PatternKey{SessionID: store.allocator.Next(), UserID: key.UserID}
	store.patternAliases[key] = alias
	return alias
}

func (store *Store) pointerKey(key PointerKey) PointerKey {
	if key.SessionID >= 0 {
		return key
	}
	if alias, ok := store.pointerAliases[key]; ok {
		return alias
	}
	alias := PointerKey{SessionID: store.allocator.Next(), UserID: key.UserID, ClassID: key.ClassID}
	store.pointerAliases[key] = alias
	return alias
}

func (store *Store) createPattern(key PatternKey) *ImagePattern {
	store.allocator.Reserve(key.SessionID)
	pattern := NewImagePattern(key.SessionID, key.UserID)
	store.patterns[key] = pattern
	return pattern
}

func sortPatternKeys(keys []PatternKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SessionID != keys[j].SessionID {
			return keys[i].SessionID < keys[j].SessionID
		}
		return keys[i].UserID < keys[j].UserID
	})
}

func sortPointerKeys(keys []PointerKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SessionID != keys[j].SessionID {
			return keys[i].SessionID < keys[j].SessionID
		}
		if keys[i].UserID != keys[j].UserID {
			return keys[i].UserID < keys[j].UserID
		}
		return keys[i].ClassID < keys[j].ClassID
	})
}
