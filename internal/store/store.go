// Package store provides the process-local keyed entity store that backs the
// procurement collections. The in-memory state is authoritative; an optional
// Sink receives a synchronous write-through copy of every mutation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrTypeMismatch is returned when a stored value cannot be presented as the
// requested model type.
var ErrTypeMismatch = errors.New("stored value type mismatch")

// Cloner is implemented by values that must not be aliased between the store
// and its callers. The store clones such values on every read and write.
type Cloner interface {
	CloneValue() any
}

// Store is a keyed store of named values with per-key writer serialization.
type Store struct {
	mu     sync.RWMutex
	values map[string]any

	// gate is held shared by every writer and exclusively by Clear.
	gate sync.RWMutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	sink   Sink
	logger Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSink enables write-through persistence to sink.
func WithSink(sink Sink) Option {
	return func(s *Store) {
		s.sink = sink
	}
}

// WithLogger sets the logger used for write-through and load diagnostics.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a store. When a sink is configured its contents are loaded
// once; load failures are logged and leave the store empty.
func New(ctx context.Context, opts ...Option) *Store {
	s := &Store{
		values: make(map[string]any),
		locks:  make(map[string]*sync.Mutex),
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink != nil {
		s.load(ctx)
	}
	return s
}

func (s *Store) load(ctx context.Context) {
	payloads, err := s.sink.Load(ctx)
	if err != nil {
		s.logger.Error("store load failed, starting empty", "driver", s.sink.Driver(), "error", err)
		return
	}
	for key, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		s.values[key] = json.RawMessage(append([]byte(nil), payload...))
	}
	s.logger.Debug("store loaded", "driver", s.sink.Driver(), "keys", len(payloads))
}

// Driver returns the configured sink driver, or "memory" without a sink.
func (s *Store) Driver() string {
	if s.sink == nil {
		return "memory"
	}
	return s.sink.Driver()
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func cloneValue(v any) any {
	if c, ok := v.(Cloner); ok {
		return c.CloneValue()
	}
	if raw, ok := v.(json.RawMessage); ok {
		return append(json.RawMessage(nil), raw...)
	}
	return v
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// GetOr returns the value under key or def when absent.
func (s *Store) GetOr(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Snapshot returns a consistent point-in-time copy of the requested keys.
// Absent keys are omitted.
func (s *Store) Snapshot(keys ...string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := s.values[key]; ok {
			out[key] = cloneValue(v)
		}
	}
	return out
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores value under key and writes it through to the sink.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return errors.New("store key required")
	}
	s.gate.RLock()
	defer s.gate.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()
	s.publish(ctx, map[string]any{key: value})
	return nil
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, key string) bool {
	s.gate.RLock()
	defer s.gate.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	_, ok := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if s.sink != nil {
		if err := s.sink.Delete(ctx, key); err != nil {
			s.logger.Warn("store write-through delete failed", "driver", s.sink.Driver(), "key", key, "error", err)
		}
	}
	return true
}

// Clear removes every key. It waits for in-flight writers and blocks new
// ones until the sink has been cleared too.
func (s *Store) Clear(ctx context.Context) {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.mu.Lock()
	s.values = make(map[string]any)
	s.mu.Unlock()
	if s.sink != nil {
		if err := s.sink.Clear(ctx); err != nil {
			s.logger.Warn("store write-through clear failed", "driver", s.sink.Driver(), "error", err)
		}
	}
}

// Update performs a serialized read-modify-write of key. fn receives a copy
// of the current value; returning an error leaves the store untouched.
func (s *Store) Update(ctx context.Context, key string, fn func(current any, ok bool) (any, error)) error {
	s.gate.RLock()
	defer s.gate.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	current, ok := s.Get(key)
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	s.publish(ctx, map[string]any{key: next})
	return nil
}

// UpdateMany performs a read-modify-write spanning several keys. Key locks
// are acquired in sorted order and all returned values become visible to
// readers at once. fn may only return keys it was given.
func (s *Store) UpdateMany(ctx context.Context, keys []string, fn func(current map[string]any) (map[string]any, error)) error {
	keys = uniqueSorted(keys)
	s.gate.RLock()
	defer s.gate.RUnlock()
	held := s.lockAll(keys)
	defer unlockAll(held)

	next, err := fn(s.Snapshot(keys...))
	if err != nil {
		return err
	}
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	for k := range next {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("update of unlocked key %q", k)
		}
	}
	s.publish(ctx, next)
	return nil
}

func (s *Store) lockAll(keys []string) []*sync.Mutex {
	held := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		l := s.lockFor(k)
		l.Lock()
		held = append(held, l)
	}
	return held
}

func unlockAll(held []*sync.Mutex) {
	for i := len(held) - 1; i >= 0; i-- {
		held[i].Unlock()
	}
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// publish installs values under the map lock, then writes each through to the
// sink. Callers must hold the key locks.
func (s *Store) publish(ctx context.Context, values map[string]any) {
	s.mu.Lock()
	for k, v := range values {
		s.values[k] = cloneValue(v)
	}
	s.mu.Unlock()

	if s.sink == nil {
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		payload, err := json.Marshal(values[k])
		if err != nil {
			s.logger.Error("store write-through encode failed", "driver", s.sink.Driver(), "key", k, "error", err)
			continue
		}
		if err := s.sink.Save(ctx, k, payload); err != nil {
			s.logger.Warn("store write-through failed", "driver", s.sink.Driver(), "key", k, "error", err)
		}
	}
}

// GetModel returns the value under key as T. Raw payloads loaded from a sink
// are decoded on first access and cached in typed form.
func GetModel[T any](s *Store, key string) (T, bool, error) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false, nil
	}
	out, decoded, err := DecodeModel[T](v)
	if err != nil {
		return zero, true, fmt.Errorf("key %q: %w", key, err)
	}
	if decoded {
		s.cacheDecoded(key, v, out)
	}
	return out, true, nil
}

// SetModel stores a typed value under key.
func SetModel[T any](ctx context.Context, s *Store, key string, value T) error {
	return s.Set(ctx, key, value)
}

// DecodeModel converts a stored value to T. decoded reports whether a raw
// JSON payload had to be unmarshalled.
func DecodeModel[T any](v any) (out T, decoded bool, err error) {
	switch val := v.(type) {
	case T:
		return val, false, nil
	case json.RawMessage:
		if err := json.Unmarshal(val, &out); err != nil {
			return out, false, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return out, true, nil
	}
	return out, false, fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, v, out)
}

func (s *Store) cacheDecoded(key string, raw any, typed any) {
	rawMsg, ok := raw.(json.RawMessage)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.values[key].(json.RawMessage)
	if !ok || string(current) != string(rawMsg) {
		return
	}
	s.values[key] = cloneValue(typed)
}
