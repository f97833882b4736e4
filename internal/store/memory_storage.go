package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"
)

type memEntry struct {
	fields      map[string]any
	expiresAt   time.Time // zero means no expiry
	fieldExpiry map[string]time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStorage is an in-process Storage with the same hash semantics as the
// redis backend. Single-instance deployments and tests use it; field
// operations are atomic under one mutex.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

// WithClock replaces the expiry clock. Components that fake their own clock
// have to drive the storage with the same one or entries they write expire
// against wall time.
func (s *MemoryStorage) WithClock(now func() time.Time) *MemoryStorage {
	s.now = now
	return s
}

// entry returns the live entry for key, dropping it if expired. Callers hold
// the mutex.
func (s *MemoryStorage) entry(key string) *memEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	now := s.now()
	if e.expired(now) {
		delete(s.entries, key)
		return nil
	}
	for field, deadline := range e.fieldExpiry {
		if !now.Before(deadline) {
			delete(e.fields, field)
			delete(e.fieldExpiry, field)
		}
	}
	return e
}

func (s *MemoryStorage) upsert(key string) *memEntry {
	if e := s.entry(key); e != nil {
		return e
	}
	e := &memEntry{
		fields:      make(map[string]any),
		fieldExpiry: make(map[string]time.Time),
	}
	s.entries[key] = e
	return e
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	if e == nil {
		return ErrNotFound
	}
	data, ok := e.fields[valueField]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal([]byte(cast.ToString(data)), val)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.upsert(key)
	e.fields[valueField] = string(data)
	if expiresIn > 0 {
		e.expiresAt = s.now().Add(expiresIn)
	} else {
		e.expiresAt = time.Time{}
	}
	return nil
}

func (s *MemoryStorage) Save(ctx context.Context, key string, val any) error {
	return s.Set(ctx, key, val, -1)
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry(key) == nil {
		return ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

func (s *MemoryStorage) Expire(ctx context.Context, key string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(key); e != nil {
		e.expiresAt = expiresAt
	}
	return nil
}

func (s *MemoryStorage) SetAttr(ctx context.Context, key string, field string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.upsert(key)
	e.fields[field] = val
	delete(e.fieldExpiry, field)
	return nil
}

func (s *MemoryStorage) GetAttr(ctx context.Context, key, field string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	if e == nil {
		return ErrNotFound
	}
	raw, ok := e.fields[field]
	if !ok {
		return ErrNotFound
	}
	return scanValue(raw, val)
}

func (s *MemoryStorage) IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.upsert(key)
	current, err := cast.ToInt64E(e.fields[field])
	if err != nil {
		return 0, fmt.Errorf("field %q is not an integer", field)
	}
	current += delta
	e.fields[field] = current
	return current, nil
}

func (s *MemoryStorage) DelAttr(ctx context.Context, key string, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(key); e != nil {
		delete(e.fields, field)
		delete(e.fieldExpiry, field)
	}
	return nil
}

func (s *MemoryStorage) ExpireAttr(ctx context.Context, key string, expires time.Time, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	if e == nil {
		return ErrNotFound
	}
	for _, field := range fields {
		if _, ok := e.fields[field]; ok {
			e.fieldExpiry[field] = expires
		}
	}
	return nil
}

func scanValue(raw any, val any) error {
	switch dst := val.(type) {
	case *string:
		*dst = cast.ToString(raw)
	case *int:
		*dst = cast.ToInt(raw)
	case *int64:
		v, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		*dst = v
	case *bool:
		*dst = cast.ToBool(raw)
	case *float64:
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		*dst = v
	case *[]byte:
		*dst = []byte(cast.ToString(raw))
	default:
		return fmt.Errorf("unsupported scan destination %T", val)
	}
	return nil
}
