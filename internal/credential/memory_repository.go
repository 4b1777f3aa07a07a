package credential

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepository builds an in-memory credential store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string]Record)}
}

func (r *memoryRepository) Exists(_ context.Context, identity string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[identity]
	return ok, nil
}

func (r *memoryRepository) Create(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.Identity]; exists {
		return ErrIdentityExists
	}
	r.records[rec.Identity] = rec.Clone()
	return nil
}

func (r *memoryRepository) Find(_ context.Context, identity string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[identity]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *memoryRepository) SetFractalKey(_ context.Context, identity string, variant Variant, markers []Marker) error {
	return r.mutate(identity, func(rec *Record) {
		rec.Variant = variant
		rec.Markers = append([]Marker(nil), markers...)
	})
}

func (r *memoryRepository) SetBaseline(_ context.Context, identity string, baseline Baseline) error {
	return r.mutate(identity, func(rec *Record) {
		b := baseline
		rec.Baseline = &b
	})
}

func (r *memoryRepository) SetChallenges(_ context.Context, identity string, easy, hard Challenge) error {
	return r.mutate(identity, func(rec *Record) {
		e, h := easy, hard
		rec.EasyChallenge = &e
		rec.HardChallenge = &h
		rec.Complete = true
	})
}

func (r *memoryRepository) IncrementFailed(_ context.Context, identity string) error {
	return r.mutate(identity, func(rec *Record) {
		rec.FailedAttempts++
	})
}

func (r *memoryRepository) ResetFailed(_ context.Context, identity string) error {
	return r.mutate(identity, func(rec *Record) {
		rec.FailedAttempts = 0
	})
}

func (r *memoryRepository) Delete(_ context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, identity)
	return nil
}

func (r *memoryRepository) mutate(identity string, fn func(rec *Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[identity]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	r.records[identity] = rec
	return nil
}
