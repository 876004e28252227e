package fridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/samratjha96/kitchen-lens/internal/storage"
)

// DefaultStorageKey is the slot the current analysis lives under.
const DefaultStorageKey = "kitchen-lens-analysis"

// ErrInvalidQuantity is returned when a quantity is not a positive finite number.
var ErrInvalidQuantity = errors.New("quantity must be a positive number")

// Store owns the single persisted "current" analysis. It assumes a single
// writer; the backend guarantees each read and write of the slot is atomic.
type Store struct {
	backend storage.Backend
	key     string
}

// NewStore creates a store over backend. An empty key selects DefaultStorageKey.
func NewStore(backend storage.Backend, key string) *Store {
	if key == "" {
		key = DefaultStorageKey
	}
	return &Store{backend: backend, key: key}
}

// Save persists analysis, replacing any previous value. An analysis that
// would not load back is refused with a *SchemaValidationError and nothing
// is written.
func (s *Store) Save(ctx context.Context, analysis *Analysis) error {
	if err := analysis.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// Load returns the persisted analysis, or nil when there is none. Unreadable
// or invalid data is logged and reported as absent.
func (s *Store) Load(ctx context.Context) *Analysis {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("failed to read stored analysis")
		return nil
	}

	var analysis Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("discarding invalid stored analysis")
		return nil
	}
	return &analysis
}

// Clear removes the persisted analysis. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear analysis: %w", err)
	}
	return nil
}

// UpdateQuantity sets the quantity of the item at index and persists the
// recomputed analysis. It returns nil when nothing is stored. An index out
// of range returns the stored analysis untouched without writing.
func (s *Store) UpdateQuantity(ctx context.Context, index int, quantity float64) (*Analysis, error) {
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, ErrInvalidQuantity
	}

	current := s.Load(ctx)
	if current == nil {
		return nil, nil
	}

	updated, ok := current.WithQuantity(index, quantity)
	if !ok {
		log.Debug().Int("index", index).Int("itemCount", current.Len()).Msg("quantity update index out of range")
		return current, nil
	}

	if err := s.Save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}
