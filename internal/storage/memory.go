package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// MemoryStorage is an in-memory implementation of Ledger
type MemoryStorage struct {
	mu        sync.RWMutex
	emissions []*Emission
	latest    map[string]int
}

// NewMemoryStorage creates a new in-memory ledger
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		latest: make(map[string]int),
	}
}

// Open initializes the storage
func (s *MemoryStorage) Open() error {
	logger.Debug("Opening memory storage")
	return nil
}

// Close closes the storage
func (s *MemoryStorage) Close() error {
	logger.Debug("Closing memory storage")
	return nil
}

// Record stores a copy of the emission
func (s *MemoryStorage) Record(ctx context.Context, emission *Emission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debug("Recording emission in memory", zap.String("id", emission.ID))
	s.latest[string(latestKey(emission.Format, emission.Dir))] = len(s.emissions)
	s.emissions = append(s.emissions, copyEmission(emission))
	return nil
}

// Last returns the latest emission for format into dir
func (s *MemoryStorage) Last(ctx context.Context, format model.Format, dir string) (*Emission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.latest[string(latestKey(format, dir))]
	if !ok {
		return nil, ErrEmissionNotFound{Format: format, Dir: dir}
	}
	return copyEmission(s.emissions[i]), nil
}

// List returns emissions newest first
func (s *MemoryStorage) List(ctx context.Context, limit int) ([]*Emission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Emission
	for i := len(s.emissions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, copyEmission(s.emissions[i]))
	}
	return out, nil
}

func copyEmission(e *Emission) *Emission {
	c := *e
	c.Files = append([]string(nil), e.Files...)
	return &c
}
