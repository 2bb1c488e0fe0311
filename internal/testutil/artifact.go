package testutil

import (
	"sync"

	"github.com/tolelom/gamemaster/artifact"
)

// MemArtifactStore is an in-memory artifact.Store for tests.
type MemArtifactStore struct {
	mu      sync.RWMutex
	reveals map[uint64][32]byte
	maps    map[uint64]artifact.MapArtifact
	scores  map[uint64]artifact.ScoresArtifact
}

// NewMemArtifactStore creates an empty MemArtifactStore.
func NewMemArtifactStore() *MemArtifactStore {
	return &MemArtifactStore{
		reveals: make(map[uint64][32]byte),
		maps:    make(map[uint64]artifact.MapArtifact),
		scores:  make(map[uint64]artifact.ScoresArtifact),
	}
}

func (m *MemArtifactStore) SaveReveal(gameID uint64, secret [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reveals[gameID] = secret
	return nil
}

func (m *MemArtifactStore) LoadReveal(gameID uint64) ([32]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.reveals[gameID]
	if !ok {
		return [32]byte{}, artifact.ErrNotFound
	}
	return v, nil
}

func (m *MemArtifactStore) SaveMap(gameID uint64, mp artifact.MapArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps[gameID] = mp
	return nil
}

func (m *MemArtifactStore) LoadMap(gameID uint64) (artifact.MapArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.maps[gameID]
	if !ok {
		return artifact.MapArtifact{}, artifact.ErrNotFound
	}
	return v, nil
}

func (m *MemArtifactStore) SaveScores(gameID uint64, sc artifact.ScoresArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[gameID] = sc
	return nil
}

func (m *MemArtifactStore) LoadScores(gameID uint64) (artifact.ScoresArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.scores[gameID]
	if !ok {
		return artifact.ScoresArtifact{}, artifact.ErrNotFound
	}
	return v, nil
}

func (m *MemArtifactStore) HasScores(gameID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.scores[gameID]
	return ok
}
