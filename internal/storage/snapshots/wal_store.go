// Package snapshots journals published dashboard states so the SSE
// stream can resume from a client's Last-Event-ID after reconnects.
package snapshots

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/perpdash/internal/domain"
)

const (
	// DefaultDir is where the journal lives unless configured.
	DefaultDir = "./wal/snapshots"

	segmentLimit = 500
	maxSegments  = 10

	stateKey = "dashboard_state"
)

// WALStore persists published dashboard states in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed state journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "state_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: false,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes a published state to the journal.
func (s *WALStore) Append(state domain.DashboardState) error {
	if s == nil || s.wal == nil {
		return errors.New("snapshot store is not initialized")
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal dashboard state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, stateKey, payload)
}

// SnapshotsAfter returns all states journaled after the given index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.StateRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.StateRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		_, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}

		var state domain.DashboardState
		if err := json.Unmarshal(payload, &state); err != nil {
			return nil, errors.Wrap(err, "decode dashboard state")
		}
		records = append(records, domain.StateRecord{Index: idx, State: state})
	}

	return records, nil
}

// CurrentIndex returns the latest journal index.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
