// Package memory keeps exported snapshots in process, for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finboard/internal/sheets"
)

var (
	_ sheets.SnapshotWriter = (*Store)(nil)
	_ sheets.SnapshotLister = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	items []sheets.Snapshot
}

func New() *Store {
	return &Store{}
}

// AppendSnapshot stores the snapshot and returns a synthetic row reference.
func (s *Store) AppendSnapshot(_ context.Context, snap sheets.Snapshot) (string, error) {
	if snap.UserID == "" {
		return "", fmt.Errorf("snapshot without user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ByCurrency = append(snap.ByCurrency[:0:0], snap.ByCurrency...)
	s.items = append(s.items, snap)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// ListSnapshots returns the user's snapshots in export order.
func (s *Store) ListSnapshots(_ context.Context, userID string) ([]sheets.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sheets.Snapshot
	for _, snap := range s.items {
		if snap.UserID == userID {
			out = append(out, snap)
		}
	}
	return out, nil
}
