package poll

import (
	"context"
	"fmt"

	"podium/internal/services"
	"podium/internal/store"
)

// StoreSource reads progress snapshots straight from the record store. It is
// the source used when watcher and pipeline share a process.
type StoreSource struct {
	store *store.Store
}

// NewStoreSource wraps a record store as a StatusSource.
func NewStoreSource(st *store.Store) *StoreSource {
	return &StoreSource{store: st}
}

// Status loads the recording and whatever artifacts exist for it.
func (s *StoreSource) Status(ctx context.Context, recordingID string) (*Snapshot, error) {
	rec, err := s.store.GetByID(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("poll status: %w", err)
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "poll", "status", recordingID, nil)
	}
	snapshot := &Snapshot{Status: rec.Status}
	if snapshot.Transcript, err = s.store.GetTranscript(ctx, recordingID); err != nil {
		return nil, fmt.Errorf("poll status: transcript: %w", err)
	}
	if snapshot.Report, err = s.store.GetReport(ctx, recordingID); err != nil {
		return nil, fmt.Errorf("poll status: report: %w", err)
	}
	return snapshot, nil
}
