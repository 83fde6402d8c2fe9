package poll

import (
	"context"
	"testing"

	"podium/internal/services"
	"podium/internal/store"
	"podium/internal/testsupport"
)

func TestStoreSourceSnapshots(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.NewRecording(t, st, store.NewRecordingParams{UserRef: "user-1"})
	ctx := context.Background()

	source := NewStoreSource(st)
	snapshot, err := source.Status(ctx, rec.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snapshot.Status != store.StatusUploading {
		t.Fatalf("status = %q", snapshot.Status)
	}
	if snapshot.Transcript != nil || snapshot.Report != nil {
		t.Fatal("expected no artifacts yet")
	}

	if err := st.SaveReport(ctx, &store.FeedbackReport{RecordingID: rec.ID, Model: "m", Overall: 70}); err != nil {
		t.Fatalf("save report: %v", err)
	}
	snapshot, err = source.Status(ctx, rec.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snapshot.Report == nil || snapshot.Report.Overall != 70 {
		t.Fatalf("report = %+v", snapshot.Report)
	}
}

func TestStoreSourceUnknownRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := NewStoreSource(st).Status(context.Background(), "absent")
	if !services.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}
