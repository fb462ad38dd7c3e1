package scanstore_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/registry"
	"github.com/raysh454/sift/internal/scanstore"
)

func newStore(t *testing.T) *scanstore.SQLiteStore {
	t.Helper()
	db, err := registry.OpenSQLite(filepath.Join(t.TempDir(), "scans.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st, err := scanstore.NewSQLiteStore(db, logging.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	return st
}

func sampleRun(id string, at time.Time) *model.ScanRun {
	results := []model.ToolResult{
		model.Completed("maigret", 3, map[string]any{"jobId": "j1"}),
		model.Skipped("spiderfoot", model.ReasonNotConfigured),
	}
	return &model.ScanRun{
		ScanID:       id,
		WorkspaceID:  "ws1",
		UserID:       "u1",
		Target:       "alice",
		TargetType:   model.TargetUsername,
		Status:       model.SummarizeStatus(results),
		Results:      results,
		TotalCost:    15,
		Correlations: []model.Correlation{},
		CreatedAt:    at.UTC(),
	}
}

func TestStore_SaveAndGetRawIsStable(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	ctx := context.Background()
	run := sampleRun("s1", time.Now())

	if err := st.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want, _ := scanstore.Encode(run)

	first, err := st.GetRaw(ctx, "s1")
	if err != nil {
		t.Fatalf("GetRaw: %v", err)
	}
	second, _ := st.GetRaw(ctx, "s1")
	if !bytes.Equal(first, want) || !bytes.Equal(first, second) {
		t.Fatalf("stored record changed between reads")
	}

	got, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.RunPartial || len(got.Results) != 2 || got.Results[0].Tool != "maigret" {
		t.Fatalf("unexpected run: %+v", got)
	}
}

func TestStore_SaveRejectsDuplicateID(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, sampleRun("dup", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	err := st.Save(ctx, sampleRun("dup", time.Now()))
	if !errors.Is(err, scanstore.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	ok, err := st.Exists(ctx, "dup")
	if err != nil || !ok {
		t.Fatalf("Exists: %v %v", ok, err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, scanstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ok, _ := st.Exists(context.Background(), "nope"); ok {
		t.Fatalf("missing scan reported as existing")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := st.Save(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	list, err := st.List(ctx, "ws1", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ScanID != "c" || list[1].ScanID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if !list[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected created_at: %v", list[0].CreatedAt)
	}

	empty, err := st.List(ctx, "other", 0)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list: %v %v", empty, err)
	}
}
