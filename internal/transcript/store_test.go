package transcript

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	recs := []Record{
		{Timestamp: base, Server: "files", Tool: "read_file", Arguments: `{"path":"a"}`, Result: "contents", Duration: 40 * time.Millisecond},
		{Timestamp: base.Add(time.Minute), Server: "files", Tool: "read_file", Arguments: `{"path":"b"}`, Result: "missing", IsError: true, Duration: 12 * time.Millisecond},
		{Timestamp: base.Add(2 * time.Minute), Server: "weather", Tool: "forecast", Arguments: `{}`, Result: "sunny", Duration: 300 * time.Millisecond},
	}
	for _, rec := range recs {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}

	// Newest first.
	if got[0].Tool != "forecast" {
		t.Errorf("got[0].Tool = %q, want forecast", got[0].Tool)
	}
	if got[1].Tool != "read_file" || !got[1].IsError {
		t.Errorf("got[1] = %+v, want errored read_file", got[1])
	}
	if got[0].ID == "" {
		t.Error("record ID was not generated")
	}
	if got[0].Duration != 300*time.Millisecond {
		t.Errorf("Duration = %v, want 300ms", got[0].Duration)
	}
}

func TestStore_SummaryByTool(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := Record{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Server:    "files",
			Tool:      "read_file",
			IsError:   i == 2,
		}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.Record(ctx, Record{Timestamp: base, Server: "weather", Tool: "forecast"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sums, err := store.SummaryByTool(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("SummaryByTool: %v", err)
	}

	rf := sums["read_file"]
	if rf == nil || rf.Calls != 3 || rf.Errors != 1 {
		t.Errorf("read_file summary = %+v, want 3 calls 1 error", rf)
	}
	fc := sums["forecast"]
	if fc == nil || fc.Calls != 1 || fc.Errors != 0 {
		t.Errorf("forecast summary = %+v, want 1 call 0 errors", fc)
	}
}

func TestStore_SummaryWindowExcludes(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Record(ctx, Record{Timestamp: base, Server: "files", Tool: "read_file"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sums, err := store.SummaryByTool(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("SummaryByTool: %v", err)
	}
	if len(sums) != 0 {
		t.Errorf("summary outside window = %v, want empty", sums)
	}
}
