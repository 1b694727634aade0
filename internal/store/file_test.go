package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flickerlabs/flicker-relay/internal/ledger"
)

func sampleRecords() map[string]ledger.Record {
	return map[string]ledger.Record{
		"id-1": {
			Counters:  map[ledger.Category]int{ledger.CategoryQuestions: 3, ledger.CategoryImageGenerations: 1},
			LastReset: time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
		},
		"id-2": {
			Counters:  map[ledger.Category]int{ledger.CategoryQuestions: 0},
			LastReset: time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
		},
	}
}

func TestFileStore_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	s := NewFileStore(path)
	ctx := context.Background()

	want := sampleRecords()
	if errSave := s.Save(ctx, want); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}

	got, errLoad := s.Load(ctx)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	if got["id-1"].Counters[ledger.CategoryQuestions] != 3 {
		t.Fatalf("expected questions=3, got %d", got["id-1"].Counters[ledger.CategoryQuestions])
	}
	if got["id-1"].LastReset != want["id-1"].LastReset {
		t.Fatalf("expected last_reset %q, got %q", want["id-1"].LastReset, got["id-1"].LastReset)
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	got, errLoad := s.Load(context.Background())
	if errLoad != nil {
		t.Fatalf("expected no error for missing file, got %v", errLoad)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty ledger, got %d records", len(got))
	}
}

func TestFileStore_CorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	if errWrite := os.WriteFile(path, []byte("{not json"), 0600); errWrite != nil {
		t.Fatalf("write: %v", errWrite)
	}
	s := NewFileStore(path)
	if _, errLoad := s.Load(context.Background()); errLoad == nil {
		t.Fatal("expected error for corrupt file")
	}
}

func TestFileStore_DeletedBetweenSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	s := NewFileStore(path)
	ctx := context.Background()

	if errSave := s.Save(ctx, sampleRecords()); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if errRemove := os.Remove(path); errRemove != nil {
		t.Fatalf("remove: %v", errRemove)
	}

	got, errLoad := s.Load(ctx)
	if errLoad != nil {
		t.Fatalf("expected fresh ledger after deletion, got %v", errLoad)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 records, got %d", len(got))
	}
}

func TestFileStore_SaveReplacesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	s := NewFileStore(path)
	ctx := context.Background()

	if errSave := s.Save(ctx, sampleRecords()); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if errSave := s.Save(ctx, map[string]ledger.Record{}); errSave != nil {
		t.Fatalf("save empty: %v", errSave)
	}

	got, errLoad := s.Load(ctx)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if len(got) != 0 {
		t.Fatalf("expected snapshot fully replaced, got %d records", len(got))
	}
}
