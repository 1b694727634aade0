package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/flickerlabs/flicker-relay/internal/db"
	"github.com/flickerlabs/flicker-relay/internal/ledger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() {
		sqlDB, errDB := conn.DB()
		if errDB == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestGormStore_Roundtrip(t *testing.T) {
	s := NewGormStore(openTestDB(t))
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
	if got["id-1"].Counters[ledger.CategoryImageGenerations] != 1 {
		t.Fatalf("expected image_generations=1, got %d", got["id-1"].Counters[ledger.CategoryImageGenerations])
	}
}

func TestGormStore_SavePrunesMissingIdentities(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	ctx := context.Background()

	if errSave := s.Save(ctx, sampleRecords()); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}

	trimmed := sampleRecords()
	delete(trimmed, "id-2")
	if errSave := s.Save(ctx, trimmed); errSave != nil {
		t.Fatalf("save trimmed: %v", errSave)
	}

	got, errLoad := s.Load(ctx)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record after prune, got %d", len(got))
	}
	if _, ok := got["id-2"]; ok {
		t.Fatal("expected id-2 pruned from the store")
	}
}

func TestGormStore_UpsertUpdatesExisting(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	ctx := context.Background()

	records := sampleRecords()
	if errSave := s.Save(ctx, records); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}

	records["id-1"].Counters[ledger.CategoryQuestions] = 7
	if errSave := s.Save(ctx, records); errSave != nil {
		t.Fatalf("save updated: %v", errSave)
	}

	got, errLoad := s.Load(ctx)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if got["id-1"].Counters[ledger.CategoryQuestions] != 7 {
		t.Fatalf("expected questions=7, got %d", got["id-1"].Counters[ledger.CategoryQuestions])
	}
}
