package database

import (
	"context"
	"testing"
	"time"
)

func TestNew_MigratesSchema(t *testing.T) {
	db, cleanup := NewTestDB(t)
	defer cleanup()

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != len(migrations) {
		t.Errorf("SchemaVersion() = %d, want %d", version, len(migrations))
	}

	// Reopening an existing file must not re-apply migrations
	path := db.Path()
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() on existing database error = %v", err)
	}
	_ = reopened.Close()
}

func TestRollback(t *testing.T) {
	db, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if v, _ := db.SchemaVersion(); v != len(migrations)-1 {
		t.Errorf("SchemaVersion() after rollback = %d", v)
	}
}

func TestCommandMetrics(t *testing.T) {
	db, cleanup := NewTestDB(t)
	defer cleanup()
	ctx := context.Background()

	usages := []CommandUsage{
		{Command: "weather", Nick: "a", Channel: "#x", Success: true, Duration: 100 * time.Millisecond},
		{Command: "weather", Nick: "b", Channel: "#x", Success: false, Duration: 300 * time.Millisecond},
		{Command: "sahko", Nick: "a", Channel: "#y", Success: true, Duration: 10 * time.Millisecond},
		{Command: "crypto", Nick: "a", Channel: "#y", Success: true, Timestamp: time.Now().Add(-48 * time.Hour)},
	}
	for _, u := range usages {
		if err := db.RecordCommandUsage(ctx, u); err != nil {
			t.Fatalf("RecordCommandUsage() error = %v", err)
		}
	}

	stats, err := db.GetCommandStats(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("GetCommandStats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("GetCommandStats() returned %d rows, want 2: %+v", len(stats), stats)
	}
	if stats[0].Command != "weather" || stats[0].Count != 2 || stats[0].Failures != 1 {
		t.Errorf("weather stats = %+v", stats[0])
	}
	if stats[0].AverageMillis != 200 {
		t.Errorf("AverageMillis = %v, want 200", stats[0].AverageMillis)
	}

	deleted, err := db.CleanupOldMetrics(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldMetrics() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("CleanupOldMetrics() deleted %d rows, want 1", deleted)
	}
}

func TestTitleCache(t *testing.T) {
	db, cleanup := NewTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if _, ok, err := db.GetCachedTitle(ctx, "https://example.org", time.Hour); err != nil || ok {
		t.Fatalf("GetCachedTitle() on empty cache = %v, %v", ok, err)
	}

	if err := db.StoreTitle(ctx, "https://example.org", "Example"); err != nil {
		t.Fatal(err)
	}
	if err := db.StoreTitle(ctx, "https://example.org", "Example Domain"); err != nil {
		t.Fatal(err)
	}

	title, ok, err := db.GetCachedTitle(ctx, "https://example.org", time.Hour)
	if err != nil || !ok || title != "Example Domain" {
		t.Errorf("GetCachedTitle() = %q, %v, %v", title, ok, err)
	}

	// Expired entries are misses
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := db.GetCachedTitle(ctx, "https://example.org", time.Millisecond); ok {
		t.Error("expired title returned as a hit")
	}

	deleted, err := db.CleanupOldTitles(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("CleanupOldTitles() deleted %d, want 1", deleted)
	}
}
