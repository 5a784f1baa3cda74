//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
)

func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_landmark.sqlite3")
	t.Setenv("LANDMARK_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB client: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", customPath)
	}
}

func TestSQLiteEmptyLoad(t *testing.T) {
	client, _ := setupTestDB(t)
	assertEmpty(t, client)
}

func TestSQLiteRoundTrip(t *testing.T) {
	client, _ := setupTestDB(t)
	assertRoundTrip(t, client)
}

func TestSQLiteAppendTrack(t *testing.T) {
	client, _ := setupTestDB(t)
	assertAppend(t, client, client)
}

func TestSQLiteSaveReplaces(t *testing.T) {
	client, _ := setupTestDB(t)
	assertSaveReplaces(t, client)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	client, dbPath := setupTestDB(t)
	for _, tr := range sampleTracks() {
		if err := client.AppendTrack(context.Background(), tr); err != nil {
			t.Fatalf("Failed to append track: %v", err)
		}
	}
	client.Close()

	reopened, err := NewDBClientWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen DB: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if !sampleSnapshot().Equal(got) {
		t.Errorf("Expected data to survive reopen, got %+v", got)
	}
}

func TestSQLiteDuplicateTrackIDFails(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()
	tr := sampleTracks()[0]

	if err := client.AppendTrack(ctx, tr); err != nil {
		t.Fatalf("Failed to append track: %v", err)
	}
	err := client.AppendTrack(ctx, tr)
	if !errors.Is(err, ErrIOFailure) {
		t.Fatalf("Expected ErrIOFailure for a reused ID, got %v", err)
	}

	// the failed transaction must leave no partial rows behind
	got, err := client.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if n := len(got.Buckets[0x10]); n != 2 {
		t.Errorf("Expected 2 entries in bucket 0x10, got %d", n)
	}
}

func TestSQLiteLoadRejectsCorruptCounter(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()
	for _, tr := range sampleTracks() {
		if err := client.AppendTrack(ctx, tr); err != nil {
			t.Fatalf("Failed to append track: %v", err)
		}
	}

	if err := client.DB.Model(&Meta{}).Where("name = ?", metaNextID).Update("value", 1).Error; err != nil {
		t.Fatalf("Failed to rewind counter: %v", err)
	}

	if _, err := client.Load(ctx); !errors.Is(err, catalog.ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var client *DBClient
	if err := client.Close(); err != nil {
		t.Errorf("Expected nil error closing a nil client, got %v", err)
	}
	if _, err := client.Load(context.Background()); err == nil {
		t.Error("Expected error loading from a nil client")
	}
}
