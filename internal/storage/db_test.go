package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/garyellow/guildbot-go/internal/errors"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type note struct {
	Text string `json:"text"`
}

// TestNew_FileSystemDatabase tests database creation with file system persistence
func TestNew_FileSystemDatabase(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "sub1", "sub2", "test.db")

	ctx := context.Background()
	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	key := Key{Collection: "notes", GuildID: "g1", ID: "n1"}
	if _, err := db.Put(ctx, key, note{Text: "hello"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file not created: %s", dbPath)
	}

	// Data survives reopening.
	db, err = New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer func() { _ = db.Close() }()

	var got note
	if err := db.Get(ctx, key, &got); err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("Expected text %q, got %q", "hello", got.Text)
	}
}

// TestPing_DatabaseConnectivity tests database connectivity check
func TestPing_DatabaseConnectivity(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping failed on healthy database: %v", err)
	}
	if err := db.Optimize(ctx); err != nil {
		t.Errorf("Optimize failed: %v", err)
	}
}

func TestPing_AfterClose(t *testing.T) {
	t.Parallel()
	db, err := NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Ping(context.Background()); err == nil {
		t.Error("Expected ping on closed database to fail")
	}
}

func TestDocument_PutGetDelete(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	key := Key{Collection: "notes", GuildID: "g1", UserID: "u1", ID: "n1"}

	created, err := db.Put(ctx, key, note{Text: "first"})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !created {
		t.Error("Expected first Put to create the document")
	}

	first, err := db.GetDocument(ctx, key)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}

	created, err = db.Put(ctx, key, note{Text: "second"})
	if err != nil {
		t.Fatalf("Put update failed: %v", err)
	}
	if created {
		t.Error("Expected second Put to update the document")
	}

	second, err := db.GetDocument(ctx, key)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if second.DocID != first.DocID {
		t.Errorf("DocID changed on update: %s -> %s", first.DocID, second.DocID)
	}
	var got note
	if err := second.Decode(&got); err != nil || got.Text != "second" {
		t.Errorf("Expected updated text, got %+v (err %v)", got, err)
	}

	existed, err := db.Delete(ctx, key)
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v; want true, nil", existed, err)
	}
	existed, err = db.Delete(ctx, key)
	if err != nil || existed {
		t.Errorf("Second delete = %v, %v; want false, nil", existed, err)
	}

	if err := db.Get(ctx, key, &got); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDocument_KeyValidation(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.Put(ctx, Key{ID: "x"}, note{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing collection, got %v", err)
	}
	if _, err := db.Put(ctx, Key{Collection: "notes"}, note{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing id, got %v", err)
	}
	if _, err := db.List(ctx, Scope{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty scope, got %v", err)
	}
}

func TestDocument_ListScopes(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	clock := time.Unix(1_700_000_000, 0)
	db.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	puts := []Key{
		{Collection: "notes", GuildID: "g1", UserID: "u1", ID: "a_1"},
		{Collection: "notes", GuildID: "g1", UserID: "u1", ID: "ab1"},
		{Collection: "notes", GuildID: "g1", UserID: "u1", ID: "b"},
		{Collection: "notes", GuildID: "g1", UserID: "u2", ID: "a_2"},
		{Collection: "notes", GuildID: "g2", UserID: "u1", ID: "a_3"},
		{Collection: "other", GuildID: "g1", UserID: "u1", ID: "a_4"},
	}
	for _, k := range puts {
		if _, err := db.Put(ctx, k, note{Text: k.ID}); err != nil {
			t.Fatalf("Put %v failed: %v", k, err)
		}
	}

	docs, err := db.List(ctx, Scope{Collection: "notes", GuildID: "g1", UserID: "u1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(docs))
	}
	if docs[0].ID != "a_1" || docs[2].ID != "b" {
		t.Errorf("Unexpected order: %s, %s, %s", docs[0].ID, docs[1].ID, docs[2].ID)
	}

	// The underscore in the prefix is literal, so "ab1" does not match.
	docs, err = db.List(ctx, Scope{Collection: "notes", GuildID: "g1", UserID: "u1", IDPrefix: "a_"})
	if err != nil {
		t.Fatalf("List with prefix failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a_1" {
		t.Errorf("Expected only a_1, got %+v", docs)
	}

	count, err := db.Count(ctx, "notes")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 notes, got %d", count)
	}
}
