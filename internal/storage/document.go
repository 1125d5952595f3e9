package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/google/uuid"
)

// Key addresses one document. GuildID and UserID may be empty for records
// that are not scoped to a guild or user.
type Key struct {
	Collection string
	GuildID    string
	UserID     string
	ID         string
}

func (k Key) validate() error {
	if k.Collection == "" {
		return apperrors.NewValidationError("collection", "must not be empty")
	}
	if k.ID == "" {
		return apperrors.NewValidationError("id", "must not be empty")
	}
	return nil
}

// Scope selects the documents of a collection for one guild and user.
// IDPrefix optionally narrows the result to ids starting with it.
type Scope struct {
	Collection string
	GuildID    string
	UserID     string
	IDPrefix   string
}

// Document is a stored record.
type Document struct {
	Key
	// DocID is the immutable unique id assigned on first insert.
	DocID     string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode unmarshals the document data into dst.
func (d Document) Decode(dst any) error {
	return json.Unmarshal(d.Data, dst)
}

// Put upserts v as JSON under key. It reports whether a new document was created.
func (db *DB) Put(ctx context.Context, key Key, v any) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s document: %w", key.Collection, err)
	}

	now := db.now().Unix()
	docID := uuid.NewString()
	query := `
		INSERT INTO documents (collection, guild_id, user_id, id, doc_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, guild_id, user_id, id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
		RETURNING doc_id
	`
	// An update keeps the existing doc_id, so a match means a fresh insert.
	var stored string
	err = db.conn.QueryRowContext(ctx, query,
		key.Collection, key.GuildID, key.UserID, key.ID, docID, string(data), now, now,
	).Scan(&stored)
	if err != nil {
		return false, fmt.Errorf("failed to save %s document: %w", key.Collection, err)
	}
	return stored == docID, nil
}

// Get loads the document under key into dst. Returns ErrNotFound when absent.
func (db *DB) Get(ctx context.Context, key Key, dst any) error {
	doc, err := db.GetDocument(ctx, key)
	if err != nil {
		return err
	}
	if err := doc.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s document: %w", key.Collection, err)
	}
	return nil
}

// GetDocument returns the raw document under key. Returns ErrNotFound when absent.
func (db *DB) GetDocument(ctx context.Context, key Key) (*Document, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	query := `
		SELECT doc_id, data, created_at, updated_at FROM documents
		WHERE collection = ? AND guild_id = ? AND user_id = ? AND id = ?
	`
	doc := &Document{Key: key}
	var data string
	var createdAt, updatedAt int64
	err := db.conn.QueryRowContext(ctx, query, key.Collection, key.GuildID, key.UserID, key.ID).
		Scan(&doc.DocID, &data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", key.Collection, key.ID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s document: %w", key.Collection, err)
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)
	return doc, nil
}

// Delete removes the document under key. It reports whether one existed.
func (db *DB) Delete(ctx context.Context, key Key) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND guild_id = ? AND user_id = ? AND id = ?`,
		key.Collection, key.GuildID, key.UserID, key.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s document: %w", key.Collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete %s document: %w", key.Collection, err)
	}
	return n > 0, nil
}

// List returns the documents in scope, oldest first.
func (db *DB) List(ctx context.Context, scope Scope) ([]Document, error) {
	if scope.Collection == "" {
		return nil, apperrors.NewValidationError("collection", "must not be empty")
	}
	query := `
		SELECT id, doc_id, data, created_at, updated_at FROM documents
		WHERE collection = ? AND guild_id = ? AND user_id = ? AND id LIKE ? ESCAPE '\'
		ORDER BY created_at, id
	`
	rows, err := db.conn.QueryContext(ctx, query,
		scope.Collection, scope.GuildID, scope.UserID, sanitizeSearchTerm(scope.IDPrefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", scope.Collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		doc := Document{Key: Key{Collection: scope.Collection, GuildID: scope.GuildID, UserID: scope.UserID}}
		var data string
		var createdAt, updatedAt int64
		if err := rows.Scan(&doc.ID, &doc.DocID, &data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", scope.Collection, err)
		}
		doc.Data = json.RawMessage(data)
		doc.CreatedAt = time.Unix(createdAt, 0)
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", scope.Collection, err)
	}
	return docs, nil
}

// Count returns the number of documents in a collection across all scopes.
func (db *DB) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s documents: %w", collection, err)
	}
	return count, nil
}
