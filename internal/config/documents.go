package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kindfund/kindfund/internal/model"
)

// docOps implements the document collection operations over either the
// database handle or a transaction.
type docOps struct {
	ext     sqlx.ExtContext
	now     func() time.Time
	dialect dialect
}

type documentRow struct {
	Body []byte `db:"body"`
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// InsertDocument assigns doc a fresh ID and timestamps and stores it in
// collection.
func (o docOps) InsertDocument(ctx context.Context, collection string, doc model.Document) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := o.now().UTC().Truncate(time.Millisecond)

	meta := doc.Meta()
	meta.ID = id
	meta.CreatedAt = now
	meta.UpdatedAt = now

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s document: %w", collection, err)
	}

	q := o.ext.Rebind(`INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := o.ext.ExecContext(ctx, q, collection, id, string(body), now.UnixMilli(), now.UnixMilli()); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
		}
		return fmt.Errorf("insert %s document: %w", collection, err)
	}
	return nil
}

// GetDocument decodes the document collection/id into dst, which may be a
// model.Document or any JSON target such as *json.RawMessage.
func (o docOps) GetDocument(ctx context.Context, collection, id string, dst any) error {
	return o.getDocument(ctx, "SELECT body FROM documents WHERE collection = ? AND id = ?", collection, id, dst)
}

func (o docOps) getDocument(ctx context.Context, query, collection, id string, dst any) error {
	var row documentRow
	q := o.ext.Rebind(query)
	if err := sqlx.GetContext(ctx, o.ext, &row, q, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s document: %w", collection, err)
	}
	if err := json.Unmarshal(row.Body, dst); err != nil {
		return fmt.Errorf("decode %s document %s: %w", collection, id, err)
	}
	return nil
}

// ListDocuments returns one page of collection, newest first, together with
// the total number of documents in the collection.
func (o docOps) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]json.RawMessage, int64, error) {
	total, err := o.CountDocuments(ctx, collection)
	if err != nil {
		return nil, 0, err
	}

	paging, pageArgs := o.dialect.page(limit, offset)
	var rows []documentRow
	q := o.ext.Rebind(`SELECT body FROM documents WHERE collection = ?
		ORDER BY created_at DESC, id DESC` + paging)
	args := append([]any{collection}, pageArgs...)
	if err := sqlx.SelectContext(ctx, o.ext, &rows, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s documents: %w", collection, err)
	}

	docs := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		docs[i] = json.RawMessage(r.Body)
	}
	return docs, total, nil
}

// UpdateDocument replaces the stored body of doc, refreshing UpdatedAt.
// Returns ErrNotFound if the document does not exist.
func (o docOps) UpdateDocument(ctx context.Context, collection string, doc model.Document) error {
	meta := doc.Meta()
	if meta.ID == "" {
		return ErrNotFound
	}
	meta.UpdatedAt = o.now().UTC().Truncate(time.Millisecond)

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s document: %w", collection, err)
	}

	q := o.ext.Rebind("UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?")
	result, err := o.ext.ExecContext(ctx, q, string(body), meta.UpdatedAt.UnixMilli(), collection, meta.ID)
	if err != nil {
		return fmt.Errorf("update %s document: %w", collection, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s document rows affected: %w", collection, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes collection/id.
func (o docOps) DeleteDocument(ctx context.Context, collection, id string) error {
	q := o.ext.Rebind("DELETE FROM documents WHERE collection = ? AND id = ?")
	result, err := o.ext.ExecContext(ctx, q, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s document: %w", collection, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s document rows affected: %w", collection, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDocuments returns the number of documents in collection.
func (o docOps) CountDocuments(ctx context.Context, collection string) (int64, error) {
	var n int64
	q := o.ext.Rebind("SELECT COUNT(*) FROM documents WHERE collection = ?")
	if err := sqlx.GetContext(ctx, o.ext, &n, q, collection); err != nil {
		return 0, fmt.Errorf("count %s documents: %w", collection, err)
	}
	return n, nil
}
