package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

func (d *DB) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var doc Document
	err := d.dbx.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", documentID)
	return doc, err
}

// ListDocuments returns one page of documents, newest first, and the total amount
// of documents matching status. An empty status matches every document.
func (d *DB) ListDocuments(ctx context.Context, status string, limit int, offset int) ([]Document, int, error) {
	var (
		where string
		args  []any
	)
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := d.dbx.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	query := fmt.Sprintf("SELECT * FROM documents%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", where, len(args)+1, len(args)+2)
	docs := make([]Document, 0)
	if err := d.dbx.SelectContext(ctx, &docs, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, total, nil
}

func (d *DB) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	return d.createDocument(ctx, doc, 0)
}

func (d *DB) createDocument(ctx context.Context, doc Document, try int) (Document, error) {
	if try >= 10 {
		return Document{}, errors.New("failed to create document because of duplicate key after 10 tries")
	}
	now := time.Now().UTC()
	doc.ID = randomString(8)
	doc.Revision = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := d.dbx.NamedExecContext(ctx, `INSERT INTO documents (id, title, description, file_path, file_name, file_size, media_type, file_checksum, page_count, signed_file_path, signed_file_checksum, status, revision, created_at, updated_at)
		VALUES (:id, :title, :description, :file_path, :file_name, :file_size, :media_type, :file_checksum, :page_count, :signed_file_path, :signed_file_checksum, :status, :revision, :created_at, :updated_at)`, doc)
	if err != nil {
		if isDuplicateKey(err) {
			return d.createDocument(ctx, doc, try+1)
		}
		return Document{}, err
	}

	return doc, nil
}

// UpdateDocumentStatus applies update and returns the new document state.
// sql.ErrNoRows is returned when the document does not exist and ErrDocumentChanged
// when it exists but does not satisfy the conditions of update.
func (d *DB) UpdateDocumentStatus(ctx context.Context, update StatusUpdate) (Document, error) {
	var doc Document
	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		doc, err = updateDocumentStatus(ctx, tx, update)
		return err
	})
	return doc, err
}

func updateDocumentStatus(ctx context.Context, tx *sqlx.Tx, update StatusUpdate) (Document, error) {
	args := []any{update.Status, time.Now().UTC()}
	set := "status = $1, updated_at = $2, revision = revision + 1"
	if update.SignedFilePath != nil {
		args = append(args, *update.SignedFilePath, update.SignedFileChecksum)
		set += fmt.Sprintf(", signed_file_path = $%d, signed_file_checksum = $%d", len(args)-1, len(args))
	} else if update.ClearSignedFile {
		set += ", signed_file_path = NULL, signed_file_checksum = NULL"
	} else if update.RestoreSignedFile {
		set += ", signed_file_path = (" + latestSignedEvent("signed_file_path") + "), signed_file_checksum = (" + latestSignedEvent("signed_file_checksum") + ")"
	}

	args = append(args, update.DocumentID)
	where := fmt.Sprintf("id = $%d", len(args))
	if len(update.AllowedFrom) > 0 {
		placeholders := make([]string, len(update.AllowedFrom))
		for i, status := range update.AllowedFrom {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if update.ExpectedRevision != nil {
		args = append(args, *update.ExpectedRevision)
		where += fmt.Sprintf(" AND revision = $%d", len(args))
	}

	var doc Document
	err := tx.GetContext(ctx, &doc, "UPDATE documents SET "+set+" WHERE "+where+" RETURNING *", args...)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err = tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)", update.DocumentID); err != nil {
			return Document{}, fmt.Errorf("failed to check document: %w", err)
		}
		if !exists {
			return Document{}, sql.ErrNoRows
		}
		return Document{}, ErrDocumentChanged
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to update document status: %w", err)
	}
	return doc, nil
}

func latestSignedEvent(column string) string {
	return "SELECT e." + column + " FROM signature_events e WHERE e.document_id = documents.id AND e.outcome = 'signed' AND e.signed_file_path IS NOT NULL ORDER BY e.created_at DESC, e.id DESC LIMIT 1"
}

// DeleteDocument removes the document row. Signature events of the document are kept.
func (d *DB) DeleteDocument(ctx context.Context, documentID string) (Document, error) {
	var doc Document
	err := d.dbx.GetContext(ctx, &doc, "DELETE FROM documents WHERE id = $1 RETURNING *", documentID)
	return doc, err
}
