package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RecordEvent appends event to the ledger and applies update in the same
// transaction. Either both are persisted or none.
func (d *DB) RecordEvent(ctx context.Context, event SignatureEvent, update StatusUpdate) (SignatureEvent, Document, error) {
	var doc Document
	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if doc, err = updateDocumentStatus(ctx, tx, update); err != nil {
			return err
		}
		event, err = insertEvent(ctx, tx, event, 0)
		return err
	})
	if err != nil {
		return SignatureEvent{}, Document{}, err
	}
	return event, doc, nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, event SignatureEvent, try int) (SignatureEvent, error) {
	if try >= 10 {
		return SignatureEvent{}, fmt.Errorf("failed to create signature event because of duplicate key after 10 tries")
	}
	event.ID = randomString(12)
	event.CreatedAt = time.Now().UTC()

	// a failed statement aborts a postgres transaction, the savepoint keeps it usable for the retry
	if _, err := tx.ExecContext(ctx, "SAVEPOINT insert_event"); err != nil {
		return SignatureEvent{}, fmt.Errorf("failed to create savepoint: %w", err)
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO signature_events (id, document_id, user_id, user_name, template_id, x, y, page, width, height, notes, outcome, ip_address, user_agent, signed_file_path, signed_file_checksum, created_at)
		VALUES (:id, :document_id, :user_id, :user_name, :template_id, :x, :y, :page, :width, :height, :notes, :outcome, :ip_address, :user_agent, :signed_file_path, :signed_file_checksum, :created_at)`, event)
	if err != nil {
		if _, rollbackErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT insert_event"); rollbackErr != nil {
			return SignatureEvent{}, fmt.Errorf("failed to rollback to savepoint: %w", rollbackErr)
		}
		if isDuplicateKey(err) {
			return insertEvent(ctx, tx, event, try+1)
		}
		if isForeignKeyViolation(err) {
			return SignatureEvent{}, ErrTemplateDeleted
		}
		return SignatureEvent{}, fmt.Errorf("failed to create signature event: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "RELEASE SAVEPOINT insert_event"); err != nil {
		return SignatureEvent{}, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return event, nil
}

// ListEventsByDocument returns the ledger of a document, newest first.
func (d *DB) ListEventsByDocument(ctx context.Context, documentID string) ([]SignatureEvent, error) {
	events := make([]SignatureEvent, 0)
	err := d.dbx.SelectContext(ctx, &events, "SELECT * FROM signature_events WHERE document_id = $1 ORDER BY created_at DESC, id DESC", documentID)
	return events, err
}

func (d *DB) CountEventsByTemplate(ctx context.Context, templateID string) (int, error) {
	return countEventsByTemplate(ctx, d.dbx, templateID)
}

func countEventsByTemplate(ctx context.Context, q sqlx.QueryerContext, templateID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, "SELECT COUNT(*) FROM signature_events WHERE template_id = $1", templateID); err != nil {
		return 0, fmt.Errorf("failed to count signature events: %w", err)
	}
	return count, nil
}
