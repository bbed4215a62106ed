package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrTemplateInUse is returned when a template which is referenced by a signature event is deleted.
var ErrTemplateInUse = errors.New("template is referenced by signature events")

func (d *DB) CreateTemplate(ctx context.Context, template Template) (Template, error) {
	return d.createTemplate(ctx, template, 0)
}

func (d *DB) createTemplate(ctx context.Context, template Template, try int) (Template, error) {
	if try >= 10 {
		return Template{}, errors.New("failed to create template because of duplicate key after 10 tries")
	}
	template.ID = randomString(8)
	template.CreatedAt = time.Now().UTC()

	_, err := d.dbx.NamedExecContext(ctx, "INSERT INTO signature_templates (id, user_id, name, image, media_type, created_at) VALUES (:id, :user_id, :name, :image, :media_type, :created_at)", template)
	if err != nil {
		if isDuplicateKey(err) {
			return d.createTemplate(ctx, template, try+1)
		}
		return Template{}, err
	}
	return template, nil
}

// GetTemplate returns the template with templateID if it is owned by userID.
func (d *DB) GetTemplate(ctx context.Context, userID string, templateID string) (Template, error) {
	var template Template
	err := d.dbx.GetContext(ctx, &template, "SELECT * FROM signature_templates WHERE id = $1 AND user_id = $2", templateID, userID)
	return template, err
}

// ListTemplates returns the templates of userID, newest first, without their image.
func (d *DB) ListTemplates(ctx context.Context, userID string) ([]Template, error) {
	templates := make([]Template, 0)
	err := d.dbx.SelectContext(ctx, &templates, "SELECT id, user_id, name, media_type, created_at FROM signature_templates WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return templates, err
}

// DeleteTemplate deletes the template if it is owned by userID and no signature event references it.
// The foreign key of signature_events.template_id catches events recorded after the count.
func (d *DB) DeleteTemplate(ctx context.Context, userID string, templateID string) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM signature_templates WHERE id = $1 AND user_id = $2)", templateID, userID); err != nil {
			return fmt.Errorf("failed to check template: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}

		count, err := countEventsByTemplate(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrTemplateInUse
		}

		if _, err = tx.ExecContext(ctx, "DELETE FROM signature_templates WHERE id = $1 AND user_id = $2", templateID, userID); err != nil {
			if isForeignKeyViolation(err) {
				return ErrTemplateInUse
			}
			return fmt.Errorf("failed to delete template: %w", err)
		}
		return nil
	})
}
