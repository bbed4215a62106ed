package docsign

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/topi314/gosign/docsign/database"
	"github.com/topi314/gosign/internal/pdfstamp"
)

type Template struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	MediaType string    `json:"media_type"`
	CreatedAt time.Time `json:"created_at"`

	Image []byte `json:"-"`
}

func newTemplate(template database.Template) Template {
	return Template{
		ID:        template.ID,
		UserID:    template.UserID,
		Name:      template.Name,
		MediaType: template.MediaType,
		CreatedAt: template.CreatedAt,
		Image:     template.Image,
	}
}

type CreateTemplateRequest struct {
	UserID string
	Name   string
	Image  []byte
}

// CreateTemplate stores a signature image for a user. Only PNG and JPEG images are accepted.
func (s *Service) CreateTemplate(ctx context.Context, rq CreateTemplateRequest) (Template, error) {
	const op = "create_template"
	if err := required(op, "user_id", rq.UserID, "name", rq.Name); err != nil {
		return Template{}, err
	}
	if len(rq.Image) == 0 {
		return Template{}, newError(KindValidation, op, nil, "missing required fields: image")
	}

	format, err := pdfstamp.DetectFormat(rq.Image)
	if err != nil {
		return Template{}, newError(KindUnsupportedFormat, op, err, "unsupported signature image")
	}

	template, err := s.store.CreateTemplate(ctx, database.Template{
		UserID:    rq.UserID,
		Name:      strings.TrimSpace(rq.Name),
		Image:     rq.Image,
		MediaType: format.MediaType(),
	})
	if err != nil {
		return Template{}, newError(KindStorage, op, err, "failed to create template")
	}
	return newTemplate(template), nil
}

// ListTemplates returns the templates of a user, newest first, without their images.
func (s *Service) ListTemplates(ctx context.Context, userID string) ([]Template, error) {
	const op = "list_templates"
	if err := required(op, "user_id", userID); err != nil {
		return nil, err
	}

	dbTemplates, err := s.store.ListTemplates(ctx, userID)
	if err != nil {
		return nil, newError(KindStorage, op, err, "failed to list templates")
	}

	templates := make([]Template, len(dbTemplates))
	for i, template := range dbTemplates {
		templates[i] = newTemplate(template)
	}
	return templates, nil
}

func (s *Service) GetTemplate(ctx context.Context, userID string, templateID string) (Template, error) {
	const op = "get_template"
	if err := required(op, "user_id", userID, "template_id", templateID); err != nil {
		return Template{}, err
	}

	template, err := s.store.GetTemplate(ctx, userID, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, newError(KindNotFound, op, nil, "template %s not found", templateID)
	}
	if err != nil {
		return Template{}, newError(KindStorage, op, err, "failed to get template %s", templateID)
	}
	return newTemplate(template), nil
}

// DeleteTemplate deletes a template of the user unless a signature event references it.
func (s *Service) DeleteTemplate(ctx context.Context, userID string, templateID string) error {
	const op = "delete_template"
	if err := required(op, "user_id", userID, "template_id", templateID); err != nil {
		return err
	}

	err := s.store.DeleteTemplate(ctx, userID, templateID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return newError(KindNotFound, op, nil, "template %s not found", templateID)
	case errors.Is(err, database.ErrTemplateInUse):
		return newError(KindConflict, op, err, "template %s is referenced by signatures", templateID)
	case err != nil:
		return newError(KindStorage, op, err, "failed to delete template %s", templateID)
	}
	return nil
}
