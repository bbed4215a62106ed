// Package docsign manages documents which are signed by stamping a stored
// signature image onto one of their pages.
package docsign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/topi314/gosign/docsign/database"
)

const (
	Name = "github.com/topi314/gosign/docsign"

	DefaultPageSize = 20
	MaxPageSize     = 100

	// TimestampFormat is the layout of the signing time in the caption below a signature.
	TimestampFormat = "02/01/2006 15:04:05"
)

type Store interface {
	GetDocument(ctx context.Context, documentID string) (database.Document, error)
	ListDocuments(ctx context.Context, status string, limit int, offset int) ([]database.Document, int, error)
	CreateDocument(ctx context.Context, doc database.Document) (database.Document, error)
	UpdateDocumentStatus(ctx context.Context, update database.StatusUpdate) (database.Document, error)
	DeleteDocument(ctx context.Context, documentID string) (database.Document, error)

	RecordEvent(ctx context.Context, event database.SignatureEvent, update database.StatusUpdate) (database.SignatureEvent, database.Document, error)
	ListEventsByDocument(ctx context.Context, documentID string) ([]database.SignatureEvent, error)

	CreateTemplate(ctx context.Context, template database.Template) (database.Template, error)
	GetTemplate(ctx context.Context, userID string, templateID string) (database.Template, error)
	ListTemplates(ctx context.Context, userID string) ([]database.Template, error)
	DeleteTemplate(ctx context.Context, userID string, templateID string) error
}

type Blobs interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

type Config struct {
	// MaxDocumentSize in bytes, 0 disables the limit.
	MaxDocumentSize int64
	// Timezone in which signing times are printed, defaults to UTC.
	Timezone string
}

func New(store Store, blobs Blobs, cfg Config) (*Service, error) {
	location := time.UTC
	if cfg.Timezone != "" {
		var err error
		if location, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("failed to load timezone: %w", err)
		}
	}

	meter := otel.Meter(Name)
	events, err := meter.Int64Counter("gosign.signature.events",
		metric.WithDescription("Number of recorded signature events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature events counter: %w", err)
	}
	stampDuration, err := meter.Float64Histogram("gosign.stamp.duration",
		metric.WithDescription("Time spent stamping a signature onto a document"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stamp duration histogram: %w", err)
	}

	return &Service{
		store:         store,
		blobs:         blobs,
		cfg:           cfg,
		location:      location,
		tracer:        otel.Tracer(Name),
		events:        events,
		stampDuration: stampDuration,
		now:           time.Now,
	}, nil
}

type Service struct {
	store         Store
	blobs         Blobs
	cfg           Config
	location      *time.Location
	tracer        trace.Tracer
	events        metric.Int64Counter
	stampDuration metric.Float64Histogram
	now           func() time.Time
}

type Document struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	FileName       string    `json:"file_name"`
	FileSize       int64     `json:"file_size"`
	FileSizeHuman  string    `json:"file_size_human"`
	MediaType      string    `json:"media_type"`
	Checksum       string    `json:"checksum"`
	PageCount      int       `json:"page_count"`
	Status         Status    `json:"status"`
	Revision       int64     `json:"revision"`
	Signed         bool      `json:"signed"`
	SignedChecksum *string   `json:"signed_checksum,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	FilePath       string  `json:"-"`
	SignedFilePath *string `json:"-"`
}

func newDocument(doc database.Document) Document {
	return Document{
		ID:             doc.ID,
		Title:          doc.Title,
		Description:    doc.Description,
		FileName:       doc.FileName,
		FileSize:       doc.FileSize,
		FileSizeHuman:  humanize.Bytes(uint64(doc.FileSize)),
		MediaType:      doc.MediaType,
		Checksum:       doc.FileChecksum,
		PageCount:      doc.PageCount,
		Status:         Status(doc.Status),
		Revision:       doc.Revision,
		Signed:         doc.SignedFilePath != nil,
		SignedChecksum: doc.SignedFileChecksum,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		FilePath:       doc.FilePath,
		SignedFilePath: doc.SignedFilePath,
	}
}

func (s *Service) getDocument(ctx context.Context, op string, documentID string) (database.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Document{}, newError(KindNotFound, op, nil, "document %s not found", documentID)
	}
	if err != nil {
		return database.Document{}, newError(KindStorage, op, err, "failed to get document %s", documentID)
	}
	return doc, nil
}

// storageError maps the errors of a conditional document update.
func storageError(op string, documentID string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return newError(KindNotFound, op, nil, "document %s not found", documentID)
	case errors.Is(err, database.ErrDocumentChanged):
		return newError(KindConflict, op, err, "document %s was modified concurrently", documentID)
	}
	return newError(KindStorage, op, err, "failed to update document %s", documentID)
}

func required(op string, fields ...string) error {
	var missing []string
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			missing = append(missing, fields[i])
		}
	}
	if len(missing) > 0 {
		return newError(KindValidation, op, nil, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
