package database

import (
	"errors"
	"time"
)

// ErrDocumentChanged is returned when a conditional document update matched no
// row because the status or revision of the document moved on.
var ErrDocumentChanged = errors.New("document changed concurrently")

// ErrTemplateDeleted is returned when a signature event references a template which no longer exists.
var ErrTemplateDeleted = errors.New("template of signature event does not exist")

type Document struct {
	ID                 string    `db:"id"`
	Title              string    `db:"title"`
	Description        string    `db:"description"`
	FilePath           string    `db:"file_path"`
	FileName           string    `db:"file_name"`
	FileSize           int64     `db:"file_size"`
	MediaType          string    `db:"media_type"`
	FileChecksum       string    `db:"file_checksum"`
	PageCount          int       `db:"page_count"`
	SignedFilePath     *string   `db:"signed_file_path"`
	SignedFileChecksum *string   `db:"signed_file_checksum"`
	Status             string    `db:"status"`
	Revision           int64     `db:"revision"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

type Template struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Image     []byte    `db:"image"`
	MediaType string    `db:"media_type"`
	CreatedAt time.Time `db:"created_at"`
}

type SignatureEvent struct {
	ID                 string    `db:"id"`
	DocumentID         string    `db:"document_id"`
	UserID             string    `db:"user_id"`
	UserName           string    `db:"user_name"`
	TemplateID         *string   `db:"template_id"`
	X                  *float64  `db:"x"`
	Y                  *float64  `db:"y"`
	Page               *int      `db:"page"`
	Width              *float64  `db:"width"`
	Height             *float64  `db:"height"`
	Notes              string    `db:"notes"`
	Outcome            string    `db:"outcome"`
	IPAddress          string    `db:"ip_address"`
	UserAgent          string    `db:"user_agent"`
	SignedFilePath     *string   `db:"signed_file_path"`
	SignedFileChecksum *string   `db:"signed_file_checksum"`
	CreatedAt          time.Time `db:"created_at"`
}

// StatusUpdate describes a conditional change of a document's status.
type StatusUpdate struct {
	DocumentID string
	Status     string
	// AllowedFrom restricts the update to documents in one of these statuses, empty allows any.
	AllowedFrom []string
	// ExpectedRevision restricts the update to this revision of the document, nil allows any.
	ExpectedRevision *int64
	// SignedFilePath and SignedFileChecksum replace the signed artifact pointer when set.
	SignedFilePath     *string
	SignedFileChecksum *string
	// ClearSignedFile unsets the signed artifact pointer.
	ClearSignedFile bool
	// RestoreSignedFile points the document at the artifact of its latest signed event, or unsets it if there is none.
	RestoreSignedFile bool
}
