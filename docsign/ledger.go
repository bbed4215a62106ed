package docsign

import (
	"context"
	"time"

	"github.com/topi314/gosign/docsign/database"
)

// SignatureEvent is an entry of the append-only signature ledger. Placement
// values are in document space, Page is 0-based.
type SignatureEvent struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	TemplateID *string   `json:"template_id"`
	X          *float64  `json:"x"`
	Y          *float64  `json:"y"`
	Page       *int      `json:"page"`
	Width      *float64  `json:"width"`
	Height     *float64  `json:"height"`
	Notes      string    `json:"notes"`
	Outcome    Outcome   `json:"outcome"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	SignedFile bool      `json:"signed_file"`
	CreatedAt  time.Time `json:"created_at"`

	SignedFilePath *string `json:"-"`
}

func newSignatureEvent(event database.SignatureEvent) SignatureEvent {
	return SignatureEvent{
		ID:             event.ID,
		DocumentID:     event.DocumentID,
		UserID:         event.UserID,
		UserName:       event.UserName,
		TemplateID:     event.TemplateID,
		X:              event.X,
		Y:              event.Y,
		Page:           event.Page,
		Width:          event.Width,
		Height:         event.Height,
		Notes:          event.Notes,
		Outcome:        Outcome(event.Outcome),
		IPAddress:      event.IPAddress,
		UserAgent:      event.UserAgent,
		SignedFile:     event.SignedFilePath != nil,
		CreatedAt:      event.CreatedAt,
		SignedFilePath: event.SignedFilePath,
	}
}

// ListSignatureEvents returns the ledger of a document, newest first. The
// ledger stays readable after the document itself was deleted.
func (s *Service) ListSignatureEvents(ctx context.Context, documentID string) ([]SignatureEvent, error) {
	const op = "list_signature_events"
	if err := required(op, "document_id", documentID); err != nil {
		return nil, err
	}

	events, err := s.store.ListEventsByDocument(ctx, documentID)
	if err != nil {
		return nil, newError(KindStorage, op, err, "failed to list signature events of document %s", documentID)
	}

	signatureEvents := make([]SignatureEvent, len(events))
	for i, event := range events {
		signatureEvents[i] = newSignatureEvent(event)
	}
	return signatureEvents, nil
}
