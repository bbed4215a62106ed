package docsign

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/topi314/tint"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/topi314/gosign/docsign/database"
	"github.com/topi314/gosign/internal/blob"
	"github.com/topi314/gosign/internal/pdfstamp"
)

type Outcome string

const (
	OutcomeSigned   Outcome = "signed"
	OutcomeRejected Outcome = "rejected"
)

// Placement positions a signature in viewer space: the origin is the top left
// corner of the page and y grows downwards. PageIndex is 0-based.
type Placement struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	PageIndex int     `json:"page_index"`
}

type SignRequest struct {
	DocumentID string
	UserID     string
	UserName   string
	TemplateID string
	Placement  *Placement
	Notes      string
	ClientIP   string
	UserAgent  string
	// ExpectedRevision makes the signature conditional on the document revision.
	ExpectedRevision *int64
}

type SignResult struct {
	Document Document       `json:"document"`
	Event    SignatureEvent `json:"event"`
}

// SignDocument stamps the template of the user onto the document and records
// the signature. Every call produces a new artifact and a new ledger entry, the
// document points to the artifact of the last committed call.
func (s *Service) SignDocument(ctx context.Context, rq SignRequest) (SignResult, error) {
	const op = "sign_document"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("document_id", rq.DocumentID),
		attribute.String("template_id", rq.TemplateID),
	))
	defer span.End()

	result, err := s.signDocument(ctx, op, rq)
	if err != nil {
		span.SetStatus(codes.Error, "failed to sign document")
		span.RecordError(err)
	}
	return result, err
}

func (s *Service) signDocument(ctx context.Context, op string, rq SignRequest) (SignResult, error) {
	if err := required(op, "document_id", rq.DocumentID, "user_id", rq.UserID, "template_id", rq.TemplateID); err != nil {
		return SignResult{}, err
	}
	if rq.Placement == nil {
		return SignResult{}, newError(KindValidation, op, nil, "missing required fields: placement")
	}
	placement := *rq.Placement
	if placement.Width <= 0 || placement.Height <= 0 {
		return SignResult{}, newError(KindValidation, op, nil, "placement width and height must be positive")
	}

	doc, err := s.getDocument(ctx, op, rq.DocumentID)
	if err != nil {
		return SignResult{}, err
	}
	if !canTransition(actionSign, Status(doc.Status)) {
		return SignResult{}, transitionError(op, actionSign, Status(doc.Status))
	}
	if rq.ExpectedRevision != nil && *rq.ExpectedRevision != doc.Revision {
		return SignResult{}, newError(KindConflict, op, nil, "document revision is %d, expected %d", doc.Revision, *rq.ExpectedRevision)
	}
	if placement.PageIndex < 0 || placement.PageIndex >= doc.PageCount {
		return SignResult{}, newError(KindValidation, op, nil, "page %d is out of range, the document has %d pages", placement.PageIndex+1, doc.PageCount)
	}

	template, err := s.store.GetTemplate(ctx, rq.UserID, rq.TemplateID)
	if errors.Is(err, sql.ErrNoRows) {
		return SignResult{}, newError(KindNotFound, op, nil, "template %s not found", rq.TemplateID)
	}
	if err != nil {
		return SignResult{}, newError(KindStorage, op, err, "failed to get template %s", rq.TemplateID)
	}
	img, err := pdfstamp.DecodeImage(template.Image)
	if err != nil {
		return SignResult{}, newError(KindUnsupportedFormat, op, err, "template %s has an unsupported image format", rq.TemplateID)
	}

	src, err := s.blobs.Read(ctx, doc.FilePath)
	if errors.Is(err, blob.ErrNotFound) {
		return SignResult{}, newError(KindNotFound, op, err, "file of document %s not found", rq.DocumentID)
	}
	if err != nil {
		return SignResult{}, newError(KindIO, op, err, "failed to read file of document %s", rq.DocumentID)
	}

	rect := pdfstamp.Rect{X: placement.X, Y: placement.Y, Width: placement.Width, Height: placement.Height}
	box, err := pdfstamp.PageSize(src, placement.PageIndex)
	if err != nil {
		return SignResult{}, stampError(ctx, op, doc.ID, err)
	}
	start := time.Now()
	signed, err := pdfstamp.Stamp(src, placement.PageIndex, img, rect, s.captions(rq))
	s.stampDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return SignResult{}, stampError(ctx, op, doc.ID, err)
	}

	signedPath, err := artifactPath("signed", doc.FileName)
	if err != nil {
		return SignResult{}, newError(KindIO, op, err, "failed to generate file name")
	}

	// the artifact and its record must not be abandoned halfway by a canceled request
	ctx = context.WithoutCancel(ctx)
	if err = s.blobs.Write(ctx, signedPath, signed); err != nil {
		return SignResult{}, newError(KindIO, op, err, "failed to store signed file")
	}

	placed := pdfstamp.ToDocumentSpace(rect, box)
	signedChecksum := checksum(signed)
	event, updated, err := s.store.RecordEvent(ctx, database.SignatureEvent{
		DocumentID:         doc.ID,
		UserID:             rq.UserID,
		UserName:           rq.UserName,
		TemplateID:         &template.ID,
		X:                  &placed.X,
		Y:                  &placed.Y,
		Page:               &placement.PageIndex,
		Width:              &placed.Width,
		Height:             &placed.Height,
		Notes:              rq.Notes,
		Outcome:            string(OutcomeSigned),
		IPAddress:          rq.ClientIP,
		UserAgent:          rq.UserAgent,
		SignedFilePath:     &signedPath,
		SignedFileChecksum: &signedChecksum,
	}, database.StatusUpdate{
		DocumentID:         doc.ID,
		Status:             string(transitions[actionSign].to),
		AllowedFrom:        allowedFrom(actionSign),
		ExpectedRevision:   rq.ExpectedRevision,
		SignedFilePath:     &signedPath,
		SignedFileChecksum: &signedChecksum,
	})
	if errors.Is(err, database.ErrTemplateDeleted) {
		if deleteErr := s.blobs.Delete(ctx, signedPath); deleteErr != nil {
			slog.ErrorContext(ctx, "failed to delete signed artifact of deleted template", slog.String("document_id", doc.ID), slog.String("artifact", signedPath), tint.Err(deleteErr))
		}
		return SignResult{}, newError(KindNotFound, op, err, "template %s was deleted while signing", rq.TemplateID)
	}
	if err != nil {
		slog.ErrorContext(ctx, "signed artifact was written but could not be recorded",
			slog.String("document_id", doc.ID),
			slog.String("artifact", signedPath),
			tint.Err(err),
		)
		return SignResult{}, &PartialSignError{
			DocumentID:   doc.ID,
			ArtifactPath: signedPath,
			Err:          err,
		}
	}

	s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(OutcomeSigned))))
	return SignResult{
		Document: newDocument(updated),
		Event:    newSignatureEvent(event),
	}, nil
}

func (s *Service) captions(rq SignRequest) []string {
	name := rq.UserName
	if name == "" {
		name = rq.UserID
	}
	return []string{name, s.now().In(s.location).Format(TimestampFormat)}
}

func stampError(ctx context.Context, op string, documentID string, err error) error {
	switch {
	case errors.Is(err, pdfstamp.ErrInvalidPage):
		return newError(KindValidation, op, err, "invalid page")
	case errors.Is(err, pdfstamp.ErrUnsupportedFormat):
		return newError(KindUnsupportedFormat, op, err, "unsupported signature image")
	case errors.Is(err, pdfstamp.ErrMalformed), errors.Is(err, pdfstamp.ErrEncrypted):
		// the file passed the checks of the upload, so the stored copy needs a look
		slog.ErrorContext(ctx, "stored file of document is not a readable pdf", slog.String("document_id", documentID), tint.Err(err))
		return newError(KindValidation, op, err, "file of document %s is not a readable pdf", documentID)
	}
	return newError(KindIO, op, err, "failed to embed signature")
}

type RejectRequest struct {
	DocumentID string
	UserID     string
	UserName   string
	Notes      string
	ClientIP   string
	UserAgent  string
}

type RejectResult struct {
	Document Document       `json:"document"`
	Event    SignatureEvent `json:"event"`
}

// RejectDocument records a rejection and moves the document to rejected. The
// signed artifact pointer is cleared, earlier artifacts stay reachable through
// the signature events.
func (s *Service) RejectDocument(ctx context.Context, rq RejectRequest) (RejectResult, error) {
	const op = "reject_document"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("document_id", rq.DocumentID)))
	defer span.End()

	if err := required(op, "document_id", rq.DocumentID, "user_id", rq.UserID); err != nil {
		return RejectResult{}, err
	}

	doc, err := s.getDocument(ctx, op, rq.DocumentID)
	if err != nil {
		return RejectResult{}, err
	}
	if !canTransition(actionReject, Status(doc.Status)) {
		return RejectResult{}, transitionError(op, actionReject, Status(doc.Status))
	}

	event, updated, err := s.store.RecordEvent(ctx, database.SignatureEvent{
		DocumentID: doc.ID,
		UserID:     rq.UserID,
		UserName:   rq.UserName,
		Notes:      rq.Notes,
		Outcome:    string(OutcomeRejected),
		IPAddress:  rq.ClientIP,
		UserAgent:  rq.UserAgent,
	}, database.StatusUpdate{
		DocumentID:      doc.ID,
		Status:          string(transitions[actionReject].to),
		AllowedFrom:     allowedFrom(actionReject),
		ClearSignedFile: true,
	})
	if err != nil {
		return RejectResult{}, storageError(op, rq.DocumentID, err)
	}

	s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(OutcomeRejected))))
	return RejectResult{
		Document: newDocument(updated),
		Event:    newSignatureEvent(event),
	}, nil
}
