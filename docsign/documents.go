package docsign

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/topi314/tint"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/topi314/gosign/docsign/database"
	"github.com/topi314/gosign/internal/blob"
	"github.com/topi314/gosign/internal/pdfstamp"
)

const MediaTypePDF = "application/pdf"

type File struct {
	Name      string
	MediaType string
	Data      []byte
}

type UploadRequest struct {
	Title       string
	Description string
	File        File
}

func (s *Service) UploadDocument(ctx context.Context, rq UploadRequest) (Document, error) {
	const op = "upload_document"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	if strings.TrimSpace(rq.Title) == "" {
		return Document{}, newError(KindValidation, op, nil, "title is required")
	}
	if len(rq.File.Data) == 0 {
		return Document{}, newError(KindValidation, op, nil, "file is required")
	}
	if s.cfg.MaxDocumentSize > 0 && int64(len(rq.File.Data)) > s.cfg.MaxDocumentSize {
		return Document{}, newError(KindValidation, op, nil, "file exceeds the maximum size of %s", humanize.Bytes(uint64(s.cfg.MaxDocumentSize)))
	}

	pageCount, err := pdfstamp.PageCount(rq.File.Data)
	if errors.Is(err, pdfstamp.ErrEncrypted) {
		return Document{}, newError(KindValidation, op, err, "file is an encrypted pdf")
	}
	if err != nil {
		return Document{}, newError(KindValidation, op, err, "file is not a readable pdf")
	}
	if pageCount == 0 {
		return Document{}, newError(KindValidation, op, nil, "file has no pages")
	}

	fileName := sanitizeFileName(rq.File.Name)
	filePath, err := artifactPath("documents", fileName)
	if err != nil {
		return Document{}, newError(KindIO, op, err, "failed to generate file name")
	}
	span.SetAttributes(attribute.String("file_path", filePath), attribute.Int("page_count", pageCount))

	if err = s.blobs.Write(ctx, filePath, rq.File.Data); err != nil {
		return Document{}, newError(KindIO, op, err, "failed to store file")
	}

	doc, err := s.store.CreateDocument(ctx, database.Document{
		Title:        strings.TrimSpace(rq.Title),
		Description:  rq.Description,
		FilePath:     filePath,
		FileName:     fileName,
		FileSize:     int64(len(rq.File.Data)),
		MediaType:    MediaTypePDF,
		FileChecksum: checksum(rq.File.Data),
		PageCount:    pageCount,
		Status:       string(StatusDraft),
	})
	if err != nil {
		if deleteErr := s.blobs.Delete(context.WithoutCancel(ctx), filePath); deleteErr != nil {
			slog.ErrorContext(ctx, "failed to delete file of document which could not be created", slog.String("path", filePath), tint.Err(deleteErr))
		}
		return Document{}, newError(KindStorage, op, err, "failed to create document")
	}

	return newDocument(doc), nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (Document, error) {
	doc, err := s.getDocument(ctx, "get_document", documentID)
	if err != nil {
		return Document{}, err
	}
	return newDocument(doc), nil
}

type ListOptions struct {
	Status Status
	// Page is 1-based, values below 1 select the first page.
	Page     int
	PageSize int
}

type DocumentPage struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// ListDocuments returns documents newest first.
func (s *Service) ListDocuments(ctx context.Context, opts ListOptions) (DocumentPage, error) {
	const op = "list_documents"
	if opts.Status != "" && !opts.Status.Valid() {
		_, err := ParseStatus(string(opts.Status))
		return DocumentPage{}, err
	}

	page := max(opts.Page, 1)
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(max(pageSize, 1), MaxPageSize)

	docs, total, err := s.store.ListDocuments(ctx, string(opts.Status), pageSize, (page-1)*pageSize)
	if err != nil {
		return DocumentPage{}, newError(KindStorage, op, err, "failed to list documents")
	}

	documents := make([]Document, len(docs))
	for i, doc := range docs {
		documents[i] = newDocument(doc)
	}
	return DocumentPage{
		Documents: documents,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// SubmitDocument moves a draft into pending_signature.
func (s *Service) SubmitDocument(ctx context.Context, documentID string) (Document, error) {
	const op = "submit_document"
	doc, err := s.getDocument(ctx, op, documentID)
	if err != nil {
		return Document{}, err
	}
	if !canTransition(actionSubmit, Status(doc.Status)) {
		return Document{}, transitionError(op, actionSubmit, Status(doc.Status))
	}

	updated, err := s.store.UpdateDocumentStatus(ctx, database.StatusUpdate{
		DocumentID:  documentID,
		Status:      string(transitions[actionSubmit].to),
		AllowedFrom: allowedFrom(actionSubmit),
	})
	if err != nil {
		return Document{}, storageError(op, documentID, err)
	}
	return newDocument(updated), nil
}

type SetStatusRequest struct {
	DocumentID       string
	Status           Status
	ExpectedRevision *int64
}

// SetStatus forces the status of a document. It is meant for administrators and
// does not consult the lifecycle transitions. Setting signed points the document
// at the artifact of its latest signed event, any other status clears the pointer.
func (s *Service) SetStatus(ctx context.Context, rq SetStatusRequest) (Document, error) {
	const op = "set_status"
	if err := required(op, "document_id", rq.DocumentID); err != nil {
		return Document{}, err
	}
	if _, err := ParseStatus(string(rq.Status)); err != nil {
		return Document{}, err
	}

	updated, err := s.store.UpdateDocumentStatus(ctx, database.StatusUpdate{
		DocumentID:        rq.DocumentID,
		Status:            string(rq.Status),
		ExpectedRevision:  rq.ExpectedRevision,
		ClearSignedFile:   rq.Status != StatusSigned,
		RestoreSignedFile: rq.Status == StatusSigned,
	})
	if err != nil {
		return Document{}, storageError(op, rq.DocumentID, err)
	}
	return newDocument(updated), nil
}

type DeleteResult struct {
	Document Document `json:"document"`
	// BlobErrors lists the artifacts which could not be removed.
	BlobErrors []string `json:"blob_errors,omitempty"`
}

// DeleteDocument removes the document and afterwards its original and every
// signed artifact named by its signature events. The events are kept.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (DeleteResult, error) {
	const op = "delete_document"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("document_id", documentID)))
	defer span.End()

	doc, err := s.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return DeleteResult{}, storageError(op, documentID, err)
	}

	result := DeleteResult{Document: newDocument(doc)}
	paths := []string{doc.FilePath}
	if doc.SignedFilePath != nil {
		paths = append(paths, *doc.SignedFilePath)
	}
	events, err := s.store.ListEventsByDocument(ctx, documentID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list signed artifacts of document", slog.String("document_id", documentID), tint.Err(err))
		result.BlobErrors = append(result.BlobErrors, "signed artifacts: "+err.Error())
	}
	for _, event := range events {
		if event.SignedFilePath != nil && !slices.Contains(paths, *event.SignedFilePath) {
			paths = append(paths, *event.SignedFilePath)
		}
	}

	blobCtx := context.WithoutCancel(ctx)
	for _, p := range paths {
		if err = s.blobs.Delete(blobCtx, p); err != nil && !errors.Is(err, blob.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to delete document artifact", slog.String("document_id", documentID), slog.String("path", p), tint.Err(err))
			result.BlobErrors = append(result.BlobErrors, p+": "+err.Error())
		}
	}
	return result, nil
}

type Artifact struct {
	Name      string
	MediaType string
	Signed    bool
	Checksum  string
	Data      []byte
}

// ResolveDownload returns the signed artifact of a signed document and the
// original otherwise. The original is also used when the signed artifact is gone.
func (s *Service) ResolveDownload(ctx context.Context, documentID string) (Artifact, error) {
	const op = "resolve_download"
	doc, err := s.getDocument(ctx, op, documentID)
	if err != nil {
		return Artifact{}, err
	}

	if Status(doc.Status) == StatusSigned && doc.SignedFilePath != nil {
		data, err := s.blobs.Read(ctx, *doc.SignedFilePath)
		if err == nil {
			var sum string
			if doc.SignedFileChecksum != nil {
				sum = *doc.SignedFileChecksum
			}
			return Artifact{
				Name:      signedFileName(doc.FileName),
				MediaType: doc.MediaType,
				Signed:    true,
				Checksum:  sum,
				Data:      data,
			}, nil
		}
		if !errors.Is(err, blob.ErrNotFound) {
			return Artifact{}, newError(KindIO, op, err, "failed to read signed file")
		}
		slog.WarnContext(ctx, "signed artifact is missing, falling back to the original", slog.String("document_id", documentID), slog.String("path", *doc.SignedFilePath))
	}

	data, err := s.blobs.Read(ctx, doc.FilePath)
	if errors.Is(err, blob.ErrNotFound) {
		return Artifact{}, newError(KindNotFound, op, err, "no file of document %s is available", documentID)
	}
	if err != nil {
		return Artifact{}, newError(KindIO, op, err, "failed to read file")
	}
	return Artifact{
		Name:      doc.FileName,
		MediaType: doc.MediaType,
		Checksum:  doc.FileChecksum,
		Data:      data,
	}, nil
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func artifactPath(dir string, fileName string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return path.Join(dir, id.String()+"-"+fileName), nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	name = strings.Trim(name, "._")
	if name == "" {
		return "document.pdf"
	}
	return name
}

func signedFileName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-signed" + ext
}
