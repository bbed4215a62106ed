package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/topi314/gosign/docsign"
	"github.com/topi314/gosign/internal/ezhttp"
	"github.com/topi314/gosign/internal/httperr"
)

// multipartOverhead is the room left for the form fields next to the file.
const multipartOverhead = 1 << 20

var (
	ErrMissingFile      = errors.New("missing file")
	ErrDocumentTooLarge = func(maxSize int64) error {
		return fmt.Errorf("document too large, must be at most %s", humanize.Bytes(uint64(maxSize)))
	}
	ErrInvalidQuery = func(name string, err error) error {
		return fmt.Errorf("invalid query parameter %s: %w", name, err)
	}
)

type (
	SetStatusRequest struct {
		Status           docsign.Status `json:"status"`
		ExpectedRevision *int64         `json:"expected_revision"`
	}

	PlacementRequest struct {
		// Page is 1-based.
		Page   int     `json:"page"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	SignRequest struct {
		TemplateID       string            `json:"template_id"`
		Placement        *PlacementRequest `json:"placement"`
		Notes            string            `json:"notes"`
		ExpectedRevision *int64            `json:"expected_revision"`
	}

	RejectRequest struct {
		Notes string `json:"notes"`
	}
)

func (s *Server) PostDocument(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxDocumentSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxDocumentSize+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.error(w, r, httperr.RequestEntityTooLarge(ErrDocumentTooLarge(s.cfg.MaxDocumentSize)))
			return
		}
		s.error(w, r, httperr.BadRequest(fmt.Errorf("%w: %w", ErrInvalidBody, err)))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.error(w, r, httperr.BadRequest(ErrMissingFile))
		return
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		s.error(w, r, httperr.BadRequest(fmt.Errorf("failed to read file: %w", err)))
		return
	}

	document, err := s.service.UploadDocument(r.Context(), docsign.UploadRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		File: docsign.File{
			Name:      header.Filename,
			MediaType: header.Header.Get(ezhttp.HeaderContentType),
			Data:      data,
		},
	})
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.ExecuteWebhooks(r.Context(), WebhookEventDocumentCreated, WebhookPayload{Document: document})
	s.json(w, r, document, http.StatusCreated)
}

func (s *Server) GetDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := docsign.ListOptions{
		Status: docsign.Status(query.Get("status")),
	}

	var err error
	if opts.Page, err = intQuery(query.Get("page")); err != nil {
		s.error(w, r, httperr.BadRequest(ErrInvalidQuery("page", err)))
		return
	}
	if opts.PageSize, err = intQuery(query.Get("page_size")); err != nil {
		s.error(w, r, httperr.BadRequest(ErrInvalidQuery("page_size", err)))
		return
	}

	page, err := s.service.ListDocuments(r.Context(), opts)
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.ok(w, r, page)
}

func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	document, err := s.service.GetDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.ok(w, r, document)
}

func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.DeleteDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.ExecuteWebhooks(r.Context(), WebhookEventDocumentDeleted, WebhookPayload{Document: result.Document})
	s.ok(w, r, result)
}

func (s *Server) PutDocumentStatus(w http.ResponseWriter, r *http.Request) {
	var rq SetStatusRequest
	if err := decodeJSON(r, &rq); err != nil {
		s.error(w, r, err)
		return
	}

	document, err := s.service.SetStatus(r.Context(), docsign.SetStatusRequest{
		DocumentID:       chi.URLParam(r, "documentID"),
		Status:           rq.Status,
		ExpectedRevision: rq.ExpectedRevision,
	})
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.ExecuteWebhooks(r.Context(), WebhookEventDocumentStatusUpdated, WebhookPayload{Document: document})
	s.ok(w, r, document)
}

func (s *Server) PostDocumentSubmit(w http.ResponseWriter, r *http.Request) {
	document, err := s.service.SubmitDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.ExecuteWebhooks(r.Context(), WebhookEventDocumentStatusUpdated, WebhookPayload{Document: document})
	s.ok(w, r, document)
}

func (s *Server) PostDocumentSign(w http.ResponseWriter, r *http.Request) {
	var rq SignRequest
	if err := decodeJSON(r, &rq); err != nil {
		s.error(w, r, err)
		return
	}

	claims := GetClaims(r)
	signRq := docsign.SignRequest{
		DocumentID:       chi.URLParam(r, "documentID"),
		UserID:           claims.UserID(),
		UserName:         claims.DisplayName(),
		TemplateID:       rq.TemplateID,
		Notes:            rq.Notes,
		ClientIP:         clientIP(r),
		UserAgent:        r.UserAgent(),
		ExpectedRevision: rq.ExpectedRevision,
	}
	if rq.Placement != nil {
		signRq.Placement = &docsign.Placement{
			X:         rq.Placement.X,
			Y:         rq.Placement.Y,
			Width:     rq.Placement.Width,
			Height:    rq.Placement.Height,
			PageIndex: rq.Placement.Page - 1,
		}
	}

	result, err := s.service.SignDocument(r.Context(), signRq)
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.ExecuteWebhooks(r.Context(), WebhookEventDocumentSigned, WebhookPayload{Document: result.Document, Event: &result.Event})
	s.ok(w, r, result)
}

func (s *Server) PostDocumentReject(w http.ResponseWriter, r *http.Request) {
	var rq RejectRequest
	if err := decodeJSON(r, &rq); err != nil {
		s.error(w, r, err)
		return
	}

	claims := GetClaims(r)
	result, err := s.service.RejectDocument(r.Context(), docsign.RejectRequest{
		DocumentID: chi.URLParam(r, "documentID"),
		UserID:     claims.UserID(),
		UserName:   claims.DisplayName(),
		Notes:      rq.Notes,
		ClientIP:   clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.ExecuteWebhooks(r.Context(), WebhookEventDocumentRejected, WebhookPayload{Document: result.Document, Event: &result.Event})
	s.ok(w, r, result)
}

func (s *Server) GetDocumentDownload(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.service.ResolveDownload(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.error(w, r, err)
		return
	}

	etag := fmt.Sprintf(`"%x"`, xxhash.Sum64(artifact.Data))
	w.Header().Set(ezhttp.HeaderETag, etag)
	if r.Header.Get(ezhttp.HeaderIfNoneMatch) == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	mediaType := artifact.MediaType
	if mediaType == "" {
		mediaType = ezhttp.DefaultContentType
	}
	w.Header().Set(ezhttp.HeaderContentType, mediaType)
	w.Header().Set(ezhttp.HeaderContentLength, strconv.Itoa(len(artifact.Data)))
	w.Header().Set(ezhttp.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Name}))
	if artifact.Checksum != "" {
		w.Header().Set(ezhttp.HeaderChecksum, artifact.Checksum)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(artifact.Data)
}

func (s *Server) GetDocumentSignatures(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.ListSignatureEvents(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.ok(w, r, events)
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return httperr.BadRequest(fmt.Errorf("%w: %w", ErrInvalidBody, err))
	}
	return nil
}

func intQuery(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
