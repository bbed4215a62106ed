package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/topi314/gosign/docsign"
	"github.com/topi314/gosign/internal/ezhttp"
	"github.com/topi314/gosign/internal/httperr"
)

const maxTemplateRequestSize = 4 << 20

var ErrInvalidImage = errors.New("image must be base64 or a base64 data url")

type CreateTemplateRequest struct {
	Name string `json:"name"`
	// Image is the raw image as base64 or as a data url like data:image/png;base64,...
	Image string `json:"image"`
}

func (s *Server) PostTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTemplateRequestSize)
	var rq CreateTemplateRequest
	if err := decodeJSON(r, &rq); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.error(w, r, httperr.RequestEntityTooLarge(err))
			return
		}
		s.error(w, r, err)
		return
	}

	image, err := decodeImagePayload(rq.Image)
	if err != nil {
		s.error(w, r, httperr.BadRequest(err))
		return
	}

	template, err := s.service.CreateTemplate(r.Context(), docsign.CreateTemplateRequest{
		UserID: GetClaims(r).UserID(),
		Name:   rq.Name,
		Image:  image,
	})
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.json(w, r, template, http.StatusCreated)
}

func (s *Server) GetTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListTemplates(r.Context(), GetClaims(r).UserID())
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.ok(w, r, templates)
}

func (s *Server) GetTemplateImage(w http.ResponseWriter, r *http.Request) {
	template, err := s.service.GetTemplate(r.Context(), GetClaims(r).UserID(), chi.URLParam(r, "templateID"))
	if err != nil {
		s.error(w, r, err)
		return
	}

	w.Header().Set(ezhttp.HeaderContentType, template.MediaType)
	w.Header().Set(ezhttp.HeaderContentLength, strconv.Itoa(len(template.Image)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(template.Image)
}

func (s *Server) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTemplate(r.Context(), GetClaims(r).UserID(), chi.URLParam(r, "templateID")); err != nil {
		s.error(w, r, err)
		return
	}
	s.ok(w, r, nil)
}

func decodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, ErrInvalidImage
		}
		payload = data
	}

	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return image, nil
}
