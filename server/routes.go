package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/stampede"
	"github.com/riandyrn/otelchi"
	"github.com/samber/slog-chi"
	"github.com/topi314/tint"

	"github.com/topi314/gosign/docsign"
	"github.com/topi314/gosign/internal/ezhttp"
	"github.com/topi314/gosign/internal/httperr"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimit   = errors.New("rate limit exceeded")
	ErrInvalidBody = errors.New("invalid request body")
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	if s.cfg.Otel.Enabled {
		r.Use(otelchi.Middleware(Name, otelchi.WithChiRoutes(r)))
	}
	r.Use(middleware.CleanPath)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(slogchi.NewWithConfig(slog.Default(), slogchi.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelDebug,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
		WithSpanID:       s.cfg.Otel.Enabled,
		WithTraceID:      s.cfg.Otel.Enabled,
		Filters: []slogchi.Filter{
			slogchi.IgnorePathPrefix("/ping"),
		},
	}))
	r.Use(cacheControl)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if s.rateLimiter != nil {
		r.Use(s.RateLimit)
	}
	r.Use(middleware.GetHead)

	if s.cfg.Debug {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Get("/version", s.GetVersion)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.JWTMiddleware)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.GetDocuments)
			r.Post("/", s.PostDocument)
			r.Route("/{documentID}", func(r chi.Router) {
				r.Get("/", s.GetDocument)
				r.With(s.RequirePermissions(PermissionAdmin)).Delete("/", s.DeleteDocument)
				r.With(s.RequirePermissions(PermissionAdmin)).Put("/status", s.PutDocumentStatus)
				r.Post("/submit", s.PostDocumentSubmit)
				r.With(s.RequirePermissions(PermissionSign)).Post("/sign", s.PostDocumentSign)
				r.With(s.RequirePermissions(PermissionSign)).Post("/reject", s.PostDocumentReject)
				r.Get("/download", s.GetDocumentDownload)
				r.Get("/signatures", s.GetDocumentSignatures)
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.GetTemplates)
			r.Post("/", s.PostTemplate)
			r.Route("/{templateID}", func(r chi.Router) {
				r.Delete("/", s.DeleteTemplate)
				r.Group(func(r chi.Router) {
					if s.cfg.TemplateCache.Enabled && s.cfg.TemplateCache.Size > 0 && s.cfg.TemplateCache.TTL > 0 {
						r.Use(stampede.HandlerWithKey(s.cfg.TemplateCache.Size, s.cfg.TemplateCache.TTL, s.cacheKeyFunc))
					}
					r.Get("/image", s.GetTemplateImage)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.error(w, r, httperr.NotFound(ErrNotFound))
	})

	if s.cfg.HTTPTimeout > 0 {
		return http.TimeoutHandler(r, s.cfg.HTTPTimeout, "Request timed out")
	}
	return r
}

func (s *Server) GetVersion(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("json") {
		s.ok(w, r, s.version)
		return
	}
	w.Header().Set(ezhttp.HeaderContentType, ezhttp.ContentTypeText)
	_, _ = w.Write([]byte(s.version.Format()))
}

func kindStatus(kind docsign.Kind) int {
	switch kind {
	case docsign.KindValidation:
		return http.StatusBadRequest
	case docsign.KindNotFound:
		return http.StatusNotFound
	case docsign.KindConflict:
		return http.StatusConflict
	case docsign.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case docsign.KindIO:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, http.ErrHandlerTimeout) {
		return
	}

	var (
		status  = http.StatusInternalServerError
		kind    docsign.Kind
		message = err.Error()
		httpErr *httperr.Error
	)
	if errors.As(err, &httpErr) {
		status = httpErr.Status
		if httpErr.Location != "" {
			http.Redirect(w, r, httpErr.Location, status)
			return
		}
	} else if kind = docsign.KindOf(err); kind != "" {
		status = kindStatus(kind)
		var docErr *docsign.Error
		if status >= http.StatusInternalServerError && errors.As(err, &docErr) {
			message = docErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "internal server error", slog.String("kind", string(kind)), tint.Err(err))
	}
	s.json(w, r, ezhttp.ErrorResponse{
		Message:   message,
		Kind:      string(kind),
		Status:    status,
		Path:      r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
	}, status)
}

func (s *Server) ok(w http.ResponseWriter, r *http.Request, v any) {
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.json(w, r, v, http.StatusOK)
}

func (s *Server) json(w http.ResponseWriter, r *http.Request, v any, status int) {
	w.Header().Set(ezhttp.HeaderContentType, ezhttp.ContentTypeJSON)
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.ErrorContext(r.Context(), "failed to encode json", tint.Err(err))
	}
}
