package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/topi314/tint"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/topi314/gosign/docsign"
	"github.com/topi314/gosign/internal/httperr"
	"github.com/topi314/gosign/internal/httprate"
	"github.com/topi314/gosign/internal/ver"
)

var (
	Name      = "gosign"
	Namespace = "github.com/topi314/gosign"
)

func NewServer(version ver.Version, cfg Config, service *docsign.Service, signer jose.Signer) *Server {
	var client *http.Client
	if cfg.Webhook.Enabled {
		client = &http.Client{
			Transport: otelhttp.NewTransport(
				http.DefaultTransport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
			),
			Timeout: cfg.Webhook.Timeout,
		}
	}

	tracer := tracenoop.NewTracerProvider().Tracer(Name)
	if cfg.Otel.Enabled && cfg.Otel.Trace.Enabled {
		tracer = otel.Tracer(Name)
	}

	s := &Server{
		version: version,
		cfg:     cfg,
		service: service,
		client:  client,
		signer:  signer,
		tracer:  tracer,
	}

	if cfg.RateLimit.Enabled {
		s.rateLimiter = httprate.NewRateLimiter(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Duration,
			func(w http.ResponseWriter, r *http.Request) {
				s.error(w, r, httperr.TooManyRequests(ErrRateLimit))
			},
		)
	}

	s.server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.Routes(),
	}

	return s
}

type Server struct {
	version          ver.Version
	cfg              Config
	service          *docsign.Service
	server           *http.Server
	client           *http.Client
	signer           jose.Signer
	tracer           trace.Tracer
	rateLimiter      *httprate.RateLimiter
	webhookWaitGroup sync.WaitGroup
}

func (s *Server) Start() {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Error while listening", tint.Err(err))
	}
}

// Close stops accepting requests, waits for running requests and pending
// webhooks and releases the rate limiter.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("Error while closing server", tint.Err(err))
	}

	s.webhookWaitGroup.Wait()

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
}
