package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/topi314/tint"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/topi314/gosign/docsign"
	"github.com/topi314/gosign/internal/ezhttp"
)

const (
	WebhookEventDocumentCreated       = "document.created"
	WebhookEventDocumentStatusUpdated = "document.status_updated"
	WebhookEventDocumentSigned        = "document.signed"
	WebhookEventDocumentRejected      = "document.rejected"
	WebhookEventDocumentDeleted       = "document.deleted"
)

var ErrWebhookMaxTries = errors.New("max tries reached")

type (
	WebhookPayload struct {
		Document docsign.Document        `json:"document"`
		Event    *docsign.SignatureEvent `json:"event,omitempty"`
	}

	WebhookEventRequest struct {
		Event     string         `json:"event"`
		CreatedAt time.Time      `json:"created_at"`
		Payload   WebhookPayload `json:"payload"`
	}
)

// ExecuteWebhooks notifies every endpoint subscribed to event in the
// background. Endpoints without events receive all events.
func (s *Server) ExecuteWebhooks(ctx context.Context, event string, payload WebhookPayload) {
	if s.client == nil || len(s.cfg.Webhook.Endpoints) == 0 {
		return
	}

	s.webhookWaitGroup.Add(1)
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "executeWebhooks", trace.WithAttributes(
		attribute.String("event", event),
		attribute.String("document_id", payload.Document.ID),
	))
	go func() {
		defer span.End()
		s.executeWebhooks(ctx, event, payload)
	}()
}

func (s *Server) executeWebhooks(ctx context.Context, event string, payload WebhookPayload) {
	defer s.webhookWaitGroup.Done()

	request := WebhookEventRequest{
		Event:     event,
		CreatedAt: time.Now(),
		Payload:   payload,
	}

	var wg sync.WaitGroup
	for _, endpoint := range s.cfg.Webhook.Endpoints {
		if len(endpoint.Events) > 0 && !slices.Contains(endpoint.Events, event) {
			continue
		}

		wg.Add(1)
		go func(endpoint WebhookEndpointConfig) {
			defer wg.Done()
			s.executeWebhook(ctx, endpoint.URL, endpoint.Secret, request)
		}(endpoint)
	}
	wg.Wait()

	slog.DebugContext(ctx, "finished emitting webhooks", slog.String("event", event), slog.String("document_id", payload.Document.ID))
}

func (s *Server) executeWebhook(ctx context.Context, url string, secret string, request WebhookEventRequest) {
	ctx, span := s.tracer.Start(ctx, "executeWebhook", trace.WithAttributes(
		attribute.String("url", url),
		attribute.String("event", request.Event),
		attribute.String("document_id", request.Payload.Document.ID),
	))
	defer span.End()

	logger := slog.Default().With(slog.String("event", request.Event), slog.String("document_id", request.Payload.Document.ID))
	logger.DebugContext(ctx, "emitting webhook", slog.String("url", url))

	body, err := json.Marshal(request)
	if err != nil {
		span.SetStatus(codes.Error, "failed to encode webhook")
		span.RecordError(err)
		logger.ErrorContext(ctx, "failed to encode webhook", tint.Err(err))
		return
	}

	for i := 0; i < s.cfg.Webhook.MaxTries; i++ {
		backoff := time.Duration(s.cfg.Webhook.BackoffFactor * float64(s.cfg.Webhook.Backoff) * float64(i))
		if backoff > time.Nanosecond {
			if s.cfg.Webhook.MaxBackoff > 0 && backoff > s.cfg.Webhook.MaxBackoff {
				backoff = s.cfg.Webhook.MaxBackoff
			}
			logger.DebugContext(ctx, "sleeping backoff", slog.Duration("backoff", backoff))
			time.Sleep(backoff)
		}

		rq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			span.SetStatus(codes.Error, "failed to create request")
			span.RecordError(err)
			logger.ErrorContext(ctx, "failed to create request", tint.Err(err))
			return
		}
		rq.Header.Set(ezhttp.HeaderContentType, ezhttp.ContentTypeJSON)
		rq.Header.Set(ezhttp.HeaderUserAgent, Name)
		if secret != "" {
			rq.Header.Set(ezhttp.HeaderAuthorization, "Secret "+secret)
		}

		rs, err := s.client.Do(rq)
		if err != nil {
			logger.DebugContext(ctx, "failed to execute request", tint.Err(err))
			continue
		}
		_ = rs.Body.Close()

		if rs.StatusCode < 200 || rs.StatusCode >= 300 {
			logger.DebugContext(ctx, "invalid status code", slog.Int("status", rs.StatusCode))
			continue
		}

		logger.DebugContext(ctx, "successfully executed webhook", slog.String("status", rs.Status))
		return
	}

	span.SetStatus(codes.Error, "failed to execute webhook")
	span.RecordError(ErrWebhookMaxTries)
	logger.ErrorContext(ctx, "failed to execute webhook", tint.Err(ErrWebhookMaxTries))
}
