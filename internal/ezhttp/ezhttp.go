// Package ezhttp holds the header names, content types and response bodies
// shared by the gosign HTTP API and its clients.
package ezhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	HeaderContentType        = "Content-Type"
	HeaderContentLength      = "Content-Length"
	HeaderContentDisposition = "Content-Disposition"
	HeaderUserAgent          = "User-Agent"
	HeaderAuthorization      = "Authorization"
	HeaderETag               = "ETag"
	HeaderIfNoneMatch        = "If-None-Match"
	HeaderChecksum           = "X-Checksum-Blake3"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
	HeaderCacheControl       = "Cache-Control"
)

const (
	DefaultContentType = "application/octet-stream"
	ContentTypeText    = "text/plain; charset=UTF-8"
	ContentTypeJSON    = "application/json"
	ContentTypePDF     = "application/pdf"
)

type ErrorResponse struct {
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	Status    int    `json:"status"`
	Path      string `json:"path"`
	RequestID string `json:"request_id"`
}

func (e ErrorResponse) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// ProcessBody decodes a successful response into body and turns any other
// response into an ErrorResponse error.
func ProcessBody(rs *http.Response, body any) error {
	if rs.StatusCode >= http.StatusOK && rs.StatusCode < http.StatusMultipleChoices {
		if body == nil || rs.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(rs.Body).Decode(body); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	var errRs ErrorResponse
	if err := json.NewDecoder(rs.Body).Decode(&errRs); err != nil {
		return fmt.Errorf("failed to decode error response: %w", err)
	}
	return errRs
}
