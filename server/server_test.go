package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topi314/gosign/docsign"
	"github.com/topi314/gosign/docsign/database"
	"github.com/topi314/gosign/internal/blob"
	"github.com/topi314/gosign/internal/ezhttp"
	"github.com/topi314/gosign/internal/pdfstamp/pdftest"
	"github.com/topi314/gosign/internal/ver"
)

const testSecret = "test-secret"

type testServer struct {
	*Server
	handler http.Handler
	signer  jose.Signer
}

func newTestServer(t *testing.T, modify func(cfg *Config)) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, database.Config{
		Type: database.TypeSQLite,
		Path: filepath.Join(t.TempDir(), "gosign.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	service, err := docsign.New(db, blob.NewWithFs(afero.NewMemMapFs()), docsign.Config{MaxDocumentSize: 1 << 20})
	require.NoError(t, err)

	cfg := Config{
		JWTSecret:       testSecret,
		MaxDocumentSize: 1 << 20,
		TemplateCache: TemplateCacheConfig{
			Enabled: true,
			Size:    16,
			TTL:     time.Minute,
		},
		Webhook: WebhookConfig{
			Timeout:  time.Second,
			MaxTries: 1,
		},
	}
	if modify != nil {
		modify(&cfg)
	}

	signer, err := NewSigner(testSecret)
	require.NoError(t, err)

	s := NewServer(ver.Version{Version: "v0.0.0-test", GoVersion: "go1.22.0"}, cfg, service, signer)
	t.Cleanup(s.Close)
	return &testServer{
		Server:  s,
		handler: s.Routes(),
		signer:  signer,
	}
}

func (s *testServer) token(t *testing.T, userID string, permissions Permissions) string {
	t.Helper()
	token, err := NewToken(s.signer, userID, "User "+userID, permissions, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method string, path string, token string, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rq := httptest.NewRequest(method, path, body)
	if token != "" {
		rq.Header.Set(ezhttp.HeaderAuthorization, "Bearer "+token)
	}
	if contentType != "" {
		rq.Header.Set(ezhttp.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, rq)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	return s.do(t, method, path, token, ezhttp.ContentTypeJSON, reader)
}

func (s *testServer) upload(t *testing.T, token string) docsign.Document {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("title", "Contract"))
	require.NoError(t, mw.WriteField("description", "Rental contract"))
	fw, err := mw.CreateFormFile("file", "contract.pdf")
	require.NoError(t, err)
	_, err = fw.Write(pdftest.Build(pdftest.Options{
		Pages: []pdftest.Page{
			{Text: "first", MediaBox: []float64{0, 0, 600, 800}},
			{Text: "second"},
		},
	}))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := s.do(t, http.MethodPost, "/api/documents", token, mw.FormDataContentType(), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[docsign.Document](t, rec)
}

func (s *testServer) template(t *testing.T, token string) docsign.Template {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/api/templates", token, CreateTemplateRequest{
		Name:  "Signature",
		Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t)),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[docsign.Template](t, rec)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	buff := new(bytes.Buffer)
	require.NoError(t, png.Encode(buff, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buff.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ezhttp.ErrorResponse {
	t.Helper()
	errRs := decode[ezhttp.ErrorResponse](t, rec)
	assert.Equal(t, rec.Code, errRs.Status)
	return errRs
}

func signBody(templateID string, page int) SignRequest {
	return SignRequest{
		TemplateID: templateID,
		Placement: &PlacementRequest{
			Page:   page,
			X:      100,
			Y:      100,
			Width:  150,
			Height: 50,
		},
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/documents", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ErrMissingToken.Error(), decodeError(t, rec).Message)

	rec = s.do(t, http.MethodGet, "/api/documents", "not-a-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	otherSigner, err := NewSigner("other-secret")
	require.NoError(t, err)
	foreign, err := NewToken(otherSigner, "alice", "", PermissionAdmin, 0)
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/documents", foreign, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := jwt.Signed(s.signer).Claims(Claims{
		Claims: jwt.Claims{
			Subject: "alice",
			Expiry:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).CompactSerialize()
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/documents", expired, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/documents", s.token(t, "alice", 0), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/ping", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignFlow(t *testing.T) {
	s := newTestServer(t, nil)
	reader := s.token(t, "bob", 0)
	signer := s.token(t, "alice", PermissionSign)

	doc := s.upload(t, reader)
	assert.Equal(t, docsign.StatusDraft, doc.Status)
	assert.Equal(t, 2, doc.PageCount)

	rec := s.doJSON(t, http.MethodPost, "/api/documents/"+doc.ID+"/submit", reader, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, docsign.StatusPendingSignature, decode[docsign.Document](t, rec).Status)

	template := s.template(t, signer)

	rec = s.doJSON(t, http.MethodPost, "/api/documents/"+doc.ID+"/sign", reader, signBody(template.ID, 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/documents/"+doc.ID+"/sign", signer, signBody(template.ID, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[docsign.SignResult](t, rec)
	assert.Equal(t, docsign.StatusSigned, result.Document.Status)
	assert.True(t, result.Document.Signed)
	assert.Equal(t, "User alice", result.Event.UserName)
	assert.Equal(t, 0, *result.Event.Page)
	assert.Equal(t, 650.0, *result.Event.Y)
	assert.Equal(t, "192.0.2.1", result.Event.IPAddress)

	rec = s.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/download", reader, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ezhttp.ContentTypePDF, rec.Header().Get(ezhttp.HeaderContentType))
	assert.Equal(t, `attachment; filename=contract-signed.pdf`, rec.Header().Get(ezhttp.HeaderContentDisposition))
	assert.Equal(t, *result.Document.SignedChecksum, rec.Header().Get(ezhttp.HeaderChecksum))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	etag := rec.Header().Get(ezhttp.HeaderETag)
	require.NotEmpty(t, etag)
	rq := httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID+"/download", nil)
	rq.Header.Set(ezhttp.HeaderAuthorization, "Bearer "+reader)
	rq.Header.Set(ezhttp.HeaderIfNoneMatch, etag)
	notModified := httptest.NewRecorder()
	s.handler.ServeHTTP(notModified, rq)
	assert.Equal(t, http.StatusNotModified, notModified.Code)

	rec = s.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/signatures", reader, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]docsign.SignatureEvent](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, result.Event.ID, events[0].ID)

	rec = s.doJSON(t, http.MethodPost, "/api/documents/"+doc.ID+"/reject", signer, RejectRequest{Notes: "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decode[docsign.RejectResult](t, rec)
	assert.Equal(t, docsign.StatusRejected, rejected.Document.Status)
	assert.Nil(t, rejected.Event.TemplateID)
	assert.False(t, rejected.Document.Signed)

	rec = s.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/download", reader, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=contract.pdf`, rec.Header().Get(ezhttp.HeaderContentDisposition))

	rec = s.doJSON(t, http.MethodPost, "/api/documents/"+doc.ID+"/sign", signer, signBody(template.ID, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resigned := decode[docsign.SignResult](t, rec)
	assert.Equal(t, docsign.StatusSigned, resigned.Document.Status)
	assert.True(t, resigned.Document.Signed)
}

func TestSignErrors(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "alice", PermissionSign)
	doc := s.upload(t, token)
	template := s.template(t, token)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		kind   docsign.Kind
	}{
		{name: "page out of range", path: "/api/documents/" + doc.ID + "/sign", body: signBody(template.ID, 3), status: http.StatusBadRequest, kind: docsign.KindValidation},
		{name: "page zero", path: "/api/documents/" + doc.ID + "/sign", body: signBody(template.ID, 0), status: http.StatusBadRequest, kind: docsign.KindValidation},
		{name: "missing placement", path: "/api/documents/" + doc.ID + "/sign", body: SignRequest{TemplateID: template.ID}, status: http.StatusBadRequest, kind: docsign.KindValidation},
		{name: "missing document", path: "/api/documents/missing/sign", body: signBody(template.ID, 1), status: http.StatusNotFound, kind: docsign.KindNotFound},
		{name: "missing template", path: "/api/documents/" + doc.ID + "/sign", body: signBody("missing", 1), status: http.StatusNotFound, kind: docsign.KindNotFound},
		{name: "stale revision", path: "/api/documents/" + doc.ID + "/sign", body: SignRequest{TemplateID: template.ID, Placement: signBody("", 1).Placement, ExpectedRevision: new(int64)}, status: http.StatusConflict, kind: docsign.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doJSON(t, http.MethodPost, tt.path, token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, string(tt.kind), decodeError(t, rec).Kind)
		})
	}

	rec := s.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/sign", token, ezhttp.ContentTypeJSON, bytes.NewReader([]byte("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "alice", 0)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("title", "Contract"))
	fw, err := mw.CreateFormFile("file", "contract.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not a pdf"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := s.do(t, http.MethodPost, "/api/documents", token, mw.FormDataContentType(), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(docsign.KindValidation), decodeError(t, rec).Kind)

	body.Reset()
	mw = multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("title", "Contract"))
	require.NoError(t, mw.Close())
	rec = s.do(t, http.MethodPost, "/api/documents", token, mw.FormDataContentType(), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrMissingFile.Error(), decodeError(t, rec).Message)

	rec = s.do(t, http.MethodPost, "/api/documents", token, "multipart/form-data; boundary=x", bytes.NewReader(make([]byte, 3<<20)))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}

func TestListDocuments(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "alice", 0)
	s.upload(t, token)
	s.upload(t, token)

	rec := s.do(t, http.MethodGet, "/api/documents?page_size=1&page=2", token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[docsign.DocumentPage](t, rec)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Documents, 1)

	rec = s.do(t, http.MethodGet, "/api/documents?status=archived", token, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/documents?page=abc", token, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminOperations(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.token(t, "alice", PermissionSign)
	admin := s.token(t, "root", PermissionAdmin)
	doc := s.upload(t, user)

	rec := s.doJSON(t, http.MethodPut, "/api/documents/"+doc.ID+"/status", user, SetStatusRequest{Status: docsign.StatusSigned})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.doJSON(t, http.MethodPut, "/api/documents/"+doc.ID+"/status", admin, SetStatusRequest{Status: docsign.StatusRejected})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, docsign.StatusRejected, decode[docsign.Document](t, rec).Status)

	rec = s.doJSON(t, http.MethodPut, "/api/documents/"+doc.ID+"/status", admin, SetStatusRequest{Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/documents/"+doc.ID, user, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/documents/"+doc.ID, admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[docsign.DeleteResult](t, rec).BlobErrors)

	rec = s.do(t, http.MethodGet, "/api/documents/"+doc.ID, user, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/download", user, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplates(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.token(t, "alice", PermissionSign)
	bob := s.token(t, "bob", PermissionSign)

	template := s.template(t, alice)
	assert.Equal(t, "image/png", template.MediaType)

	rec := s.do(t, http.MethodGet, "/api/templates", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]docsign.Template](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/templates", bob, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]docsign.Template](t, rec))

	rec = s.do(t, http.MethodGet, "/api/templates/"+template.ID+"/image", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(ezhttp.HeaderContentType))
	assert.Equal(t, testPNG(t), rec.Body.Bytes())

	rec = s.do(t, http.MethodGet, "/api/templates/"+template.ID+"/image", bob, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "the image cache is keyed per user")

	rec = s.doJSON(t, http.MethodPost, "/api/templates", alice, CreateTemplateRequest{Name: "gif", Image: base64.StdEncoding.EncodeToString([]byte("GIF89a..."))})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, string(docsign.KindUnsupportedFormat), decodeError(t, rec).Kind)

	rec = s.doJSON(t, http.MethodPost, "/api/templates", alice, CreateTemplateRequest{Name: "broken", Image: "data:image/png,abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	doc := s.upload(t, alice)
	rec = s.doJSON(t, http.MethodPost, "/api/documents/"+doc.ID+"/sign", alice, signBody(template.ID, 2))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/templates/"+template.ID, bob, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/templates/"+template.ID, alice, "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	unused := s.template(t, alice)
	rec = s.do(t, http.MethodDelete, "/api/templates/"+unused.ID, alice, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWebhooks(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []WebhookEventRequest
		auth     []string
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rq WebhookEventRequest
		if err := json.NewDecoder(r.Body).Decode(&rq); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		requests = append(requests, rq)
		auth = append(auth, r.Header.Get(ezhttp.HeaderAuthorization))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(receiver.Close)

	s := newTestServer(t, func(cfg *Config) {
		cfg.Webhook.Enabled = true
		cfg.Webhook.Endpoints = []WebhookEndpointConfig{
			{URL: receiver.URL, Secret: "hook-secret", Events: []string{WebhookEventDocumentSigned}},
		}
	})
	token := s.token(t, "alice", PermissionSign)
	doc := s.upload(t, token)
	template := s.template(t, token)

	rec := s.doJSON(t, http.MethodPost, "/api/documents/"+doc.ID+"/sign", token, signBody(template.ID, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.webhookWaitGroup.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 1, "only subscribed events are delivered")
	assert.Equal(t, WebhookEventDocumentSigned, requests[0].Event)
	assert.Equal(t, doc.ID, requests[0].Payload.Document.ID)
	require.NotNil(t, requests[0].Payload.Event)
	assert.Equal(t, docsign.OutcomeSigned, requests[0].Payload.Event.Outcome)
	assert.Equal(t, "Secret hook-secret", auth[0])
}

func TestVersion(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.handler)
	t.Cleanup(ts.Close)

	rs, err := http.Get(ts.URL + "/version")
	require.NoError(t, err)
	defer rs.Body.Close()
	body, err := io.ReadAll(rs.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Version: v0.0.0-test")

	rs, err = http.Get(ts.URL + "/version?json")
	require.NoError(t, err)
	defer rs.Body.Close()
	var version ver.Version
	require.NoError(t, ezhttp.ProcessBody(rs, &version))
	assert.Equal(t, "v0.0.0-test", version.Version)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.handler)
	t.Cleanup(ts.Close)

	rs, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer rs.Body.Close()

	err = ezhttp.ProcessBody(rs, nil)
	var errRs ezhttp.ErrorResponse
	require.ErrorAs(t, err, &errRs)
	assert.Equal(t, http.StatusNotFound, errRs.Status)
	assert.Equal(t, "/nope", errRs.Path)
	assert.NotEmpty(t, errRs.RequestID)
}

func TestKindStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, kindStatus(docsign.KindValidation))
	assert.Equal(t, http.StatusNotFound, kindStatus(docsign.KindNotFound))
	assert.Equal(t, http.StatusConflict, kindStatus(docsign.KindConflict))
	assert.Equal(t, http.StatusUnsupportedMediaType, kindStatus(docsign.KindUnsupportedFormat))
	assert.Equal(t, http.StatusServiceUnavailable, kindStatus(docsign.KindIO))
	assert.Equal(t, http.StatusInternalServerError, kindStatus(docsign.KindStorage))
	assert.Equal(t, http.StatusInternalServerError, kindStatus(docsign.KindPartialSign))
}

func TestDecodeImagePayload(t *testing.T) {
	data, err := decodeImagePayload("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	data, err = decodeImagePayload(base64.StdEncoding.EncodeToString([]byte("raw")))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), data)

	data, err = decodeImagePayload("  ")
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = decodeImagePayload("data:image/png,abc")
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = decodeImagePayload("%%%")
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestPermissions(t *testing.T) {
	permissions, err := ParsePermissions([]string{"sign", "admin"})
	require.NoError(t, err)
	assert.Equal(t, PermissionSign|PermissionAdmin, permissions)
	assert.Equal(t, "sign,admin", permissions.String())

	_, err = ParsePermissions([]string{"root"})
	assert.EqualError(t, err, "unknown permission: root")
}
