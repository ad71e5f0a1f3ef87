package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sketchy/internal/adapter/repo"
	"sketchy/internal/domain"
	"sketchy/internal/infra"
	"sketchy/internal/middleware"
	"sketchy/internal/notify"
	"sketchy/internal/ratelimit"
	"sketchy/internal/storage"
)

type sentWebhook struct {
	url     string
	payload notify.Payload
}

type fakeSender struct {
	err  error
	sent []sentWebhook
}

func (f *fakeSender) SendOnce(ctx context.Context, url string, payload notify.Payload) error {
	f.sent = append(f.sent, sentWebhook{url: url, payload: payload})
	return f.err
}

type testEnv struct {
	app    *App
	router http.Handler
	jobs   domain.JobRepository
	blobs  *storage.FileStore
	sender *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	jobs, err := repo.NewJobRepositorySQLite(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewJobRepositorySQLite: %v", err)
	}
	t.Cleanup(func() { jobs.Close() })

	blobs, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sender := &fakeSender{}
	cfg := &infra.Config{APIKeys: "sk_free:free,sk_pro:pro"}
	app := NewApp(cfg, jobs, blobs, ratelimit.NewLimiter(jobs, ratelimit.DefaultQuotas()), sender, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/files/*", app.Files)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.ParseAPIKeys()))
		r.Post("/comic", app.CreateComic)
		r.Get("/comic/{id}", app.GetComic)
		r.Get("/comic/{id}/panels/{n}", app.GetPanel)
		r.Get("/comic/{id}/combined", app.GetCombined)
		r.Get("/balance", app.Balance)
		r.Post("/webhook/test", app.WebhookTest)
	})
	return &testEnv{app: app, router: r, jobs: jobs, blobs: blobs, sender: sender}
}

func (e *testEnv) do(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) jobResponse {
	t.Helper()
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode job response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestCreateComic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/comic", "sk_pro", map[string]any{
		"article_text": "Mayor promises transparency, holds press conference behind curtain.",
		"panels":       4,
		"tone":         "savage",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJob(t, rec)
	if resp.JobID == "" || resp.Status != domain.StatusPending {
		t.Errorf("response = %+v, want pending job with ID", resp)
	}
	if resp.PanelsRequested != 4 {
		t.Errorf("panels_requested = %d, want 4", resp.PanelsRequested)
	}
}

func TestCreateComicRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "no source", body: map[string]any{"panels": 4}},
		{name: "too few panels", body: map[string]any{"article_text": "x", "panels": 2}},
		{name: "too many panels", body: map[string]any{"article_text": "x", "panels": 30}},
		{name: "unknown tone", body: map[string]any{"article_text": "x", "tone": "smug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/comic", "sk_pro", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateComicQuotaExceeded(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"article_text": "Filler news cycle reaches record length.", "panels": 4}
	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/comic", "sk_free", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/v1/comic", "sk_free", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 (body %s)", rec.Code, rec.Body.String())
	}

	// A different caller is unaffected.
	rec = env.do(t, http.MethodPost, "/api/v1/comic", "sk_pro", body)
	if rec.Code != http.StatusCreated {
		t.Errorf("pro caller status = %d, want 201", rec.Code)
	}
}

func TestGetComic(t *testing.T) {
	env := newTestEnv(t)
	created := decodeJob(t, env.do(t, http.MethodPost, "/api/v1/comic", "sk_pro", map[string]any{
		"article_text": "Man versus pigeon dispute enters third week.",
		"panels":       4,
	}))

	rec := env.do(t, http.MethodGet, "/api/v1/comic/"+created.JobID, "sk_pro", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeJob(t, rec)
	if got.JobID != created.JobID || got.Status != domain.StatusPending {
		t.Errorf("got %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/comic/job_missing0000", "sk_pro", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

func TestGetPanelAndCombined(t *testing.T) {
	env := newTestEnv(t)
	created := decodeJob(t, env.do(t, http.MethodPost, "/api/v1/comic", "sk_pro", map[string]any{
		"article_text": "Infrastructure week announced for ninth consecutive year.",
		"panels":       4,
	}))
	ctx := context.Background()
	panelBytes := []byte("png-panel-bytes")
	if _, err := env.blobs.Put(ctx, created.JobID+"/panels/panel_01.png", panelBytes); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := env.blobs.Put(ctx, created.JobID+"/combined.png", []byte("png-combined")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/comic/"+created.JobID+"/panels/1", "sk_pro", nil)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), panelBytes) {
		t.Errorf("panel fetch: status %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/comic/"+created.JobID+"/panels/2", "sk_pro", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("absent panel status = %d, want 404", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/comic/"+created.JobID+"/panels/zero", "sk_pro", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad panel number status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/comic/"+created.JobID+"/combined", "sk_pro", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("combined status = %d", rec.Code)
	}
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"article_text": "Economy does something, experts disagree.", "panels": 4}
	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/v1/comic", "sk_free", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed request %d: status %d", i+1, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/balance", "sk_free", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Tier != "free" || resp.RequestsUsed != 2 || resp.RequestsLimit != 5 || resp.RequestsRemaining != 3 {
		t.Errorf("balance = %+v", resp)
	}
	if resp.ResetAt.Before(time.Now().Add(-time.Minute)) {
		t.Errorf("reset_at = %v, want near now", resp.ResetAt)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/balance", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/balance", "sk_wrong", nil); rec.Code != http.StatusForbidden {
		t.Errorf("bad key status = %d, want 403", rec.Code)
	}
}

func TestWebhookTest(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/webhook/test", "sk_pro", map[string]string{
		"webhook_url": "http://example.com/hook",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(env.sender.sent) != 1 || env.sender.sent[0].payload.Event != notify.EventTest {
		t.Fatalf("sent = %+v", env.sender.sent)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/webhook/test", "sk_pro", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing url status = %d, want 400", rec.Code)
	}
}

func TestWebhookTestDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = context.DeadlineExceeded
	rec := env.do(t, http.MethodPost, "/api/v1/webhook/test", "sk_pro", map[string]string{
		"webhook_url": "http://example.com/hook",
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestFilesRoute(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.blobs.Put(context.Background(), "job_x/script.json", []byte(`{"title":"x"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec := env.do(t, http.MethodGet, "/files/job_x/script.json", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if rec := env.do(t, http.MethodGet, "/files/job_x/absent.png", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("absent file status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/files/../etc/passwd", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("traversal status = %d, want 404", rec.Code)
	}
}
