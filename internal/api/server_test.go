package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/texprefilter/internal/config"
	"github.com/dgallion1/texprefilter/internal/filter"
	"github.com/dgallion1/texprefilter/internal/metrics"
	"github.com/dgallion1/texprefilter/internal/parser"
	"github.com/dgallion1/texprefilter/internal/pipeline"
	"github.com/spf13/afero"
)

const inlineDoc = `{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"Para","c":[{"t":"Str","c":"See"},{"t":"Space"},{"t":"RawInline","c":["tex","\\Cref{ex:a}"]}]}]}`

func testConfig() config.Config {
	return config.Config{
		ToFormat:       "json",
		MaxUploadBytes: 1 << 20,
		WorkerCount:    1,
		MaxQueueSize:   4,
		JobTTL:         time.Hour,
	}
}

// newTestServer builds a server without a pandoc binary, so only pandoc JSON
// and the goldmark markdown reader are available.
func newTestServer(t *testing.T, cfg config.Config, m metrics.Metrics, start bool) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	missing := parser.NewPandocParser(filepath.Join(t.TempDir(), "no-such-pandoc"), nil, 0)
	conv := pipeline.NewConverter(missing, filter.DefaultConfig(), afero.NewMemMapFs(), m, log)
	orch := pipeline.NewOrchestrator(cfg, conv, m, log)
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return NewServer(orch, m, log, cfg)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, field, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestFilter(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/filter", strings.NewReader(inlineDoc)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `{"t":"Math","c":[{"t":"InlineMath"},"\\ref{ex:a}"]}`) {
		t.Errorf("expected \\Cref to become \\ref math, got %s", rec.Body.String())
	}
}

func TestFilter_Errors(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	nested := `{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"RawBlock","c":["latex","\\begin{Exa}x\\end{Exa}"]}]}`

	tests := []struct {
		name string
		url  string
		body string
		want int
	}{
		{"malformed json", "/api/filter", "{", http.StatusBadRequest},
		{"nested parse without pandoc", "/api/filter", nested, http.StatusUnprocessableEntity},
		{"writer without pandoc", "/api/filter?format=html", inlineDoc, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		rec := do(t, s, httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body)))
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, rec.Code, rec.Body.String())
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Errorf("%s: expected json error body, got %s", tt.name, rec.Body.String())
		}
	}
}

func TestFilter_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 16
	s := newTestServer(t, cfg, nil, false)

	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/filter", strings.NewReader(inlineDoc)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "secret"
	s := newTestServer(t, cfg, nil, false)

	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/filter", strings.NewReader(inlineDoc)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/filter", strings.NewReader(inlineDoc))
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := do(t, s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/filter", strings.NewReader(inlineDoc))
	req.Header.Set("Authorization", "Bearer secret")
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rec.Code)
	}

	// Health stays public.
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("expected public health check, got %d", rec.Code)
	}
}

func TestConvert_Lifecycle(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, true)

	src := "\\begin{Exa}\\label{ex:a}\nHello\n\\end{Exa}\n"
	rec := do(t, s, multipartUpload(t, "file", "notes.md", src, nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	if accepted["from"] != "markdown" || accepted["to"] != "json" {
		t.Errorf("unexpected formats %v -> %v", accepted["from"], accepted["to"])
	}
	pollURL := accepted["poll_url"].(string)

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec = do(t, s, httptest.NewRequest(http.MethodGet, pollURL, nil))
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if snap.Status == pipeline.StatusCompleted || snap.Status == pipeline.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed job, got %+v", snap)
	}
	if snap.Stats.Environments["example"] != 1 {
		t.Errorf("unexpected stats %+v", snap.Stats)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, accepted["result_url"].(string), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `["env-number","1"]`) {
		t.Errorf("unexpected result %s", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `"notes.json"`) {
		t.Errorf("unexpected content disposition %q", cd)
	}
}

func TestConvert_Rejects(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)

	rec := do(t, s, multipartUpload(t, "file", "report.docx", "x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported extension, got %d", rec.Code)
	}

	// An explicit reader format overrides the extension.
	rec = do(t, s, multipartUpload(t, "file", "report.txt", "x", map[string]string{"from": "markdown"}))
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202 with explicit format, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, multipartUpload(t, "other", "notes.md", "x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file field, got %d", rec.Code)
	}
}

func TestConvert_ResultNotReady(t *testing.T) {
	// The orchestrator is not started, so the job stays queued.
	s := newTestServer(t, testConfig(), nil, false)

	rec := do(t, s, multipartUpload(t, "file", "notes.md", "x", nil))
	var accepted map[string]any
	json.Unmarshal(rec.Body.Bytes(), &accepted)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, accepted["result_url"].(string), nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for queued job, got %d", rec.Code)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/convert/nope/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats["queue_depth"] != 1 || stats["jobs"] != 1 || stats["workers"] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestBatchConvert(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range []string{"a.md", "b.tex", "c.docx"} {
		fw, _ := mw.CreateFormFile("files", name)
		io.WriteString(fw, "x")
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/convert/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Jobs))
	}
	if resp.Jobs[0]["job_id"] == nil || resp.Jobs[1]["job_id"] == nil {
		t.Errorf("expected the supported files to be queued, got %v", resp.Jobs)
	}
	if resp.Jobs[2]["error"] == nil {
		t.Errorf("expected an error for the unsupported file, got %v", resp.Jobs[2])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewMetrics()
	s := newTestServer(t, testConfig(), m, false)

	do(t, s, httptest.NewRequest(http.MethodPost, "/api/filter", strings.NewReader(inlineDoc)))
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"texprefilter_filter_documents_total 1",
		`texprefilter_api_time_seconds_count{handler="/api/filter",method="POST",status_code="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"paper.tex":        "paper.tex",
		"../../etc/passwd": "passwd",
		"dir\\evil..tex":   "dir_evil_tex",
		"":                 "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
