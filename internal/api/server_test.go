package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DAMG7250-Team1/reportgen/internal/config"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
	"github.com/DAMG7250-Team1/reportgen/internal/pipeline"
	"github.com/DAMG7250-Team1/reportgen/internal/report"
	"github.com/DAMG7250-Team1/reportgen/internal/synth"
)

type fakeReporter struct {
	queries []string
}

func (f *fakeReporter) GenerateReport(ctx context.Context, query string) string {
	f.queries = append(f.queries, query)
	return "# Report about " + query
}

func (f *fakeReporter) Generate(ctx context.Context, query string) (*report.Report, error) {
	return &report.Report{ID: "r1", Query: query, Title: "Report about " + query,
		Sections: []synth.ReportSection{{Name: "Results", Text: "Incidence **rose**."}}}, nil
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, apiKey string) (*Server, *fakeReporter) {
	t.Helper()
	rep := &fakeReporter{}
	cfg := config.Config{APIKey: apiKey, WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour, ReportTimeout: time.Minute}
	orch := pipeline.NewOrchestrator(cfg, rep, quietLog())
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, rep, llm.NewStats(time.Hour), "gpt-test", quietLog(), cfg), rep
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	w := do(t, s, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"status":"ok"}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	if w := do(t, s, http.MethodPost, "/generate_report", `{"query":"x"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/generate_report", `{"query":"x"}`, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/generate_report", `{"query":"x"}`, "secret"); w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d", w.Code)
	}
}

func TestGenerateReport(t *testing.T) {
	s, rep := newTestServer(t, "")
	w := do(t, s, http.MethodPost, "/generate_report", `{"query":"  lung cancer  "}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["report"] != "# Report about lung cancer" {
		t.Errorf("report = %q", resp["report"])
	}
	if len(rep.queries) != 1 || rep.queries[0] != "lung cancer" {
		t.Errorf("queries = %v", rep.queries)
	}
}

func TestGenerateReport_BadRequests(t *testing.T) {
	s, rep := newTestServer(t, "")
	for _, body := range []string{`{"query":"   "}`, `not json`, `{}`} {
		w := do(t, s, http.MethodPost, "/generate_report", body, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, w.Code)
		}
	}
	if len(rep.queries) != 0 {
		t.Errorf("reporter should not be called, got %v", rep.queries)
	}

	big := `{"query":"` + strings.Repeat("a", maxRequestBytes) + `"}`
	if w := do(t, s, http.MethodPost, "/generate_report", big, ""); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: status = %d", w.Code)
	}
}

func TestSubmitAndFetchReport(t *testing.T) {
	s, _ := newTestServer(t, "")
	w := do(t, s, http.MethodPost, "/api/reports", `{"query":"colon cancer"}`, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var accepted map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	id := accepted["job_id"]
	if id == "" || accepted["status"] == "" {
		t.Fatalf("accepted = %v", accepted)
	}

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w = do(t, s, http.MethodGet, "/api/reports/"+id, "", "")
		if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
			t.Fatal(err)
		}
		if snap.Status == pipeline.StatusCompleted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("job did not complete: %+v", snap)
	}
	if !strings.Contains(snap.Report, "## Results") {
		t.Errorf("report = %q", snap.Report)
	}

	w = do(t, s, http.MethodGet, "/api/reports/"+id+"?format=html", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("html status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	html := w.Body.String()
	for _, want := range []string{"<title>colon cancer</title>", "<h2>Results</h2>", "<strong>rose</strong>"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q:\n%s", want, html)
		}
	}

	w = do(t, s, http.MethodGet, "/api/reports/"+id+"?format=markdown", "", "")
	if !strings.HasPrefix(w.Body.String(), "# Report about colon cancer") {
		t.Errorf("markdown = %q", w.Body.String())
	}

	if w = do(t, s, http.MethodGet, "/api/reports/"+id+"?format=pdf", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d", w.Code)
	}
}

func TestReportStatus_NotFound(t *testing.T) {
	s, _ := newTestServer(t, "")
	if w := do(t, s, http.MethodGet, "/api/reports/missing", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestLLMStats(t *testing.T) {
	s, _ := newTestServer(t, "")
	s.stats.Record("completion", 20*time.Millisecond)
	w := do(t, s, http.MethodGet, "/api/stats/llm", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Model string          `json:"model"`
		Stats json.RawMessage `json:"stats"`
	}
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Model != "gpt-test" || len(resp.Stats) == 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRenderHTML_EscapesTitle(t *testing.T) {
	page, err := renderHTML("a <b> & c", "# Hi")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "<title>a &lt;b&gt; &amp; c</title>") {
		t.Errorf("page = %s", page)
	}
}
