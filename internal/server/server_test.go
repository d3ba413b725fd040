package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"daystart/internal/cleanup"
	"daystart/internal/config"
	"daystart/internal/logging"
	"daystart/internal/queue"
	"daystart/internal/server"
	"daystart/internal/testsupport"
)

type stubProcessor struct {
	mu      sync.Mutex
	summary queue.BatchSummary
	calls   int
	ran     chan context.Context
}

func (s *stubProcessor) ProcessBatch(ctx context.Context, max int) (queue.BatchSummary, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case s.ran <- ctx:
	default:
	}
	return s.summary, nil
}

func (s *stubProcessor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubRefresher struct {
	results map[string]error
}

func (s *stubRefresher) RefreshAll(ctx context.Context, types ...string) map[string]error {
	return s.results
}

func (s *stubRefresher) ContentTypes() []string {
	types := make([]string, 0, len(s.results))
	for contentType := range s.results {
		types = append(types, contentType)
	}
	return types
}

type stubSweeper struct {
	report cleanup.Report
}

func (s *stubSweeper) Sweep(ctx context.Context) (cleanup.Report, error) {
	return s.report, nil
}

type harness struct {
	cfg       *config.Config
	store     *queue.Store
	processor *stubProcessor
	ts        *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	processor := &stubProcessor{
		summary: queue.BatchSummary{Claimed: 2, Completed: 2},
		ran:     make(chan context.Context, 1),
	}
	refresher := &stubRefresher{results: map[string]error{"news": nil}}
	sweeper := &stubSweeper{report: cleanup.Report{FilesDeleted: 3}}

	srv := server.New(cfg, store, processor, refresher, sweeper, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{cfg: cfg, store: store, processor: processor, ts: ts}
}

func (h *harness) createJob(t *testing.T, identity string, body map[string]any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/api/jobs", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("X-Client-Info", identity)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func validJobBody() map[string]any {
	return map[string]any{
		"local_date":      "2026-03-02",
		"scheduled_at":    time.Now().UTC().Format(time.RFC3339),
		"timezone":        "America/Chicago",
		"preferred_name":  "Taylor",
		"voice_option":    "morning_calm",
		"daystart_length": 3,
		"include_news":    true,
	}
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateJobReturnsCreated(t *testing.T) {
	h := newHarness(t)

	resp := h.createJob(t, "purchased:token-1", validJobBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var body struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &body)
	if body.JobID == "" || body.Status != "queued" {
		t.Fatalf("unexpected response: %#v", body)
	}

	job, err := h.store.GetByPublicID(context.Background(), body.JobID)
	if err != nil || job == nil {
		t.Fatalf("expected persisted job: %v", err)
	}
	if job.Tier != queue.TierPurchased {
		t.Fatalf("expected purchased tier, got %s", job.Tier)
	}
}

func TestCreateJobRequiresIdentityHeader(t *testing.T) {
	h := newHarness(t)

	resp := h.createJob(t, "", validJobBody())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateJobRejectsInvalidFields(t *testing.T) {
	h := newHarness(t)

	body := validJobBody()
	body["timezone"] = "Not/AZone"
	resp := h.createJob(t, "token-2", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateJobAnonymousLengthCap(t *testing.T) {
	h := newHarness(t)

	body := validJobBody()
	body["daystart_length"] = h.cfg.Jobs.MaxAnonymousMinutes + 1
	resp := h.createJob(t, "token-anon", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for anonymous over cap, got %d", resp.StatusCode)
	}
}

func TestCreateJobDuplicateConflict(t *testing.T) {
	h := newHarness(t)

	first := h.createJob(t, "purchased:token-3", validJobBody())
	first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}

	second := h.createJob(t, "purchased:token-3", validJobBody())
	defer second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", second.StatusCode)
	}
}

func TestJobStatusLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, h.store, "identity-status", "2026-03-02")

	resp, err := http.Get(h.ts.URL + "/api/jobs/status?job_id=" + job.PublicID)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	var status struct {
		Status   string `json:"status"`
		AudioURL string `json:"audio_url"`
	}
	decodeBody(t, resp, &status)
	if status.Status != "queued" || status.AudioURL != "" {
		t.Fatalf("unexpected queued response: %#v", status)
	}

	artifact := filepath.Join(h.cfg.Paths.AudioDir, job.PublicID+".mp3")
	testsupport.WriteFile(t, artifact, 32)
	if _, err := h.store.Claim(ctx, "worker-test", 1); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := h.store.Complete(ctx, "worker-test", job.ID, artifact, 95); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	resp, err = http.Get(h.ts.URL + "/api/jobs/status?job_id=" + job.PublicID)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	var done struct {
		Status          string  `json:"status"`
		AudioURL        string  `json:"audio_url"`
		DurationSeconds float64 `json:"duration_seconds"`
	}
	decodeBody(t, resp, &done)
	if done.Status != "completed" || done.AudioURL != "/api/audio/"+job.PublicID || done.DurationSeconds != 95 {
		t.Fatalf("unexpected completed response: %#v", done)
	}
}

func TestJobStatusUnknownJob(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.ts.URL + "/api/jobs/status?job_id=no-such-job")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAudioServesCompletedArtifact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, h.store, "identity-audio", "2026-03-02")
	artifact := filepath.Join(h.cfg.Paths.AudioDir, job.PublicID+".mp3")
	if err := os.MkdirAll(h.cfg.Paths.AudioDir, 0o755); err != nil {
		t.Fatalf("mkdir audio dir: %v", err)
	}
	if err := os.WriteFile(artifact, []byte("mp3-bytes"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if _, err := h.store.Claim(ctx, "worker-test", 1); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := h.store.Complete(ctx, "worker-test", job.ID, artifact, 60); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	resp, err := http.Get(h.ts.URL + "/api/audio/" + job.PublicID)
	if err != nil {
		t.Fatalf("audio request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestAudioRejectsIncompleteJob(t *testing.T) {
	h := newHarness(t)

	job := testsupport.NewJob(t, h.store, "identity-pending", "2026-03-02")
	resp, err := http.Get(h.ts.URL + "/api/audio/" + job.PublicID)
	if err != nil {
		t.Fatalf("audio request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for queued job, got %d", resp.StatusCode)
	}
}

func TestProcessRequiresWorkerToken(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Post(h.ts.URL+"/api/jobs/process", "application/json", nil)
	if err != nil {
		t.Fatalf("process request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if h.processor.callCount() != 0 {
		t.Fatal("processor must not run unauthorized")
	}

	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/api/jobs/process", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.WorkerToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("process request failed: %v", err)
	}
	var body struct {
		Status   string `json:"status"`
		BatchMax int    `json:"batch_max"`
	}
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusAccepted || body.Status != "accepted" {
		t.Fatalf("unexpected process response: %d %#v", resp.StatusCode, body)
	}
	if body.BatchMax != h.cfg.Jobs.BatchSize {
		t.Fatalf("expected batch max %d, got %d", h.cfg.Jobs.BatchSize, body.BatchMax)
	}
}

func TestProcessRunsBatchDetachedFromRequest(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/api/jobs/process", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.WorkerToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("process request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var batchCtx context.Context
	select {
	case batchCtx = <-h.processor.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not run after accepted trigger")
	}

	// The request has completed; a batch context derived from it would be
	// cancelled by now.
	time.Sleep(20 * time.Millisecond)
	if err := batchCtx.Err(); err != nil {
		t.Fatalf("batch context cancelled with the request: %v", err)
	}
	if _, ok := batchCtx.Deadline(); !ok {
		t.Fatal("expected batch context to carry its own deadline")
	}
}

func TestCleanupRequiresAdminToken(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/api/cleanup", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.WorkerToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cleanup request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("worker token must not pass cleanup auth, got %d", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.AdminToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cleanup request failed: %v", err)
	}
	var report cleanup.Report
	decodeBody(t, resp, &report)
	if resp.StatusCode != http.StatusOK || report.FilesDeleted != 3 {
		t.Fatalf("unexpected cleanup response: %d %#v", resp.StatusCode, report)
	}
}

func TestRefreshReportsPerSourceResults(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/api/content/refresh", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.WorkerToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh request failed: %v", err)
	}
	var body struct {
		Results map[string]string `json:"results"`
	}
	decodeBody(t, resp, &body)
	if body.Results["news"] != "ok" {
		t.Fatalf("unexpected refresh response: %#v", body)
	}
}

func TestHealthzReportsQueueCounts(t *testing.T) {
	h := newHarness(t)

	testsupport.NewJob(t, h.store, "identity-health", "2026-03-02")

	resp, err := http.Get(h.ts.URL + "/api/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	var body struct {
		Healthy bool `json:"healthy"`
		Queued  int  `json:"queued"`
	}
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusOK || !body.Healthy || body.Queued != 1 {
		t.Fatalf("unexpected healthz response: %d %#v", resp.StatusCode, body)
	}
}

func TestCORSPreflightExposesIdentityHeader(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.ts.URL+"/api/jobs", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", resp.StatusCode)
	}
	allowed := resp.Header.Get("Access-Control-Allow-Headers")
	if !strings.Contains(allowed, "X-Client-Info") {
		t.Fatalf("identity header not allowed: %q", allowed)
	}
}
