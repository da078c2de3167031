package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriber/internal/api"
	"scriber/internal/config"
	"scriber/internal/queue"
	"scriber/internal/testsupport"
	"scriber/internal/workflow"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*httptest.Server, *queue.Store, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	store := testsupport.MustOpenStore(t, cfg)
	wf := workflow.NewManager(cfg, store, nil)
	d, err := New(cfg, store, nil, wf)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ts := httptest.NewServer(d.api.server.Handler)
	t.Cleanup(ts.Close)
	return ts, store, cfg
}

func newTestClient(t *testing.T, ts *httptest.Server, token string) *api.Client {
	t.Helper()

	client := api.NewClient(ts.URL, token)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAPIJobLifecycle(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	client := newTestClient(t, ts, "")
	ctx := context.Background()

	submitted, err := client.Submit(ctx, api.SubmitRequest{
		SourceKind: "local",
		Source:     "/tmp/talk.mp4",
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if submitted.ID == "" || submitted.Status != "pending" {
		t.Fatalf("unexpected submission: %+v", submitted)
	}

	jobs, err := client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != submitted.ID {
		t.Fatalf("unexpected list: %+v", jobs)
	}

	fetched, err := client.Get(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Language != "en" {
		t.Fatalf("language = %q", fetched.Language)
	}

	cancelled, err := client.Cancel(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("cancel not accepted for pending job")
	}

	deleted, err := client.Delete(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("delete reported nothing removed")
	}
	if _, err := client.Get(ctx, submitted.ID); err == nil {
		t.Fatal("Get succeeded after delete")
	}
}

func TestAPISubmitRejectsBadRequest(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	client := newTestClient(t, ts, "")

	if _, err := client.Submit(context.Background(), api.SubmitRequest{
		SourceKind: "local",
		Source:     "/tmp/talk.mp4",
		Format:     "ass",
	}); err == nil {
		t.Fatal("Submit succeeded with unsupported format")
	}
}

func TestAPIUploadCreatesJob(t *testing.T) {
	ts, store, cfg := newTestServer(t, nil)
	client := newTestClient(t, ts, "")

	source := filepath.Join(t.TempDir(), "talk.mp3")
	testsupport.WriteFile(t, source, 512)

	view, err := client.SubmitUpload(context.Background(), source, api.SubmitRequest{Format: "vtt"})
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	if view.SourceKind != "upload" {
		t.Fatalf("source kind = %q", view.SourceKind)
	}
	if view.Format != "vtt" {
		t.Fatalf("format = %q", view.Format)
	}
	if !strings.HasPrefix(view.Source, cfg.Paths.UploadDir) {
		t.Fatalf("upload stored outside upload dir: %q", view.Source)
	}
	if _, err := os.Stat(view.Source); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	stored, err := store.GetByID(context.Background(), view.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: job=%v err=%v", stored, err)
	}
}

func TestAPIUploadRejectsUnknownExtension(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	client := newTestClient(t, ts, "")

	source := filepath.Join(t.TempDir(), "notes.txt")
	testsupport.WriteFile(t, source, 64)

	if _, err := client.SubmitUpload(context.Background(), source, api.SubmitRequest{}); err == nil {
		t.Fatal("SubmitUpload accepted unsupported extension")
	}
}

func TestAPIResultDownload(t *testing.T) {
	ts, store, cfg := newTestServer(t, nil)
	client := newTestClient(t, ts, "")
	ctx := context.Background()

	job := testsupport.NewJob(t, store, queue.SourceLocal, "/tmp/talk.mp4")

	// No result while pending.
	if err := client.Result(ctx, job.ID, filepath.Join(t.TempDir(), "early.srt")); err == nil {
		t.Fatal("Result succeeded before completion")
	}

	resultPath := filepath.Join(cfg.Paths.ResultsDir, job.ID+".srt")
	if err := os.WriteFile(resultPath, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"), 0o644); err != nil {
		t.Fatalf("write result: %v", err)
	}
	job.Status = queue.StatusDone
	job.ResultPath = resultPath
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out.srt")
	if err := client.Result(ctx, job.ID, dest); err != nil {
		t.Fatalf("Result: %v", err)
	}
	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if !strings.Contains(string(content), "00:00:00,000 --> 00:00:01,000") {
		t.Fatalf("unexpected download: %q", content)
	}
}

func TestAPIBearerTokenRequired(t *testing.T) {
	ts, _, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "sekrit"
	})

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	client := newTestClient(t, ts, "sekrit")
	if _, err := client.Status(context.Background()); err != nil {
		t.Fatalf("Status with token: %v", err)
	}
}

func TestAPIStatusReportsQueueStats(t *testing.T) {
	ts, store, _ := newTestServer(t, nil)
	client := newTestClient(t, ts, "")

	testsupport.NewJob(t, store, queue.SourceLocal, "/tmp/a.mp4")
	testsupport.NewJob(t, store, queue.SourceLocal, "/tmp/b.mp4")

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Workflow.QueueStats["pending"] != 2 {
		t.Fatalf("pending = %d, want 2", status.Workflow.QueueStats["pending"])
	}
	if status.PID == 0 {
		t.Fatal("missing pid")
	}
}
