package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"scriber/internal/queue"
	"scriber/internal/testsupport"
)

func newService(t *testing.T) (*JobService, *queue.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return NewJobService(cfg, store), store
}

func TestSubmitFillsDefaultsFromConfig(t *testing.T) {
	svc, store := newService(t)

	view, err := svc.Submit(context.Background(), SubmitRequest{
		SourceKind: "local",
		Source:     "/tmp/talk.mp4",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view.Status != string(queue.StatusPending) {
		t.Fatalf("status = %q, want pending", view.Status)
	}
	if view.Model != "base" || view.Format != "srt" || view.Device != "auto" {
		t.Fatalf("defaults not applied: %+v", view)
	}

	stored, err := store.GetByID(context.Background(), view.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: job=%v err=%v", stored, err)
	}
}

func TestSubmitNormalizesLanguage(t *testing.T) {
	svc, _ := newService(t)

	view, err := svc.Submit(context.Background(), SubmitRequest{
		SourceKind: "local",
		Source:     "/tmp/talk.mp4",
		Language:   "German",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view.Language != "de" {
		t.Fatalf("language = %q, want de", view.Language)
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	svc, _ := newService(t)

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"empty source", SubmitRequest{SourceKind: "local"}},
		{"bad kind", SubmitRequest{SourceKind: "ftp", Source: "/tmp/a.mp4"}},
		{"bad format", SubmitRequest{SourceKind: "local", Source: "/tmp/a.mp4", Format: "ass"}},
		{"bad device", SubmitRequest{SourceKind: "local", Source: "/tmp/a.mp4", Device: "tpu"}},
		{"bad language", SubmitRequest{SourceKind: "local", Source: "/tmp/a.mp4", Language: "zzzz"}},
		{"negative line length", SubmitRequest{SourceKind: "local", Source: "/tmp/a.mp4", MaxLineLength: -3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Submit(context.Background(), tc.req); err == nil {
				t.Fatal("Submit succeeded, want error")
			}
		})
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	svc, store := newService(t)

	first := testsupport.NewJob(t, store, queue.SourceLocal, "/tmp/a.mp4")
	time.Sleep(5 * time.Millisecond)
	second := testsupport.NewJob(t, store, queue.SourceLocal, "/tmp/b.mp4")

	views, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if views[0].ID != second.ID || views[1].ID != first.ID {
		t.Fatalf("order = [%s %s], want newest first", views[0].ID, views[1].ID)
	}
}

func TestDeleteRemovesRecordAndArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := NewJobService(cfg, store)

	job := testsupport.NewJob(t, store, queue.SourceLocal, "/tmp/a.mp4")
	resultPath := filepath.Join(cfg.Paths.ResultsDir, job.ID+".srt")
	testsupport.WriteFile(t, resultPath, 64)
	stagingDir := filepath.Join(cfg.Paths.StagingDir, job.ID)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	job.Status = queue.StatusDone
	job.ResultPath = resultPath
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	deleted, err := svc.Delete(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("Delete reported nothing removed")
	}
	if _, err := os.Stat(resultPath); !os.IsNotExist(err) {
		t.Fatalf("result file survived delete: %v", err)
	}
	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Fatalf("staging dir survived delete: %v", err)
	}
	remaining, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if remaining != nil {
		t.Fatal("record survived delete")
	}
}

func TestDeleteRemovesUploadedSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := NewJobService(cfg, store)

	// Upload directories are keyed by a handle of their own, not the
	// job id.
	uploadDir := filepath.Join(cfg.Paths.UploadDir, uuid.NewString())
	uploaded := filepath.Join(uploadDir, "talk.mp3")
	testsupport.WriteFile(t, uploaded, 64)
	job := testsupport.NewJob(t, store, queue.SourceUpload, uploaded)

	deleted, err := svc.Delete(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("Delete reported nothing removed")
	}
	if _, err := os.Stat(uploadDir); !os.IsNotExist(err) {
		t.Fatalf("upload dir survived delete: %v", err)
	}
}

func TestUploadedSourceDirRejectsOutsidePaths(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"/uploads/abc/talk.mp3", "/uploads/abc"},
		{"/uploads/abc/nested/talk.mp3", "/uploads/abc/nested"},
		{"/uploads/talk.mp3", ""},
		{"/elsewhere/abc/talk.mp3", ""},
		{"/uploads/../etc/talk.mp3", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := uploadedSourceDir("/uploads", tc.source); got != tc.want {
			t.Errorf("uploadedSourceDir(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestDeleteUnknownJob(t *testing.T) {
	svc, _ := newService(t)

	deleted, err := svc.Delete(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Fatal("Delete reported removal of unknown job")
	}
}

func TestStatsIncludesAllStatuses(t *testing.T) {
	svc, store := newService(t)
	testsupport.NewJob(t, store, queue.SourceLocal, "/tmp/a.mp4")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 {
		t.Fatalf("pending = %d, want 1", stats["pending"])
	}
	if _, ok := stats["done"]; !ok {
		t.Fatal("stats missing zero-count status")
	}
}
