package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriber/internal/api"
)

func TestIsRemoteSource(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"https://example.com/talk.mp3", true},
		{"HTTP://example.com/talk.mp3", true},
		{"/home/user/talk.mp3", false},
		{"talk.mp3", false},
		{"ftp://example.com/talk.mp3", false},
	}
	for _, tc := range cases {
		if got := isRemoteSource(tc.value); got != tc.want {
			t.Errorf("isRemoteSource(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestProgressCell(t *testing.T) {
	cases := []struct {
		name string
		job  api.JobView
		want string
	}{
		{"done", api.JobView{Status: "done"}, "100%"},
		{"pending", api.JobView{Status: "pending"}, "-"},
		{"failed", api.JobView{Status: "failed"}, "-"},
		{
			"transcribing",
			api.JobView{Status: "transcribing", Progress: api.JobProgress{Stage: "transcribing", Percent: 42.4}},
			"42%",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := progressCell(tc.job); got != tc.want {
				t.Fatalf("progressCell = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID = %q", got)
	}
}

func TestRenderTableIncludesHeadersAndRows(t *testing.T) {
	rendered := renderTable(
		[]string{"ID", "Status"},
		[][]string{{"01234567", "pending"}},
		[]columnAlignment{alignLeft, alignLeft},
	)
	if !strings.Contains(rendered, "ID") || !strings.Contains(rendered, "pending") {
		t.Fatalf("unexpected table output:\n%s", rendered)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(content), "[paths]") {
		t.Fatalf("sample missing paths section:\n%s", content)
	}
}

func TestSubmitRejectsUploadOfURL(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"submit", "--upload", "https://example.com/talk.mp3"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("submit --upload accepted a URL")
	}
}

func TestSubtitleSibling(t *testing.T) {
	got := subtitleSibling("/media/talk.mp4", "local", "/var/lib/scriber/results/abc.srt")
	if got != "/media/talk.srt" {
		t.Fatalf("local sibling = %q", got)
	}
	got = subtitleSibling("https://example.com/talk.mp3", "url", "/var/lib/scriber/results/abc.vtt")
	if got != "abc.vtt" {
		t.Fatalf("remote sibling = %q", got)
	}
}
