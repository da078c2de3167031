package logging

import (
	"testing"
	"time"
)

func TestProgressSamplerEmitsOnStageChange(t *testing.T) {
	s := NewProgressSampler(5, 0)
	if !s.ShouldEmit(0, "transcribing") {
		t.Fatal("first stage should emit")
	}
	if s.ShouldEmit(0, "transcribing") {
		t.Fatal("repeat of same stage and bucket should not emit")
	}
	if !s.ShouldEmit(0, "formatting") {
		t.Fatal("stage change should emit")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10, 0)
	s.ShouldEmit(0, "transcribing")

	cases := []struct {
		percent float64
		want    bool
	}{
		{3, false},
		{9.9, false},
		{10, true},
		{12, false},
		{34, true},
		{33, false},
		{100, true},
	}
	for _, tc := range cases {
		if got := s.ShouldEmit(tc.percent, "transcribing"); got != tc.want {
			t.Fatalf("percent %.1f: got %v, want %v", tc.percent, got, tc.want)
		}
	}
}

func TestProgressSamplerMinInterval(t *testing.T) {
	current := time.Unix(1000, 0)
	s := NewProgressSampler(5, time.Second)
	s.now = func() time.Time { return current }

	s.ShouldEmit(0, "transcribing")
	if s.ShouldEmit(20, "transcribing") {
		t.Fatal("expected time gate to suppress emission")
	}
	current = current.Add(2 * time.Second)
	if !s.ShouldEmit(20, "transcribing") {
		t.Fatal("expected emission after interval elapsed")
	}
}

func TestProgressSamplerHundredPercentBypassesTimeGate(t *testing.T) {
	current := time.Unix(1000, 0)
	s := NewProgressSampler(5, time.Minute)
	s.now = func() time.Time { return current }

	s.ShouldEmit(0, "transcribing")
	if !s.ShouldEmit(100, "transcribing") {
		t.Fatal("completion should always emit")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(5, 0)
	s.ShouldEmit(0, "extracting")
	if s.ShouldEmit(-1, "extracting") {
		t.Fatal("unknown percent within a stage should not emit")
	}
}
