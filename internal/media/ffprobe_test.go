package media

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	first, ok := result.FirstAudioStream()
	if !ok || first.CodecName != "aac" {
		t.Fatalf("unexpected first audio stream: %#v", first)
	}
}

func TestDurationHandlesInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected 0 for unparseable duration, got %v", result.DurationSeconds())
	}
}

func TestIsNormalizedAudio(t *testing.T) {
	normalized := Result{
		Streams: []Stream{
			{CodecType: "audio", CodecName: "pcm_s16le", Channels: 1, SampleRate: "16000"},
		},
		Format: Format{FormatName: "wav"},
	}
	if !normalized.IsNormalizedAudio() {
		t.Fatal("expected mono 16kHz wav to be normalized")
	}

	tests := []struct {
		name   string
		result Result
	}{
		{"stereo", Result{
			Streams: []Stream{{CodecType: "audio", CodecName: "pcm_s16le", Channels: 2, SampleRate: "16000"}},
			Format:  Format{FormatName: "wav"},
		}},
		{"wrong rate", Result{
			Streams: []Stream{{CodecType: "audio", CodecName: "pcm_s16le", Channels: 1, SampleRate: "44100"}},
			Format:  Format{FormatName: "wav"},
		}},
		{"mp3 container", Result{
			Streams: []Stream{{CodecType: "audio", CodecName: "mp3", Channels: 1, SampleRate: "16000"}},
			Format:  Format{FormatName: "mp3"},
		}},
		{"has video", Result{
			Streams: []Stream{
				{CodecType: "video"},
				{CodecType: "audio", CodecName: "pcm_s16le", Channels: 1, SampleRate: "16000"},
			},
			Format: Format{FormatName: "wav"},
		}},
	}
	for _, tc := range tests {
		if tc.result.IsNormalizedAudio() {
			t.Errorf("%s: expected not normalized", tc.name)
		}
	}
}
