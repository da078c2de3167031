package subtitle

import (
	"fmt"
	"math"
	"strings"

	"scriber/internal/services"
)

const formatStage = "formatting"

// Segment is one cue's worth of transcript.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Format identifies a subtitle document flavor.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat validates a format string from config or job options.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	}
	return "", services.Wrap(services.ErrUnsupportedFormat, formatStage, "parse format",
		fmt.Sprintf("unknown subtitle format %q", value), nil)
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	return "." + string(f)
}

// Render produces the subtitle document. maxLineLength of 0 disables
// wrapping. Segments with empty text are dropped; end times at or
// before their start are stretched to start plus one millisecond.
func Render(format Format, segments []Segment, maxLineLength int) (string, error) {
	switch format {
	case FormatSRT, FormatVTT:
	default:
		return "", services.Wrap(services.ErrUnsupportedFormat, formatStage, "render",
			fmt.Sprintf("unknown subtitle format %q", format), nil)
	}

	var b strings.Builder
	if format == FormatVTT {
		b.WriteString("WEBVTT\n\n")
	}

	index := 0
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		index++

		startMS := toMilliseconds(segment.Start)
		endMS := toMilliseconds(segment.End)
		if endMS <= startMS {
			endMS = startMS + 1
		}

		if format == FormatSRT {
			fmt.Fprintf(&b, "%d\n", index)
			fmt.Fprintf(&b, "%s --> %s\n", renderTimestamp(startMS, ','), renderTimestamp(endMS, ','))
		} else {
			fmt.Fprintf(&b, "%s --> %s\n", renderTimestamp(startMS, '.'), renderTimestamp(endMS, '.'))
		}
		for _, line := range wrapText(text, maxLineLength) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	return b.String(), nil
}

func toMilliseconds(seconds float64) int64 {
	if seconds < 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

func renderTimestamp(ms int64, msSeparator byte) string {
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, msSeparator, millis)
}
