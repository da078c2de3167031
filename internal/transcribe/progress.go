package transcribe

import (
	"regexp"
	"strconv"
	"strings"
)

// The CLI's verbose mode prints one line per decoded segment:
//
//	[04:10.500 --> 04:13.240]  some text
//	[1:04:10.500 --> 1:04:13.240]  some text
//
// The end timestamp against the known audio duration is the progress
// estimate.
var segmentLinePattern = regexp.MustCompile(`^\[(?:\d+:)?\d{2}:\d{2}\.\d{3} --> ((?:\d+:)?\d{2}:\d{2}\.\d{3})\]`)

func parseSegmentEnd(line string) (float64, bool) {
	match := segmentLinePattern.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return 0, false
	}
	return parseTimestamp(match[1])
}

func parseTimestamp(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total float64
	for _, part := range parts {
		parsed, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, false
		}
		total = total*60 + parsed
	}
	return total, true
}
