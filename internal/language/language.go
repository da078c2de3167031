package language

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"scriber/internal/services"
)

// nameIndex maps lowercase English language names to their base codes,
// built lazily from the x/text display tables the first time a name
// lookup is needed. Built under nameIndexOnce; Normalize is called
// concurrently from the API handlers.
var (
	nameIndex     map[string]string
	nameIndexOnce sync.Once
)

func buildNameIndex() map[string]string {
	idx := make(map[string]string, len(display.Supported.Tags()))
	namer := display.English.Languages()
	for _, tag := range display.Supported.Tags() {
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		name := strings.ToLower(namer.Name(tag))
		if name == "" {
			continue
		}
		if _, exists := idx[name]; !exists {
			idx[name] = base.String()
		}
	}
	return idx
}

// Normalize converts a language hint to an ISO 639-1 code. Empty input
// stays empty, meaning auto-detect. Unrecognized input is an error so a
// typo fails at submission time rather than surfacing as a silently
// wrong transcript.
func Normalize(value string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	if tag, err := language.Parse(trimmed); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String(), nil
		}
	}
	nameIndexOnce.Do(func() {
		nameIndex = buildNameIndex()
	})
	if code, ok := nameIndex[trimmed]; ok {
		return code, nil
	}
	return "", services.Wrap(services.ErrUnsupportedFormat, "submit", "normalize language",
		fmt.Sprintf("unrecognized language %q", value), nil)
}

// Display returns the English name for a normalized code, or the code
// itself when the tables have nothing better.
func Display(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
