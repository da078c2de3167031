package media

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"scriber/internal/services"
)

// Type partitions recognized inputs into audio and video containers.
type Type string

const (
	TypeAudio Type = "audio"
	TypeVideo Type = "video"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".ogg":  {},
	".flac": {},
	".m4a":  {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".flv":  {},
	".wmv":  {},
}

// Classify maps a filename extension to its media type. The boolean is
// false for anything outside the recognized set.
func Classify(name string) (Type, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := audioExtensions[ext]; ok {
		return TypeAudio, true
	}
	if _, ok := videoExtensions[ext]; ok {
		return TypeVideo, true
	}
	return "", false
}

// ValidateExtension returns the lowercase extension when the name carries
// a recognized media extension, or an UnsupportedFormat error otherwise.
func ValidateExtension(stage, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := Classify(name); !ok {
		return "", services.Wrap(services.ErrUnsupportedFormat, stage, "validate extension",
			fmt.Sprintf("unsupported media extension %q", ext), nil)
	}
	return ext, nil
}

// ExtensionFromURL derives the media extension from a URL path, ignoring
// query and fragment. Empty when the path carries no extension.
func ExtensionFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(parsed.Path))
}
