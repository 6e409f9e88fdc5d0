package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeNameChr = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// maxFileNameLen bounds names derived from user uploads
const maxFileNameLen = 100

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizeFileName reduces an uploaded file name to a safe base name.
// Returns fallback when nothing usable remains.
func SanitizeFileName(name, fallback string) string {
	name = filepath.Base(strings.ReplaceAll(SanitizeString(name), `\`, "/"))
	name = unsafeNameChr.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return fallback
	}
	if len(name) > maxFileNameLen {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxFileNameLen-len(ext)] + ext
	}
	return name
}

// ValidateUploadSize checks an upload is non-empty and within limit bytes.
// A non-positive limit disables the upper bound.
func ValidateUploadSize(size, limit int64) error {
	if size <= 0 {
		return fmt.Errorf("upload is empty")
	}
	if limit > 0 && size > limit {
		return fmt.Errorf("upload exceeds maximum size: %d > %d bytes", size, limit)
	}
	return nil
}
