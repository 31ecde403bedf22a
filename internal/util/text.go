package util

import "strings"

// SanitizeText drops invalid UTF-8 sequences and NUL bytes from text coming
// from uploads, so offsets computed on it stay valid.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
