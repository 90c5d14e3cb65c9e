package util

import (
	"errors"
	"strings"
)

// SanitizeFileName rejects traversal patterns and rewrites separators and
// whitespace so the name is safe inside a storage key. Camera uploads
// regularly arrive with spaces in the name.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.Join(strings.Fields(s), "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}
