package util

import (
	"errors"
	"strings"
	"unicode"
)

const maxFileNameBytes = 200

// ErrInvalidFileName is returned for names that are empty or attempt traversal.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens path separators, drops control characters and
// rejects traversal patterns. Long names keep their tail so the extension
// survives.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if s == "" {
		return "", ErrInvalidFileName
	}
	if len(s) > maxFileNameBytes {
		s = strings.ToValidUTF8(s[len(s)-maxFileNameBytes:], "")
	}
	return s, nil
}
