package blobstore

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Stored blob names are <13-digit unix millis><8 hex chars>-<original name>.
// The prefix is fixed width, so the display name is everything after byte
// PrefixWidth+1 regardless of what the original name contains.
const (
	prefixTimeWidth = 13
	prefixRandWidth = 8
	PrefixWidth     = prefixTimeWidth + prefixRandWidth
	Separator       = '-'

	fallbackFilename  = "upload"
	maxFilenameLength = 200
)

// EncodeName builds a stored blob name for original at now.
func EncodeName(now time.Time, original string) string {
	id := uuid.New()
	return fmt.Sprintf("%0*d%s%c%s", prefixTimeWidth, now.UnixMilli(), hex.EncodeToString(id[:prefixRandWidth/2]), Separator, SanitizeFilename(original))
}

// DisplayName recovers the original filename from a stored blob name.
func DisplayName(stored string) (string, bool) {
	stored = filepath.Base(stored)
	if len(stored) <= PrefixWidth+1 || stored[PrefixWidth] != Separator {
		return "", false
	}
	for i := 0; i < prefixTimeWidth; i++ {
		if stored[i] < '0' || stored[i] > '9' {
			return "", false
		}
	}
	for i := prefixTimeWidth; i < PrefixWidth; i++ {
		c := stored[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", false
		}
	}
	return stored[PrefixWidth+1:], true
}

// DisplayNameOr returns the recovered display name, or stored itself when it
// does not carry a prefix.
func DisplayNameOr(stored string) string {
	if name, ok := DisplayName(stored); ok {
		return name
	}
	return filepath.Base(stored)
}

// SanitizeFilename reduces a client supplied filename to its last path
// element without control characters. Leading dots and spaces are kept.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return fallbackFilename
	}
	if len(name) > maxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = truncateUTF8(name, maxFilenameLength-len(ext)) + ext
	}
	return name
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
