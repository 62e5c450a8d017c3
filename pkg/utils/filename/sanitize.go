// Package filename turns client supplied upload names into safe on-disk names.
package filename

import (
	"path/filepath"
	"regexp"
	"strings"
)

// invalidCharsRe matches characters not safe for filenames across all major OSes.
var invalidCharsRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// multiDash collapses runs of dashes/underscores.
var multiDash = regexp.MustCompile(`[-_]{2,}`)

// extRe limits extensions to short alphanumerics (".mp4", ".mkv").
var extRe = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// Sanitize converts an arbitrary string into a filename-safe slug. Leading and
// trailing dashes and dots are stripped and the result is truncated to maxLen
// bytes (120 when maxLen <= 0).
func Sanitize(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 120
	}

	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}

	s = invalidCharsRe.ReplaceAllString(s, "-")
	s = strings.Join(strings.Fields(s), "-")
	s = multiDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-.")
	}
	return s
}

// ForUpload sanitizes an uploaded file's base name while keeping a plausible
// extension. Directory components sent by the client are discarded. An empty
// stem becomes "upload".
func ForUpload(original string) string {
	base := original
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if !extRe.MatchString(ext) {
		ext = ""
		stem = base
	}

	stem = Sanitize(stem, 100)
	if stem == "" {
		stem = "upload"
	}
	return stem + ext
}
