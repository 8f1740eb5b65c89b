// Package sanitize maps free-text titles and asset URLs onto names the
// destination platform accepts. All functions are deterministic: the folder
// cache relies on equal titles producing equal names.
package sanitize

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	// DefaultMaxNameLength matches the destination's folder name limit.
	DefaultMaxNameLength = 100

	// Placeholder is returned when sanitization leaves nothing usable.
	Placeholder = "Untitled"
)

var (
	illegalChars    = regexp.MustCompile(`[<>:"/\\|?*]`)
	nonNameChars    = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	underscoreChars = regexp.MustCompile(`[\s]+`)
)

// Name turns a record title into a folder/API-safe display name of at most
// max runes. Truncation avoids splitting mid-word when a word boundary exists
// in the second half of the allowance.
func Name(title string, max int) string {
	if max <= 0 {
		max = DefaultMaxNameLength
	}
	s := illegalChars.ReplaceAllString(title, " ")
	s = nonNameChars.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return Placeholder
	}
	runes := []rune(s)
	if len(runes) > max {
		runes = runes[:max]
		// Rune positions throughout: a byte index would misplace the boundary
		// for multibyte titles.
		cut := -1
		for i := len(runes) - 1; i >= 0; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		if cut > max/2 {
			runes = runes[:cut]
		}
		s = strings.TrimSpace(string(runes))
		if s == "" {
			return Placeholder
		}
	}
	return s
}

// FilenamePrefix derives a short underscore-joined prefix from a title, used
// to keep asset filenames unique across records sharing a folder.
func FilenamePrefix(title string, max int) string {
	s := Name(title, max)
	return underscoreChars.ReplaceAllString(s, "_")
}

// Filename extracts a filename from an asset URL. URLs without a usable
// basename get a stable hash-derived name so repeated runs pick the same one.
func Filename(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
			return base
		}
	}
	sum := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("asset_%x.jpg", sum[:4])
}
