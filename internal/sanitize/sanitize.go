package sanitize

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// Unnamed is returned when nothing usable survives sanitization.
	Unnamed = "unnamed"

	// MaxLength is the filesystem component limit, counted in runes.
	MaxLength = 255
)

// Name converts an arbitrary user-supplied string into a folder/file name
// fragment that is safe on common filesystems.
//
// The input is NFKD-normalized, everything except letters, numbers,
// underscores, whitespace and hyphens is dropped, runs of whitespace and
// hyphens collapse into a single underscore, and leading/trailing
// separators are trimmed. Name is idempotent.
func Name(raw string) string {
	if raw == "" {
		return Unnamed
	}

	decomposed := norm.NFKD.String(raw)

	var b strings.Builder
	b.Grow(len(decomposed))

	inSeparator := false
	for _, r := range decomposed {
		switch {
		case r == '-' || unicode.IsSpace(r):
			if !inSeparator {
				b.WriteRune('_')
				inSeparator = true
			}
		case r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			inSeparator = false
		}
	}

	name := trimSeparators(b.String())

	if runes := []rune(name); len(runes) > MaxLength {
		name = trimSeparators(string(runes[:MaxLength]))
	}

	if name == "" {
		return Unnamed
	}
	return name
}

// ArchiveBase derives an album name from an archive file name such as
// "My Shoes.zip".
func ArchiveBase(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return Unnamed
	}
	return Name(strings.TrimSuffix(base, filepath.Ext(base)))
}

func trimSeparators(s string) string {
	return strings.Trim(s, "-_")
}
