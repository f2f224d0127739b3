package scanner

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"pichost/internal/filesystem"
	"pichost/internal/logging"
	"pichost/internal/mediatypes"
	"pichost/internal/sanitize"
)

// Entry is the catalog metadata derived for one image on disk.
type Entry struct {
	Album      string `json:"album_name"`
	Article    string `json:"article_number"`
	PublicLink string `json:"public_link"`
}

// Scan walks root and returns every allowed image keyed by its
// slash-separated path relative to root. Files with other extensions are
// skipped silently. Hidden entries (leading dot) are skipped, which keeps
// the upload staging area out of the catalog. Unreadable subtrees are
// logged and skipped; only a missing or unreadable root is an error.
func Scan(root, baseURL string) (map[string]Entry, error) {
	info, err := filesystem.StatWithRetry(root, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("upload root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("upload root %s is not a directory", root)
	}

	entries := make(map[string]Entry)

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			logging.Warn("Error accessing path %s: %v", p, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if p == root {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !mediatypes.IsAllowedImage(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		album, article := Derive(rel)
		entries[rel] = Entry{
			Album:      album,
			Article:    article,
			PublicLink: PublicLink(baseURL, rel),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	logging.Debug("Scanned %s: %d images", root, len(entries))
	return entries, nil
}

// Derive returns the album and article for a slash-separated relative path.
// The album is the first segment. The article is the second segment when the
// file sits in an article folder (album/article/file), otherwise the file's
// base name without extension. Both are sanitized.
func Derive(rel string) (album, article string) {
	parts := strings.Split(rel, "/")
	album = sanitize.Name(parts[0])

	if len(parts) >= 3 {
		return album, sanitize.Name(parts[1])
	}

	base := parts[len(parts)-1]
	return album, sanitize.Name(strings.TrimSuffix(base, path.Ext(base)))
}

// PublicLink builds the direct link for rel: baseURL + "/images/" + the
// percent-encoded path, with "/" left unescaped.
func PublicLink(baseURL, rel string) string {
	return strings.TrimRight(baseURL, "/") + "/images/" + EscapePath(rel)
}

// EscapePath percent-encodes every byte of p except unreserved characters
// (letters, digits, "-", ".", "_", "~") and "/".
func EscapePath(p string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}
