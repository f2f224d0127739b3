package importer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// entry is an archive member that passed validation.
type entry struct {
	file *zip.File
	rel  string // cleaned, slash-separated, relative to the album root
	dir  bool
}

// planExtraction validates every member before anything is written, so a
// single unsafe entry rejects the whole archive. macOS resource forks and
// hidden entries are dropped.
func planExtraction(files []*zip.File) ([]entry, error) {
	plan := make([]entry, 0, len(files))
	for _, f := range files {
		rel, err := entryPath(f.Name)
		if err != nil {
			return nil, err
		}
		if f.Mode()&fs.ModeSymlink != 0 {
			return nil, fmt.Errorf("%w: %q is a symbolic link", ErrUnsafeArchiveEntry, f.Name)
		}
		if rel == "" || skipEntry(rel) {
			continue
		}
		plan = append(plan, entry{file: f, rel: rel, dir: f.FileInfo().IsDir()})
	}
	return plan, nil
}

// entryPath cleans a member name and rejects names that are absolute or
// climb out of the extraction root.
func entryPath(name string) (string, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if strings.ContainsRune(slashed, 0) ||
		strings.HasPrefix(slashed, "/") ||
		(len(slashed) >= 2 && slashed[1] == ':') {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchiveEntry, name)
	}

	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafeArchiveEntry, name)
		}
	}

	clean := path.Clean(slashed)
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

func skipEntry(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if seg == "__MACOSX" || strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// extract writes the planned entries below root.
func extract(plan []entry, root string) error {
	for _, e := range plan {
		target := filepath.Join(root, filepath.FromSlash(e.rel))
		if !within(root, target) {
			return fmt.Errorf("%w: %q", ErrUnsafeArchiveEntry, e.file.Name)
		}

		if e.dir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: %w", ErrExtraction, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		if err := extractFile(e.file, target); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrExtraction, e.rel, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
