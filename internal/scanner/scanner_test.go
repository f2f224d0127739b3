package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		rel         string
		wantAlbum   string
		wantArticle string
	}{
		{"Shoes/A100/1.jpg", "Shoes", "A100"},
		{"Shoes/A100/deep/2.png", "Shoes", "A100"},
		{"Shoes/cover.jpg", "Shoes", "cover"},
		{"My Album/red shoe.webp", "My_Album", "red_shoe"},
		{"a:b/c*d/e.gif", "a_b", "c_d"},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			album, article := Derive(tt.rel)
			if album != tt.wantAlbum || article != tt.wantArticle {
				t.Errorf("Derive(%q) = (%q, %q), want (%q, %q)",
					tt.rel, album, article, tt.wantAlbum, tt.wantArticle)
			}
		})
	}
}

func TestEscapePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Shoes/A100/1.jpg", "Shoes/A100/1.jpg"},
		{"a b/c.jpg", "a%20b/c.jpg"},
		{"x~y-z_w.png", "x~y-z_w.png"},
		{"q?&#.jpg", "q%3F%26%23.jpg"},
		{"обувь/1.jpg", "%D0%BE%D0%B1%D1%83%D0%B2%D1%8C/1.jpg"},
		{"a+b.jpg", "a%2Bb.jpg"},
	}

	for _, tt := range tests {
		if got := EscapePath(tt.in); got != tt.want {
			t.Errorf("EscapePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPublicLink(t *testing.T) {
	got := PublicLink("https://example.com/", "My Album/1/a b.jpg")
	want := "https://example.com/images/My%20Album/1/a%20b.jpg"
	if got != want {
		t.Errorf("PublicLink() = %q, want %q", got, want)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Shoes/A100/1.jpg")
	writeFile(t, root, "Shoes/A100/2.PNG")
	writeFile(t, root, "Shoes/cover.jpg")
	writeFile(t, root, "Shoes/A100/notes.txt")
	writeFile(t, root, "loose.jpg")
	writeFile(t, root, ".staging/upload-1/x.jpg")
	writeFile(t, root, "Shoes/.hidden.jpg")

	entries, err := Scan(root, "https://example.com")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := map[string]Entry{
		"Shoes/A100/1.jpg": {"Shoes", "A100", "https://example.com/images/Shoes/A100/1.jpg"},
		"Shoes/A100/2.PNG": {"Shoes", "A100", "https://example.com/images/Shoes/A100/2.PNG"},
		"Shoes/cover.jpg":  {"Shoes", "cover", "https://example.com/images/Shoes/cover.jpg"},
		"loose.jpg":        {"loosejpg", "loose", "https://example.com/images/loose.jpg"},
	}

	if len(entries) != len(want) {
		t.Fatalf("Scan() returned %d entries, want %d: %v", len(entries), len(want), entries)
	}
	for rel, w := range want {
		got, ok := entries[rel]
		if !ok {
			t.Errorf("missing entry %q", rel)
			continue
		}
		if got != w {
			t.Errorf("entries[%q] = %+v, want %+v", rel, got, w)
		}
	}
}

func TestScanEmptyRoot(t *testing.T) {
	entries, err := Scan(t.TempDir(), "http://localhost")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Scan() = %v, want empty", entries)
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope"), "http://localhost"); err == nil {
		t.Error("Scan() on a missing root should fail")
	}
}
