package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: Unnamed},
		{name: "simple", raw: "ArticleA", want: "ArticleA"},
		{name: "space becomes underscore", raw: "My Shoes", want: "My_Shoes"},
		{name: "hyphen and space runs collapse", raw: "red - blue  --green", want: "red_blue_green"},
		{name: "leading and trailing separators trimmed", raw: "  -shoes_ ", want: "shoes"},
		{name: "punctuation dropped", raw: "a.b,c!d?(e)", want: "abcde"},
		{name: "path separators dropped", raw: "../etc/passwd", want: "etcpasswd"},
		{name: "backslashes dropped", raw: `C:\temp\x`, want: "Ctempx"},
		{name: "accents decomposed", raw: "Café Noël", want: "Cafe_Noel"},
		{name: "compatibility ligature", raw: "ﬁle", want: "file"},
		{name: "cyrillic kept", raw: "Кроссовки Nike", want: "Кроссовки_Nike"},
		{name: "digits kept", raw: "SKU 12345", want: "SKU_12345"},
		{name: "underscores preserved", raw: "a__b", want: "a__b"},
		{name: "only punctuation", raw: "!!!", want: Unnamed},
		{name: "only separators", raw: " - _ ", want: Unnamed},
		{name: "control characters", raw: "a\x00b\x1bc", want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.raw); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNameTruncates(t *testing.T) {
	got := Name(strings.Repeat("я", 300))
	if n := utf8.RuneCountInString(got); n != MaxLength {
		t.Errorf("rune count = %d, want %d", n, MaxLength)
	}

	// A separator landing on the cut must not survive the truncation.
	got = Name(strings.Repeat("a", MaxLength-1) + " b")
	if strings.HasSuffix(got, "_") {
		t.Errorf("Name left a trailing separator after truncation: %q", got)
	}
}

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"My Shoes",
		"  --weird  input--  ",
		"Café Noël",
		"ﬁle name",
		"한국어 이름",
		"a__b",
		"x" + strings.Repeat(" y", 200),
		strings.Repeat("a", MaxLength-1) + " b",
		"日本語-テキスト",
	}

	for _, in := range inputs {
		once := Name(in)
		twice := Name(once)
		if once != twice {
			t.Errorf("Name not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestArchiveBase(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "My Shoes.zip", want: "My_Shoes"},
		{filename: "/tmp/uploads/summer-2024.ZIP", want: "summer_2024"},
		{filename: `C:\Users\me\Boots.zip`, want: "Boots"},
		{filename: "noext", want: "noext"},
		{filename: "", want: Unnamed},
		{filename: ".zip", want: Unnamed},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := ArchiveBase(tt.filename); got != tt.want {
				t.Errorf("ArchiveBase(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
