package webhook

import (
	"strings"
	"testing"
)

func TestSanitizeFieldStripsMarkdown(t *testing.T) {
	in := "deploy [ok](https://evil) *now* @channel `rm -rf` #general > quote ~strike~"
	out := SanitizeField(in, fieldMaxRunes)
	for _, forbidden := range []string{"@", "[", "]", "(", ")", "*", "~", "`", "#", ">"} {
		if strings.Contains(out, forbidden) {
			t.Fatalf("sanitized field still contains %q: %q", forbidden, out)
		}
	}
	if !strings.Contains(out, "deploy") || !strings.Contains(out, "rm -rf") {
		t.Fatalf("sanitizer removed plain text: %q", out)
	}
}

func TestSanitizeFieldTruncatesOnRuneBoundary(t *testing.T) {
	in := strings.Repeat("é", 10)
	out := SanitizeField(in, 4)
	if out != "éééé" {
		t.Fatalf("got %q, want 4 runes", out)
	}
}

func TestSafeHTTPURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/x":       "https://example.com/x",
		"http://example.com":          "http://example.com",
		"example.com/deploy":          "https://example.com/deploy",
		"javascript:alert(1)":         "",
		"ftp://example.com":           "",
		"https://example.com/\x00bad": "",
		"  https://example.com  ":     "https://example.com",
		"": "",
	}
	for in, want := range cases {
		if got := SafeHTTPURL(in); got != want {
			t.Errorf("SafeHTTPURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeCodeFence(t *testing.T) {
	out := escapeCodeFence("x\n```\nescape")
	if strings.Contains(out, "\n```\n") {
		t.Fatalf("fence not escaped: %q", out)
	}
}

func TestTruncateBytesRespectsUTF8(t *testing.T) {
	s := "aé" // 'é' is two bytes, starting at offset 1
	if got := truncateBytes(s, 2); got != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
	if got := truncateBytes(s, 3); got != s {
		t.Fatalf("got %q, want %q", got, s)
	}
}
