package webhook

import "strings"

const (
	// fieldMaxRunes caps any single field lifted out of a webhook payload.
	fieldMaxRunes = 400
	// messageMaxRunes caps the whole forwarded alert.
	messageMaxRunes = 16000
	// codeBlockMaxBytes caps the pretty-printed JSON fallback.
	codeBlockMaxBytes = 4096
)

// SanitizeField strips markdown and mention control characters from untrusted
// payload text so an alert cannot ping users, smuggle links, or break
// formatting, then truncates to max runes.
func SanitizeField(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '@', '[', ']', '(', ')', '*', '~', '`', '#', '>':
		default:
			b.WriteRune(r)
		}
	}
	return truncateRunes(strings.TrimSpace(b.String()), max)
}

// SafeHTTPURL validates a URL for embedding in an outgoing alert. http and
// https pass through, a bare host gets https:// prepended, anything with
// another scheme or control characters is rejected with "".
func SafeHTTPURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, r := range raw {
		if r < 0x20 || r == 0x7f {
			return ""
		}
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return raw
	case strings.Contains(raw, ":"):
		return ""
	default:
		return "https://" + raw
	}
}

// escapeCodeFence keeps embedded payload text from closing the surrounding
// code block.
func escapeCodeFence(s string) string {
	return strings.ReplaceAll(s, "```", "\\`\\`\\`")
}

// clampMessage bounds a fully assembled alert.
func clampMessage(s string) string {
	return truncateRunes(s, messageMaxRunes)
}

// truncateRunes cuts s to at most n runes, never splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
