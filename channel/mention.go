package channel

import "strings"

// isNameByte reports whether b can be part of a username. A mention span
// only counts when the byte after it is not a name byte, so "@bob" does not
// match inside "@bobby" or "@bob.smith".
func isNameByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	case b == '_' || b == '-' || b == '.':
		return true
	}
	return false
}

func asciiLower(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// mentionSpans returns the byte ranges of "@username" occurrences in text,
// matched ASCII-case-insensitively.
func mentionSpans(text, username string) [][2]int {
	if username == "" {
		return nil
	}

	var spans [][2]int
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		end := i + 1 + len(username)
		if end > len(text) {
			break
		}
		match := true
		for j := 0; j < len(username); j++ {
			if asciiLower(text[i+1+j]) != asciiLower(username[j]) {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if end < len(text) && isNameByte(text[end]) {
			continue
		}
		spans = append(spans, [2]int{i, end})
		i = end - 1
	}
	return spans
}

// NormalizeContent strips bot mention spans from text.
//
// The bot counts as mentioned when "@<botUsername>" appears in the text or
// when botUserID is listed in the platform-parsed metadataMentions. Returns
// ("", false) when the bot is not mentioned at all, or when removing the
// mention spans leaves nothing but whitespace (a bare ping carries no
// content and must not count as thread activity).
func NormalizeContent(text, botUserID, botUsername string, metadataMentions []string) (string, bool) {
	spans := mentionSpans(text, botUsername)

	mentioned := len(spans) > 0
	if !mentioned {
		for _, id := range metadataMentions {
			if id != "" && id == botUserID {
				mentioned = true
				break
			}
		}
	}
	if !mentioned {
		return "", false
	}

	// Each span collapses to a single space; surrounding spacing is kept.
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(text[last:sp[0]])
		b.WriteByte(' ')
		last = sp[1]
	}
	b.WriteString(text[last:])

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", false
	}
	return out, true
}
