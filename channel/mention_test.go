package channel

import "testing"

func TestMentionDetectedAndStripped(t *testing.T) {
	out, ok := NormalizeContent("hey @mybot how are you?", "U1", "mybot", nil)
	if !ok {
		t.Fatal("mention should be detected")
	}
	if out != "hey   how are you?" {
		t.Fatalf("unexpected normalization: %q", out)
	}
}

func TestMentionCaseInsensitive(t *testing.T) {
	out, ok := NormalizeContent("@MyBot status please", "U1", "mybot", nil)
	if !ok {
		t.Fatal("uppercase mention should be detected")
	}
	if out != "status please" {
		t.Fatalf("unexpected normalization: %q", out)
	}
}

func TestMentionRespectsNameBoundary(t *testing.T) {
	if _, ok := NormalizeContent("ping @mybotx", "U1", "mybot", nil); ok {
		t.Fatal("@mybotx must not match @mybot")
	}
	if _, ok := NormalizeContent("ping @mybot.smith", "U1", "mybot", nil); ok {
		t.Fatal("dot continues a username")
	}
	if _, ok := NormalizeContent("ping @mybot, thanks", "U1", "mybot", nil); !ok {
		t.Fatal("comma terminates a username")
	}
	if out, ok := NormalizeContent("ping @mybot", "U1", "mybot", nil); !ok || out != "ping" {
		t.Fatalf("text around a trailing mention is still content: %q, %v", out, ok)
	}
}

func TestNoMentionReturnsFalse(t *testing.T) {
	if _, ok := NormalizeContent("just chatting", "U1", "mybot", nil); ok {
		t.Fatal("no mention should return false")
	}
}

func TestBareMentionIsNotContent(t *testing.T) {
	if _, ok := NormalizeContent("  @mybot  ", "U1", "mybot", nil); ok {
		t.Fatal("whitespace-only remainder should return false")
	}
}

func TestMetadataMentionCountsWithoutTextMatch(t *testing.T) {
	out, ok := NormalizeContent("deploy the fix", "U1", "mybot", []string{"U0", "U1"})
	if !ok {
		t.Fatal("metadata mention should count")
	}
	if out != "deploy the fix" {
		t.Fatalf("content should be untouched: %q", out)
	}
}

func TestMultipleMentionSpansCollapse(t *testing.T) {
	out, ok := NormalizeContent("@mybot check this @mybot now", "U1", "mybot", nil)
	if !ok {
		t.Fatal("mentions should be detected")
	}
	if out != "check this   now" {
		t.Fatalf("unexpected normalization: %q", out)
	}
}
