package webhook

import (
	"strings"
	"testing"
)

func TestTransformVercelSucceeded(t *testing.T) {
	body := []byte(`{
		"type": "deployment.succeeded",
		"payload": {
			"project": {"name": "perch"},
			"deployment": {
				"url": "perch.vercel.app",
				"meta": {"githubCommitMessage": "fix typo"}
			},
			"links": {"deployment": "https://vercel.com/acme/perch/dep123"}
		}
	}`)
	out := TransformVercel(body)

	if !strings.Contains(out, ":white_check_mark:") || !strings.Contains(out, "Deploy succeeded") {
		t.Fatalf("missing success marker: %q", out)
	}
	if !strings.Contains(out, "URL: https://perch.vercel.app") {
		t.Fatalf("bare deployment host not prefixed: %q", out)
	}
	if !strings.Contains(out, "Commit: _fix typo_") {
		t.Fatalf("missing commit line: %q", out)
	}
	if !strings.Contains(out, "[View deployment](https://vercel.com/acme/perch/dep123)") {
		t.Fatalf("missing inspector link: %q", out)
	}
}

func TestTransformVercelFailure(t *testing.T) {
	out := TransformVercel([]byte(`{"type":"deployment.failed","payload":{"project":{"name":"perch"}}}`))
	if !strings.Contains(out, ":x:") {
		t.Fatalf("failure icon missing: %q", out)
	}
}

func TestTransformVercelSanitizesProjectName(t *testing.T) {
	out := TransformVercel([]byte(`{"type":"deployment.succeeded","payload":{"project":{"name":"@everyone [pwn](x)"}}}`))
	if strings.Contains(out, "@everyone") || strings.Contains(out, "[pwn]") {
		t.Fatalf("unsanitized project name leaked: %q", out)
	}
}

func TestTransformSupabaseAlert(t *testing.T) {
	out := TransformSupabase([]byte(`{"alert_name":"High CPU","project_ref":"abcd1234","message":"CPU above 90%"}`))
	if !strings.Contains(out, ":warning:") || !strings.Contains(out, "abcd1234") ||
		!strings.Contains(out, "High CPU") || !strings.Contains(out, "CPU above 90%") {
		t.Fatalf("alert fields missing: %q", out)
	}
}

func TestTransformSupabaseEdgeFunctionError(t *testing.T) {
	out := TransformSupabase([]byte(`{"error":"timeout after 30s","function_name":"send-email"}`))
	if !strings.Contains(out, ":x:") || !strings.Contains(out, "send-email") || !strings.Contains(out, "timeout after 30s") {
		t.Fatalf("error fields missing: %q", out)
	}
}

func TestTransformSupabaseDatabaseEvent(t *testing.T) {
	out := TransformSupabase([]byte(`{"type":"INSERT","table":"orders","schema":"shop"}`))
	if !strings.Contains(out, ":floppy_disk:") || !strings.Contains(out, "shop.orders") || !strings.Contains(out, "INSERT") {
		t.Fatalf("database event fields missing: %q", out)
	}
}

func TestTransformUpstashEvents(t *testing.T) {
	cases := map[string]string{
		"rate_limit_exceeded":   ":warning:",
		"circuit_breaker_open":  ":red_circle:",
		"circuit_breaker_close": ":large_green_circle:",
		"dlq_message_received":  ":skull_and_crossbones:",
		"something_else":        ":information_source:",
	}
	for event, icon := range cases {
		out := TransformUpstash([]byte(`{"type":"` + event + `","message":"details here"}`))
		if !strings.Contains(out, icon) {
			t.Errorf("event %q: icon %q missing in %q", event, icon, out)
		}
		if !strings.Contains(out, "details here") {
			t.Errorf("event %q: message missing in %q", event, out)
		}
	}
}

func TestTransformCustomMessage(t *testing.T) {
	out := TransformCustom([]byte(`{"message":"disk almost full","source":"cron"}`))
	if !strings.Contains(out, ":incoming_envelope:") || !strings.Contains(out, "cron") || !strings.Contains(out, "disk almost full") {
		t.Fatalf("custom message fields missing: %q", out)
	}
}

func TestTransformCustomJSONFallback(t *testing.T) {
	out := TransformCustom([]byte(`{"foo":{"bar":1}}`))
	if !strings.Contains(out, "```json") {
		t.Fatalf("missing code block: %q", out)
	}
	if !strings.Contains(out, `"bar": 1`) {
		t.Fatalf("missing pretty-printed payload: %q", out)
	}
}

func TestTransformCustomFallbackIsBounded(t *testing.T) {
	big := `{"blob":"` + strings.Repeat("a", 20000) + `"}`
	out := TransformCustom([]byte(big))
	if len(out) > codeBlockMaxBytes+200 {
		t.Fatalf("fallback not capped, got %d bytes", len(out))
	}
}
