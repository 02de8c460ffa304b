package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// strOr returns the first non-empty string at the given gjson paths, or def.
func strOr(body []byte, def string, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return def
}

func sanitizedOr(body []byte, def string, paths ...string) string {
	return SanitizeField(strOr(body, def, paths...), fieldMaxRunes)
}

// TransformVercel renders a Vercel deployment event as a chat alert.
func TransformVercel(body []byte) string {
	eventType := strOr(body, "unknown", "type")
	project := sanitizedOr(body, "unknown project", "payload.project.name", "payload.deployment.name")
	commit := sanitizedOr(body, "", "payload.deployment.meta.githubCommitMessage")

	var icon, status string
	switch {
	case eventType == "deployment.succeeded":
		icon, status = ":white_check_mark:", "Deploy succeeded"
	case eventType == "deployment.promoted":
		icon, status = ":rocket:", "Deploy promoted to production"
	case strings.Contains(eventType, "failed") || strings.Contains(eventType, "error"):
		icon, status = ":x:", SanitizeField(eventType, fieldMaxRunes)
	case strings.Contains(eventType, "cancel"):
		icon, status = ":warning:", SanitizeField(eventType, fieldMaxRunes)
	default:
		icon, status = ":information_source:", SanitizeField(eventType, fieldMaxRunes)
	}

	parts := []string{fmt.Sprintf("%s **Vercel** · **%s** — %s", icon, project, status)}
	if u := SafeHTTPURL(strOr(body, "", "payload.deployment.url")); u != "" {
		parts = append(parts, "URL: "+u)
	}
	if commit != "" {
		parts = append(parts, "Commit: _"+commit+"_")
	}
	if insp := SafeHTTPURL(strOr(body, "", "payload.links.deployment", "payload.deployment.inspectorUrl")); insp != "" {
		parts = append(parts, "[View deployment]("+insp+")")
	}
	return clampMessage(strings.Join(parts, "\n"))
}

// TransformSupabase renders a Supabase alert, edge function error, or
// database event as a chat alert.
func TransformSupabase(body []byte) string {
	if alert := sanitizedOr(body, "", "alert_name"); alert != "" {
		project := sanitizedOr(body, "unknown", "project_ref")
		out := fmt.Sprintf(":warning: **Supabase** · **%s** — Alert: %s", project, alert)
		if msg := sanitizedOr(body, "", "message"); msg != "" {
			out += "\n" + msg
		}
		return clampMessage(out)
	}

	if errMsg := sanitizedOr(body, "", "error"); errMsg != "" {
		fn := sanitizedOr(body, "unknown function", "function_name")
		return clampMessage(fmt.Sprintf(":x: **Supabase** · Edge function **%s** — %s", fn, errMsg))
	}

	table := sanitizedOr(body, "unknown", "table")
	schema := sanitizedOr(body, "public", "schema")
	eventType := sanitizedOr(body, "event", "type")
	return clampMessage(fmt.Sprintf(":floppy_disk: **Supabase** · %s.%s — %s", schema, table, eventType))
}

// TransformUpstash renders an Upstash QStash or rate limit notification as a
// chat alert.
func TransformUpstash(body []byte) string {
	eventType := strOr(body, "unknown", "type", "event")

	var icon string
	switch eventType {
	case "rate_limit_exceeded":
		icon = ":warning:"
	case "circuit_breaker_open":
		icon = ":red_circle:"
	case "circuit_breaker_close":
		icon = ":large_green_circle:"
	case "dlq_message_received":
		icon = ":skull_and_crossbones:"
	default:
		icon = ":information_source:"
	}

	out := fmt.Sprintf("%s **Upstash** — %s", icon, SanitizeField(eventType, fieldMaxRunes))
	if msg := sanitizedOr(body, "", "message", "details.message"); msg != "" {
		out += "\n" + msg
	}
	return clampMessage(out)
}

// TransformCustom renders an arbitrary payload. A top-level string "message"
// is forwarded directly; anything else becomes a pretty-printed JSON block.
func TransformCustom(body []byte) string {
	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String {
		source := sanitizedOr(body, "custom", "source")
		return clampMessage(fmt.Sprintf(":incoming_envelope: **%s** — %s",
			source, SanitizeField(msg.String(), fieldMaxRunes)))
	}

	pretty := string(body)
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if out, err := json.MarshalIndent(decoded, "", "  "); err == nil {
			pretty = string(out)
		}
	}
	pretty = truncateBytes(escapeCodeFence(pretty), codeBlockMaxBytes)
	return ":incoming_envelope: **Custom webhook**\n```json\n" + pretty + "\n```"
}
