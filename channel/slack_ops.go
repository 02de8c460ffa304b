package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/perchbot/perch/logger"
)

// Slack channel names: lowercase, no spaces or punctuation, 80 chars max.
const slackChannelNameMax = 80

// CreateProjectChannel creates a Slack channel for a new project, sets its
// topic to the project URL, and announces the project inside it. Topic and
// announcement failures are logged but do not fail the call.
func (s *SlackChannel) CreateProjectChannel(ctx context.Context, name, projectURL string) (string, error) {
	chName := slugifyChannelName(name)
	if chName == "" {
		return "", fmt.Errorf("slack: project name %q yields an empty channel name", name)
	}

	ch, err := s.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: chName,
	})
	if err != nil {
		return "", fmt.Errorf("slack: conversations.create %q: %w", chName, err)
	}

	if projectURL != "" {
		if _, err := s.api.SetTopicOfConversationContext(ctx, ch.ID, projectURL); err != nil {
			logger.Warn("slack: set channel topic", "channel", ch.ID, "err", err)
		}
	}

	text := fmt.Sprintf("New project *%s*", EscapeMrkdwn(name))
	if projectURL != "" {
		text += fmt.Sprintf(" (<%s|view in Linear>)", EscapeLinkURL(projectURL))
	}
	if _, _, err := s.api.PostMessageContext(ctx, ch.ID, slack.MsgOptionText(text, false)); err != nil {
		logger.Warn("slack: announce project", "channel", ch.ID, "err", err)
	}

	logger.Info("slack: created project channel", "channel", ch.ID, "name", chName)
	return ch.ID, nil
}

// slugifyChannelName lowercases the name and collapses anything outside
// [a-z0-9_-] into single hyphens.
func slugifyChannelName(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > slackChannelNameMax {
		out = strings.Trim(out[:slackChannelNameMax], "-")
	}
	return out
}
