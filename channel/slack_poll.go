package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/perchbot/perch/logger"
)

const (
	slackPollInterval      = 3 * time.Second
	slackDiscoveryInterval = 60 * time.Second
	slackDiscoveryMaxPages = 50
	slackDiscoveryPageSize = 200
	slackHistoryPageSize   = 100
)

// listenPolling reads new messages over conversations.history. Used when no
// app-level token is configured. With a configured channel id only that
// channel is polled; otherwise joined channels are discovered and the set is
// refreshed every minute.
func (s *SlackChannel) listenPolling(ctx context.Context, tx chan<- *Message) error {
	watermarks := make(map[string]string)
	var channels []string
	var lastDiscovery time.Time

	for {
		if s.channelID != "" {
			channels = []string{s.channelID}
		} else if channels == nil || s.clock.Since(lastDiscovery) >= slackDiscoveryInterval {
			discovered, err := s.discoverChannels(ctx)
			if err != nil {
				logger.Warn("slack: channel discovery", "err", err)
			} else {
				channels = discovered
			}
			lastDiscovery = s.clock.Now()
		}

		for _, ch := range channels {
			s.pollChannel(ctx, ch, watermarks, tx)
		}

		select {
		case <-s.clock.After(slackPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pollChannel fetches messages newer than the channel watermark and replays
// them oldest first. The first poll only establishes the watermark; history
// from before startup is not replayed.
func (s *SlackChannel) pollChannel(ctx context.Context, channelID string, watermarks map[string]string, tx chan<- *Message) {
	oldest, seeded := watermarks[channelID]

	resp, err := s.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    oldest,
		Limit:     slackHistoryPageSize,
	})
	if err != nil {
		logger.Warn("slack: conversations.history", "channel", channelID, "err", err)
		return
	}

	if !seeded {
		if len(resp.Messages) > 0 {
			watermarks[channelID] = resp.Messages[0].Timestamp
		} else {
			watermarks[channelID] = fmt.Sprintf("%d.000000", s.clock.Now().Unix())
		}
		return
	}

	// The API returns newest first.
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i]
		if m.Timestamp > watermarks[channelID] {
			watermarks[channelID] = m.Timestamp
		}

		mentionToken := "<@" + s.botUserID + ">"
		isMention := strings.Contains(m.Text, mentionToken)
		text := m.Text
		if isMention {
			text = strings.TrimSpace(strings.ReplaceAll(text, mentionToken, " "))
		}

		s.handleMessage(ctx, channelID, m.User, m.BotID, m.SubType,
			text, m.Timestamp, m.ThreadTimestamp, isMention, tx)
	}
}

// discoverChannels lists joined, unarchived channels, paging up to the cap.
func (s *SlackChannel) discoverChannels(ctx context.Context) ([]string, error) {
	var out []string
	cursor := ""

	for page := 0; page < slackDiscoveryMaxPages; page++ {
		channels, next, err := s.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Cursor:          cursor,
			Limit:           slackDiscoveryPageSize,
			ExcludeArchived: true,
			Types:           []string{"public_channel", "private_channel"},
		})
		if err != nil {
			return nil, fmt.Errorf("slack: conversations.list: %w", err)
		}

		for _, ch := range channels {
			if ch.IsArchived || !ch.IsMember {
				continue
			}
			out = append(out, ch.ID)
		}

		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}
