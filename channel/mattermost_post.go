package channel

import (
	"context"
	"strings"

	"github.com/perchbot/perch/guard"
	"github.com/perchbot/perch/logger"
)

// mattermostPost is the post shape shared by the WebSocket and REST paths.
type mattermostPost struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	RootID    string `json:"root_id"`
	Message   string `json:"message"`
	CreateAt  int64  `json:"create_at"` // milliseconds
}

// handlePost runs the shared gating pipeline and enqueues the normalized
// message. watermark is 0 on the WebSocket path; the polling path passes its
// since cursor so replayed posts are dropped.
func (m *MattermostChannel) handlePost(ctx context.Context, post *mattermostPost, metadataMentions []string, watermark int64, tx chan<- *Message) {
	if post.UserID == "" || post.UserID == m.botUserID {
		return
	}
	if post.CreateAt <= watermark {
		return
	}
	text := strings.TrimSpace(post.Message)
	if text == "" {
		return
	}
	if !m.userAllowed(post.UserID) {
		logger.Debug("mattermost: sender not allowlisted", "user", post.UserID)
		return
	}

	mentioned := len(mentionSpans(text, m.botUsername)) > 0
	if !mentioned {
		for _, id := range metadataMentions {
			if id == m.botUserID {
				mentioned = true
				break
			}
		}
	}

	content := text
	isMention := false
	if normalized, ok := NormalizeContent(text, m.botUserID, m.botUsername, metadataMentions); ok {
		content = normalized
		isMention = true
	} else if mentioned {
		// A bare ping carries no content; it is dropped without touching
		// the activity tracker.
		logger.Debug("mattermost: bare mention, ignoring", "post", post.ID)
		return
	}

	// The thread id is the root post, or the post itself when it opens one.
	threadID := post.RootID
	if threadID == "" {
		threadID = post.ID
	}

	// Group-reply senders skip mention gating entirely; everyone else may
	// continue a thread the bot is already active in, which refreshes its TTL
	// via the Touch below.
	if m.mentionOnly && !isMention && !m.groupSenders[post.UserID] {
		if !m.activity.IsActive(threadID) {
			logger.Debug("mattermost: no mention, skipping", "post", post.ID)
			return
		}
	}

	if m.guard != nil {
		switch v := m.guard.Scan(content); v.Kind {
		case guard.Blocked:
			logger.Warn("mattermost: message blocked by prompt guard",
				"post", post.ID, "reason", v.Reason, "score", v.Score)
			return
		case guard.Suspicious:
			logger.Warn("mattermost: suspicious message forwarded",
				"post", post.ID, "patterns", v.Patterns, "score", v.Score)
		}
	}

	replyTarget := post.ChannelID
	switch {
	case post.RootID != "":
		replyTarget = post.ChannelID + ":" + post.RootID
	case m.threadReplies:
		replyTarget = post.ChannelID + ":" + post.ID
	}

	msg := &Message{
		ID:          "mattermost_" + post.ID,
		Sender:      post.UserID,
		ReplyTarget: replyTarget,
		Content:     content,
		Channel:     m.Name(),
		Timestamp:   post.CreateAt / 1000,
	}
	if !enqueue(ctx, tx, msg) {
		return
	}
	m.activity.Touch(threadID)
}
