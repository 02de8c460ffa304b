package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/perchbot/perch/logger"
	"github.com/perchbot/perch/thread"
)

// dispatchInteractive handles block_actions and view_submission payloads.
// Both surface to the queue as synthetic messages so the consumer sees one
// uniform stream.
func (s *SlackChannel) dispatchInteractive(ctx context.Context, payload json.RawMessage, tx chan<- *Message) {
	var cb slack.InteractionCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		logger.Warn("slack: parse interaction payload", "err", err)
		return
	}

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		s.handleBlockAction(ctx, &cb, tx)
	case slack.InteractionTypeViewSubmission:
		s.handleViewSubmission(ctx, &cb, tx)
	default:
		logger.Debug("slack: ignoring interaction", "type", string(cb.Type))
	}
}

func (s *SlackChannel) handleBlockAction(ctx context.Context, cb *slack.InteractionCallback, tx chan<- *Message) {
	if len(cb.ActionCallback.BlockActions) == 0 {
		return
	}
	action := cb.ActionCallback.BlockActions[0]
	userID := cb.User.ID
	channelID := cb.Channel.ID
	if userID == "" || channelID == "" || action.ActionID == "" {
		logger.Warn("slack: block action missing required fields",
			"user", userID, "channel", channelID, "action", action.ActionID)
		return
	}
	if s.channelID != "" && channelID != s.channelID {
		return
	}
	if !s.userAllowed(userID) {
		return
	}

	threadTS := cb.Message.ThreadTimestamp
	if threadTS == "" {
		threadTS = cb.Message.Timestamp
	}
	recipient := channelID
	if threadTS != "" {
		recipient = channelID + ":" + threadTS
	}

	switch action.ActionID {
	case ActionEditIssue:
		// Edit only opens the modal; the view submission carries the result.
		if cb.TriggerID == "" {
			return
		}
		view := editIssueModal(action.Value, recipient)
		if _, err := s.api.OpenViewContext(ctx, cb.TriggerID, view); err != nil {
			logger.Error("slack: open edit modal", "err", err)
		}
		return
	case ActionConfirmIssue, ActionCancelIssue:
	default:
		logger.Debug("slack: ignoring block action", "action", action.ActionID)
		return
	}

	// Brackets delimit the synthetic marker, so they are stripped from the
	// interpolated value.
	value := strings.NewReplacer("[", "", "]", "").Replace(action.Value)
	content := strings.TrimSpace(fmt.Sprintf("[block_action:%s] %s", action.ActionID, value))

	ts := cb.Message.Timestamp
	if ts == "" {
		ts = fmt.Sprintf("%d.000000", s.clock.Now().Unix())
	}

	if !enqueue(ctx, tx, &Message{
		ID:          "slack_" + channelID + "_" + ts,
		Sender:      userID,
		ReplyTarget: recipient,
		Content:     content,
		Channel:     s.Name(),
		Timestamp:   s.clock.Now().Unix(),
		ThreadTS:    threadTS,
	}) {
		return
	}
	s.armInactivityTimer(channelID, threadTS, thread.Key(channelID, threadTS))
}

func (s *SlackChannel) handleViewSubmission(ctx context.Context, cb *slack.InteractionCallback, tx chan<- *Message) {
	if cb.View.CallbackID != callbackEditIssueModal {
		logger.Debug("slack: ignoring view submission", "callback", cb.View.CallbackID)
		return
	}
	if cb.View.State == nil {
		return
	}

	title := cb.View.State.Values[blockTitle][inputTitle].Value
	description := cb.View.State.Values[blockDescription][inputDescription].Value

	// Private metadata carries the original "<channel>:<thread_ts>" target.
	recipient := cb.View.PrivateMetadata
	if recipient == "" {
		logger.Warn("slack: view submission without private metadata")
		return
	}
	channelID, threadTS := splitRecipient(recipient)

	content := fmt.Sprintf("[view_submission:%s] title=%s description=%s",
		cb.View.CallbackID, title, description)

	ts := fmt.Sprintf("%d.000000", s.clock.Now().Unix())
	enqueue(ctx, tx, &Message{
		ID:          "slack_" + channelID + "_" + ts,
		Sender:      cb.User.ID,
		ReplyTarget: recipient,
		Content:     content,
		Channel:     s.Name(),
		Timestamp:   s.clock.Now().Unix(),
		ThreadTS:    threadTS,
	})
}
