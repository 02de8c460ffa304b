package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/slack-go/slack"

	"github.com/perchbot/perch/config"
	"github.com/perchbot/perch/logger"
	"github.com/perchbot/perch/thread"
)

const slackSleepNotice = "Going to sleep — @mention me to wake up :zzz:"

// SlackChannel connects to Slack over Socket Mode, with a REST polling
// fallback when no app-level token is configured. Threads go to sleep after
// an hour of silence and wake on mentions.
type SlackChannel struct {
	api          *slack.Client
	appToken     string
	channelID    string
	allowedUsers map[string]bool
	allowAll     bool

	engine *thread.Engine
	timers *thread.TimerPool
	clock  clockwork.Clock

	// Resolved by Listen via auth.test.
	botUserID string
	botUser   string
}

// NewSlackChannel creates a Slack channel from config.
// Returns nil if no bot token is configured.
func NewSlackChannel(cfg *config.Config, engine *thread.Engine, timers *thread.TimerPool) *SlackChannel {
	sc := cfg.SlackConfig()
	if sc == nil || sc.BotToken == "" {
		logger.Warn("Slack bot token not configured, skipping Slack channel")
		return nil
	}

	allowed := make(map[string]bool)
	allowAll := false
	for _, u := range sc.AllowedUsers {
		if u == "*" {
			allowAll = true
			continue
		}
		allowed[u] = true
	}

	var opts []slack.Option
	if sc.AppToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(sc.AppToken))
	}

	return &SlackChannel{
		api:          slack.New(sc.BotToken, opts...),
		appToken:     sc.AppToken,
		channelID:    sc.ChannelID,
		allowedUsers: allowed,
		allowAll:     allowAll,
		engine:       engine,
		timers:       timers,
		clock:        clockwork.NewRealClock(),
	}
}

func (s *SlackChannel) Name() string { return "slack" }

// Listen resolves the bot identity, then runs Socket Mode or the polling
// fallback until ctx is done.
func (s *SlackChannel) Listen(ctx context.Context, tx chan<- *Message) error {
	auth, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth.test: %w", err)
	}
	s.botUserID = auth.UserID
	s.botUser = auth.User

	if len(s.allowedUsers) == 0 && !s.allowAll {
		logger.Warn("slack allowlist is empty, all users will be ignored")
	}

	if s.appToken == "" {
		logger.Info("slack channel started", "botUser", s.botUser, "mode", "polling")
		return s.listenPolling(ctx, tx)
	}
	logger.Info("slack channel started", "botUser", s.botUser, "mode", "socket")
	return s.listenSocketMode(ctx, tx)
}

func (s *SlackChannel) Send(ctx context.Context, msg *SendMessage) error {
	channelID, rootID := splitRecipient(msg.Recipient)
	threadTS := msg.ThreadTS
	if rootID != "" {
		threadTS = rootID
	}

	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if msg.Username != "" {
		opts = append(opts, slack.MsgOptionUsername(msg.Username))
	}
	if msg.IconEmoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(msg.IconEmoji))
	}
	if msg.Broadcast {
		opts = append(opts, slack.MsgOptionBroadcast())
	}

	if _, _, err := s.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func (s *SlackChannel) HealthCheck(ctx context.Context) bool {
	_, err := s.api.AuthTestContext(ctx)
	return err == nil
}

// Slack exposes no typing indicator for bot tokens; both calls are no-ops so
// callers can stay channel-agnostic.
func (s *SlackChannel) StartTyping(string) error { return nil }
func (s *SlackChannel) StopTyping(string) error  { return nil }

func (s *SlackChannel) userAllowed(userID string) bool {
	if s.allowAll {
		return true
	}
	return s.allowedUsers[userID]
}

// handleMessage runs the shared gating pipeline for both listen paths and
// enqueues the normalized message.
func (s *SlackChannel) handleMessage(ctx context.Context, channelID, userID, botID, subType, text, ts, threadTS string, isMention bool, tx chan<- *Message) {
	if userID == "" || userID == s.botUserID || botID != "" {
		return
	}
	if subType != "" {
		return
	}
	if s.channelID != "" && channelID != s.channelID {
		return
	}
	if !s.userAllowed(userID) {
		logger.Debug("slack: sender not allowlisted", "user", userID)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	// A top-level message roots its own thread, so wake/sleep and the timer
	// pool key on the message ts when no thread_ts is present.
	rootTS := threadTS
	if rootTS == "" {
		rootTS = ts
	}

	key := thread.Key(channelID, rootTS)
	switch s.engine.OnEvent(key, isMention) {
	case thread.Discard:
		logger.Debug("slack: thread asleep, discarding", "thread", key)
		return
	case thread.Wake:
		logger.Info("slack: thread woken by mention", "thread", key)
	}

	replyTarget := channelID
	if threadTS != "" {
		replyTarget = channelID + ":" + threadTS
	}

	msg := &Message{
		ID:          "slack_" + channelID + "_" + ts,
		Sender:      userID,
		ReplyTarget: replyTarget,
		Content:     text,
		Channel:     s.Name(),
		Timestamp:   slackTSToUnix(ts),
		ThreadTS:    rootTS,
	}
	if !enqueue(ctx, tx, msg) {
		return
	}

	s.armInactivityTimer(channelID, rootTS, key)
}

// armInactivityTimer schedules the sleep transition for a thread. Expiry
// marks the thread sleeping and posts a best-effort notice into it.
func (s *SlackChannel) armInactivityTimer(channelID, threadTS, key string) {
	s.timers.Reset(key, thread.InactivityTimeout, func() {
		s.engine.MarkSleeping(key)
		logger.Info("slack: thread going to sleep", "thread", key)

		opts := []slack.MsgOption{slack.MsgOptionText(slackSleepNotice, false)}
		if threadTS != "" {
			opts = append(opts, slack.MsgOptionTS(threadTS))
		}
		if _, _, err := s.api.PostMessage(channelID, opts...); err != nil {
			logger.Warn("slack: post sleep notice", "thread", key, "err", err)
		}
	})
}

// slackTSToUnix converts a Slack "1712345678.000100" timestamp to seconds.
func slackTSToUnix(ts string) int64 {
	secs, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
