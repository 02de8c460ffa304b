package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"

	"github.com/perchbot/perch/config"
	"github.com/perchbot/perch/guard"
	"github.com/perchbot/perch/logger"
	"github.com/perchbot/perch/thread"
)

const (
	mattermostTypingInterval = 4 * time.Second
	mattermostRequestTimeout = 10 * time.Second
)

// MattermostChannel connects to a Mattermost server over its event WebSocket,
// with a REST polling fallback for a single configured channel. Inbound posts
// run through mention gating, the group-reply window, and the prompt guard.
type MattermostChannel struct {
	baseURL       string
	botToken      string
	adminToken    string
	channelID     string
	allowedUsers  map[string]bool
	allowAll      bool
	threadReplies bool
	mentionOnly   bool
	groupSenders  map[string]bool
	syncProfile   bool
	aieosPath     string
	avatarURL     string

	activity *thread.Tracker
	guard    *guard.Guard
	clock    clockwork.Clock
	httpc    *http.Client

	// Resolved by Listen via /users/me.
	botUserID   string
	botUsername string

	typingMu   sync.Mutex
	typingStop chan struct{}
}

// NewMattermostChannel creates a Mattermost channel from config.
// Returns nil if base URL or bot token are not configured.
func NewMattermostChannel(cfg *config.Config, g *guard.Guard) *MattermostChannel {
	mc := cfg.MattermostConfig()
	if mc == nil || mc.BaseURL == "" || mc.BotToken == "" {
		logger.Warn("Mattermost not configured, skipping Mattermost channel")
		return nil
	}

	allowed := make(map[string]bool)
	allowAll := false
	for _, u := range mc.AllowedUsers {
		if u == "*" {
			allowAll = true
			continue
		}
		allowed[u] = true
	}

	groupSenders := make(map[string]bool)
	for _, s := range normalizeGroupSenders(mc.GroupReplyAllowedSenders) {
		groupSenders[s] = true
	}

	clock := clockwork.NewRealClock()
	ttl := time.Duration(mc.ThreadTTLMinutes) * time.Minute

	return &MattermostChannel{
		baseURL:       strings.TrimRight(mc.BaseURL, "/"),
		botToken:      mc.BotToken,
		adminToken:    mc.AdminToken,
		channelID:     mc.ChannelID,
		allowedUsers:  allowed,
		allowAll:      allowAll,
		threadReplies: mc.ThreadReplies,
		mentionOnly:   mc.MentionOnly,
		groupSenders:  groupSenders,
		syncProfile:   mc.SyncProfile,
		aieosPath:     mc.AieosPath,
		avatarURL:     mc.AvatarURL,
		activity:      thread.NewTracker(ttl, clock),
		guard:         g,
		clock:         clock,
		httpc: &http.Client{
			Timeout: mattermostRequestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// normalizeGroupSenders trims, drops empties, dedupes, and sorts.
func normalizeGroupSenders(senders []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range senders {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *MattermostChannel) Name() string { return "mattermost" }

func (m *MattermostChannel) apiURL(path string) string {
	return m.baseURL + "/api/v4" + path
}

// doJSON issues an authenticated API request. A nil body sends no payload.
func (m *MattermostChannel) doJSON(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("mattermost: marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.apiURL(path), rdr)
	if err != nil {
		return nil, fmt.Errorf("mattermost: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return m.httpc.Do(req)
}

// resolveIdentity fetches the bot's own user id and username.
func (m *MattermostChannel) resolveIdentity(ctx context.Context) error {
	resp, err := m.doJSON(ctx, http.MethodGet, "/users/me", m.botToken, nil)
	if err != nil {
		return fmt.Errorf("mattermost: users/me: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost: users/me: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("mattermost: users/me: %w", err)
	}
	m.botUserID = gjson.GetBytes(data, "id").String()
	m.botUsername = gjson.GetBytes(data, "username").String()
	if m.botUserID == "" {
		return fmt.Errorf("mattermost: users/me returned no id")
	}
	return nil
}

func (m *MattermostChannel) Send(ctx context.Context, msg *SendMessage) error {
	channelID, rootID := splitRecipient(msg.Recipient)
	if rootID == "" {
		rootID = msg.ThreadTS
	}

	payload := map[string]string{
		"channel_id": channelID,
		"message":    msg.Content,
	}
	if rootID != "" {
		payload["root_id"] = rootID
	}

	resp, err := m.doJSON(ctx, http.MethodPost, "/posts", m.botToken, payload)
	if err != nil {
		return fmt.Errorf("mattermost: create post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mattermost: create post: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (m *MattermostChannel) HealthCheck(ctx context.Context) bool {
	resp, err := m.doJSON(ctx, http.MethodGet, "/users/me", m.botToken, nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StartTyping runs a typing-indicator loop for the recipient, refreshing the
// indicator every few seconds. A second call retargets the single loop.
func (m *MattermostChannel) StartTyping(recipient string) error {
	channelID, rootID := splitRecipient(recipient)

	m.typingMu.Lock()
	if m.typingStop != nil {
		close(m.typingStop)
	}
	stop := make(chan struct{})
	m.typingStop = stop
	m.typingMu.Unlock()

	go func() {
		for {
			m.postTyping(channelID, rootID)
			select {
			case <-m.clock.After(mattermostTypingInterval):
			case <-stop:
				return
			}
		}
	}()
	return nil
}

func (m *MattermostChannel) StopTyping(string) error {
	m.typingMu.Lock()
	if m.typingStop != nil {
		close(m.typingStop)
		m.typingStop = nil
	}
	m.typingMu.Unlock()
	return nil
}

func (m *MattermostChannel) postTyping(channelID, rootID string) {
	payload := map[string]string{"channel_id": channelID}
	if rootID != "" {
		payload["parent_id"] = rootID
	}

	ctx, cancel := context.WithTimeout(context.Background(), mattermostRequestTimeout)
	defer cancel()
	resp, err := m.doJSON(ctx, http.MethodPost, "/users/me/typing", m.botToken, payload)
	if err != nil {
		logger.Debug("mattermost: typing indicator", "err", err)
		return
	}
	resp.Body.Close()
}

// userAllowed matches on user id only; server-supplied display names are not
// an authorization credential.
func (m *MattermostChannel) userAllowed(userID string) bool {
	if m.allowAll {
		return true
	}
	return m.allowedUsers[userID]
}
