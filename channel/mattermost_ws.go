package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/perchbot/perch/logger"
)

const (
	mattermostMaxReconnects  = 10
	mattermostBackoffShiftCap = 6
	mattermostMaxBackoff     = 60 * time.Second
	mattermostAuthScanFrames = 5
	mattermostReadTimeout    = 60 * time.Second
	mattermostWriteTimeout   = 5 * time.Second
	mattermostStableSession  = 30 * time.Second
	mattermostPollInterval   = 3 * time.Second
)

// Listen resolves the bot identity, optionally syncs the bot profile, and
// runs the WebSocket with reconnects. Exhausted reconnects fall back to REST
// polling when a channel id is configured.
func (m *MattermostChannel) Listen(ctx context.Context, tx chan<- *Message) error {
	if err := m.resolveIdentity(ctx); err != nil {
		return err
	}
	if len(m.allowedUsers) == 0 && !m.allowAll {
		logger.Warn("mattermost allowlist is empty, all users will be ignored")
	}
	if m.syncProfile {
		m.syncBotProfile(ctx)
	}
	logger.Info("mattermost channel started", "botUser", m.botUsername)

	for attempt := 1; attempt <= mattermostMaxReconnects; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := m.clock.Now()
		err := m.runWebSocketSession(ctx, tx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if m.clock.Since(started) > mattermostStableSession {
			attempt = 0
		}
		if attempt == mattermostMaxReconnects {
			break
		}

		delay := websocketBackoff(attempt)
		logger.Warn("mattermost websocket session ended, reconnecting",
			"attempt", attempt, "err", err, "delay", delay)
		select {
		case <-m.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if m.channelID == "" {
		return fmt.Errorf("mattermost: websocket reconnects exhausted and no channel id configured for polling")
	}
	logger.Warn("mattermost: websocket reconnects exhausted, falling back to polling")
	return m.listenPolling(ctx, tx)
}

// websocketBackoff is 1s shifted left per attempt, shift clamped to [0, 6],
// delay capped at 60s. attempt 0 happens right after a stable-session reset.
func websocketBackoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > mattermostBackoffShiftCap {
		shift = mattermostBackoffShiftCap
	}
	d := time.Duration(1<<uint(shift)) * time.Second
	if d > mattermostMaxBackoff {
		d = mattermostMaxBackoff
	}
	return d
}

// websocketURL rewrites the REST base URL onto the WebSocket endpoint.
func (m *MattermostChannel) websocketURL() string {
	base := m.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case !strings.Contains(base, "://"):
		base = "wss://" + base
	}
	return base + "/api/v4/websocket"
}

func (m *MattermostChannel) runWebSocketSession(ctx context.Context, tx chan<- *Message) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.websocketURL(), nil)
	if err != nil {
		return fmt.Errorf("mattermost: dial websocket: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	resetDeadline := func() {
		_ = conn.SetReadDeadline(time.Now().Add(mattermostReadTimeout))
	}
	resetDeadline()
	conn.SetPingHandler(func(appData string) error {
		resetDeadline()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(mattermostWriteTimeout))
	})
	conn.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	// The authentication challenge is the first frame on the socket.
	auth := map[string]any{
		"seq":    1,
		"action": "authentication_challenge",
		"data":   map[string]string{"token": m.botToken},
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("mattermost: send auth challenge: %w", err)
	}

	// The hello event may land before the auth response; scan a handful of
	// frames for the OK status.
	authed := false
	for i := 0; i < mattermostAuthScanFrames; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("mattermost: auth read: %w", err)
		}
		resetDeadline()
		if gjson.GetBytes(data, "status").String() == "OK" {
			authed = true
			break
		}
	}
	if !authed {
		return fmt.Errorf("mattermost: no auth OK within %d frames", mattermostAuthScanFrames)
	}
	logger.Info("mattermost websocket authenticated")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("mattermost: websocket read: %w", err)
		}
		resetDeadline()
		m.handleWebSocketEvent(ctx, data, tx)
	}
}

func (m *MattermostChannel) handleWebSocketEvent(ctx context.Context, raw []byte, tx chan<- *Message) {
	if gjson.GetBytes(raw, "event").String() != "posted" {
		return
	}

	// The post rides inside the event as a JSON-encoded string.
	postJSON := gjson.GetBytes(raw, "data.post").String()
	if postJSON == "" {
		return
	}
	var post mattermostPost
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		logger.Warn("mattermost: undecodable post payload", "err", err)
		return
	}

	// data.mentions is double-encoded the same way.
	var mentions []string
	if mentionsJSON := gjson.GetBytes(raw, "data.mentions").String(); mentionsJSON != "" {
		_ = json.Unmarshal([]byte(mentionsJSON), &mentions)
	}

	m.handlePost(ctx, &post, mentions, 0, tx)
}

// listenPolling replays posts for the configured channel via the REST API,
// advancing a millisecond since-watermark.
func (m *MattermostChannel) listenPolling(ctx context.Context, tx chan<- *Message) error {
	watermark := m.clock.Now().UnixMilli()

	for {
		watermark = m.pollOnce(ctx, watermark, tx)
		select {
		case <-m.clock.After(mattermostPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *MattermostChannel) pollOnce(ctx context.Context, watermark int64, tx chan<- *Message) int64 {
	path := fmt.Sprintf("/channels/%s/posts?since=%d", m.channelID, watermark)
	resp, err := m.doJSON(ctx, http.MethodGet, path, m.botToken, nil)
	if err != nil {
		logger.Warn("mattermost: poll posts", "err", err)
		return watermark
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Warn("mattermost: poll posts", "status", resp.StatusCode)
		return watermark
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		logger.Warn("mattermost: poll posts", "err", err)
		return watermark
	}

	// Response shape: {"order": [ids newest first], "posts": {id: post}}.
	order := gjson.GetBytes(data, "order").Array()
	posts := gjson.GetBytes(data, "posts")
	newWatermark := watermark

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i].String()
		var post mattermostPost
		if err := json.Unmarshal([]byte(posts.Get(id).Raw), &post); err != nil {
			continue
		}
		if post.CreateAt > newWatermark {
			newWatermark = post.CreateAt
		}
		m.handlePost(ctx, &post, nil, watermark, tx)
	}
	return newWatermark
}
