package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/slack-go/slack/slackevents"

	"github.com/perchbot/perch/logger"
)

const (
	// Slack pings roughly every 30s; a minute without any inbound frame
	// means the connection is dead.
	slackReadTimeout = 60 * time.Second

	// Sessions that survive this long reset the reconnect backoff.
	slackStableSession = 30 * time.Second

	slackWriteTimeout = 5 * time.Second
)

// socketEnvelope is a Socket Mode frame. Control frames (hello, disconnect)
// carry no envelope id.
type socketEnvelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Reason     string          `json:"reason,omitempty"`
}

type envelopeAck struct {
	EnvelopeID string `json:"envelope_id"`
}

// listenSocketMode runs Socket Mode sessions in a reconnect loop until ctx
// is done. Backoff starts at 1s, doubles to a 60s cap, and resets after a
// stable session.
func (s *SlackChannel) listenSocketMode(ctx context.Context, tx chan<- *Message) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := s.clock.Now()
		err := s.runSocketSession(ctx, tx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.clock.Since(started) > slackStableSession {
			bo.Reset()
		}

		delay := bo.NextBackOff()
		logger.Warn("slack socket session ended, reconnecting", "err", err, "delay", delay)
		select {
		case <-s.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runSocketSession mints a one-shot WebSocket URL, dials it, and reads
// envelopes until the connection drops or the server asks to disconnect.
func (s *SlackChannel) runSocketSession(ctx context.Context, tx chan<- *Message) error {
	_, wsURL, err := s.api.StartSocketModeContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: apps.connections.open: %w", err)
	}
	if err := validateSocketURL(wsURL); err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("slack: dial socket: %w", err)
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
		_ = conn.SetReadDeadline(time.Now().Add(slackReadTimeout))
	}
	resetDeadline()
	conn.SetPingHandler(func(appData string) error {
		resetDeadline()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(slackWriteTimeout))
	})
	conn.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("slack: socket read: %w", err)
		}
		resetDeadline()

		var env socketEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("slack: undecodable socket frame", "err", err)
			continue
		}

		switch env.Type {
		case "hello":
			logger.Info("slack socket connected")
			continue
		case "disconnect":
			return fmt.Errorf("slack: server requested disconnect: %s", env.Reason)
		}

		// Ack before dispatching; Slack redelivers anything not acked
		// within 3 seconds.
		if env.EnvelopeID != "" {
			if err := conn.WriteJSON(envelopeAck{EnvelopeID: env.EnvelopeID}); err != nil {
				return fmt.Errorf("slack: ack envelope: %w", err)
			}
		}

		s.dispatchEnvelope(ctx, &env, tx)
	}
}

// validateSocketURL rejects anything apps.connections.open should never
// return: non-wss schemes and hosts outside slack.com.
func validateSocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("slack: bad socket url: %w", err)
	}
	if u.Scheme != "wss" {
		return fmt.Errorf("slack: refusing non-wss socket url %q", raw)
	}
	host := u.Hostname()
	if host != "slack.com" && !strings.HasSuffix(host, ".slack.com") {
		return fmt.Errorf("slack: refusing socket host %q", host)
	}
	return nil
}

func (s *SlackChannel) dispatchEnvelope(ctx context.Context, env *socketEnvelope, tx chan<- *Message) {
	switch env.Type {
	case "events_api":
		s.dispatchEvent(ctx, env.Payload, tx)
	case "interactive":
		s.dispatchInteractive(ctx, env.Payload, tx)
	default:
		logger.Debug("slack: ignoring envelope", "type", env.Type)
	}
}

func (s *SlackChannel) dispatchEvent(ctx context.Context, payload json.RawMessage, tx chan<- *Message) {
	ev, err := slackevents.ParseEvent(payload, slackevents.OptionNoVerifyToken())
	if err != nil {
		logger.Warn("slack: parse event", "err", err)
		return
	}
	if ev.Type != slackevents.CallbackEvent {
		return
	}

	mentionToken := "<@" + s.botUserID + ">"

	switch inner := ev.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Mentions arrive twice, once as message and once as app_mention;
		// the app_mention copy is the one that gets handled.
		if strings.Contains(inner.Text, mentionToken) {
			return
		}
		s.handleMessage(ctx, inner.Channel, inner.User, inner.BotID, inner.SubType,
			inner.Text, inner.TimeStamp, inner.ThreadTimeStamp, false, tx)
	case *slackevents.AppMentionEvent:
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(inner.Text), mentionToken))
		s.handleMessage(ctx, inner.Channel, inner.User, "", "",
			text, inner.TimeStamp, inner.ThreadTimeStamp, true, tx)
	}
}
