// Package channel provides messaging channel adapters and their shared
// contract. Every adapter normalizes platform events into Message values
// and feeds one shared bounded queue.
package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/perchbot/perch/logger"
)

// Message is a normalized inbound message.
type Message struct {
	ID          string // platform-prefixed id, e.g. "slack_C123_1712.0001"
	Sender      string // platform user id
	ReplyTarget string // "<channel_id>" or "<channel_id>:<root_id>"
	Content     string
	Channel     string // adapter name the message arrived on
	Timestamp   int64  // unix seconds
	ThreadTS    string // Slack thread timestamp, when threaded
}

// SendMessage is an outbound message handed to an adapter.
type SendMessage struct {
	Recipient string // same grammar as Message.ReplyTarget
	Content   string
	ThreadTS  string
	Blocks    []slack.Block // Slack only; rendered instead of plain text
	Username  string        // Slack per-message display name override
	IconEmoji string        // Slack per-message icon override
	Broadcast bool          // Slack: mirror a threaded reply to the channel
}

// Channel is the adapter contract.
//
// Listen is called at most once and runs until ctx is done. Send, HealthCheck
// and the typing calls are safe to use concurrently with Listen.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg *SendMessage) error
	Listen(ctx context.Context, tx chan<- *Message) error
	HealthCheck(ctx context.Context) bool
	StartTyping(recipient string) error
	StopTyping(recipient string) error
}

// enqueue blocks until the queue accepts the message or ctx is done.
// Backpressure propagates to the adapter; nothing is dropped.
func enqueue(ctx context.Context, tx chan<- *Message, msg *Message) bool {
	select {
	case tx <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// splitRecipient separates the channel id from an optional thread root id.
func splitRecipient(recipient string) (channelID, rootID string) {
	channelID, rootID, _ = strings.Cut(recipient, ":")
	return channelID, rootID
}

// Manager manages multiple channels as a pure registry.
type Manager struct {
	channels map[string]Channel
}

// NewManager creates a new channel manager.
func NewManager() *Manager {
	return &Manager{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the manager and logs it. Nil is silently ignored.
func (m *Manager) Register(ch Channel) {
	if ch == nil {
		return
	}
	m.channels[ch.Name()] = ch
	logger.Info("channel registered", "channel", ch.Name())
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// SendTo sends a text message to a recipient on a named channel.
func (m *Manager) SendTo(ctx context.Context, channelName, recipient, text string) error {
	ch, ok := m.channels[channelName]
	if !ok {
		return fmt.Errorf("channel not found: %s", channelName)
	}
	return ch.Send(ctx, &SendMessage{Recipient: recipient, Content: text})
}

// ListenAll starts one listener goroutine per registered channel, all feeding
// the shared queue. Listener errors are logged, not fatal for the rest.
func (m *Manager) ListenAll(ctx context.Context, tx chan<- *Message) {
	for _, ch := range m.channels {
		go func(ch Channel) {
			if err := ch.Listen(ctx, tx); err != nil && ctx.Err() == nil {
				logger.Error("channel listener exited", "channel", ch.Name(), "err", err)
			}
		}(ch)
	}
}

// HealthAll reports per-channel health.
func (m *Manager) HealthAll(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		out[name] = ch.HealthCheck(ctx)
	}
	return out
}

// Each iterates over all registered channels.
func (m *Manager) Each(fn func(Channel)) {
	for _, ch := range m.channels {
		fn(ch)
	}
}
