package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/perchbot/perch/channel"
	"github.com/perchbot/perch/config"
	"github.com/perchbot/perch/guard"
	"github.com/perchbot/perch/thread"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a one-off message through a configured channel",
	RunE:  runSend,
}

var (
	sendChannel string
	sendTo      string
	sendText    string
)

func init() {
	sendCmd.Flags().StringVar(&sendChannel, "channel", "slack", "Channel to send through (slack or mattermost)")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "Recipient: <channel_id> or <channel_id>:<thread_id> (required)")
	sendCmd.Flags().StringVar(&sendText, "text", "", "Message text (required)")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(sendCmd)
}

func runSend(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var ch channel.Channel
	switch strings.ToLower(strings.TrimSpace(sendChannel)) {
	case "slack":
		clock := clockwork.NewRealClock()
		slackCh := channel.NewSlackChannel(cfg, thread.NewEngine(clock), thread.NewTimerPool(clock))
		if slackCh == nil {
			return fmt.Errorf("slack is not configured")
		}
		ch = slackCh
	case "mattermost":
		mmCh := channel.NewMattermostChannel(cfg, guard.New(guard.ActionWarn, nil))
		if mmCh == nil {
			return fmt.Errorf("mattermost is not configured")
		}
		ch = mmCh
	default:
		return fmt.Errorf("unknown channel %q", sendChannel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ch.Send(ctx, &channel.SendMessage{
		Recipient: strings.TrimSpace(sendTo),
		Content:   strings.TrimSpace(sendText),
	}); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	fmt.Printf("Message sent to %s via %s\n", sendTo, ch.Name())
	return nil
}
