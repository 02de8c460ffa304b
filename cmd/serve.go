package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/perchbot/perch/channel"
	"github.com/perchbot/perch/config"
	"github.com/perchbot/perch/guard"
	"github.com/perchbot/perch/internal/health"
	"github.com/perchbot/perch/logger"
	"github.com/perchbot/perch/thread"
	"github.com/perchbot/perch/webhook"
)

const healthLogInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start perch as a service with all configured channels",
	Long: `Start perch as a long-running service. Every configured channel
adapter feeds one shared message queue.

Examples:
  perch serve          # Start all configured channels
  perch serve --echo   # Echo received messages back (smoke test)`,
	RunE: runServe,
}

var serveEcho bool

func init() {
	serveCmd.Flags().BoolVar(&serveEcho, "echo", false, "Echo received messages back to their reply target")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	clock := clockwork.NewRealClock()
	g := guard.New(guard.ParseAction(cfg.Guard.Action), cfg.Guard.ExtraPatterns)
	engine := thread.NewEngine(clock)
	timers := thread.NewTimerPool(clock)
	manager := channel.NewManager()

	// Constructors return nil for unconfigured channels; the nil checks stay
	// on the concrete types so a typed nil never lands in the registry.
	var projectChannels webhook.ProjectChannelCreator
	if slackCh := channel.NewSlackChannel(cfg, engine, timers); slackCh != nil {
		manager.Register(slackCh)
		projectChannels = slackCh
		logger.Info("slack channel enabled")
	}
	if mmCh := channel.NewMattermostChannel(cfg, g); mmCh != nil {
		manager.Register(mmCh)
		logger.Info("mattermost channel enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	queue := make(chan *channel.Message, cfg.Queue.Size)
	manager.ListenAll(ctx, queue)

	if cfg.Webhook.Port > 0 {
		var alertsURL string
		if mm := cfg.MattermostConfig(); mm != nil {
			alertsURL = mm.AlertsIncomingWebhookURL
		}
		srv := webhook.NewServer(cfg.Webhook.SigningSecret, projectChannels,
			webhook.NewForwarder(alertsURL), manager)
		go func() {
			if err := srv.Run(ctx, cfg.Webhook.Port); err != nil {
				logger.Error("webhook listener failed", "err", err)
			}
		}()
	}

	go logHealth(ctx, clock, manager)

	logger.Info("perch service started")
	fmt.Println("perch is running. Press Ctrl+C to stop.")

	drainQueue(ctx, queue, manager)

	timers.StopAll()
	logger.Info("perch service stopped")
	return nil
}

// drainQueue is the downstream integration point. Messages are logged and,
// with --echo, reflected back to their reply target.
func drainQueue(ctx context.Context, queue <-chan *channel.Message, manager *channel.Manager) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			logger.Info("message received",
				"id", msg.ID, "channel", msg.Channel, "sender", msg.Sender,
				"target", msg.ReplyTarget, "len", len(msg.Content))
			if serveEcho {
				if err := manager.SendTo(ctx, msg.Channel, msg.ReplyTarget, msg.Content); err != nil {
					logger.Error("echo failed", "channel", msg.Channel, "err", err)
				}
			}
		}
	}
}

func logHealth(ctx context.Context, clock clockwork.Clock, manager *channel.Manager) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-clock.After(healthLogInterval):
			snap := health.Collect(ctx, manager)
			logger.Info("health snapshot",
				"status", snap.Status, "goroutines", snap.Goroutines,
				"allocMB", fmt.Sprintf("%.1f", snap.Memory.AllocMB),
				"channels", snap.Channels)
		}
	}
}
