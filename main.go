// perch bridges Slack and Mattermost into one normalized message queue.
package main

import (
	"fmt"
	"os"

	"github.com/perchbot/perch/cmd"
	"github.com/perchbot/perch/config"
	"github.com/perchbot/perch/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	configDir, _ := config.ConfigDir()
	if err := logger.Init(cfg.BuildLoggerConfig(), configDir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	cmd.Execute()
}
