package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/chatkeeper/internal/config"
	"github.com/crystaldolphin/chatkeeper/internal/dependency"
	"github.com/crystaldolphin/chatkeeper/internal/httpapi"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.Conversations().StartSweeper(ctx, cfg.Conversation.SweepSchedule); err != nil {
		return err
	}

	fmt.Printf("%s Serving on %s (model %s)\n", logo, cfg.Server.Addr(), container.Model())
	srv := httpapi.New(container.Conversations(), container.Pipeline(), container.Metrics())
	return srv.ListenAndServe(ctx, cfg.Server.Addr())
}
