package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zulandar/reputation/internal/api"
	"github.com/zulandar/reputation/internal/config"
	"github.com/zulandar/reputation/internal/events"
	"github.com/zulandar/reputation/internal/relay"
)

// relayBuffer is the bus backlog each relay may fall behind by before it
// starts losing notifications.
const relayBuffer = 256

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and notification relays",
		Long: `Serves the ledger over HTTP and forwards notifications to the Slack and
Discord webhooks named in the relay section of the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if port == 0 {
		port = e.cfg.Server.Port
	}

	relays, err := buildRelays(e.cfg.Relay)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range relays {
		sub, cancel := e.bus.Subscribe(relayBuffer)
		defer cancel()
		g.Go(func() error {
			return relay.Run(gctx, sub, sink, e.logger)
		})
	}
	g.Go(func() error {
		return api.Start(gctx, api.StartOpts{
			Ledger:        e.ledger,
			Bus:           e.bus,
			Outbox:        e.outbox,
			Registry:      e.registry,
			Port:          port,
			ResponseRate:  e.cfg.Server.Rate(),
			ResponseBurst: e.cfg.Server.ResponseBurst,
			Logger:        e.logger,
			Out:           cmd.OutOrStdout(),
		})
	})

	e.logger.Info("serving", "store", e.store.Name(), "port", port, "relays", len(relays))
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Shut down cleanly.")
	return nil
}

// buildRelays returns one filtered sink per configured webhook.
func buildRelays(cfg config.RelayConfig) ([]events.Sink, error) {
	var sinks []events.Sink
	if cfg.Slack.WebhookURL != "" {
		sinks = append(sinks, relay.Filter{Types: cfg.Events, Sink: relay.NewSlack(cfg.Slack.WebhookURL)})
	}
	if cfg.Discord.WebhookID != "" {
		d, err := relay.NewDiscord(cfg.Discord.WebhookID, cfg.Discord.WebhookToken)
		if err != nil {
			return nil, fmt.Errorf("discord relay: %w", err)
		}
		sinks = append(sinks, relay.Filter{Types: cfg.Events, Sink: d})
	}
	return sinks, nil
}
