// Command netcode-server runs the authoritative Server Session standalone,
// wiring configuration, logging, and metrics together around it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ancillary-agi-foundry/netcode/internal/config"
	"github.com/ancillary-agi-foundry/netcode/internal/logging"
	"github.com/ancillary-agi-foundry/netcode/internal/metrics"
	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	port    int
	numBots int
)

func main() {
	root := &cobra.Command{
		Use:           "netcode-server",
		Short:         "Authoritative server session for the prediction/reconciliation netcode core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.Flags().IntVar(&port, "port", 0, "UDP port to bind (0 uses the config default)")
	root.Flags().IntVar(&numBots, "players", 2, "number of demo players to register")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	collector := metrics.New()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr, collector); err != nil {
				logger.Error("metrics", "metrics server stopped: "+err.Error())
			}
		}()
	}

	srv, err := server.New(server.Config{
		Port:              cfg.Server.Port,
		BroadcastInterval: cfg.Server.BroadcastInterval,
		ClientTimeout:     cfg.Server.ClientInactivityTimeout,
		Logger:            logger,
		Metrics:           collector,
	})
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	for i := 0; i < numBots; i++ {
		playerID := uint32(i + 1)
		srv.RegisterPlayer(playerID, entity.NewPlayerEntity(playerID))
	}

	logger.Info("server", fmt.Sprintf("listening on %s", srv.LocalAddr()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}
