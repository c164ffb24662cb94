// Command netcode-client runs a standalone Client Session against a
// netcode-server instance: it registers, feeds a scripted input sequence
// through prediction, drives reconciliation and interpolation each tick,
// and counts reconciliations in its metrics collector.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ancillary-agi-foundry/netcode/client"
	"github.com/ancillary-agi-foundry/netcode/internal/config"
	"github.com/ancillary-agi-foundry/netcode/internal/logging"
	"github.com/ancillary-agi-foundry/netcode/internal/metrics"
	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	serverAddr string
	playerID   uint32
)

func main() {
	root := &cobra.Command{
		Use:           "netcode-client",
		Short:         "Client session for the prediction/reconciliation netcode core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.Flags().StringVar(&serverAddr, "server", "127.0.0.1:9500", "server UDP address")
	root.Flags().Uint32Var(&playerID, "player-id", 1, "this client's player ID")

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

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	collector := metrics.New()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr, collector); err != nil {
				logger.Error("metrics", "metrics server stopped: "+err.Error())
			}
		}()
	}

	sess, err := client.New(client.Config{
		ServerAddr:               serverAddr,
		PlayerID:                 playerID,
		Entity:                   entity.NewPlayerEntity(playerID),
		Logger:                   logger,
		Metrics:                  collector,
		ReconciliationThreshold:  cfg.Tuning.ReconciliationThreshold,
		InterpolationDelay:       cfg.Tuning.InterpolationDelay,
		MaxInterpolationDistance: cfg.Tuning.MaxInterpolationDistance,
		RegistrationTimeout:      cfg.Tuning.RegistrationTimeout,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	defer sess.Stop()

	const tickDelta = time.Second / 60
	ticker := time.NewTicker(tickDelta)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sess.SendInput(netmath.Vector3{X: 1}, false); err != nil {
				logger.Warn("client", "send input failed: "+err.Error())
			}
			sess.UpdateReconciliation(tickDelta)
			sess.UpdateRemote(tickDelta)
		}
	}
}
