package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/syncintent"
)

var syncOnce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Dispatch pending sync intents to Temporal",
	Long:  "Drains the sync outbox, starting one downstream workflow per intent. Runs until interrupted unless --once is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		tc, err := syncintent.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer tc.Close()

		drainer := syncintent.NewDrainer(env.Store, syncintent.NewTemporalDispatcher(tc, cfg.Temporal), cfg.Sync.MaxAttempts)
		if syncOnce {
			return drainOnce(ctx, drainer)
		}

		interval := time.Duration(cfg.Sync.IntervalSecs) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		zap.L().Info("sync loop started", zap.Duration("interval", interval))
		for {
			if err := drainOnce(ctx, drainer); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				zap.L().Error("sync pass failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				zap.L().Info("sync loop stopped")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func drainOnce(ctx context.Context, d *syncintent.Drainer) error {
	res, err := d.Drain(ctx, cfg.Sync.BatchSize)
	if err != nil {
		return eris.Wrap(err, "drain outbox")
	}
	if res.Dispatched+res.Failed > 0 {
		zap.L().Info("sync pass complete",
			zap.Int("dispatched", res.Dispatched),
			zap.Int("failed", res.Failed),
		)
	}
	return nil
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "drain one batch and exit")
	rootCmd.AddCommand(syncCmd)
}
