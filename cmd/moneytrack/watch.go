package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"moneytrack/internal/backend"
	applog "moneytrack/internal/log"
	"moneytrack/internal/store"
	"moneytrack/internal/worker"
)

func watchCmd(rt *appState) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the ledger live and print totals after every change",
		Long: `Keep the ledger live until interrupted.

The ledger is refreshed when another process announces a change for the
signed-in user over AMQP (when AMQP_URL is set) and on a fixed interval.
Totals are printed after every completed refresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLedger(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = rt.app.Config.RefreshInterval
			}
			return rt.watch(cmd, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "periodic refresh interval, 0 to disable (default REFRESH_INTERVAL)")
	return cmd
}

func (rt *appState) watch(cmd *cobra.Command, interval time.Duration) error {
	ctx := cmd.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)

	subscriber, err := backend.NewSubscriber(rt.app.Backend, logger)
	if err != nil {
		return err
	}
	if subscriber != nil {
		defer subscriber.Close()
	}
	if subscriber == nil && interval <= 0 {
		logger.WarnContext(ctx, "Neither AMQP nor periodic refresh is enabled; totals will not change")
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	report := func(snap store.Snapshot) {
		if snap.Loading {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if snap.LastError != "" {
			fmt.Fprintf(out, "%s  refresh failed: %s\n", time.Now().Format(time.TimeOnly), snap.LastError)
			return
		}
		fmt.Fprintf(out, "%s  %d transactions\n", time.Now().Format(time.TimeOnly), len(snap.Records))
		_ = writeTotals(out, snap.Totals)
	}
	report(rt.app.Store.Snapshot())
	unsubscribe := rt.app.Store.Subscribe(report)
	defer unsubscribe()

	w := worker.NewChangeWorker(rt.app.Store, rt.app.Session.CurrentUserID, interval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.RunPeriodic(gctx)
	})
	if subscriber != nil {
		g.Go(func() error {
			return subscriber.Consume(gctx, w.HandleChange)
		})
	}

	logger.InfoContext(ctx, "Watching ledger", "interval", interval, "amqp_enabled", subscriber != nil)
	err = g.Wait()
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
