// Command moneytrack is a terminal client for a personal income and expense
// ledger kept on a remote backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"moneytrack/internal/cli"
	"moneytrack/internal/config"
	applog "moneytrack/internal/log"
)

// appState carries what PersistentPreRunE builds to the subcommands.
type appState struct {
	envFile string
	backend string
	appOpts []cli.AppOption

	app *cli.App
}

func newRootCmd(rt *appState) *cobra.Command {
	root := &cobra.Command{
		Use:   "moneytrack",
		Short: "Track income and expenses against a remote ledger",
		Long: `moneytrack keeps a personal ledger of income and expenses.

Positive amounts are income, negative amounts are expenses. Sign in once and
the session is remembered between runs.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
	}

	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "environment file to load before reading configuration")
	root.PersistentFlags().StringVar(&rt.backend, "backend", "", "override DATA_BACKEND (memory, sqlite, sheets, rest)")

	root.AddCommand(
		loginCmd(rt),
		registerCmd(rt),
		logoutCmd(rt),
		whoamiCmd(rt),
		listCmd(rt),
		addCmd(rt),
		deleteCmd(rt),
		summaryCmd(rt),
		watchCmd(rt),
	)
	return root
}

func (rt *appState) setup(cmd *cobra.Command, _ []string) error {
	if err := cli.LoadEnvFile(rt.envFile); err != nil {
		return err
	}
	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if rt.backend != "" {
			c.DataBackend = rt.backend
		}
	})
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, cmd.ErrOrStderr())
	cmd.SetContext(applog.WithContext(cmd.Context(), logger))

	app, err := cli.NewApp(cmd.Context(), cfg, logger, rt.appOpts...)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	rt.app = app
	return nil
}

// close releases the app even when the command failed, so the memory
// backend is saved and database handles are closed.
func (rt *appState) close() error {
	if rt.app == nil {
		return nil
	}
	err := rt.app.Close()
	rt.app = nil
	return err
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, opts ...cli.AppOption) error {
	rt := &appState{appOpts: opts}
	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, rt.close())
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
