package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ticketsync/internal/app"
	"ticketsync/internal/config"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/session"
)

// cli carries what every subcommand shares. It is filled in by the root
// command's pre-run so tests can change the environment between runs.
type cli struct {
	cfg    config.AppConfig
	logger *zap.Logger
	asJSON bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "ticketsync",
		Short:         "Maintenance ticket client",
		Long:          "ticketsync signs in to the maintenance ticket API, manages tickets, users and your account, and streams live ticket updates.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			c.cfg = config.Load()
			logger, err := app.NewLogger(c.cfg.LogLevel, c.cfg.LogFormat)
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newStatusCmd(c),
		newTicketsCmd(c),
		newUsersCmd(c),
		newAccountCmd(c),
		newWatchCmd(c),
	)

	return rootCmd
}

// build wires the application context without touching persisted state.
func (c *cli) build(ctx context.Context, realtime bool) (*app.App, error) {
	nav := session.NewPathNavigator("/", func(path string) {
		if path == session.LoginPath {
			c.logger.Warn("session expired, run `ticketsync login` again")
		}
	})
	return app.New(ctx, app.Options{
		Config:    c.cfg,
		Logger:    c.logger,
		Navigator: nav,
		Realtime:  realtime,
	})
}

// open is build with the persisted session restored.
func (c *cli) open(ctx context.Context, realtime bool) (*app.App, error) {
	a, err := c.build(ctx, realtime)
	if err != nil {
		return nil, err
	}
	if _, err := a.Session.Restore(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return a, nil
}

// openSession is open for commands that need a signed-in user. The access
// token is not persisted; the first request recovers it through the
// refresh cookie.
func (c *cli) openSession(ctx context.Context) (*app.App, error) {
	a, err := c.open(ctx, false)
	if err != nil {
		return nil, err
	}
	if !a.Session.IsAuthenticated() {
		_ = a.Close()
		return nil, fmt.Errorf("run `ticketsync login` first: %w", xerrors.ErrNotAuthenticated)
	}
	return a, nil
}

// friendly swaps API failures for their user-facing text while keeping the
// chain for errors.Is.
func friendly(err error) error {
	if err == nil {
		return nil
	}
	if xerrors.KindOf(err) == xerrors.KindUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", xerrors.UserMessage(err), err)
}
