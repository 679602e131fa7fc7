package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	wstypes "ticketsync/internal/domain/realtime"
	xerrors "ticketsync/internal/pkg/errors"
)

func newWatchCmd(c *cli) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live ticket changes until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			a, err := c.build(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			printf := func(format string, args ...any) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, format, args...)
			}

			unsubscribeState := a.Channel.OnStateChange(func(s wstypes.ConnState) {
				printf("%s  connection %s\n", time.Now().Format(time.TimeOnly), s)
			})
			defer unsubscribeState()
			unsubscribe := a.Listeners.Subscribe(func(evt wstypes.TicketEvent) {
				if c.asJSON {
					mu.Lock()
					defer mu.Unlock()
					_ = writeJSON(cmd, evt)
					return
				}
				if evt.Ticket == nil {
					printf("%s  %s  %s\n", time.Now().Format(time.TimeOnly), evt.Event, evt.TicketID)
					return
				}
				printf("%s  %s  %s  [%s]  %s\n", time.Now().Format(time.TimeOnly), evt.Event, evt.TicketID, evt.Ticket.Status.Label(), evt.Ticket.Title)
			})
			defer unsubscribe()

			// Start restores and confirms the session; the channel connects
			// from the session observer once it is authenticated.
			st, err := a.Start(ctx)
			if err != nil {
				return err
			}
			if !st.IsAuthenticated {
				return fmt.Errorf("run `ticketsync login` first: %w", xerrors.ErrNotAuthenticated)
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}
