package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/muster/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signup engine against the platform event stream",
		Long: `Read reaction and message events as JSON lines on stdin and write
platform instructions as JSON lines on stdout. The lifecycle scheduler runs
alongside, sending reminders and retiring past operations.

Runs until SIGINT/SIGTERM or until stdin is closed.`,
		RunE: runServe,
	}

	bindConfigFlags(cmd)
	cmd.Flags().String("event-channel", "", "Channel that carries operation posts (env MUSTER_EVENT_CHANNEL_ID)")
	cmd.Flags().String("staff-role", "", "Role allowed to create and manage operations (env MUSTER_STAFF_ROLE_ID)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := wire.Build(cfg, logger, wire.Options{Out: cmd.OutOrStdout(), Queued: true})
	if err != nil {
		return err
	}

	// The dispatcher outlives the gateway and scheduler so renders flushed
	// during shutdown still reach the transport.
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	dispatchDone := make(chan error, 1)
	go func() { dispatchDone <- a.Dispatcher.Run(dispatchCtx) }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return a.Gateway().Run(gctx, cmd.InOrStdin())
	})
	g.Go(func() error {
		return a.Scheduler.Run(gctx)
	})

	logger.Info("muster serving", "event_channel", cfg.EventChannelID, "timezone", cfg.Timezone)
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	closeErr := a.Close(context.Background())
	stopDispatch()
	dispatchErr := <-dispatchDone

	logger.Info("muster stopped")
	return errors.Join(runErr, closeErr, dispatchErr)
}
