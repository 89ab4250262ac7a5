package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"orderdesk/internal/api"
	"orderdesk/internal/config"
)

type ServeOptions struct {
	*RootOptions
	Addr string
	Mail bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the desk over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default HTTP_ADDR)")
	cmd.Flags().BoolVar(&opts.Mail, "mail", false, "also run the mail listener against the same queue")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.HTTPAddr
	}

	a, err := openApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	server := api.NewServer(a.desk)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})

	if opts.Mail {
		l, err := a.listener(ctx)
		if err != nil {
			return err
		}
		g.Go(func() error { return l.Run(ctx) })
	}

	return g.Wait()
}

func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Poll the mailbox and queue purchase orders found in new mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !once {
				return RunListener(cmd.Context(), rootOpts.Config)
			}

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			l, err := a.listener(cmd.Context())
			if err != nil {
				return err
			}
			res, err := l.RunCycle(cmd.Context())
			if rerr := render(cmd, rootOpts, res, func(w io.Writer) {
				fmt.Fprintf(w, "fetched=%d stored=%d emails=%d queued=%d duplicates=%d skipped=%d failed=%d\n",
					res.Fetched, res.Stored, res.Emails, res.Queued, res.Duplicates, res.Skipped, res.Failed)
			}); rerr != nil {
				return rerr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single fetch and process cycle, then exit")

	return cmd
}

// RunListener runs the mail listener with its own desk until ctx is done.
func RunListener(ctx context.Context, cfg config.Config) error {
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	l, err := a.listener(ctx)
	if err != nil {
		return err
	}
	return l.Run(ctx)
}
