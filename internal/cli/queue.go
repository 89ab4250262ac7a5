package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit today's queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List queued orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			state := a.desk.State()
			exported := a.desk.Exported()
			return render(cmd, rootOpts, map[string]any{"day_key": state.DayKey, "items": state.Items, "exported": exported}, func(w io.Writer) {
				fmt.Fprintf(w, "queue %s: %d orders", state.DayKey, len(state.Items))
				if exported {
					fmt.Fprint(w, " (exported)")
				}
				fmt.Fprintln(w)
				for _, item := range state.Items {
					printItem(w, item)
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one queued order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			item, err := a.desk.Get(args[0])
			if err != nil {
				return err
			}
			return render(cmd, rootOpts, item, func(w io.Writer) {
				printItem(w, item)
				printLines(w, item)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <order-id>",
		Short: "Remove an order from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			if err := a.desk.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the queue and delete the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			a.desk.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "queue cleared")
			return nil
		},
	})

	return cmd
}

func NewTintingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tinting",
		Short: "List queued lines that need tinting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			list := a.desk.TintingList()
			return render(cmd, rootOpts, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "nothing to tint")
					return
				}
				for _, line := range list {
					fmt.Fprintf(w, "%-24s %-20s %-40s %s\n", line.OrderID, line.CustomerName, line.ProductDescription, line.Quantity)
				}
			})
		},
	}
}

type RecoverOptions struct {
	*RootOptions
	Retry   bool
	Discard bool
}

func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Show, retry or discard an interrupted extraction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.Config)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			switch {
			case opts.Discard:
				if err := a.desk.DiscardInFlight(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "interrupted extraction discarded")
				return nil
			case opts.Retry:
				out, err := a.desk.RetryInFlightAuto(ctx)
				if err != nil {
					return err
				}
				return render(cmd, opts.RootOptions, out, func(w io.Writer) {
					if out.Result.Pending != nil {
						fmt.Fprintf(w, "possible duplicate of %s; not added\n", out.Result.Pending.Existing.OrderID)
						return
					}
					fmt.Fprint(w, "queued ")
					printItem(w, out.Item)
				})
			}

			inFlight := a.desk.InFlight()
			if inFlight == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no interrupted extraction")
				return nil
			}
			return render(cmd, opts.RootOptions, inFlight, func(w io.Writer) {
				fmt.Fprintf(w, "interrupted extraction %s started %s (%s, %d chars)\n",
					inFlight.ID, inFlight.StartedAt.Format("2006-01-02 15:04:05"), inFlight.Filename, len(inFlight.Text))
				fmt.Fprintln(w, "run with --retry to extract it again or --discard to drop it")
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Retry, "retry", false, "extract the saved text again")
	cmd.Flags().BoolVar(&opts.Discard, "discard", false, "drop the saved text")
	cmd.MarkFlagsMutuallyExclusive("retry", "discard")

	return cmd
}
