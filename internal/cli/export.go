package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export orders to spreadsheets and the remote production sheet",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "order <order-id>",
		Short: "Write one queued order to a local XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			path, err := a.desk.ExportOrder(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "queue",
		Short: "Export today's queue as the next batch and sync it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			res, err := a.desk.ExportQueue(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, rootOpts, res, func(w io.Writer) {
				fmt.Fprintf(w, "batch %d: %d extraction rows, %d tinting rows\n", res.BatchNumber, res.ExtractionRows, res.TintingRows)
				fmt.Fprintf(w, "workbook %s\n", res.FilePath)
				if res.Duplicate {
					fmt.Fprintln(w, "the remote already had this batch")
				}
				if res.Message != "" {
					fmt.Fprintln(w, res.Message)
				}
				if res.Stale {
					fmt.Fprintln(w, "the queue changed during the export and is not marked exported")
				}
			})
		},
	})

	var csvOrder, csvOut string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write the queue, or one order, as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			w := cmd.OutOrStdout()
			if csvOut != "" && csvOut != "-" {
				f, err := os.Create(csvOut)
				if err != nil {
					return errors.Wrapf(err, "create %s", csvOut)
				}
				defer func() { err = multierr.Append(err, f.Close()) }()
				w = f
			}
			if csvOrder != "" {
				return a.desk.OrderCSV(w, csvOrder)
			}
			return a.desk.QueueCSV(w)
		},
	}
	csvCmd.Flags().StringVar(&csvOrder, "order", "", "export only this order")
	csvCmd.Flags().StringVarP(&csvOut, "out", "o", "", "output file (default stdout)")
	cmd.AddCommand(csvCmd)

	var confirmed bool
	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Remove the last synced batch from the remote sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			msg, err := a.desk.Rollback(cmd.Context(), confirmed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	rollbackCmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the rollback")
	cmd.AddCommand(rollbackCmd)

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent batch exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			recs, err := a.desk.Exports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return render(cmd, rootOpts, recs, func(w io.Writer) {
				for _, rec := range recs {
					fmt.Fprintf(w, "%s  batch %-4d %-9s %3d rows  %s\n", rec.ExportedAt.Format("2006-01-02 15:04"), rec.BatchNumber, rec.Status, rec.ExtractionRows, rec.ExportID)
				}
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "number of exports to show")
	cmd.AddCommand(historyCmd)

	return cmd
}
