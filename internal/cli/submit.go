package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"orderdesk/internal/desk"
	"orderdesk/internal/extract"
)

type SubmitOptions struct {
	*RootOptions
	Text           string
	Filename       string
	AllowDuplicate bool
}

func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Extract a purchase order and add it to the queue",
		Long: `Extract a purchase order and add it to the queue.

The order is read from a PDF, XLSX, HTML or text file, from --text, or from
stdin when the file is "-". An order that matches one already queued is only
added with --allow-duplicate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Text, "text", "", "order text")
	cmd.Flags().StringVar(&opts.Filename, "filename", "", "source filename recorded with the order")
	cmd.Flags().BoolVar(&opts.AllowDuplicate, "allow-duplicate", false, "add the order even if it matches a queued one")

	return cmd
}

func runSubmit(cmd *cobra.Command, opts *SubmitOptions, args []string) error {
	text, filename, err := submitInput(cmd, opts, args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	submit := a.desk.SubmitAuto
	if opts.AllowDuplicate {
		submit = a.desk.Submit
	}
	out, err := submit(ctx, text, filename)
	if err != nil {
		return err
	}

	if out.Result.Pending != nil {
		if !opts.AllowDuplicate {
			return render(cmd, opts.RootOptions, out, func(w io.Writer) {
				fmt.Fprintf(w, "possible duplicate of %s (%s #%s); not added. Re-run with --allow-duplicate to add it anyway.\n",
					out.Result.Pending.Existing.OrderID, out.Result.Pending.Existing.CustomerName, out.Result.Pending.Existing.OrderNumber)
			})
		}
		item, err := a.desk.ConfirmPending()
		if err != nil {
			return err
		}
		out.Item = item
	}

	return render(cmd, opts.RootOptions, out, func(w io.Writer) {
		fmt.Fprint(w, "queued ")
		printItem(w, out.Item)
		printLines(w, out.Item)
		if out.Result.Reset {
			fmt.Fprintln(w, "note: the previous day's queue was discarded")
		}
		printWarnings(w, out.Order.Warnings)
	})
}

func submitInput(cmd *cobra.Command, opts *SubmitOptions, args []string) (string, string, error) {
	switch {
	case opts.Text != "":
		return opts.Text, opts.Filename, nil
	case len(args) == 0:
		return "", "", desk.ErrEmptyInput
	case args[0] == "-":
		blob, err := io.ReadAll(cmd.InOrStdin())
		return string(blob), opts.Filename, errors.Wrap(err, "read stdin")
	}

	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return "", "", errors.Wrapf(err, "open %s", path)
	}
	text, err := extract.ReadInput(path)
	if err != nil {
		return "", "", err
	}
	name := opts.Filename
	if name == "" {
		name = filepath.Base(path)
	}
	return text, name, nil
}
