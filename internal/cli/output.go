package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"orderdesk/internal"
)

// render prints v as indented JSON in json mode and calls text otherwise.
func render(cmd *cobra.Command, opts *RootOptions, v any, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

func printItem(w io.Writer, item internal.QueueItem) {
	fmt.Fprintf(w, "%s  %s  %s  #%s  (%d lines)\n", item.OrderID, item.OrderDate, item.CustomerName, item.OrderNumber, len(item.Items))
}

func printLines(w io.Writer, item internal.QueueItem) {
	for _, line := range item.Items {
		fmt.Fprintf(w, "  %-12s %-40s %8s  %s\n", line.LineID[strings.LastIndex(line.LineID, "-")+1:], line.Description(), line.Quantity, line.Tinting)
	}
}

func printWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}
