package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/inodb/covwatch/internal/translate"
)

// WriteSummary writes the outcome of a batch conversion: totals, counts per
// reason, and one row per descriptor that produced no variants.
func WriteSummary(w io.Writer, sum *translate.Summary) error {
	fmt.Fprintf(w, "\nConversion Summary:\n")
	fmt.Fprintf(w, "  Descriptors:  %d\n", sum.Total())
	fmt.Fprintf(w, "  Converted:    %d\n", sum.Converted)
	fmt.Fprintf(w, "  No change:    %d\n", len(sum.NoOp))
	fmt.Fprintf(w, "  Skipped:      %d\n", len(sum.Skipped))

	counts := sum.ReasonCounts()
	if len(counts) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nReason\tCount")
	for _, kind := range sum.Reasons() {
		fmt.Fprintf(tw, "%s\t%d\n", kind, counts[kind])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nLine\tDescriptor\tReason\tMessage")
	for _, list := range [][]translate.Failure{sum.Skipped, sum.NoOp} {
		for _, f := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.Line, f.Descriptor, f.Kind, failureMessage(f))
		}
	}
	return tw.Flush()
}

func failureMessage(f translate.Failure) string {
	if e, ok := f.Err.(*translate.Error); ok {
		return e.Msg
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return ""
}
