package cmdutils

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

const logo = "🗂"

func PrintResponse(text string) {
	if text == "" {
		return
	}

	fmt.Printf("\n%s chatkeeper\n%s\n\n", logo, text)
}

// PrintTable writes aligned key/value rows, e.g. for /stats.
func PrintTable(w io.Writer, rows [][2]string) {
	if w == nil {
		w = os.Stdout
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%s\n", r[0], r[1])
	}
	tw.Flush()
}
