package poller

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
)

const labelFormat = "15:04:05"

// Label formats a sample timestamp as a local HH:MM:SS chart label. It falls
// back to the raw value when the timestamp cannot be parsed.
func Label(timestamp string, loc *time.Location) string {
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return timestamp
	}

	return ts.In(loc).Format(labelFormat)
}

// WriteTable renders the window as a text table, oldest first.
func WriteTable(w io.Writer, window []api.ServerMetrics, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	if _, err := fmt.Fprintln(tw, "TIME\tCPU %\tMEMORY %\tDISK %\t"); err != nil {
		return err
	}

	for _, m := range window {
		if _, err := fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t\n", Label(m.Timestamp, loc), m.CPUUsage, m.MemoryUsage, m.DiskUsage); err != nil {
			return err
		}
	}

	return tw.Flush()
}
