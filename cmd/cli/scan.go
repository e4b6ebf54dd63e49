package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/recon"
)

var (
	scanPorts    string
	scanTimeout  time.Duration
	scanSave     bool
	scanOnlyOpen bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Probe a target's TCP ports with full connect attempts",
	Long: `Resolve a single IPv4 address or hostname and probe its TCP ports with
full connect attempts in fixed-size batches. Without --ports the built-in
reference table of 20 well-known services is used.

Every port is reported as open (handshake completed), closed (connection
refused) or filtered (timeout or unreachable).`,
	Example: `  reconengine scan 192.0.2.10
  reconengine scan example.com --ports 22,80,443
  reconengine scan 10.0.0.5 --ports 8000-8010 --output json
  reconengine scan db.internal --save`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "", "Ports to scan (e.g. '22,80,443' or '8000-8010')")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Overall scan deadline (0 means none)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Store the report in the history database")
	scanCmd.Flags().BoolVar(&scanOnlyOpen, "open", false, "Show only open ports in table output")
}

func runScan(cmd *cobra.Command, args []string) error {
	ports, err := parsePortList(scanPorts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context(), scanTimeout)
	defer cancel()

	report, err := engine.FullScan(ctx, args[0], ports)
	if err != nil {
		return err
	}

	if scanSave {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.SaveReport(ctx, report); err != nil {
			return err
		}
		logging.Info("Report saved", "scan_id", report.ID.String())
	}

	out := cmd.OutOrStdout()
	if outputFormat == outputJSON {
		return writeJSON(out, report)
	}
	return renderReport(out, report, scanOnlyOpen)
}

// commandContext derives a context that is cancelled on SIGINT/SIGTERM and,
// when timeout is positive, after timeout.
func commandContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// renderReport prints a report as a port table followed by its summary.
func renderReport(w io.Writer, report *recon.Report, onlyOpen bool) error {
	fmt.Fprintf(w, "Target:   %s (%s)\n", report.Target.Address, hostnameOrDash(report.Target))
	fmt.Fprintf(w, "Scan ID:  %s\n", report.ID)
	fmt.Fprintf(w, "Started:  %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n\n", report.Duration.Round(time.Millisecond))

	table := tablewriter.NewWriter(w)
	table.Header("Port", "Status", "Service", "RTT", "Reason")
	for _, r := range report.Results {
		if onlyOpen && r.Status != recon.StatusOpen {
			continue
		}
		if err := table.Append([]string{
			strconv.Itoa(int(r.Port)),
			string(r.Status),
			r.Service,
			r.RTT.Round(time.Microsecond).String(),
			r.Reason,
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := report.Summary
	_, err := fmt.Fprintf(w, "\n%d ports: %d open, %d closed, %d filtered, %d errors\n",
		s.Total, s.Open, s.Closed, s.Filtered, s.Errors)
	return err
}
