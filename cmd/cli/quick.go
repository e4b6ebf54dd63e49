package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cyberdash/reconengine/internal/recon"
)

var quickTimeout time.Duration

// quickCmd represents the quick command
var quickCmd = &cobra.Command{
	Use:   "quick <target>",
	Short: "Check whether a target is up",
	Long: `Probe a small fixed set of common ports (80, 443, 22, 445 by default) with a
short timeout. The host is reported up when any port answers, either by
accepting the connection or by refusing it.`,
	Example: `  reconengine quick 192.0.2.10
  reconengine quick gateway.lan --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuick,
}

func init() {
	rootCmd.AddCommand(quickCmd)

	quickCmd.Flags().DurationVar(&quickTimeout, "timeout", 0, "Overall check deadline (0 means none)")
}

func runQuick(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context(), quickTimeout)
	defer cancel()

	result, err := engine.QuickScan(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == outputJSON {
		return writeJSON(out, result)
	}
	return renderLiveness(out, result)
}

// renderLiveness prints a liveness verdict and its per-port evidence.
func renderLiveness(w io.Writer, result *recon.LivenessResult) error {
	state := "down"
	if result.IsUp {
		state = "up"
	}
	fmt.Fprintf(w, "Target: %s (%s)\n", result.Target.Address, hostnameOrDash(result.Target))
	fmt.Fprintf(w, "Host is %s, %d open port(s)\n\n", state, result.OpenPortCount)

	table := tablewriter.NewWriter(w)
	table.Header("Port", "Status", "Service")
	for _, r := range result.Results {
		if err := table.Append([]string{strconv.Itoa(int(r.Port)), string(r.Status), r.Service}); err != nil {
			return err
		}
	}
	return table.Render()
}
