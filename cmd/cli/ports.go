package cli

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cyberdash/reconengine/internal/recon"
)

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the reference ports probed by default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports := recon.ReferencePorts()
		if outputFormat == outputJSON {
			return writeJSON(cmd.OutOrStdout(), ports)
		}
		return renderPorts(cmd.OutOrStdout(), ports)
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func renderPorts(w io.Writer, ports []recon.PortSpec) error {
	table := tablewriter.NewWriter(w)
	table.Header("Port", "Service")
	for _, p := range ports {
		if err := table.Append([]string{strconv.Itoa(int(p.Port)), p.Service}); err != nil {
			return err
		}
	}
	return table.Render()
}
