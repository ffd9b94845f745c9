package logfile

import (
	"github.com/ValentinKolb/kvr/cmd/util"
	"github.com/spf13/cobra"
)

var (
	// LogCommands represents the command group for whole log files
	LogCommands = &cobra.Command{
		Use:   "log",
		Short: "Verify, inspect, back up and restore log files",
	}
)

func init() {
	// Add subcommands
	LogCommands.AddCommand(verifyCmd)
	LogCommands.AddCommand(statsCmd)
	LogCommands.AddCommand(backupCmd)
	LogCommands.AddCommand(restoreCmd)

	// Flags
	key := "compression"
	backupCmd.Flags().String(key, "zstd", util.WrapString("Compression of the backup (none, snappy, lz4, zstd)"))
	key = "metrics"
	statsCmd.Flags().Bool(key, false, util.WrapString("Also print the engine metrics in Prometheus text format"))
}
