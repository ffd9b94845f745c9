package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/kvr/cmd/kv"
	"github.com/ValentinKolb/kvr/cmd/logfile"
	"github.com/ValentinKolb/kvr/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvr",
		Short: "revisioned key-value store on an append-only log",
		Long: fmt.Sprintf(`kvr (v%s)

An embedded key-value store written in Go. Every write is appended
to a log file and carries a revision; the log is replayed on startup.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvr",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvr v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(logfile.LogCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupEngineFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
