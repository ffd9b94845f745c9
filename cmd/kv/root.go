package kv

import (
	"github.com/ValentinKolb/kvr/cmd/util"
	"github.com/ValentinKolb/kvr/lib/store"
	"github.com/ValentinKolb/kvr/lib/store/lstore"
	"github.com/spf13/cobra"
)

var (
	engine     *util.Engine
	localStore store.IStore[uint64, uint64]

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value operations on a log file",
		PersistentPreRunE: setupStore,
	}
)

func init() {
	// runs even if the command failed
	cobra.OnFinalize(closeStore)

	// Add subcommands
	KeyValueCommands.AddCommand(insertCmd)
	KeyValueCommands.AddCommand(updateCmd)
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(rangeCmd)
	KeyValueCommands.AddCommand(historyCmd)
	KeyValueCommands.AddCommand(perfTestCmd)

	// Flags
	key := "revision"
	insertCmd.Flags().String(key, "", util.WrapString("Revision of the new entry (generated if empty)"))
	updateCmd.Flags().String(key, "", util.WrapString("Revision of the new entry (generated if empty)"))

	key = "from"
	rangeCmd.Flags().String(key, "", util.WrapString("First key of the range (inclusive, unbounded if empty)"))
	key = "to"
	rangeCmd.Flags().String(key, "", util.WrapString("Last key of the range (exclusive, unbounded if empty)"))
	key = "inclusive"
	rangeCmd.Flags().Bool(key, false, util.WrapString("Include the --to key in the range"))
}

// setupStore opens the engine and the local store on top of it
func setupStore(cmd *cobra.Command, _ []string) error {
	var err error
	engine, _, err = util.OpenEngine(cmd)
	if err != nil {
		return err
	}
	localStore = lstore.NewLocalStore[uint64, uint64](engine)
	return nil
}

// closeStore closes the engine after the command ran
func closeStore() {
	util.CloseEngine(engine)
	engine = nil
	localStore = nil
}
