package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/kvr/lib/codec"
	"github.com/ValentinKolb/kvr/lib/common"
	"github.com/ValentinKolb/kvr/lib/db"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// Engine is the engine type all commands work with: uint64 keys and uint64 values
type Engine = db.Engine[uint64, uint64]

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the engine configuration flags to a command
func SetupEngineFlags(cmd *cobra.Command) {
	key := "path"
	cmd.PersistentFlags().String(key, "kvr.log", WrapString("Path of the log file. It is created if it does not exist"))

	key = "retain-history"
	cmd.PersistentFlags().Bool(key, false, WrapString("Keep every revision of every key in memory (required for history and lineage checks)"))

	key = "skip-header"
	cmd.PersistentFlags().Bool(key, false, WrapString("Neither write nor expect the magic header record (for logs written without one)"))

	key = "sync-writes"
	cmd.PersistentFlags().Bool(key, false, WrapString("Fsync the log after every write"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 1024, WrapString("The size of the read buffer used to replay the log (in KB)"))

	key = "btree-degree"
	cmd.PersistentFlags().Int(key, 32, WrapString("The degree of the index b-trees"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error, off)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvr")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the engine configuration from viper
func GetConfig() *common.Config {
	return &common.Config{
		Path:          viper.GetString("path"),
		RetainHistory: viper.GetBool("retain-history"),
		SkipHeader:    viper.GetBool("skip-header"),
		SyncWrites:    viper.GetBool("sync-writes"),
		ReadBufferKB:  viper.GetInt("read-buffer"),
		BTreeDegree:   viper.GetInt("btree-degree"),
		LogLevel:      viper.GetString("log-level"),
	}
}

// OpenEngine validates the configuration, sets up logging and opens the engine
func OpenEngine(cmd *cobra.Command) (*Engine, *common.Config, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, nil, err
	}

	conf := GetConfig()
	if err := conf.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, nil, err
	}

	log.Debugf("configuration:%s", conf)

	e, err := db.Open[uint64, uint64](conf.Path, codec.Uint64, codec.Uint64, conf.ToOptions())
	if err != nil {
		return nil, nil, err
	}
	return e, conf, nil
}

// CloseEngine closes e and logs a failure instead of hiding it
func CloseEngine(e *Engine) {
	if e == nil {
		return
	}
	if err := e.Close(); err != nil {
		log.Errorf("failed to close %s: %v", e.Path(), err)
	}
}
