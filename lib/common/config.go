package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/kvr/lib/db"
)

// --------------------------------------------------------------------------
// Engine configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters of an engine opened by the CLI.
type Config struct {
	// Path of the log file
	Path string

	// Engine options
	RetainHistory bool
	SkipHeader    bool
	SyncWrites    bool
	ReadBufferKB  int
	BTreeDegree   int

	// Logging configuration
	LogLevel string
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Path) == "" {
		errs = append(errs, errors.New("no log file path configured"))
	}
	if c.ReadBufferKB < 0 {
		errs = append(errs, fmt.Errorf("read buffer must not be negative, got %d KB", c.ReadBufferKB))
	}
	if c.BTreeDegree != 0 && c.BTreeDegree < 2 {
		errs = append(errs, fmt.Errorf("b-tree degree must be at least 2, got %d", c.BTreeDegree))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ToOptions converts the Config to engine options
func (c *Config) ToOptions() *db.Options {
	opts := db.DefaultOptions()
	opts.RetainHistory = c.RetainHistory
	opts.SkipHeader = c.SkipHeader
	opts.SyncWrites = c.SyncWrites
	if c.ReadBufferKB > 0 {
		opts.ReadBufferSize = c.ReadBufferKB * 1024
	}
	if c.BTreeDegree > 0 {
		opts.BTreeDegree = c.BTreeDegree
	}
	return opts
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	opts := c.ToOptions()

	// Storage
	addSection("Storage")
	addField("Log File", c.Path)
	addField("Header", fmt.Sprintf("%t", !opts.SkipHeader))
	addField("Sync Writes", fmt.Sprintf("%t", opts.SyncWrites))

	// Index
	addSection("Index")
	addField("Retain History", fmt.Sprintf("%t", opts.RetainHistory))
	addField("B-Tree Degree", fmt.Sprintf("%d", opts.BTreeDegree))
	addField("Read Buffer", fmt.Sprintf("%d KB", opts.ReadBufferSize/1024))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
