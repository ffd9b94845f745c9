package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ValentinKolb/kvr/cmd/util"
	"github.com/ValentinKolb/kvr/lib/backup"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Replays the log and checks that every record is valid",
		Long: util.WrapString("Replays the whole log. Any record that cannot be decoded fails the verification. " +
			"With --retain-history the revision lineage of every key is checked as well. " +
			"Prints a digest of the current entries that is equal for logs with equal content."),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			e, _, err := util.OpenEngine(cmd)
			if err != nil {
				return err
			}
			defer util.CloseEngine(e)

			if e.RetainsHistory() {
				if err := e.CheckLineage(); err != nil {
					return err
				}
			}

			digest, err := e.Digest()
			if err != nil {
				return err
			}

			fmt.Printf("ok: %d keys, %d historical entries, %d bytes, digest=%016x (%s)\n",
				e.Len(), e.HistoryLen(), e.LogSize(), digest, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the configuration and statistics of a log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, conf, err := util.OpenEngine(cmd)
			if err != nil {
				return err
			}
			defer util.CloseEngine(e)

			fmt.Println("Configuration:")
			fmt.Println(conf.String())
			fmt.Println("STATISTICS")
			fmt.Printf("  %-22s: %d\n", "Keys", e.Len())
			fmt.Printf("  %-22s: %d\n", "Historical Entries", e.HistoryLen())
			fmt.Printf("  %-22s: %d bytes\n", "Log Size", e.LogSize())

			if viper.GetBool("metrics") {
				fmt.Println()
				e.WriteMetrics(os.Stdout)
			}
			return nil
		},
	}
	backupCmd = &cobra.Command{
		Use:   "backup [file]",
		Short: "Writes a compressed backup of the log to a new file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := util.OpenEngine(cmd)
			if err != nil {
				return err
			}
			defer util.CloseEngine(e)

			c, err := backup.ParseCompression(viper.GetString("compression"))
			if err != nil {
				return err
			}

			out, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err != nil {
				return err
			}

			n, err := e.Backup(out, c)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(args[0])
				return err
			}

			fmt.Printf("backed up %d bytes to %s (%s)\n", n, args[0], c)
			return nil
		},
	}
	restoreCmd = &cobra.Command{
		Use:   "restore [file]",
		Short: "Restores a backup into the log file given by --path",
		Long:  util.WrapString("Restores a backup into the log file given by --path. The log file must not exist or be empty. The restored log is replayed once to verify it."),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			target := util.GetConfig().Path

			if err := requireEmpty(target); err != nil {
				return err
			}

			n, err := restoreFile(args[0], target)
			if err != nil {
				return err
			}

			// replay the restored log once
			e, _, err := util.OpenEngine(cmd)
			if err != nil {
				return fmt.Errorf("restored log is not valid: %w", err)
			}
			defer util.CloseEngine(e)

			fmt.Printf("restored %d bytes to %s (%d keys)\n", n, target, e.Len())
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// requireEmpty fails if path is an existing, non-empty file
func requireEmpty(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		return fmt.Errorf("refusing to restore into non-empty log %s", path)
	}
	return nil
}

// restoreFile restores the backup at src into a temporary file next to dst and renames it to dst
func restoreFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".restore-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := backup.Restore(tmp, in)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return n, err
	}
	return n, nil
}
