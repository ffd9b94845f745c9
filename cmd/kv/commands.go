package kv

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/kvr/lib/db"
	"github.com/ValentinKolb/kvr/lib/record"
	"github.com/ValentinKolb/kvr/lib/revision"
	"github.com/spf13/cobra"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [key] [value]",
		Short: "Inserts a new key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value, err := parseKeyValue(args[0], args[1])
			if err != nil {
				return err
			}
			rev, err := optionalRevision(cmd)
			if err != nil {
				return err
			}

			if rev.IsZero() {
				if rev, err = localStore.Create(key, value); err != nil {
					return err
				}
			} else if err := engine.Insert(key, value, rev); err != nil {
				return err
			}

			fmt.Printf("inserted key=%d, revision=%s\n", key, rev)
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [value] [expected-revision]",
		Short: "Replaces the value of a key if its current revision matches",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value, err := parseKeyValue(args[0], args[1])
			if err != nil {
				return err
			}
			expected, err := revision.Parse(args[2])
			if err != nil {
				return err
			}
			rev, err := optionalRevision(cmd)
			if err != nil {
				return err
			}

			if rev.IsZero() {
				if rev, err = localStore.Swap(key, value, expected); err != nil {
					return err
				}
			} else if err := engine.Update(key, value, rev, expected); err != nil {
				return err
			}

			fmt.Printf("updated key=%d, revision=%s\n", key, rev)
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Inserts or replaces a key, regardless of its current revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value, err := parseKeyValue(args[0], args[1])
			if err != nil {
				return err
			}
			rev, err := localStore.Put(key, value)
			if err != nil {
				return err
			}
			fmt.Printf("put key=%d, revision=%s\n", key, rev)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the current entry of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			entry, ok, err := localStore.Get(key)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("key=%d, found=false\n", key)
				return nil
			}
			printEntry(key, entry)
			return nil
		},
	}
	rangeCmd = &cobra.Command{
		Use:   "range",
		Short: "Lists the current entries of a key range in ascending key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lower, upper, err := rangeBounds(cmd)
			if err != nil {
				return err
			}
			n := 0
			for key, entry := range engine.Range(lower, upper) {
				printEntry(key, entry)
				n++
			}
			fmt.Printf("%d entries\n", n)
			return nil
		},
	}
	historyCmd = &cobra.Command{
		Use:   "history [key]",
		Short: "Lists all revisions of a key, newest first (requires --retain-history)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			entries, err := localStore.History(key)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				printEntry(key, entry)
			}
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func parseKey(s string) (uint64, error) {
	key, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("key must be an unsigned number: %w", err)
	}
	return key, nil
}

func parseKeyValue(k, v string) (uint64, uint64, error) {
	key, err := parseKey(k)
	if err != nil {
		return 0, 0, err
	}
	value, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("value must be an unsigned number: %w", err)
	}
	return key, value, nil
}

// optionalRevision returns the --revision flag, or the zero revision if it is not set
func optionalRevision(cmd *cobra.Command) (revision.Revision, error) {
	s, err := cmd.Flags().GetString("revision")
	if err != nil || s == "" {
		return revision.Zero, err
	}
	return revision.Parse(s)
}

// rangeBounds builds the range bounds from the --from, --to and --inclusive flags
func rangeBounds(cmd *cobra.Command) (db.Bound[uint64], db.Bound[uint64], error) {
	lower, upper := db.Unbounded[uint64](), db.Unbounded[uint64]()

	from, _ := cmd.Flags().GetString("from")
	if from != "" {
		k, err := parseKey(from)
		if err != nil {
			return lower, upper, err
		}
		lower = db.Included(k)
	}

	to, _ := cmd.Flags().GetString("to")
	if to != "" {
		k, err := parseKey(to)
		if err != nil {
			return lower, upper, err
		}
		if inclusive, _ := cmd.Flags().GetBool("inclusive"); inclusive {
			upper = db.Included(k)
		} else {
			upper = db.Excluded(k)
		}
	}

	return lower, upper, nil
}

func printEntry(key uint64, entry record.ValueEntry[uint64]) {
	prev := "none"
	if p, ok := entry.PrevRev.Get(); ok {
		prev = p.String()
	}
	fmt.Printf("key=%d, value=%d, revision=%s, prev=%s, time=%s\n",
		key, entry.Value, entry.Revision, prev, entry.Revision.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
}
