package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/opensync/syftsync/internal/journal"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last known sync state per path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig(cmd)
			if err != nil {
				return err
			}

			j, err := journal.Open(filepath.Join(cfg.DataDir, ".data", journalFileName))
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			if !watch {
				return printJournalSnapshot(cmd, j)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := printJournalSnapshot(cmd, j); err != nil {
					return err
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling and reprinting the journal")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval when --watch is set")

	return cmd
}

// printJournalSnapshot prints the journal's durable per-path state. This
// reads the same on-disk state the next sync cycle would diff against,
// which is the best available substitute for a live daemon status feed
// since the daemon exposes no other query surface of its own.
func printJournalSnapshot(cmd *cobra.Command, j *journal.Journal) error {
	state, err := j.GetState()
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	paths := make([]string, 0, len(state))
	for p := range state {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(out, "no tracked paths")
		return nil
	}
	for _, p := range paths {
		meta := state[p]
		_, kind, err := j.Get(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%-10s %s (%d bytes, hash %.8s)\n", kind, p, meta.FileSize, meta.Hash)
	}
	return nil
}
