package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/opensync/syftsync/internal/acltree"
	"github.com/opensync/syftsync/internal/config"
	"github.com/opensync/syftsync/internal/journal"
	"github.com/opensync/syftsync/internal/status"
	"github.com/opensync/syftsync/internal/syncclient"
	"github.com/opensync/syftsync/internal/syncengine"
	"github.com/opensync/syftsync/internal/syncignore"
	"github.com/opensync/syftsync/internal/version"
	"github.com/opensync/syftsync/internal/watcher"
	"github.com/opensync/syftsync/internal/workspace"
	"github.com/spf13/cobra"
)

const (
	journalFileName  = "journal.db"
	watchRunInterval = 5 * time.Minute
	syncWorkers      = 4
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadedConfig(cmd)
			if err != nil {
				return err
			}
			slog.Info("syftsync starting", "version", version.Version, "config", cfg)

			return runDaemon(cmd, cfg)
		},
	}
	return daemonCmd
}

func runDaemon(cmd *cobra.Command, cfg *config.Config) error {
	ws, err := workspace.NewWorkspace(cfg.DataDir, cfg.Email)
	if err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if err := ws.Setup(); err != nil {
		return fmt.Errorf("workspace setup: %w", err)
	}
	defer ws.Unlock()

	tree, err := acltree.Build(ws.DatasitesDir)
	if err != nil {
		return fmt.Errorf("load permission tree: %w", err)
	}

	j, err := journal.Open(filepath.Join(ws.MetadataDir, journalFileName))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	ignore := syncignore.New(ws.DatasitesDir)
	ignore.Load()

	client := syncclient.NewHTTPClient(cfg.ServerURL, cfg.Email)
	tracker := status.New()
	logStatusEvents(cmd.Context(), tracker)

	w := watcher.New(ws.UserDir, func(path string) bool {
		return !ignore.ShouldIgnore(path)
	})
	if err := w.Start(cmd.Context()); err != nil {
		slog.Warn("file watcher unavailable, falling back to pure polling", "error", err)
		w = nil
	}

	loop := syncengine.NewLoop(ws.UserDir, cfg.Email, cfg.Email, client, tree, j, tracker, ignore, w, cfg.MaxUploadSize, syncWorkers)

	wake := make(chan struct{}, 1)
	if w != nil {
		go forwardWatcherWakes(cmd.Context(), w, wake)
	}

	runner := syncengine.NewJobRunner(
		loop.SyncJob(wake, cfg.SyncInterval),
		syncengine.WatchRunJob(ws.DatasitesDir, tree, cfg.Email, watchRunInterval),
	)
	runner.Start(cmd.Context())
	runner.Wait()

	if w != nil {
		w.Stop()
	}
	return nil
}

// forwardWatcherWakes turns the watcher's per-path change notifications into
// a non-blocking wake signal: a burst of edits collapses into one early
// sync cycle instead of queuing one wake per file.
func forwardWatcherWakes(ctx context.Context, w *watcher.Watcher, wake chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.Changes():
			if !ok {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

// logStatusEvents logs every path status transition, Warn for anything in
// an error state and Debug for everything else.
func logStatusEvents(ctx context.Context, tracker *status.Tracker) {
	events := tracker.Subscribe()
	go func() {
		defer tracker.Unsubscribe(events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				logPathStatus(ev)
			}
		}
	}()
}

func logPathStatus(ev *status.Event) {
	switch ev.Status.State {
	case status.StateError:
		slog.Warn("sync status", "path", ev.Path, "state", ev.Status.State, "conflict", ev.Status.Conflict, "error", ev.Status.Error)
	default:
		slog.Debug("sync status", "path", ev.Path, "state", ev.Status.State, "conflict", ev.Status.Conflict)
	}
}
