package syncengine

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opensync/syftsync/internal/acltree"
	"github.com/opensync/syftsync/internal/journal"
	"github.com/opensync/syftsync/internal/runscript"
	"github.com/opensync/syftsync/internal/status"
	"github.com/opensync/syftsync/internal/syncaction"
	"github.com/opensync/syftsync/internal/syncclient"
	"github.com/opensync/syftsync/internal/syncignore"
	"github.com/opensync/syftsync/internal/syncmeta"
	"github.com/opensync/syftsync/internal/syncqueue"
	"github.com/opensync/syftsync/internal/watcher"
)

// Loop ties the collector, journal, action determiner, queue, and consumer
// into the single running sync cycle spec.md §4/§5 describes: scan both
// sides, diff, enqueue, and drain with a bounded worker pool.
type Loop struct {
	root     string
	datasite string
	client   syncclient.Client

	collector *Collector
	consumer  *Consumer
	journal   *journal.Journal
	tracker   *status.Tracker
	queue     *syncqueue.Queue[syncaction.Action]

	workers     int
	bootstraped bool
}

// NewLoop assembles a Loop for one datasite. tree is built by the caller and
// passed to the consumer at construction; the Loop never rebuilds it, so
// permission-file changes made after construction are not seen until the
// caller builds a new tree and a new Loop. w may be nil; when
// set, the consumer calls w.IgnoreOnce on every path it writes so the
// watcher never re-reports the engine's own writes as external changes.
func NewLoop(root, datasite, localUser string, client syncclient.Client, tree *acltree.Tree, j *journal.Journal, tracker *status.Tracker, ignore *syncignore.List, w *watcher.Watcher, maxUploadSize int64, workers int) *Loop {
	if workers < 1 {
		workers = 1
	}
	return &Loop{
		root:      root,
		datasite:  datasite,
		client:    client,
		collector: NewCollector(root, datasite, client, ignore),
		consumer:  NewConsumer(root, datasite, localUser, client, tree, j, tracker, w, maxUploadSize),
		journal:   j,
		tracker:   tracker,
		queue:     syncqueue.New[syncaction.Action](),
		workers:   workers,
	}
}

// SyncJob returns the Job spec.md's engine registers as "sync": scan, diff,
// enqueue, and drain with the configured worker count. On its very first
// invocation against an empty local tree it tries a bulk-download
// bootstrap before falling back to the normal per-path queue.
func (l *Loop) SyncJob(wake <-chan struct{}, interval time.Duration) Job {
	return Job{
		Name:     "sync",
		Interval: interval,
		Wake:     wake,
		Run: func(ctx context.Context) {
			if err := l.RunCycle(ctx); err != nil {
				slog.Error("sync cycle failed", "datasite", l.datasite, "error", err)
			}
		},
	}
}

// RunCycle performs one full scan-diff-enqueue-drain pass.
func (l *Loop) RunCycle(ctx context.Context) error {
	local, err := l.collector.ScanLocal()
	if err != nil {
		return fmt.Errorf("scan local: %w", err)
	}

	remote, err := l.collector.FetchRemote(ctx)
	if err != nil {
		return fmt.Errorf("fetch remote: %w", err)
	}

	previous, err := l.journal.GetState()
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if !l.bootstraped {
		l.bootstraped = true
		if len(local) == 0 && len(remote) > 0 {
			l.bulkBootstrap(ctx, remote)
			local, err = l.collector.ScanLocal()
			if err != nil {
				return fmt.Errorf("rescan after bootstrap: %w", err)
			}
		}
	}

	paths := unionPaths(local, remote, previous)
	for _, path := range paths {
		action := syncaction.Determine(path, local[path], previous[path], remote[path])
		if action.JournalPurge {
			if err := l.journal.Delete(path); err != nil {
				slog.Error("purge converged-deletion journal entry", "path", path, "error", err)
			}
			continue
		}
		if action.IsNoop() {
			continue
		}
		size := actionSize(action)
		l.queue.Put(path, action, syncqueue.Priority(path, size))
	}

	l.drain(ctx)
	return nil
}

// drain hands every action enqueued this cycle to a bounded worker pool and
// waits for them all to finish, matching spec.md §5's small fixed
// worker-pool size. Every Put for this cycle already happened synchronously
// before drain is called, so a non-blocking DrainAll is enough — there's no
// concurrent producer to keep waiting on.
func (l *Loop) drain(ctx context.Context) {
	actions := l.queue.DrainAll()
	if len(actions) == 0 {
		return
	}

	done := make(chan struct{})
	work := make(chan syncaction.Action)

	for i := 0; i < l.workers; i++ {
		go func() {
			for action := range work {
				l.consumer.Execute(ctx, action)
			}
			done <- struct{}{}
		}()
	}

sendLoop:
	for _, action := range actions {
		select {
		case work <- action:
		case <-ctx.Done():
			break sendLoop
		}
	}
	close(work)
	for i := 0; i < l.workers; i++ {
		<-done
	}
}

// bulkBootstrap tries to fetch every remote path from a fresh clone in one
// archive instead of one request per file, grounded on the teacher's
// batched-download shape. Any failure just leaves local empty and lets the
// normal per-path CREATE_LOCAL actions computed by RunCycle cover the gap.
func (l *Loop) bulkBootstrap(ctx context.Context, remote map[string]*syncmeta.FileMetadata) {
	paths := make([]string, 0, len(remote))
	for p := range remote {
		paths = append(paths, p)
	}

	slog.Info("bootstrapping datasite from bulk download", "datasite", l.datasite, "files", len(paths))

	body, err := l.client.DownloadBulk(ctx, paths)
	if err != nil {
		slog.Warn("bulk bootstrap failed, falling back to per-file downloads", "datasite", l.datasite, "error", err)
		return
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "syftsync-bulk-*.zip")
	if err != nil {
		slog.Warn("bulk bootstrap: failed to buffer archive", "error", err)
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		slog.Warn("bulk bootstrap: failed to download archive", "error", err)
		return
	}
	size, statErr := tmp.Seek(0, io.SeekCurrent)
	tmp.Close()
	if statErr != nil {
		slog.Warn("bulk bootstrap: failed to stat archive", "error", statErr)
		return
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		slog.Warn("bulk bootstrap: failed to reopen archive", "error", err)
		return
	}
	defer f.Close()

	zr, err := zip.NewReader(f, size)
	if err != nil {
		slog.Warn("bulk bootstrap: failed to read archive", "error", err)
		return
	}

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		if err := l.extractOne(zf); err != nil {
			slog.Warn("bulk bootstrap: failed to extract file", "path", zf.Name, "error", err)
		}
	}
}

// extractOne writes one archive entry to disk and records it in the journal
// as a CREATE_LOCAL, the same bookkeeping a per-file download would get.
func (l *Loop) extractOne(zf *zip.File) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dst := filepath.Join(l.root, filepath.FromSlash(zf.Name))
	if err := atomicWrite(dst, rc, l.root); err != nil {
		return err
	}

	meta, err := syncmeta.HashFile(dst, l.root)
	if err != nil {
		return fmt.Errorf("hash extracted file: %w", err)
	}
	return l.journal.Set(meta, syncaction.CreateLocal)
}

func unionPaths(maps ...map[string]*syncmeta.FileMetadata) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, m := range maps {
		for p := range m {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				paths = append(paths, p)
			}
		}
	}
	return paths
}

func actionSize(action syncaction.Action) int64 {
	if action.Local != nil {
		return action.Local.FileSize
	}
	if action.Remote != nil {
		return action.Remote.FileSize
	}
	return 0
}

// WatchRunJob returns the "watch-run" job: run every datasite's run.sh
// scripts this local user exclusively owns.
func WatchRunJob(root string, tree *acltree.Tree, owner string, interval time.Duration) Job {
	return Job{
		Name:     "watch-run",
		Interval: interval,
		Run: func(ctx context.Context) {
			runscript.Run(ctx, root, tree, owner)
		},
	}
}
