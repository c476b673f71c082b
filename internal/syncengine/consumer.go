package syncengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opensync/syftsync/internal/acltree"
	"github.com/opensync/syftsync/internal/journal"
	"github.com/opensync/syftsync/internal/permspec"
	"github.com/opensync/syftsync/internal/status"
	"github.com/opensync/syftsync/internal/syncaction"
	"github.com/opensync/syftsync/internal/syncclient"
	"github.com/opensync/syftsync/internal/syncmeta"
	"github.com/opensync/syftsync/internal/utils"
	"github.com/opensync/syftsync/internal/watcher"
)

// Outcome classifies what happened when the Consumer tried to carry out an
// Action, per spec.md §4.7/§7.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeRejected   Outcome = "rejected"   // permission denied, reversal applied
	OutcomeInvalid    Outcome = "invalid"    // validation failure, left for next cycle
	OutcomeNetworkErr Outcome = "network"    // transient, left for next cycle
	OutcomeFatal      Outcome = "fatal"      // unexpected error, logged and left alone
)

// Consumer executes a single SyncAction against the local filesystem and
// the remote server, enforcing the current permission tree and upload size
// limit before ever making a network call.
type Consumer struct {
	root          string
	datasite      string // the datasite this Consumer instance syncs
	localUser     string // the identity running this client
	client        syncclient.Client
	tree          *acltree.Tree
	journal       *journal.Journal
	tracker       *status.Tracker
	watcher       *watcher.Watcher // may be nil
	maxUploadSize int64
}

// NewConsumer builds a Consumer rooted at root (the local directory for
// datasite). localUser is the identity running this client; it is only the
// datasite's owner — and so bypasses permission checks — when it equals
// datasite, matching the teacher's path-prefix ownership test.
func NewConsumer(root, datasite, localUser string, client syncclient.Client, tree *acltree.Tree, j *journal.Journal, tracker *status.Tracker, w *watcher.Watcher, maxUploadSize int64) *Consumer {
	return &Consumer{
		root:          root,
		datasite:      datasite,
		localUser:     localUser,
		client:        client,
		tree:          tree,
		journal:       j,
		tracker:       tracker,
		watcher:       w,
		maxUploadSize: maxUploadSize,
	}
}

// Execute validates and carries out action, updating the journal and status
// tracker, and applying the action's rejection reversal if the server
// refuses it on permission grounds.
func (c *Consumer) Execute(ctx context.Context, action syncaction.Action) Outcome {
	if action.IsNoop() {
		return OutcomeSuccess
	}

	abs := filepath.Join(c.root, filepath.FromSlash(action.Path))
	user := acltree.User{Email: c.localUser, IsOwner: c.localUser == c.datasite}

	if !c.hasRequiredPermission(action, user) {
		slog.Debug("consumer: action ignored, insufficient permission", "path", action.Path, "kind", action.Kind)
		c.tracker.SetCompleted(action.Path)
		return OutcomeSuccess
	}

	c.tracker.SetSyncing(action.Path)

	var err error
	switch action.Kind {
	case syncaction.CreateLocal, syncaction.ModifyLocal:
		err = c.download(ctx, abs, action)
	case syncaction.DeleteLocal:
		err = c.deleteLocal(abs, action)
	case syncaction.CreateRemote, syncaction.ModifyRemote:
		err = c.upload(ctx, abs, action)
	case syncaction.DeleteRemote:
		err = c.deleteRemote(ctx, action)
	}

	return c.classify(action, err)
}

func (c *Consumer) hasRequiredPermission(action syncaction.Action, user acltree.User) bool {
	switch action.Kind {
	case syncaction.CreateRemote, syncaction.ModifyRemote, syncaction.DeleteRemote:
		return c.tree.HasPermission(action.Path, user, permspec.Write)
	default:
		return c.tree.HasPermission(action.Path, user, permspec.Read)
	}
}

func (c *Consumer) classify(action syncaction.Action, err error) Outcome {
	if err == nil {
		if c.watcher != nil {
			c.watcher.IgnoreOnce(filepath.Join(c.root, filepath.FromSlash(action.Path)))
		}
		c.tracker.SetCompleted(action.Path)
		return OutcomeSuccess
	}

	switch {
	case errors.Is(err, syncclient.ErrPermission):
		slog.Warn("consumer: action rejected by server", "path", action.Path, "kind", action.Kind, "error", err)
		c.applyReversal(action)
		c.tracker.SetRejected(action.Path)
		return OutcomeRejected
	case errors.Is(err, syncclient.ErrValidation):
		slog.Warn("consumer: action failed validation", "path", action.Path, "kind", action.Kind, "error", err)
		c.tracker.SetError(action.Path, err)
		return OutcomeInvalid
	case errors.Is(err, syncclient.ErrNetwork), errors.Is(err, syncclient.ErrServer):
		slog.Warn("consumer: transient failure, will retry next cycle", "path", action.Path, "kind", action.Kind, "error", err)
		c.tracker.SetError(action.Path, err)
		return OutcomeNetworkErr
	default:
		slog.Error("consumer: unexpected failure", "path", action.Path, "kind", action.Kind, "error", err)
		c.tracker.SetError(action.Path, err)
		return OutcomeFatal
	}
}

// applyReversal undoes the local-filesystem side effect of an action the
// server refused, so the next cycle's three-way diff doesn't immediately
// re-derive the same rejected action.
func (c *Consumer) applyReversal(action syncaction.Action) {
	abs := filepath.Join(c.root, filepath.FromSlash(action.Path))

	switch action.Reversal {
	case syncaction.ReversalDeleteNewLocal:
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			slog.Warn("consumer: reversal failed to remove new local file", "path", action.Path, "error", err)
		}
	case syncaction.ReversalDeleteOrRestoreLocal:
		if action.Previous != nil {
			slog.Warn("consumer: rejected remote write, marking local copy as conflicted", "path", action.Path)
			if _, err := SetMarker(abs, Conflict); err != nil && !os.IsNotExist(err) {
				slog.Warn("consumer: failed to mark conflicted file", "path", action.Path, "error", err)
			}
		} else if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			slog.Warn("consumer: reversal failed to remove local file", "path", action.Path, "error", err)
		}
	case syncaction.ReversalRedownload:
		slog.Warn("consumer: rejected local delete, file will be redownloaded next cycle", "path", action.Path)
		if err := c.journal.Delete(action.Path); err != nil {
			slog.Warn("consumer: failed to clear journal entry for redownload", "path", action.Path, "error", err)
		}
	}
}

func (c *Consumer) download(ctx context.Context, abs string, action syncaction.Action) error {
	body, err := c.client.Download(ctx, action.Path)
	if err != nil {
		return fmt.Errorf("download %s: %w", action.Path, err)
	}
	defer body.Close()

	if err := atomicWrite(abs, body, c.root); err != nil {
		return fmt.Errorf("write %s: %w", action.Path, err)
	}

	meta, err := syncmeta.HashFile(abs, c.root)
	if err != nil {
		return fmt.Errorf("hash downloaded file %s: %w", action.Path, err)
	}
	return c.journal.Set(meta, action.Kind)
}

func (c *Consumer) deleteLocal(abs string, action syncaction.Action) error {
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete local %s: %w", action.Path, err)
	}
	return c.journal.Delete(action.Path)
}

func (c *Consumer) upload(ctx context.Context, abs string, action syncaction.Action) error {
	if action.Local == nil {
		return fmt.Errorf("upload %s: missing local metadata", action.Path)
	}
	if action.Local.FileSize > c.maxUploadSize {
		return fmt.Errorf("upload %s: %w: %d bytes exceeds limit of %d", action.Path, syncclient.ErrValidation, action.Local.FileSize, c.maxUploadSize)
	}

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("open %s for upload: %w", action.Path, err)
	}
	defer f.Close()

	meta, err := c.client.Upload(ctx, action.Path, f, action.Local.Signature)
	if err != nil {
		return fmt.Errorf("upload %s: %w", action.Path, err)
	}
	return c.journal.Set(meta, action.Kind)
}

func (c *Consumer) deleteRemote(ctx context.Context, action syncaction.Action) error {
	if err := c.client.Delete(ctx, action.Path); err != nil {
		return fmt.Errorf("delete remote %s: %w", action.Path, err)
	}
	return c.journal.Delete(action.Path)
}

// atomicWrite streams src into dst via a temp file in workspaceRoot/.syft-tmp
// followed by a rename, so a watcher never observes a half-written file.
func atomicWrite(dst string, src io.Reader, workspaceRoot string) error {
	if err := utils.EnsureParent(dst); err != nil {
		return err
	}

	tmpDir := filepath.Join(workspaceRoot, ".syft-tmp")
	if err := utils.EnsureDir(tmpDir); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(tmpDir, filepath.Base(dst)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, src); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	now := time.Now()
	if err := os.Chtimes(tmpPath, now, now); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return err
	}
	success = true
	return nil
}
