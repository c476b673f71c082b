// Package runscript executes a datasite-local run.sh for every directory
// under the datasites root that the local user exclusively controls. It is
// the thin job spec.md's design notes call out (one of the three fixed
// named jobs, not a dynamically-discovered plugin).
package runscript

import (
	"context"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/opensync/syftsync/internal/acltree"
	"github.com/opensync/syftsync/internal/permspec"
)

// ScriptName is the file a datasite owner drops to have it executed
// automatically, mirroring a cron-less "postsync hook".
const ScriptName = "run.sh"

// Run finds every run.sh under root and executes the ones whose directory
// grants write exclusively to owner — never a script a third party could
// also have modified.
func Run(ctx context.Context, root string, tree *acltree.Tree, owner string) {
	for _, script := range findScripts(root) {
		if !exclusivelyOwnedWrite(tree, script, owner) {
			continue
		}
		runOne(ctx, script)
	}
}

func findScripts(root string) []string {
	var found []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == ScriptName {
			found = append(found, path)
		}
		return nil
	})
	return found
}

// exclusivelyOwnedWrite reports whether the write permission on path is
// granted to owner and to no one else — neither a wildcard rule nor an
// explicit grant to a different user.
func exclusivelyOwnedWrite(tree *acltree.Tree, path, owner string) bool {
	writers := make(map[string]struct{})
	for _, mr := range tree.MergedRules(path) {
		if !mr.Rule.Grants(permspec.Write) && !mr.Rule.Grants(permspec.Admin) {
			continue
		}
		writers[mr.Rule.User] = struct{}{}
	}
	if len(writers) != 1 {
		return false
	}
	_, ok := writers[owner]
	return ok
}

func runOne(ctx context.Context, script string) {
	dir := filepath.Dir(script)
	cmd := exec.CommandContext(ctx, "sh", ScriptName)
	cmd.Dir = dir

	slog.Info("runscript: executing", "path", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		slog.Warn("runscript: run.sh failed", "path", script, "error", err, "output", string(out))
	}
}
