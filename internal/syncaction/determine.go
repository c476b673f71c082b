package syncaction

import "github.com/opensync/syftsync/internal/syncmeta"

// Determine is the pure, total three-way diff: given what's on disk now,
// what was last synced, and what the server reports now (any of which may
// be absent), it returns the single SyncAction to take. It never looks at
// permissions — a caller who finds the action would violate the current
// PermissionTree reclassifies it to Ignored (see syncaction.Action.Ignore).
func Determine(path string, local, previous, remote *syncmeta.FileMetadata) Action {
	hasL, hasP, hasR := local != nil, previous != nil, remote != nil

	switch {
	case !hasL && !hasP && !hasR:
		return newAction(path, NOOP, local, previous, remote)

	case !hasL && !hasP && hasR:
		return newAction(path, CreateLocal, local, previous, remote)

	case hasL && !hasP && !hasR:
		return newAction(path, CreateRemote, local, previous, remote)

	case hasL && !hasP && hasR:
		if local.HashEqual(remote) {
			return newAction(path, NOOP, local, previous, remote)
		}
		if local.Newer(remote) {
			return newAction(path, ModifyRemote, local, previous, remote)
		}
		// Tie or remote newer: server wins.
		return newAction(path, ModifyLocal, local, previous, remote)

	case !hasL && hasP && !hasR:
		// Converged on deletion: both sides agree it's gone, but the
		// journal doesn't know that yet.
		action := newAction(path, NOOP, local, previous, remote)
		action.JournalPurge = true
		return action

	case !hasL && hasP && hasR:
		if previous.HashEqual(remote) {
			return newAction(path, DeleteRemote, local, previous, remote)
		}
		return newAction(path, ModifyLocal, local, previous, remote)

	case hasL && hasP && !hasR:
		if local.HashEqual(previous) {
			return newAction(path, DeleteLocal, local, previous, remote)
		}
		return newAction(path, CreateRemote, local, previous, remote)

	default: // hasL && hasP && hasR
		localChanged := !local.HashEqual(previous)
		remoteChanged := !previous.HashEqual(remote)

		switch {
		case !localChanged && !remoteChanged:
			return newAction(path, NOOP, local, previous, remote)
		case !localChanged && remoteChanged:
			return newAction(path, ModifyLocal, local, previous, remote)
		case localChanged && !remoteChanged:
			return newAction(path, ModifyRemote, local, previous, remote)
		default: // both changed
			if local.HashEqual(remote) {
				return newAction(path, NOOP, local, previous, remote)
			}
			// Conflict: server wins (last-writer-wins-by-server).
			return newAction(path, ModifyLocal, local, previous, remote)
		}
	}
}

// Ignore reclassifies a determined action as Ignored, the NOOP variant used
// when the action would violate the current PermissionTree.
func (a Action) Ignore() Action {
	a.Kind = Ignored
	a.Reversal = ReversalNone
	return a
}
