// Package syncaction implements the three-way diff that turns an optional
// (local, previous, remote) metadata triple into a single SyncAction.
package syncaction

import "github.com/opensync/syftsync/internal/syncmeta"

// Kind is one of the seven tagged variants a SyncAction can carry.
type Kind string

const (
	NOOP          Kind = "NOOP"
	CreateLocal   Kind = "CREATE_LOCAL"
	CreateRemote  Kind = "CREATE_REMOTE"
	ModifyLocal   Kind = "MODIFY_LOCAL"
	ModifyRemote  Kind = "MODIFY_REMOTE"
	DeleteLocal   Kind = "DELETE_LOCAL"
	DeleteRemote  Kind = "DELETE_REMOTE"
	// Ignored is emitted instead of any of the above when the action would
	// violate permissions; it is a NOOP variant that records why.
	Ignored Kind = "IGNORED"
)

// Reversal is the rejection-reversal behavior that belongs to a Kind: what
// the executor must undo if the server rejects the action on permission
// grounds. The set is closed — one reversal per non-NOOP kind.
type Reversal string

const (
	// ReversalNone applies to kinds that carry no rejection risk (NOOP,
	// Ignored).
	ReversalNone Reversal = "none"
	// ReversalRedownload clears the path's journal entry so the next cycle
	// re-derives a CREATE_LOCAL and fetches the file from the server again:
	// the reversal for a rejected DELETE_REMOTE or DELETE_LOCAL (the server
	// keeps the file, so the local copy comes back).
	ReversalRedownload Reversal = "redownload"
	// ReversalDeleteOrRestoreLocal is the reversal for a rejected
	// CREATE_REMOTE or MODIFY_REMOTE (the server refused the write, so the
	// local copy that prompted it must not look synced). A path with no
	// journal entry has its local file removed; a path with a journal entry
	// has its local copy renamed aside with the conflict marker. The file's
	// content is not restored from the journal.
	ReversalDeleteOrRestoreLocal Reversal = "delete_or_restore_local"
	// ReversalDeleteNewLocal removes the file CREATE_LOCAL just wrote,
	// because the server rejected the action that produced it (used when a
	// permission change mid-cycle invalidates an in-flight CREATE_LOCAL).
	ReversalDeleteNewLocal Reversal = "delete_new_local"
)

// reversalFor returns the one rejection reversal that belongs to kind.
func reversalFor(kind Kind) Reversal {
	switch kind {
	case DeleteLocal, DeleteRemote:
		return ReversalRedownload
	case CreateRemote, ModifyRemote:
		return ReversalDeleteOrRestoreLocal
	case CreateLocal, ModifyLocal:
		return ReversalDeleteNewLocal
	default:
		return ReversalNone
	}
}

// Action is the tagged union spec.md §3 describes: a target path, the kind
// of action to take, the metadata triple that produced it, and the
// rejection-reversal that applies if the server refuses it.
type Action struct {
	Path     string
	Kind     Kind
	Reversal Reversal

	Local    *syncmeta.FileMetadata
	Previous *syncmeta.FileMetadata
	Remote   *syncmeta.FileMetadata

	// JournalPurge marks the NOOP variant where local and remote have
	// converged on a deletion the journal doesn't know about yet: the
	// executor requires no upload/download, but the stale journal entry
	// must still be removed.
	JournalPurge bool
}

func newAction(path string, kind Kind, local, previous, remote *syncmeta.FileMetadata) Action {
	return Action{
		Path:     path,
		Kind:     kind,
		Reversal: reversalFor(kind),
		Local:    local,
		Previous: previous,
		Remote:   remote,
	}
}

// IsNoop reports whether the action requires no executor work.
func (a Action) IsNoop() bool {
	return a.Kind == NOOP || a.Kind == Ignored
}
