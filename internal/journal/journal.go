// Package journal persists, per path, the last metadata this node observed
// for a file plus the action last taken on it, backed by SQLite. It is the
// "previous" corner of the three-way diff in syncaction.Determine.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/opensync/syftsync/internal/db"
	"github.com/opensync/syftsync/internal/syncaction"
	"github.com/opensync/syftsync/internal/syncmeta"
	"github.com/opensync/syftsync/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_journal (
    path          TEXT PRIMARY KEY,
    hash          TEXT NOT NULL,
    signature     BLOB NOT NULL,
    size          INTEGER NOT NULL,
    last_modified TEXT NOT NULL,
    last_action   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_journal_hash ON sync_journal(hash);
CREATE INDEX IF NOT EXISTS idx_journal_last_modified ON sync_journal(last_modified);
`

// row mirrors the table shape for sqlx scanning, where time and the
// signature blob need their own encodings.
type row struct {
	Path         string `db:"path"`
	Hash         string `db:"hash"`
	Signature    []byte `db:"signature"`
	Size         int64  `db:"size"`
	LastModified string `db:"last_modified"`
	LastAction   string `db:"last_action"`
}

func (r row) toMetadata() (*syncmeta.FileMetadata, syncaction.Kind, error) {
	modTime, err := time.Parse(time.RFC3339, r.LastModified)
	if err != nil {
		return nil, "", fmt.Errorf("parse stored timestamp for %s: %w", r.Path, err)
	}
	meta := &syncmeta.FileMetadata{
		Path:         r.Path,
		Hash:         r.Hash,
		Signature:    syncmeta.UnmarshalRollingSignature(r.Signature),
		FileSize:     r.Size,
		LastModified: modTime,
	}
	return meta, syncaction.Kind(r.LastAction), nil
}

// Journal is the SQLite-backed store of last-known-synced state.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

// Open creates or opens a Journal backed by an SQLite database at dbPath.
func Open(dbPath string) (*Journal, error) {
	if err := utils.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	sqldb, err := db.NewSqliteDB(db.WithPath(dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if _, err := sqldb.Exec(schema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	return &Journal{db: sqldb, dbPath: dbPath}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return fmt.Errorf("journal not open")
	}
	if err := j.db.Close(); err != nil {
		slog.Error("close journal database", "error", err)
		return err
	}
	return nil
}

// Get retrieves the last-recorded metadata and action for path, or
// (nil, "", nil) if the journal has no entry for it.
func (j *Journal) Get(path string) (*syncmeta.FileMetadata, syncaction.Kind, error) {
	var r row
	err := j.db.Get(&r, "SELECT path, hash, signature, size, last_modified, last_action FROM sync_journal WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("query path %s: %w", path, err)
	}
	return r.toMetadata()
}

// Set records meta and the action taken for its path, replacing any prior entry.
func (j *Journal) Set(meta *syncmeta.FileMetadata, action syncaction.Kind) error {
	if meta == nil {
		return fmt.Errorf("cannot set nil metadata")
	}

	r := row{
		Path:         meta.Path,
		Hash:         meta.Hash,
		Signature:    meta.Signature.Marshal(),
		Size:         meta.FileSize,
		LastModified: meta.LastModified.Format(time.RFC3339),
		LastAction:   string(action),
	}

	query := `INSERT OR REPLACE INTO sync_journal (path, hash, signature, size, last_modified, last_action)
	          VALUES (:path, :hash, :signature, :size, :last_modified, :last_action)`
	if _, err := j.db.NamedExec(query, r); err != nil {
		return fmt.Errorf("set state for path %s: %w", meta.Path, err)
	}
	return nil
}

// Delete removes the entry for path, used once a DELETE_LOCAL/DELETE_REMOTE
// action has been carried out and both sides have converged.
func (j *Journal) Delete(path string) error {
	if _, err := j.db.Exec("DELETE FROM sync_journal WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete path %s: %w", path, err)
	}
	return nil
}

// GetPaths returns every path the journal currently tracks.
func (j *Journal) GetPaths() ([]string, error) {
	var paths []string
	if err := j.db.Select(&paths, "SELECT path FROM sync_journal"); err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	return paths, nil
}

// GetState returns the entire journal as a path-keyed map of metadata,
// the "previous" side of the three-way diff for a full reconciliation pass.
func (j *Journal) GetState() (map[string]*syncmeta.FileMetadata, error) {
	var rows []row
	if err := j.db.Select(&rows, "SELECT path, hash, signature, size, last_modified, last_action FROM sync_journal"); err != nil {
		return nil, fmt.Errorf("query full state: %w", err)
	}

	state := make(map[string]*syncmeta.FileMetadata, len(rows))
	for _, r := range rows {
		meta, _, err := r.toMetadata()
		if err != nil {
			slog.Error("skipping corrupt journal entry", "path", r.Path, "error", err)
			continue
		}
		state[r.Path] = meta
	}
	return state, nil
}

// Count returns the number of entries in the journal.
func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM sync_journal"); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// Destroy closes the journal and renames its backing file aside so a fresh
// one starts empty, used to recover from a corrupted or stale local state.
func (j *Journal) Destroy() error {
	if err := j.Close(); err != nil {
		return fmt.Errorf("close journal before destroy: %w", err)
	}

	timestamp := time.Now().Format("20060102150405")
	if err := os.Rename(j.dbPath, fmt.Sprintf("%s.%s.bak", j.dbPath, timestamp)); err != nil {
		return fmt.Errorf("rename journal file: %w", err)
	}
	return nil
}
