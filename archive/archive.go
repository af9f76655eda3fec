// Package archive stores virtual source trees in a SQLite database so a
// project's sources can ship as a single file.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/loadpath/interp"
)

var log = commonlog.GetLogger("loadpath.archive")

// Empty content may bind as NULL; store it as a zero-length blob.
const insertSource = "INSERT OR REPLACE INTO sources (path, content) VALUES (?, coalesce(?, zeroblob(0)))"

// ErrNotFound indicates the requested path is not in the archive.
var ErrNotFound = errors.New("path not found in archive")

// Archive is a SQLite-backed source archive. Paths are stored as blobs
// and need not be valid UTF-8.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens or creates the archive at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sources (
		path BLOB PRIMARY KEY,
		content BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened archive %s", path)
	return &Archive{db: db, path: path}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Put stores content at path, replacing any previous content.
func (a *Archive) Put(path string, content []byte) error {
	_, err := a.db.Exec(
		insertSource,
		[]byte(path), content,
	)
	if err != nil {
		return fmt.Errorf("storing %q: %w", path, err)
	}
	return nil
}

// Get returns the content stored at path.
func (a *Archive) Get(path string) ([]byte, error) {
	var content []byte
	err := a.db.QueryRow("SELECT content FROM sources WHERE path = ?", []byte(path)).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying %q: %w", path, err)
	}
	if content == nil {
		content = []byte{}
	}
	return content, nil
}

// Delete removes path. Deleting a missing path is not an error.
func (a *Archive) Delete(path string) error {
	if _, err := a.db.Exec("DELETE FROM sources WHERE path = ?", []byte(path)); err != nil {
		return fmt.Errorf("deleting %q: %w", path, err)
	}
	return nil
}

// Paths returns every stored path in byte order.
func (a *Archive) Paths() ([]string, error) {
	rows, err := a.db.Query("SELECT path FROM sources ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("listing paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p []byte
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		paths = append(paths, string(p))
	}
	return paths, rows.Err()
}

// LoadInto writes every archived file into the interpreter's virtual
// file system and returns how many were written.
func (a *Archive) LoadInto(it *interp.Interpreter) (int, error) {
	rows, err := a.db.Query("SELECT path, content FROM sources ORDER BY path")
	if err != nil {
		return 0, fmt.Errorf("reading archive: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var p, content []byte
		if err := rows.Scan(&p, &content); err != nil {
			return n, fmt.Errorf("scanning source: %w", err)
		}
		if content == nil {
			content = []byte{}
		}
		if err := it.DefSourceFile(string(p), content); err != nil {
			return n, fmt.Errorf("installing %q: %w", p, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	log.Debugf("loaded %d sources from %s", n, a.path)
	return n, nil
}

// SaveFrom stores every file of fs that has content, in one transaction.
// Entries that only carry a hook are skipped.
func (a *Archive) SaveFrom(ctx context.Context, fs *interp.FileSystem) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSource)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, f := range fs.Snapshot().Files {
		if !f.HasContent {
			continue
		}
		if _, err := stmt.ExecContext(ctx, f.Path, f.Content); err != nil {
			return n, fmt.Errorf("storing %q: %w", f.Path, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	log.Debugf("saved %d sources to %s", n, a.path)
	return n, nil
}
