// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package tagstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/contenttag/tagd/lib/clock"
	"github.com/contenttag/tagd/lib/digest"
	"github.com/contenttag/tagd/lib/sqlitepool"
	"github.com/contenttag/tagd/lib/tag"
)

// schema is the tag store's table layout. Hashes and tag names are
// interned in their own tables; the association table holds (hash,
// tag) pairs. The composite primary key makes repeated attachment a
// no-op at the storage layer.
const schema = `
	CREATE TABLE IF NOT EXISTS hash (
		id         INTEGER PRIMARY KEY,
		hash       BLOB NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tag (
		id         INTEGER PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hash_tag (
		hash_id INTEGER NOT NULL REFERENCES hash(id),
		tag_id  INTEGER NOT NULL REFERENCES tag(id),
		PRIMARY KEY (hash_id, tag_id)
	) WITHOUT ROWID;

	CREATE INDEX IF NOT EXISTS idx_hash_tag_tag ON hash_tag(tag_id);
`

// Store manages SQLite storage for tag associations.
//
// Write path: AddTags interns the digest and every tag name, then
// inserts association rows, all in a single IMMEDIATE transaction. A
// tag already present on the digest is silently kept; the operation is
// idempotent.
//
// Read path: GetTags joins the association table for one digest.
// GetMultipleTags fans out one goroutine per digest, each on its own
// pooled connection, and reassembles results in request order.
//
// A digest with no tags is indistinguishable from a digest the store
// has never seen: both read back as an empty tag list, never an error.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a tag store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. Required.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Clock provides the current time for created_at columns.
	// Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Open creates a tag store backed by SQLite. The database file is
// created if it does not exist; the schema is applied to every pool
// connection on first use. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("tagstore: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("tagstore: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tagstore: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// GetTags returns the tags attached to d, sorted by name. A digest
// with no tags (including one the store has never seen) yields an
// empty slice.
func (s *Store) GetTags(ctx context.Context, d digest.Digest) ([]tag.Tag, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("tagstore: get tags: %w", err)
	}
	defer s.pool.Put(conn)

	return getTags(conn, d)
}

// getTags runs the read query on an already-held connection. Split
// out so CopyTags can read the source inside its own connection
// lifecycle.
func getTags(conn *sqlite.Conn, d digest.Digest) ([]tag.Tag, error) {
	tags := []tag.Tag{}
	err := sqlitex.Execute(conn, `
		SELECT tag.name FROM tag
		JOIN hash_tag ON hash_tag.tag_id = tag.id
		JOIN hash ON hash.id = hash_tag.hash_id
		WHERE hash.hash = ?
		ORDER BY tag.name`,
		&sqlitex.ExecOptions{
			Args: []any{d.Bytes()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t, err := tag.Parse(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("stored tag failed validation: %w", err)
				}
				tags = append(tags, t)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("tagstore: get tags: %w", err)
	}
	return tags, nil
}

// AddTags attaches every tag in tags to d. The digest and any new tag
// names are interned on first sight. Attaching a tag that is already
// present is a no-op; the whole call commits in a single IMMEDIATE
// transaction, so concurrent calls for the same digest serialize and
// converge on the union.
func (s *Store) AddTags(ctx context.Context, d digest.Digest, tags []tag.Tag) error {
	if len(tags) == 0 {
		return nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tagstore: add tags: %w", err)
	}
	defer s.pool.Put(conn)

	return s.addTags(conn, d, tags)
}

// addTags runs the write transaction on an already-held connection.
func (s *Store) addTags(conn *sqlite.Conn, d digest.Digest, tags []tag.Tag) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("tagstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	now := s.clock.Now().UTC().Unix()

	hashID, err := getOrInsertHash(conn, d, now)
	if err != nil {
		return err
	}

	for _, t := range tags {
		tagID, err := getOrInsertTag(conn, t, now)
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn,
			"INSERT OR IGNORE INTO hash_tag (hash_id, tag_id) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{hashID, tagID}})
		if err != nil {
			return fmt.Errorf("tagstore: attach tag %q: %w", t, err)
		}
	}

	return nil
}

// getOrInsertHash interns d and returns its row id. The INSERT OR
// IGNORE plus SELECT pair runs inside the caller's transaction, so
// the id cannot be deleted between the two statements.
func getOrInsertHash(conn *sqlite.Conn, d digest.Digest, now int64) (int64, error) {
	err := sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO hash (hash, created_at) VALUES (?, ?)",
		&sqlitex.ExecOptions{Args: []any{d.Bytes(), now}})
	if err != nil {
		return 0, fmt.Errorf("tagstore: intern hash: %w", err)
	}

	var id int64
	var found bool
	err = sqlitex.Execute(conn, "SELECT id FROM hash WHERE hash = ?",
		&sqlitex.ExecOptions{
			Args: []any{d.Bytes()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("tagstore: look up hash: %w", err)
	}
	if !found {
		return 0, fmt.Errorf("tagstore: hash row missing after insert")
	}
	return id, nil
}

// getOrInsertTag interns the tag name and returns its row id.
func getOrInsertTag(conn *sqlite.Conn, t tag.Tag, now int64) (int64, error) {
	err := sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO tag (name, created_at) VALUES (?, ?)",
		&sqlitex.ExecOptions{Args: []any{t.String(), now}})
	if err != nil {
		return 0, fmt.Errorf("tagstore: intern tag %q: %w", t, err)
	}

	var id int64
	var found bool
	err = sqlitex.Execute(conn, "SELECT id FROM tag WHERE name = ?",
		&sqlitex.ExecOptions{
			Args: []any{t.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("tagstore: look up tag %q: %w", t, err)
	}
	if !found {
		return 0, fmt.Errorf("tagstore: tag row missing after insert")
	}
	return id, nil
}

// GetMultipleTags returns the tag lists for a batch of digests.
// Results line up with the input: result[i] holds the tags of
// digests[i]. Each digest is queried on its own pooled connection in
// its own goroutine; the first lookup failure fails the whole batch.
func (s *Store) GetMultipleTags(ctx context.Context, digests []digest.Digest) ([][]tag.Tag, error) {
	results := make([][]tag.Tag, len(digests))
	errs := make(chan error, len(digests))

	var waitGroup sync.WaitGroup
	for i, d := range digests {
		i, d := i, d
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()

			tags, err := s.GetTags(ctx, d)
			if err != nil {
				errs <- err
				return
			}
			results[i] = tags
		}()
	}

	waitGroup.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	return results, nil
}

// CopyTags attaches every tag of source to destination. Tags already
// on the destination are kept; nothing is removed from either digest.
// The source read and the destination write are separate transactions:
// tags attached to the source after the read commits are not copied.
func (s *Store) CopyTags(ctx context.Context, source, destination digest.Digest) error {
	tags, err := s.GetTags(ctx, source)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tagstore: copy tags: %w", err)
	}
	defer s.pool.Put(conn)

	return s.addTags(conn, destination, tags)
}
