// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/kiln-pm/kiln/internal/kilnerr"
	"github.com/kiln-pm/kiln/internal/related"
	"github.com/kiln-pm/kiln/lib/codec"
	"github.com/kiln-pm/kiln/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS deploys (
	ref      TEXT PRIMARY KEY,
	origin   TEXT NOT NULL,
	commit_  TEXT NOT NULL,
	subpaths BLOB,
	path     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS remotes (
	name     TEXT PRIMARY KEY,
	disabled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS remote_refs (
	remote TEXT NOT NULL,
	ref    TEXT NOT NULL,
	PRIMARY KEY (remote, ref)
);

CREATE TABLE IF NOT EXISTS ref_cache (
	remote        TEXT NOT NULL,
	ref           TEXT NOT NULL,
	metadata_blob BLOB NOT NULL,
	PRIMARY KEY (remote, ref)
);

CREATE TABLE IF NOT EXISTS related_cache (
	key  TEXT PRIMARY KEY,
	blob BLOB NOT NULL
);
`

// subpathRecord is the CBOR-encoded form of deploys.subpaths. A NULL
// column means "absent" (tri-state); a present column always holds this
// record, so a present-but-empty slice (the wildcard) is stored as a
// non-NULL value and stays distinct from absent.
type subpathRecord struct {
	Subpaths []string `cbor:"subpaths"`
}

// SQLiteScope is a SQLite-backed reference implementation of Client. It
// is explicitly a stand-in for kiln's CLI to be runnable end-to-end: it
// records deploy bookkeeping, remote configuration, and cached metadata
// blobs, but Install and Update do not pull or deploy real content —
// that remains the job of the external content store and deploy engine
// spec.md names as out of scope (§1).
type SQLiteScope struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	isUser bool
	system Client

	relatedLocal  *related.LocalIndex
	relatedRemote *related.RemoteIndex
}

// SQLiteScopeConfig configures a new SQLiteScope.
type SQLiteScopeConfig struct {
	// Path is the filesystem path to the scope's SQLite database.
	Path string

	// IsUser marks this handle as the user scope. Exactly one of the
	// paired user/system handles should set this true.
	IsUser bool

	// System is the paired system-scope Client, consulted by the Store
	// Probe's cross-scope check. May be nil if this handle is itself
	// the system scope.
	System Client

	// Logger receives operational messages. If nil, a no-op logger is used.
	Logger *slog.Logger

	// RelatedLocalIndexPath, if set, points at a JSONC related-refs
	// index file backing FindLocalRelated (used under no_pull).
	RelatedLocalIndexPath string

	// RelatedRemoteFetch, if set, backs FindRemoteRelated: it fetches
	// a remote's full related-refs index on a cache miss, cached
	// thereafter in this scope's related_cache table.
	RelatedRemoteFetch related.FetchIndexFunc
}

// OpenSQLiteScope opens (creating if necessary) a SQLite-backed scope.
func OpenSQLiteScope(cfg SQLiteScopeConfig) (*SQLiteScope, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening scope store at %s: %w", cfg.Path, err)
	}

	scope := &SQLiteScope{
		pool:   pool,
		logger: logger,
		isUser: cfg.IsUser,
		system: cfg.System,
	}

	if cfg.RelatedLocalIndexPath != "" {
		scope.relatedLocal = &related.LocalIndex{Path: cfg.RelatedLocalIndexPath}
	}
	if cfg.RelatedRemoteFetch != nil {
		scope.relatedRemote = &related.RemoteIndex{
			Cache: relatedCacheAdapter{scope: scope},
			Fetch: cfg.RelatedRemoteFetch,
		}
	}

	return scope, nil
}

// relatedCacheAdapter satisfies related.RemoteIndexStore on top of the
// scope's related_cache table.
type relatedCacheAdapter struct {
	scope *SQLiteScope
}

func (a relatedCacheAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := a.scope.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("store: %w", err)
	}
	defer a.scope.pool.Put(conn)

	var blob []byte
	err = sqlitex.Execute(conn, "SELECT blob FROM related_cache WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: reading related cache: %w", err)
	}
	return blob, blob != nil, nil
}

func (a relatedCacheAdapter) Put(ctx context.Context, key string, blob []byte) error {
	conn, err := a.scope.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer a.scope.pool.Put(conn)

	return sqlitex.Execute(conn,
		"INSERT INTO related_cache (key, blob) VALUES (?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET blob = excluded.blob",
		&sqlitex.ExecOptions{Args: []any{key, blob}})
}

// Close closes the underlying connection pool.
func (s *SQLiteScope) Close() error {
	return s.pool.Close()
}

func (s *SQLiteScope) GetIfDeployed(ctx context.Context, ref string) (string, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", false, fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	var path string
	var found bool
	err = sqlitex.Execute(conn, "SELECT path FROM deploys WHERE ref = ?", &sqlitex.ExecOptions{
		Args: []any{ref},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			path = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("store: querying deploy for %s: %w", ref, err)
	}
	return path, found, nil
}

func (s *SQLiteScope) GetDeployData(ctx context.Context, ref string) (*DeployRecord, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	var record DeployRecord
	var found bool
	var subpathsBlob []byte
	err = sqlitex.Execute(conn, "SELECT origin, commit_, subpaths FROM deploys WHERE ref = ?", &sqlitex.ExecOptions{
		Args: []any{ref},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record.Origin = stmt.ColumnText(0)
			record.Commit = stmt.ColumnText(1)
			if !stmt.ColumnIsNull(2) {
				subpathsBlob = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, subpathsBlob)
			}
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: querying deploy data for %s: %w", ref, err)
	}
	if !found {
		return nil, false, nil
	}

	if subpathsBlob != nil {
		var decoded subpathRecord
		if err := codec.Unmarshal(subpathsBlob, &decoded); err != nil {
			return nil, false, fmt.Errorf("store: decoding subpaths for %s: %w", ref, err)
		}
		record.Subpaths = decoded.Subpaths
	}

	return &record, true, nil
}

func (s *SQLiteScope) IsUser() bool { return s.isUser }

func (s *SQLiteScope) GetSystem() (Client, error) {
	if s.system == nil {
		return nil, fmt.Errorf("store: no system scope configured")
	}
	return s.system, nil
}

func (s *SQLiteScope) GetRemoteDisabled(ctx context.Context, remote string) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	var disabled bool
	err = sqlitex.Execute(conn, "SELECT disabled FROM remotes WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{remote},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			disabled = stmt.ColumnInt(0) != 0
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("store: checking remote %s: %w", remote, err)
	}
	return disabled, nil
}

func (s *SQLiteScope) FetchRefCache(ctx context.Context, remote, ref string) ([]byte, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	var blob []byte
	err = sqlitex.Execute(conn, "SELECT metadata_blob FROM ref_cache WHERE remote = ? AND ref = ?", &sqlitex.ExecOptions{
		Args: []any{remote, ref},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: fetching ref cache for %s/%s: %w", remote, ref, err)
	}
	return blob, blob != nil, nil
}

// SeedRefCache populates the cache entry a real metadata fetcher would
// otherwise have written. Exposed for tests and for the reference CLI's
// offline seeding path; production use expects an external fetcher to
// populate this table.
func (s *SQLiteScope) SeedRefCache(ctx context.Context, remote, ref string, metadataBytes []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn,
		"INSERT INTO ref_cache (remote, ref, metadata_blob) VALUES (?, ?, ?) "+
			"ON CONFLICT(remote, ref) DO UPDATE SET metadata_blob = excluded.metadata_blob",
		&sqlitex.ExecOptions{Args: []any{remote, ref, metadataBytes}})
}

func (s *SQLiteScope) FindLocalRelated(ctx context.Context, ref, remote string) ([]RelatedRef, error) {
	if s.relatedLocal == nil {
		return nil, nil
	}
	tuples, err := s.relatedLocal.Lookup(ref)
	if err != nil {
		return nil, fmt.Errorf("store: local related lookup for %s: %w", ref, err)
	}
	return tuplesToRelatedRefs(tuples), nil
}

func (s *SQLiteScope) FindRemoteRelated(ctx context.Context, ref, remote string) ([]RelatedRef, error) {
	if s.relatedRemote == nil {
		return nil, nil
	}
	tuples, err := s.relatedRemote.Lookup(ctx, remote, ref)
	if err != nil {
		return nil, fmt.Errorf("store: remote related lookup for %s/%s: %w", remote, ref, err)
	}
	return tuplesToRelatedRefs(tuples), nil
}

func tuplesToRelatedRefs(tuples []related.Tuple) []RelatedRef {
	if len(tuples) == 0 {
		return nil
	}
	refs := make([]RelatedRef, len(tuples))
	for i, t := range tuples {
		refs[i] = RelatedRef{Ref: t.Ref, Subpaths: t.Subpaths, Download: t.Download}
	}
	return refs
}

func (s *SQLiteScope) SearchForDependency(ctx context.Context, ref string) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	var remotes []string
	err = sqlitex.Execute(conn, "SELECT remote FROM remote_refs WHERE ref = ? ORDER BY remote", &sqlitex.ExecOptions{
		Args: []any{ref},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			remotes = append(remotes, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: searching dependency %s: %w", ref, err)
	}
	return remotes, nil
}

// ListRefs returns every distinct ref this scope has a remote_refs
// entry for, ordered by name.
func (s *SQLiteScope) ListRefs(ctx context.Context) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	var refs []string
	err = sqlitex.Execute(conn, "SELECT DISTINCT ref FROM remote_refs ORDER BY ref", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			refs = append(refs, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing refs: %w", err)
	}
	return refs, nil
}

// RegisterRemoteRef records that remote carries ref, so that
// SearchForDependency and the Remote Chooser can find candidates. A
// production backend derives this from remote summary files; the
// reference store requires it to be seeded explicitly.
func (s *SQLiteScope) RegisterRemoteRef(ctx context.Context, remote, ref string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO remote_refs (remote, ref) VALUES (?, ?)",
		&sqlitex.ExecOptions{Args: []any{remote, ref}})
}

// RegisterRemote inserts or updates a remote's disabled flag.
func (s *SQLiteScope) RegisterRemote(ctx context.Context, name string, disabled bool) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn,
		"INSERT INTO remotes (name, disabled) VALUES (?, ?) "+
			"ON CONFLICT(name) DO UPDATE SET disabled = excluded.disabled",
		&sqlitex.ExecOptions{Args: []any{name, boolToInt(disabled)}})
}

func (s *SQLiteScope) Install(ctx context.Context, req InstallRequest) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	_, found, err := s.getIfDeployedLocked(conn, req.Ref)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("store: installing %s: %w", req.Ref, kilnerr.ErrAlreadyInstalled)
	}

	subpathsBlob, err := encodeSubpaths(req.Subpaths)
	if err != nil {
		return fmt.Errorf("store: encoding subpaths for %s: %w", req.Ref, err)
	}

	path := fmt.Sprintf("/deploy/%s/%s", req.Remote, req.Ref)
	err = sqlitex.Execute(conn,
		"INSERT INTO deploys (ref, origin, commit_, subpaths, path) VALUES (?, ?, ?, ?, ?)",
		&sqlitex.ExecOptions{Args: []any{req.Ref, req.Remote, placeholderCommit(req.Ref), subpathsBlob, path}})
	if err != nil {
		return fmt.Errorf("store: installing %s: %w", req.Ref, err)
	}

	s.logger.Info("installed", "ref", req.Ref, "remote", req.Remote)
	return nil
}

func (s *SQLiteScope) Update(ctx context.Context, req UpdateRequest) (*DeployRecord, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	existing, found, err := s.getDeployDataLocked(conn, req.Ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("store: updating %s: %w", req.Ref, kilnerr.ErrNotInstalled)
	}

	newCommit := req.Commit
	if newCommit == "" {
		newCommit = placeholderCommit(req.Ref)
	}
	if newCommit == existing.Commit {
		return existing, fmt.Errorf("store: updating %s: %w", req.Ref, kilnerr.ErrAlreadyInstalled)
	}

	subpaths := req.Subpaths
	if subpaths == nil {
		subpaths = existing.Subpaths
	}
	subpathsBlob, err := encodeSubpaths(subpaths)
	if err != nil {
		return nil, fmt.Errorf("store: encoding subpaths for %s: %w", req.Ref, err)
	}

	err = sqlitex.Execute(conn,
		"UPDATE deploys SET commit_ = ?, subpaths = ?, origin = ? WHERE ref = ?",
		&sqlitex.ExecOptions{Args: []any{newCommit, subpathsBlob, req.Remote, req.Ref}})
	if err != nil {
		return nil, fmt.Errorf("store: updating %s: %w", req.Ref, err)
	}

	s.logger.Info("updated", "ref", req.Ref, "commit", newCommit)
	return &DeployRecord{Origin: req.Remote, Commit: newCommit, Subpaths: subpaths}, nil
}

func (s *SQLiteScope) CreateOriginRemote(ctx context.Context, id, title, ref, uri, tag string) (string, error) {
	if err := s.RegisterRemote(ctx, id, false); err != nil {
		return "", fmt.Errorf("store: creating origin remote %s: %w", id, err)
	}
	if err := s.RegisterRemoteRef(ctx, id, ref); err != nil {
		return "", fmt.Errorf("store: registering %s for origin remote %s: %w", ref, id, err)
	}
	s.logger.Info("origin remote created", "id", id, "title", title, "ref", ref, "uri", uri, "tag", tag)
	return id, nil
}

func (s *SQLiteScope) RecreateRepo(ctx context.Context) error {
	// The reference store has no separate in-memory repo handle to
	// recreate — every write is immediately visible to subsequent
	// reads through the same connection pool.
	return nil
}

func (s *SQLiteScope) getIfDeployedLocked(conn *sqlite.Conn, ref string) (string, bool, error) {
	var path string
	var found bool
	err := sqlitex.Execute(conn, "SELECT path FROM deploys WHERE ref = ?", &sqlitex.ExecOptions{
		Args: []any{ref},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			path = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("store: querying deploy for %s: %w", ref, err)
	}
	return path, found, nil
}

func (s *SQLiteScope) getDeployDataLocked(conn *sqlite.Conn, ref string) (*DeployRecord, bool, error) {
	var record DeployRecord
	var found bool
	var subpathsBlob []byte
	err := sqlitex.Execute(conn, "SELECT origin, commit_, subpaths FROM deploys WHERE ref = ?", &sqlitex.ExecOptions{
		Args: []any{ref},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record.Origin = stmt.ColumnText(0)
			record.Commit = stmt.ColumnText(1)
			if !stmt.ColumnIsNull(2) {
				subpathsBlob = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, subpathsBlob)
			}
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: querying deploy data for %s: %w", ref, err)
	}
	if !found {
		return nil, false, nil
	}
	if subpathsBlob != nil {
		var decoded subpathRecord
		if err := codec.Unmarshal(subpathsBlob, &decoded); err != nil {
			return nil, false, fmt.Errorf("store: decoding subpaths for %s: %w", ref, err)
		}
		record.Subpaths = decoded.Subpaths
	}
	return &record, true, nil
}

// encodeSubpaths returns the value bound to deploys.subpaths: an untyped
// nil (SQL NULL) for absent subpaths, else the CBOR-encoded record. A nil
// []byte would bind as a zero-length blob rather than NULL.
func encodeSubpaths(subpaths []string) (any, error) {
	if subpaths == nil {
		return nil, nil
	}
	return codec.Marshal(subpathRecord{Subpaths: subpaths})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholderCommit derives a stable, deterministic stand-in commit id
// for the reference store, since there is no real content-addressed
// backend to read an actual commit from. Production backends obtain
// this from the deploy engine (spec.md §6, out of scope here).
func placeholderCommit(ref string) string {
	sum := 0
	for _, r := range ref {
		sum = sum*31 + int(r)
	}
	if sum < 0 {
		sum = -sum
	}
	return fmt.Sprintf("%012x", sum)
}
