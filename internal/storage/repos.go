package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/slicegraph/slicegraph/internal/errs"
	"github.com/slicegraph/slicegraph/internal/types"
)

// GetRepo looks up a repo row by ID.
func (s *Store) GetRepo(ctx context.Context, id types.RepoID) (types.Repo, error) {
	stmt, err := s.prepare(ctx, `SELECT repo_id, root_path, config_json, created_at FROM repos WHERE repo_id = ?`)
	if err != nil {
		return types.Repo{}, err
	}
	var r types.Repo
	var createdAt string
	if err := stmt.QueryRowContext(ctx, string(id)).Scan(&r.RepoID, &r.RootPath, &r.ConfigJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return types.Repo{}, errs.InvalidRepo(string(id))
		}
		return types.Repo{}, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return r, nil
}

// CreateRepo inserts a new repo row. RepoID must not already exist.
func (s *Store) CreateRepo(ctx context.Context, r types.Repo) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO repos(repo_id, root_path, config_json, created_at) VALUES (?, ?, ?, ?)`,
			string(r.RepoID), r.RootPath, r.ConfigJSON, r.CreatedAt.Format(time.RFC3339Nano))
		return err
	})
}

// UpdateRepo overwrites the mutable fields of an existing repo row.
func (s *Store) UpdateRepo(ctx context.Context, r types.Repo) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE repos SET root_path = ?, config_json = ? WHERE repo_id = ?`,
			r.RootPath, r.ConfigJSON, string(r.RepoID))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.InvalidRepo(string(r.RepoID))
		}
		return nil
	})
}

// GetLatestVersion returns the lexicographically-greatest version for repoId.
func (s *Store) GetLatestVersion(ctx context.Context, repoID types.RepoID) (types.Version, error) {
	stmt, err := s.prepare(ctx,
		`SELECT version_id, repo_id, created_at, parent FROM versions WHERE repo_id = ? ORDER BY version_id DESC LIMIT 1`)
	if err != nil {
		return types.Version{}, err
	}
	var v types.Version
	var createdAt string
	err = stmt.QueryRowContext(ctx, string(repoID)).Scan(&v.VersionID, &v.RepoID, &createdAt, &v.Parent)
	if err == sql.ErrNoRows {
		return types.Version{}, errs.NoVersion(string(repoID))
	}
	if err != nil {
		return types.Version{}, err
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return v, nil
}

// CreateVersion inserts a new version row; the caller supplies a
// lexicographically-monotone VersionID (the indexing pipeline derives one
// from a zero-padded sequence or timestamp).
func (s *Store) CreateVersion(ctx context.Context, v types.Version) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO versions(version_id, repo_id, created_at, parent) VALUES (?, ?, ?, ?)`,
			string(v.VersionID), string(v.RepoID), v.CreatedAt.Format(time.RFC3339Nano), string(v.Parent))
		return err
	})
}
