package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/slicegraph/slicegraph/internal/types"
)

// UpsertFile inserts or updates a file row, keyed by (repoId, relPath).
func (s *Store) UpsertFile(ctx context.Context, f types.File) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertFileTx(ctx, tx, f)
	})
}

// UpsertFiles writes a batch of files in chunks of chunkSize per
// transaction (spec §4.C batched-write discipline).
func (s *Store) UpsertFiles(ctx context.Context, files []types.File, chunkSize int) error {
	for _, chunk := range batched(files, chunkSize) {
		if err := s.withTx(ctx, func(tx *sql.Tx) error {
			for _, f := range chunk {
				if err := upsertFileTx(ctx, tx, f); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func upsertFileTx(ctx context.Context, tx *sql.Tx, f types.File) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO files(file_id, repo_id, rel_path, content_hash, language, bytes, last_seen_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, rel_path) DO UPDATE SET
			file_id = excluded.file_id,
			content_hash = excluded.content_hash,
			language = excluded.language,
			bytes = excluded.bytes,
			last_seen_version = excluded.last_seen_version
	`, string(f.FileID), string(f.RepoID), f.RelPath, f.ContentHash, f.Language, f.Bytes, string(f.LastSeenVer))
	return err
}

// GetFileByPath returns the file row for (repoId, relPath), if present.
func (s *Store) GetFileByPath(ctx context.Context, repoID types.RepoID, relPath string) (types.File, bool, error) {
	stmt, err := s.prepare(ctx, `
		SELECT file_id, repo_id, rel_path, content_hash, language, bytes, last_seen_version
		FROM files WHERE repo_id = ? AND rel_path = ?`)
	if err != nil {
		return types.File{}, false, err
	}
	var f types.File
	err = stmt.QueryRowContext(ctx, string(repoID), relPath).Scan(
		&f.FileID, &f.RepoID, &f.RelPath, &f.ContentHash, &f.Language, &f.Bytes, &f.LastSeenVer)
	if err == sql.ErrNoRows {
		return types.File{}, false, nil
	}
	if err != nil {
		return types.File{}, false, err
	}
	return f, true, nil
}

// GetFilesByIDs fetches every file row whose ID is in fileIDs — the bulk
// fetch the neighborhood graph loader uses to resolve the files map for a
// partial symbol set.
func (s *Store) GetFilesByIDs(ctx context.Context, fileIDs []types.FileID) ([]types.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(fileIDs))
	args := make([]any, len(fileIDs))
	for i, id := range fileIDs {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	q := `SELECT file_id, repo_id, rel_path, content_hash, language, bytes, last_seen_version
		FROM files WHERE file_id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.File
	for rows.Next() {
		var f types.File
		if err := rows.Scan(&f.FileID, &f.RepoID, &f.RelPath, &f.ContentHash, &f.Language, &f.Bytes, &f.LastSeenVer); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFilesByRepo returns every file row for repoID.
func (s *Store) ListFilesByRepo(ctx context.Context, repoID types.RepoID) ([]types.File, error) {
	stmt, err := s.prepare(ctx, `
		SELECT file_id, repo_id, rel_path, content_hash, language, bytes, last_seen_version
		FROM files WHERE repo_id = ? ORDER BY rel_path ASC`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, string(repoID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.File
	for rows.Next() {
		var f types.File
		if err := rows.Scan(&f.FileID, &f.RepoID, &f.RelPath, &f.ContentHash, &f.Language, &f.Bytes, &f.LastSeenVer); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFilesMissingFrom removes file rows for repoID whose last_seen_version
// predates the given version — files that disappeared from disk since the
// prior scan (spec §4.D pass-1 step 4 and §3 lifecycle).
func (s *Store) DeleteFilesMissingFrom(ctx context.Context, repoID types.RepoID, currentVersion types.VersionID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM symbols WHERE file_id IN (SELECT file_id FROM files WHERE repo_id = ? AND last_seen_version < ?)`,
			string(repoID), string(currentVersion)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM files WHERE repo_id = ? AND last_seen_version < ?`,
			string(repoID), string(currentVersion))
		return err
	})
}
