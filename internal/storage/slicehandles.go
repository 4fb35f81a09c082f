package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/slicegraph/slicegraph/internal/errs"
	"github.com/slicegraph/slicegraph/internal/types"
)

// CreateSliceHandle inserts a new leased slice-session row.
func (s *Store) CreateSliceHandle(ctx context.Context, h types.SliceHandle) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO slice_handles(handle, repo_id, created_at, expires_at, min_version, max_version, slice_hash, spillover_ref)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, string(h.Handle), string(h.RepoID), h.CreatedAt.Format(time.RFC3339Nano), h.ExpiresAt.Format(time.RFC3339Nano),
			string(h.MinVersion), string(h.MaxVersion), h.SliceHash, h.SpilloverRef)
		return err
	})
}

// GetSliceHandle fetches a slice handle, returning errs.HandleExpired if its
// TTL has passed.
func (s *Store) GetSliceHandle(ctx context.Context, handle types.SliceHandleID) (types.SliceHandle, error) {
	stmt, err := s.prepare(ctx, `
		SELECT handle, repo_id, created_at, expires_at, min_version, max_version, slice_hash, spillover_ref
		FROM slice_handles WHERE handle = ?`)
	if err != nil {
		return types.SliceHandle{}, err
	}
	var h types.SliceHandle
	var createdAt, expiresAt string
	err = stmt.QueryRowContext(ctx, string(handle)).Scan(
		&h.Handle, &h.RepoID, &createdAt, &expiresAt, &h.MinVersion, &h.MaxVersion, &h.SliceHash, &h.SpilloverRef)
	if err == sql.ErrNoRows {
		return types.SliceHandle{}, errs.HandleExpired(string(handle))
	}
	if err != nil {
		return types.SliceHandle{}, err
	}
	h.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	h.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	if time.Now().After(h.ExpiresAt) {
		return types.SliceHandle{}, errs.HandleExpired(string(handle))
	}
	return h, nil
}

// TouchSliceHandle extends a slice handle's lease and, when the repo has
// moved forward, its recorded max version/slice hash/spillover ref —
// used by refreshSlice to renew a session without minting a new handle
// ID (spec §6 refreshSlice returns a "fresh lease" against the same
// handle).
func (s *Store) TouchSliceHandle(ctx context.Context, handle types.SliceHandleID, expiresAt time.Time, maxVersion types.VersionID, sliceHash, spilloverRef string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE slice_handles
			SET expires_at = ?, max_version = ?, slice_hash = ?, spillover_ref = ?
			WHERE handle = ?
		`, expiresAt.Format(time.RFC3339Nano), string(maxVersion), sliceHash, spilloverRef, string(handle))
		return err
	})
}

// DeleteSliceHandle removes one slice-handle row.
func (s *Store) DeleteSliceHandle(ctx context.Context, handle types.SliceHandleID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM slice_handles WHERE handle = ?`, string(handle))
		return err
	})
}

// DeleteExpiredSliceHandles sweeps every slice handle whose expiry predates
// now, returning the count removed.
func (s *Store) DeleteExpiredSliceHandles(ctx context.Context, now time.Time) (int64, error) {
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM slice_handles WHERE expires_at < ?`, now.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
