package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/slicegraph/slicegraph/internal/types"
)

// UpsertSymbol inserts or overwrites a symbol row by symbol_id.
func (s *Store) UpsertSymbol(ctx context.Context, sym types.Symbol) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertSymbolTx(ctx, tx, sym)
	})
}

// UpsertSymbols writes a batch of symbols in chunkSize-row transactions.
func (s *Store) UpsertSymbols(ctx context.Context, symbols []types.Symbol, chunkSize int) error {
	for _, chunk := range batched(symbols, chunkSize) {
		if err := s.withTx(ctx, func(tx *sql.Tx) error {
			for _, sym := range chunk {
				if err := upsertSymbolTx(ctx, tx, sym); err != nil {
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

func upsertSymbolTx(ctx context.Context, tx *sql.Tx, sym types.Symbol) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO symbols(
			symbol_id, repo_id, file_id, kind, name, exported, visibility, language,
			start_line, start_col, end_line, end_col, ast_fingerprint,
			signature_json, summary, invariants_json, side_effects_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET
			file_id = excluded.file_id,
			kind = excluded.kind,
			name = excluded.name,
			exported = excluded.exported,
			visibility = excluded.visibility,
			language = excluded.language,
			start_line = excluded.start_line,
			start_col = excluded.start_col,
			end_line = excluded.end_line,
			end_col = excluded.end_col,
			ast_fingerprint = excluded.ast_fingerprint,
			signature_json = excluded.signature_json,
			summary = excluded.summary,
			invariants_json = excluded.invariants_json,
			side_effects_json = excluded.side_effects_json,
			updated_at = excluded.updated_at
	`,
		string(sym.SymbolID), string(sym.RepoID), string(sym.FileID), string(sym.Kind), sym.Name,
		boolToInt(sym.Exported), string(sym.Visibility), sym.Language,
		sym.Range.StartLine, sym.Range.StartCol, sym.Range.EndLine, sym.Range.EndCol,
		sym.ASTFingerprint, sym.SignatureJSON, sym.Summary, sym.InvariantsJSON, sym.SideEffectsJSON,
		sym.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DeleteSymbolsNotInFile deletes symbol rows belonging to fileID whose
// symbol_id is not in keepIDs — the set re-emitted by the current parse
// pass (spec §4.D pass-1 step 4).
func (s *Store) DeleteSymbolsNotInFile(ctx context.Context, fileID types.FileID, keepIDs []types.SymbolID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if len(keepIDs) == 0 {
			_, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_id = ?`, string(fileID))
			return err
		}
		placeholders := make([]string, len(keepIDs))
		args := make([]any, 0, len(keepIDs)+1)
		args = append(args, string(fileID))
		for i, id := range keepIDs {
			placeholders[i] = "?"
			args = append(args, string(id))
		}
		q := fmt.Sprintf(`DELETE FROM symbols WHERE file_id = ? AND symbol_id NOT IN (%s)`,
			strings.Join(placeholders, ","))
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
}

func scanSymbol(row interface{ Scan(...any) error }) (types.Symbol, error) {
	var sym types.Symbol
	var updatedAt string
	var exported int
	err := row.Scan(
		&sym.SymbolID, &sym.RepoID, &sym.FileID, &sym.Kind, &sym.Name, &exported, &sym.Visibility, &sym.Language,
		&sym.Range.StartLine, &sym.Range.StartCol, &sym.Range.EndLine, &sym.Range.EndCol,
		&sym.ASTFingerprint, &sym.SignatureJSON, &sym.Summary, &sym.InvariantsJSON, &sym.SideEffectsJSON, &updatedAt,
	)
	if err != nil {
		return types.Symbol{}, err
	}
	sym.Exported = exported != 0
	sym.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return sym, nil
}

const symbolColumns = `
	symbol_id, repo_id, file_id, kind, name, exported, visibility, language,
	start_line, start_col, end_line, end_col, ast_fingerprint,
	signature_json, summary, invariants_json, side_effects_json, updated_at`

// GetSymbol fetches one symbol row by ID.
func (s *Store) GetSymbol(ctx context.Context, id types.SymbolID) (types.Symbol, bool, error) {
	stmt, err := s.prepare(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE symbol_id = ?`)
	if err != nil {
		return types.Symbol{}, false, err
	}
	sym, err := scanSymbol(stmt.QueryRowContext(ctx, string(id)))
	if err == sql.ErrNoRows {
		return types.Symbol{}, false, nil
	}
	if err != nil {
		return types.Symbol{}, false, err
	}
	return sym, true, nil
}

// GetSymbolsByIDs fetches every symbol row whose ID is in ids, in no
// particular order; callers that need the original order must re-sort.
func (s *Store) GetSymbolsByIDs(ctx context.Context, ids []types.SymbolID) ([]types.Symbol, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	q := `SELECT ` + symbolColumns + ` FROM symbols WHERE symbol_id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// GetSymbolsByFile fetches every symbol belonging to fileID.
func (s *Store) GetSymbolsByFile(ctx context.Context, fileID types.FileID) ([]types.Symbol, error) {
	stmt, err := s.prepare(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE file_id = ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, string(fileID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ListSymbolsByRepo returns every symbol row for repoID, ordered by symbol
// ID for deterministic bulk graph loads.
func (s *Store) ListSymbolsByRepo(ctx context.Context, repoID types.RepoID) ([]types.Symbol, error) {
	stmt, err := s.prepare(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE repo_id = ? ORDER BY symbol_id ASC`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, string(repoID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// CountSymbolsByRepo returns the number of symbol rows for repoID, used to
// pick between bulk and neighborhood graph load modes without paying for a
// full row scan.
func (s *Store) CountSymbolsByRepo(ctx context.Context, repoID types.RepoID) (int, error) {
	stmt, err := s.prepare(ctx, `SELECT COUNT(*) FROM symbols WHERE repo_id = ?`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := stmt.QueryRowContext(ctx, string(repoID)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SearchSymbols performs a prefix/substring search over symbol names within
// a repo, tie-broken deterministically by name then ID (spec §4.C).
func (s *Store) SearchSymbols(ctx context.Context, repoID types.RepoID, query string, limit int) ([]types.Symbol, error) {
	if limit <= 0 {
		limit = 20
	}
	stmt, err := s.prepare(ctx, `
		SELECT `+symbolColumns+` FROM symbols
		WHERE repo_id = ? AND name LIKE ? ESCAPE '\'
		ORDER BY name ASC, symbol_id ASC
		LIMIT ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, string(repoID), "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}
