package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/slicegraph/slicegraph/internal/types"
)

// UpsertEdge inserts or overwrites an edge row keyed by (from, to, type).
func (s *Store) UpsertEdge(ctx context.Context, e types.Edge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertEdgeTx(ctx, tx, e)
	})
}

// UpsertEdges writes a batch of edges in chunkSize-row transactions.
func (s *Store) UpsertEdges(ctx context.Context, edges []types.Edge, chunkSize int) error {
	for _, chunk := range batched(edges, chunkSize) {
		if err := s.withTx(ctx, func(tx *sql.Tx) error {
			for _, e := range chunk {
				if err := upsertEdgeTx(ctx, tx, e); err != nil {
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

func upsertEdgeTx(ctx context.Context, tx *sql.Tx, e types.Edge) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO edges(repo_id, from_symbol_id, to_symbol_id, type, weight, confidence, resolution_strategy, provenance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_symbol_id, to_symbol_id, type) DO UPDATE SET
			weight = excluded.weight,
			confidence = excluded.confidence,
			resolution_strategy = excluded.resolution_strategy,
			provenance = excluded.provenance,
			created_at = excluded.created_at
	`,
		string(e.RepoID), string(e.FromSymbolID), string(e.ToSymbolID), string(e.Type),
		e.Weight, e.Confidence, string(e.ResolutionStrategy), e.Provenance, e.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// DeleteEdgesFromSymbols removes every outgoing edge whose from_symbol_id is
// in symbolIDs — used before re-inserting a re-parsed file's freshly
// extracted edges (spec §4.D pass-2 step 5).
func (s *Store) DeleteEdgesFromSymbols(ctx context.Context, symbolIDs []types.SymbolID) error {
	if len(symbolIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		placeholders := make([]string, len(symbolIDs))
		args := make([]any, len(symbolIDs))
		for i, id := range symbolIDs {
			placeholders[i] = "?"
			args[i] = string(id)
		}
		q := fmt.Sprintf(`DELETE FROM edges WHERE from_symbol_id IN (%s)`, strings.Join(placeholders, ","))
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
}

const edgeColumns = `repo_id, from_symbol_id, to_symbol_id, type, weight, confidence, resolution_strategy, provenance, created_at`

func scanEdge(row interface{ Scan(...any) error }) (types.Edge, error) {
	var e types.Edge
	var createdAt string
	err := row.Scan(&e.RepoID, &e.FromSymbolID, &e.ToSymbolID, &e.Type, &e.Weight, &e.Confidence,
		&e.ResolutionStrategy, &e.Provenance, &createdAt)
	if err != nil {
		return types.Edge{}, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

// GetEdgesFrom returns every outgoing edge from symbolID, sorted by target
// ID for deterministic consumption by the slice engine.
func (s *Store) GetEdgesFrom(ctx context.Context, symbolID types.SymbolID) ([]types.Edge, error) {
	stmt, err := s.prepare(ctx, `SELECT `+edgeColumns+` FROM edges WHERE from_symbol_id = ? ORDER BY to_symbol_id ASC`)
	if err != nil {
		return nil, err
	}
	return queryEdges(ctx, stmt, string(symbolID))
}

// GetEdgesTo returns every incoming edge to symbolID.
func (s *Store) GetEdgesTo(ctx context.Context, symbolID types.SymbolID) ([]types.Edge, error) {
	stmt, err := s.prepare(ctx, `SELECT `+edgeColumns+` FROM edges WHERE to_symbol_id = ? ORDER BY from_symbol_id ASC`)
	if err != nil {
		return nil, err
	}
	return queryEdges(ctx, stmt, string(symbolID))
}

// GetEdgesFromSymbolsForSlice returns every outgoing edge from any symbol in
// symbolIDs — the bulk fetch the neighborhood graph loader uses per hop.
func (s *Store) GetEdgesFromSymbolsForSlice(ctx context.Context, symbolIDs []types.SymbolID) ([]types.Edge, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(symbolIDs))
	args := make([]any, len(symbolIDs))
	for i, id := range symbolIDs {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	q := `SELECT ` + edgeColumns + ` FROM edges WHERE from_symbol_id IN (` + strings.Join(placeholders, ",") +
		`) ORDER BY from_symbol_id ASC, to_symbol_id ASC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEdges(rows)
}

// ListEdgesByRepo returns every edge row for repoID, ordered for
// deterministic bulk graph loads.
func (s *Store) ListEdgesByRepo(ctx context.Context, repoID types.RepoID) ([]types.Edge, error) {
	stmt, err := s.prepare(ctx, `SELECT `+edgeColumns+` FROM edges WHERE repo_id = ? ORDER BY from_symbol_id ASC, to_symbol_id ASC`)
	if err != nil {
		return nil, err
	}
	return queryEdges(ctx, stmt, string(repoID))
}

// GetEdgesToSymbolsForSlice returns every incoming edge targeting any symbol
// in symbolIDs — the bulk fetch the neighborhood graph loader uses per hop
// when expanding against incoming edges.
func (s *Store) GetEdgesToSymbolsForSlice(ctx context.Context, symbolIDs []types.SymbolID) ([]types.Edge, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(symbolIDs))
	args := make([]any, len(symbolIDs))
	for i, id := range symbolIDs {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	q := `SELECT ` + edgeColumns + ` FROM edges WHERE to_symbol_id IN (` + strings.Join(placeholders, ",") +
		`) ORDER BY to_symbol_id ASC, from_symbol_id ASC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEdges(rows)
}

func queryEdges(ctx context.Context, stmt *sql.Stmt, arg string) ([]types.Edge, error) {
	rows, err := stmt.QueryContext(ctx, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEdges(rows)
}

func collectEdges(rows *sql.Rows) ([]types.Edge, error) {
	var out []types.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
