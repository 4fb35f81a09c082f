package storage

import (
	"context"
	"database/sql"

	"github.com/slicegraph/slicegraph/internal/types"
)

// UpsertMetrics writes a denormalized metrics snapshot for one symbol,
// consumed only by the card serializer (spec §3).
func (s *Store) UpsertMetrics(ctx context.Context, m types.Metrics) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metrics(symbol_id, fan_in, fan_out, churn_30d, test_refs_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(symbol_id) DO UPDATE SET
				fan_in = excluded.fan_in,
				fan_out = excluded.fan_out,
				churn_30d = excluded.churn_30d,
				test_refs_json = excluded.test_refs_json
		`, string(m.SymbolID), m.FanIn, m.FanOut, m.Churn30d, m.TestRefsJSON)
		return err
	})
}

// GetMetrics fetches the metrics snapshot for a symbol, if one exists.
func (s *Store) GetMetrics(ctx context.Context, symbolID types.SymbolID) (types.Metrics, bool, error) {
	stmt, err := s.prepare(ctx,
		`SELECT symbol_id, fan_in, fan_out, churn_30d, test_refs_json FROM metrics WHERE symbol_id = ?`)
	if err != nil {
		return types.Metrics{}, false, err
	}
	var m types.Metrics
	err = stmt.QueryRowContext(ctx, string(symbolID)).Scan(&m.SymbolID, &m.FanIn, &m.FanOut, &m.Churn30d, &m.TestRefsJSON)
	if err == sql.ErrNoRows {
		return types.Metrics{}, false, nil
	}
	if err != nil {
		return types.Metrics{}, false, err
	}
	return m, true, nil
}
