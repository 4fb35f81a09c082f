package storage

import "context"

// migrate applies the ledger schema idempotently. Every statement uses
// CREATE TABLE/INDEX IF NOT EXISTS so opening an existing database is a
// no-op (spec §6: "migrations are applied idempotently at open").
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS repos (
			repo_id     TEXT PRIMARY KEY,
			root_path   TEXT NOT NULL,
			config_json TEXT NOT NULL DEFAULT '{}',
			created_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS versions (
			version_id TEXT PRIMARY KEY,
			repo_id    TEXT NOT NULL REFERENCES repos(repo_id),
			created_at TEXT NOT NULL,
			parent     TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_versions_repo ON versions(repo_id, version_id);`,
		`CREATE TABLE IF NOT EXISTS files (
			file_id           TEXT PRIMARY KEY,
			repo_id           TEXT NOT NULL REFERENCES repos(repo_id),
			rel_path          TEXT NOT NULL,
			content_hash      TEXT NOT NULL,
			language          TEXT NOT NULL,
			bytes             INTEGER NOT NULL,
			last_seen_version TEXT NOT NULL,
			UNIQUE(repo_id, rel_path)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_repo_version ON files(repo_id, last_seen_version);`,
		`CREATE TABLE IF NOT EXISTS symbols (
			symbol_id         TEXT PRIMARY KEY,
			repo_id           TEXT NOT NULL REFERENCES repos(repo_id),
			file_id           TEXT NOT NULL REFERENCES files(file_id),
			kind              TEXT NOT NULL,
			name              TEXT NOT NULL,
			exported          INTEGER NOT NULL,
			visibility        TEXT NOT NULL DEFAULT '',
			language          TEXT NOT NULL,
			start_line        INTEGER NOT NULL,
			start_col         INTEGER NOT NULL,
			end_line          INTEGER NOT NULL,
			end_col           INTEGER NOT NULL,
			ast_fingerprint   TEXT NOT NULL,
			signature_json    TEXT NOT NULL DEFAULT '',
			summary           TEXT NOT NULL DEFAULT '',
			invariants_json   TEXT NOT NULL DEFAULT '',
			side_effects_json TEXT NOT NULL DEFAULT '',
			updated_at        TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_repo_name ON symbols(repo_id, name);`,
		`CREATE TABLE IF NOT EXISTS edges (
			repo_id             TEXT NOT NULL REFERENCES repos(repo_id),
			from_symbol_id      TEXT NOT NULL,
			to_symbol_id        TEXT NOT NULL,
			type                TEXT NOT NULL,
			weight              REAL NOT NULL DEFAULT 0,
			confidence          REAL NOT NULL DEFAULT 0,
			resolution_strategy TEXT NOT NULL DEFAULT '',
			provenance          TEXT NOT NULL DEFAULT '',
			created_at          TEXT NOT NULL,
			PRIMARY KEY (from_symbol_id, to_symbol_id, type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_symbol_id);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_symbol_id);`,
		`CREATE TABLE IF NOT EXISTS metrics (
			symbol_id      TEXT PRIMARY KEY,
			fan_in         INTEGER NOT NULL DEFAULT 0,
			fan_out        INTEGER NOT NULL DEFAULT 0,
			churn_30d      INTEGER NOT NULL DEFAULT 0,
			test_refs_json TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS slice_handles (
			handle        TEXT PRIMARY KEY,
			repo_id       TEXT NOT NULL REFERENCES repos(repo_id),
			created_at    TEXT NOT NULL,
			expires_at    TEXT NOT NULL,
			min_version   TEXT NOT NULL DEFAULT '',
			max_version   TEXT NOT NULL,
			slice_hash    TEXT NOT NULL,
			spillover_ref TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_slice_handles_expiry ON slice_handles(expires_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
