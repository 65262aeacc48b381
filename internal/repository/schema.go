package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaAnalysisRuns = `
CREATE TABLE IF NOT EXISTS analysis_runs (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    dataset TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    total_transactions INTEGER NOT NULL DEFAULT 0,
    total_fraud INTEGER NOT NULL DEFAULT 0,
    fraud_rate REAL NOT NULL DEFAULT 0,
    cluster_count INTEGER NOT NULL DEFAULT 0,
    ring_count INTEGER NOT NULL DEFAULT 0,
    config TEXT NOT NULL,
    report TEXT
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_tenant ON analysis_runs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_created ON analysis_runs(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_fingerprint ON analysis_runs(tenant_id, fingerprint);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAnalysisRuns,
	}
}
