package repository

// Schema definitions for the Ringscope database.
// Compatible with both SQLite and PostgreSQL.

// schemaAnalyses stores uploaded analysis results. The summary is kept in
// its own column so listings never decode the full graph.
const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT,
    created_at TIMESTAMP NOT NULL,
    accounts INTEGER NOT NULL DEFAULT 0,
    rings INTEGER NOT NULL DEFAULT 0,
    edges INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL,
    result TEXT NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(tenant_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAnalyses,
	}
}
