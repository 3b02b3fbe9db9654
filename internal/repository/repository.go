// Package repository persists analysis results.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/ringscope/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAnalysis stores an analysis. Saving an existing id replaces it.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, a *domain.Analysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a == nil || a.ID == "" || a.Result == nil {
		return fmt.Errorf("%w: analysis id and result are required", ErrInvalidInput)
	}

	summaryJSON, err := json.Marshal(a.Result.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.TenantID = tenantID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM analyses WHERE tenant_id = ? AND id = ?`), tenantID, a.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO analyses (id, tenant_id, name, created_at, accounts, rings, edges, summary, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.Name, a.CreatedAt,
		len(a.Result.SuspiciousAccounts), len(a.Result.FraudRings), len(a.Result.Graph.Edges),
		string(summaryJSON), string(resultJSON),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetAnalysis retrieves an analysis with its full result.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, id string) (*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, created_at, result
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	var a domain.Analysis
	var name sql.NullString
	var resultJSON string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id).Scan(
		&a.ID, &a.TenantID, &name, &a.CreatedAt, &resultJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Name = name.String
	a.Result = &domain.AnalysisResult{}
	if err := json.Unmarshal([]byte(resultJSON), a.Result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result %s: %w", id, err)
	}
	a.Result.Normalize()

	return &a, nil
}

// ListAnalyses returns the most recent analyses first. A limit of zero or
// less returns every analysis.
func (r *SQLRepository) ListAnalyses(ctx context.Context, tenantID string, limit int) ([]*domain.AnalysisSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, created_at, summary
		FROM analyses
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id
	`
	args := []any{tenantID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AnalysisSummary
	for rows.Next() {
		var s domain.AnalysisSummary
		var name sql.NullString
		var summaryJSON string

		if err := rows.Scan(&s.ID, &name, &s.CreatedAt, &summaryJSON); err != nil {
			return nil, err
		}
		s.Name = name.String
		if err := json.Unmarshal([]byte(summaryJSON), &s.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode stored summary %s: %w", s.ID, err)
		}
		out = append(out, &s)
	}

	return out, rows.Err()
}

// DeleteAnalysis removes an analysis.
func (r *SQLRepository) DeleteAnalysis(ctx context.Context, tenantID string, id string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM analyses WHERE tenant_id = ? AND id = ?`), tenantID, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
