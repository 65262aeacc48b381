// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
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
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

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

// SaveRun stores an analysis run with tenant isolation. Summary
// columns are denormalized from the report so list queries never
// parse report JSON.
func (r *SQLRepository) SaveRun(ctx context.Context, tenantID string, run *domain.AnalysisRun) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run with id is required", ErrInvalidInput)
	}

	config, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to encode run config: %w", err)
	}
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	var totalTx, totalFraud, clusterCount, ringCount int
	var fraudRate float64
	if run.Report != nil {
		totalTx = run.Report.Metrics.TotalTransactions
		totalFraud = run.Report.Metrics.TotalFraud
		fraudRate = run.Report.Metrics.FraudRate
		clusterCount = len(run.Report.Clusters)
		ringCount = len(run.Report.Rings)
	}

	query := `
		INSERT INTO analysis_runs (
			id, tenant_id, dataset, fingerprint, created_at,
			total_transactions, total_fraud, fraud_rate,
			cluster_count, ring_count, config, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		run.ID, tenantID, run.Dataset, run.Fingerprint, run.CreatedAt,
		totalTx, totalFraud, fraudRate,
		clusterCount, ringCount,
		string(config), string(report),
	)
	return err
}

// GetRun retrieves a run with its full report by ID with tenant
// isolation.
func (r *SQLRepository) GetRun(ctx context.Context, tenantID string, runID string) (*domain.AnalysisRun, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, dataset, fingerprint, created_at, config, report
		FROM analysis_runs
		WHERE tenant_id = ? AND id = ?
	`

	var run domain.AnalysisRun
	var config, report string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, runID).Scan(
		&run.ID, &run.TenantID, &run.Dataset, &run.Fingerprint,
		&run.CreatedAt, &config, &report,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(config), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}
	if report != "" && report != "null" {
		run.Report = &domain.Report{}
		if err := json.Unmarshal([]byte(report), run.Report); err != nil {
			return nil, fmt.Errorf("failed to parse report: %w", err)
		}
	}

	return &run, nil
}

// ListRuns retrieves run summaries for a tenant, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context, tenantID string, limit int) ([]*domain.RunSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, dataset, created_at,
			   total_transactions, total_fraud, fraud_rate,
			   cluster_count, ring_count
		FROM analysis_runs
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.RunSummary
	for rows.Next() {
		var s domain.RunSummary
		if err := rows.Scan(
			&s.ID, &s.Dataset, &s.CreatedAt,
			&s.TotalTransactions, &s.TotalFraud, &s.FraudRate,
			&s.ClusterCount, &s.RingCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

// DeleteRun removes a run with tenant isolation.
func (r *SQLRepository) DeleteRun(ctx context.Context, tenantID string, runID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM analysis_runs WHERE tenant_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, runID)
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
