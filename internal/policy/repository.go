package policy

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no policy row has been persisted yet.
var ErrNotFound = errors.New("policy not found")

// singletonID is the fixed primary key of the one policy row.
const singletonID = 1

// Repository persists the singleton policy row in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new policy Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get returns the stored policy, or ErrNotFound when none exists.
func (r *Repository) Get(ctx context.Context) (*Policy, error) {
	query := `
		SELECT allow_domains, allow_processes, allow_paths,
		       high_volume_threshold, process_conn_threshold,
		       dedupe_window_minutes, alert_risk_threshold, updated_at
		FROM policies WHERE id = $1`

	var p Policy
	err := r.db.QueryRow(ctx, query, singletonID).Scan(
		&p.AllowDomains, &p.AllowProcesses, &p.AllowPaths,
		&p.HighVolumeThreshold, &p.ProcessConnThreshold,
		&p.DedupeWindowMinutes, &p.AlertRiskThreshold, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Upsert writes the policy, creating the singleton row if necessary.
func (r *Repository) Upsert(ctx context.Context, p *Policy) error {
	p.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO policies (
			id, allow_domains, allow_processes, allow_paths,
			high_volume_threshold, process_conn_threshold,
			dedupe_window_minutes, alert_risk_threshold, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			allow_domains          = EXCLUDED.allow_domains,
			allow_processes        = EXCLUDED.allow_processes,
			allow_paths            = EXCLUDED.allow_paths,
			high_volume_threshold  = EXCLUDED.high_volume_threshold,
			process_conn_threshold = EXCLUDED.process_conn_threshold,
			dedupe_window_minutes  = EXCLUDED.dedupe_window_minutes,
			alert_risk_threshold   = EXCLUDED.alert_risk_threshold,
			updated_at             = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		singletonID, p.AllowDomains, p.AllowProcesses, p.AllowPaths,
		p.HighVolumeThreshold, p.ProcessConnThreshold,
		p.DedupeWindowMinutes, p.AlertRiskThreshold, p.UpdatedAt,
	)
	return err
}
