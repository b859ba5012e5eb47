package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a simulation result does not exist.
var ErrNotFound = errors.New("simulation not found")

// Repository provides the append-only simulation history store.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new simulation Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const insertQuery = `
	INSERT INTO simulations (
		id, scenario_id, device_id, started_at, risk_score,
		indicators, recommendations, timeline, blocked_actions,
		confidence, signature, suppressed, alert, window_bucket
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12, $13, $14
	)`

// Create appends a result to the history.
func (r *Repository) Create(ctx context.Context, res *Result) error {
	args, err := r.insertArgs(res)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, insertQuery, args...)
	return err
}

// CreateUnique appends a result under the per-window uniqueness constraint
// on (device_id, signature, window_bucket). It reports conflict=true when an
// equivalent unsuppressed result already exists in the same window, in which
// case nothing was written.
func (r *Repository) CreateUnique(ctx context.Context, res *Result) (conflict bool, err error) {
	args, err := r.insertArgs(res)
	if err != nil {
		return false, err
	}
	query := insertQuery + ` ON CONFLICT (device_id, signature, window_bucket) WHERE NOT suppressed DO NOTHING`
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		// Serialization-level duplicate key errors surface as 23505 when two
		// inserts race past the conflict check.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return true, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

func (r *Repository) insertArgs(res *Result) ([]any, error) {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	indicators, err := json.Marshal(res.Indicators)
	if err != nil {
		return nil, fmt.Errorf("marshal indicators: %w", err)
	}
	recommendations, err := json.Marshal(res.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("marshal recommendations: %w", err)
	}
	timeline, err := json.Marshal(res.Timeline)
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}
	blocked, err := json.Marshal(res.BlockedActions)
	if err != nil {
		return nil, fmt.Errorf("marshal blocked actions: %w", err)
	}

	return []any{
		res.ID, res.ScenarioID, res.DeviceID, res.StartedAt, res.RiskScore,
		indicators, recommendations, timeline, blocked,
		res.Confidence, res.Signature, res.Suppressed, res.Alert, res.windowBucket,
	}, nil
}

const selectColumns = `
	id, scenario_id, device_id, started_at, risk_score,
	indicators, recommendations, timeline, blocked_actions,
	confidence, signature, suppressed, alert`

// GetByID retrieves a result by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	query := `SELECT ` + selectColumns + ` FROM simulations WHERE id = $1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return r.scan(rows)
}

// List returns results newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Result, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + selectColumns + ` FROM simulations ORDER BY started_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		res, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// HasRecentSignature reports whether an equivalent outcome for the device
// was recorded at or after since. This is the dedup window lookup: equality
// on signature and device, range on started_at.
func (r *Repository) HasRecentSignature(ctx context.Context, signature, deviceID string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM simulations
			WHERE signature = $1 AND device_id = $2 AND started_at >= $3
		)`
	var found bool
	if err := r.db.QueryRow(ctx, query, signature, deviceID, since).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// scan reads a single result row.
func (r *Repository) scan(rows pgx.Rows) (*Result, error) {
	var res Result
	var indicators, recommendations, timeline, blocked []byte

	err := rows.Scan(
		&res.ID, &res.ScenarioID, &res.DeviceID, &res.StartedAt, &res.RiskScore,
		&indicators, &recommendations, &timeline, &blocked,
		&res.Confidence, &res.Signature, &res.Suppressed, &res.Alert,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(indicators, &res.Indicators); err != nil {
		return nil, fmt.Errorf("unmarshal indicators: %w", err)
	}
	if err := json.Unmarshal(recommendations, &res.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	if err := json.Unmarshal(timeline, &res.Timeline); err != nil {
		return nil, fmt.Errorf("unmarshal timeline: %w", err)
	}
	if err := json.Unmarshal(blocked, &res.BlockedActions); err != nil {
		return nil, fmt.Errorf("unmarshal blocked actions: %w", err)
	}
	return &res, nil
}
