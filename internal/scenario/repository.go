package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a scenario does not exist.
var ErrNotFound = errors.New("scenario not found")

// Repository provides CRUD operations for scenarios against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new scenario Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new scenario.
func (r *Repository) Create(ctx context.Context, s *Scenario) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	if s.Severity == "" {
		s.Severity = "medium"
	}
	if s.Tactics == nil {
		s.Tactics = []string{}
	}
	if s.Techniques == nil {
		s.Techniques = []string{}
	}

	query := `
		INSERT INTO scenarios (id, name, description, tactics, techniques, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.Name, s.Description, s.Tactics, s.Techniques, s.Severity, s.CreatedAt,
	)
	return err
}

// GetByID retrieves a scenario by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Scenario, error) {
	query := `
		SELECT id, name, description, tactics, techniques, severity, created_at
		FROM scenarios WHERE id = $1`

	var s Scenario
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.Description, &s.Tactics, &s.Techniques, &s.Severity, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns scenarios newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Scenario, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, name, description, tactics, techniques, severity, created_at
		FROM scenarios
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Scenario
	for rows.Next() {
		var s Scenario
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Tactics, &s.Techniques, &s.Severity, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Delete permanently removes a scenario.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
