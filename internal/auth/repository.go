package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an operator does not exist.
var ErrNotFound = errors.New("operator not found")

// Repository provides persistence for operator accounts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new operator Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new operator.
func (r *Repository) Create(ctx context.Context, op *Operator) error {
	op.ID = uuid.New()
	op.CreatedAt = time.Now().UTC()
	query := `INSERT INTO operators (id, username, password_hash, role, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query, op.ID, op.Username, op.PasswordHash, op.Role, op.CreatedAt)
	return err
}

// GetByUsername retrieves an operator by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Operator, error) {
	query := `SELECT id, username, password_hash, role, created_at
	          FROM operators WHERE username = $1`

	var op Operator
	err := r.db.QueryRow(ctx, query, username).Scan(
		&op.ID, &op.Username, &op.PasswordHash, &op.Role, &op.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}
