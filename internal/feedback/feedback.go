// Package feedback records analyst verdicts on simulation results. Labels
// feed threshold tuning: a stream of false positives is the signal to raise
// the alert threshold or extend allowlists.
package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Verdicts an analyst can attach to a result.
const (
	VerdictTruePositive  = "true_positive"
	VerdictFalsePositive = "false_positive"
	VerdictBenign        = "benign"
)

// Label is one analyst verdict on a recorded simulation.
type Label struct {
	ID           uuid.UUID `json:"id"`
	SimulationID uuid.UUID `json:"simulation_id"`
	Verdict      string    `json:"verdict"`
	Notes        string    `json:"notes,omitempty"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateRequest is the payload for labelling a simulation.
type CreateRequest struct {
	Verdict string `json:"verdict" binding:"required,oneof=true_positive false_positive benign"`
	Notes   string `json:"notes"`
}

// Repository provides PostgreSQL storage for feedback labels.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new feedback Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create stores a label. The foreign key on simulation_id rejects labels
// for simulations that were never recorded.
func (r *Repository) Create(ctx context.Context, l *Label) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO feedback_labels (id, simulation_id, verdict, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, l.ID, l.SimulationID, l.Verdict, l.Notes, l.CreatedBy, l.CreatedAt)
	return err
}

// ListBySimulation returns the labels for one simulation, oldest first.
func (r *Repository) ListBySimulation(ctx context.Context, simulationID uuid.UUID) ([]*Label, error) {
	query := `
		SELECT id, simulation_id, verdict, notes, created_by, created_at
		FROM feedback_labels
		WHERE simulation_id = $1
		ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, simulationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Label
	for rows.Next() {
		var l Label
		if err := rows.Scan(&l.ID, &l.SimulationID, &l.Verdict, &l.Notes, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
