package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a device does not exist.
var ErrNotFound = errors.New("device not found")

// Repository provides persistence for enrolled devices.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new device Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const deviceColumns = `id, device_id, name, platform, secret, status, last_seen_at, created_at`

// Create inserts a new device.
func (r *Repository) Create(ctx context.Context, d *Device) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	if d.Status == "" {
		d.Status = StatusActive
	}

	query := `
		INSERT INTO devices (id, device_id, name, platform, secret, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.DeviceID, d.Name, d.Platform, d.Secret, d.Status, d.CreatedAt,
	)
	return err
}

// GetByDeviceID retrieves a device by its operator-chosen identifier.
func (r *Repository) GetByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, deviceID))
}

// GetByID retrieves a device by its internal UUID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// List returns all devices, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Device, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.DeviceID, &d.Name, &d.Platform, &d.Secret, &d.Status, &d.LastSeenAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// UpdateStatus changes a device's status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE devices SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastSeen records a successful telemetry submission and reactivates
// offline devices. Revoked devices stay revoked.
func (r *Repository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE devices SET
			last_seen_at = $2,
			status = CASE WHEN status = 'offline' THEN 'active' ELSE status END
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, at)
	return err
}

// MarkStaleOffline flips active devices to offline when they have not been
// seen since the cutoff. Returns the number of devices transitioned.
func (r *Repository) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE devices SET status = 'offline'
		WHERE status = 'active'
		  AND (last_seen_at IS NULL OR last_seen_at < $1)
		  AND created_at < $1`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CountByStatus returns the number of enrolled devices per lifecycle status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM devices GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &d.Platform, &d.Secret, &d.Status, &d.LastSeenAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
