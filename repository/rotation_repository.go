package repository

import (
	"context"
	"fmt"
	"time"

	"esusu/database"
	"esusu/models"
	"esusu/service"

	"github.com/jackc/pgx/v5"
)

// RotationRepository implements the RotationRepository interface
type RotationRepository struct {
	q queryable
}

// NewRotationRepository creates a new rotation repository
func NewRotationRepository(db *database.DB) *RotationRepository {
	return &RotationRepository{q: db.Pool}
}

// newRotationRepositoryWithTx creates a new rotation repository with a transaction
func newRotationRepositoryWithTx(tx queryable) *RotationRepository {
	return &RotationRepository{q: tx}
}

const rotationColumns = `
	id, group_id, recipient_id, cycle, week, amount, status,
	paid_at, transfer_reference, created_at, updated_at
`

func scanRotation(row pgx.Row) (*models.Rotation, error) {
	var rot models.Rotation
	err := row.Scan(
		&rot.ID,
		&rot.GroupID,
		&rot.RecipientID,
		&rot.Cycle,
		&rot.Week,
		&rot.Amount,
		&rot.Status,
		&rot.PaidAt,
		&rot.TransferReference,
		&rot.CreatedAt,
		&rot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rot, nil
}

// Create inserts the rotation unless a row already exists for its
// (group, cycle, week). The unique constraint is the serialization point:
// the losing writer gets no row back and returns false.
func (r *RotationRepository) Create(ctx context.Context, rotation *models.Rotation) (bool, error) {
	query := `
		INSERT INTO rotations (group_id, recipient_id, cycle, week, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id, cycle, week) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	if rotation.Status == "" {
		rotation.Status = models.RotationStatusPending
	}

	err := r.q.QueryRow(ctx, query,
		rotation.GroupID,
		rotation.RecipientID,
		rotation.Cycle,
		rotation.Week,
		rotation.Amount,
		rotation.Status,
	).Scan(&rotation.ID, &rotation.CreatedAt, &rotation.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create rotation for group %d cycle %d week %d: %w",
			rotation.GroupID, rotation.Cycle, rotation.Week, err)
	}

	return true, nil
}

// GetByID retrieves a rotation by its ID
func (r *RotationRepository) GetByID(ctx context.Context, id int64) (*models.Rotation, error) {
	query := `SELECT ` + rotationColumns + ` FROM rotations WHERE id = $1`

	rotation, err := scanRotation(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation %d: %w", id, err)
	}

	return rotation, nil
}

// GetByPeriod retrieves the rotation for a (group, cycle, week)
func (r *RotationRepository) GetByPeriod(ctx context.Context, groupID int64, period models.Period) (*models.Rotation, error) {
	query := `
		SELECT ` + rotationColumns + `
		FROM rotations
		WHERE group_id = $1 AND cycle = $2 AND week = $3
	`

	rotation, err := scanRotation(r.q.QueryRow(ctx, query, groupID, period.Cycle, period.Week))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation for group %d cycle %d week %d: %w",
			groupID, period.Cycle, period.Week, err)
	}

	return rotation, nil
}

// MarkPaid finalizes a rotation after a provider-confirmed transfer
func (r *RotationRepository) MarkPaid(ctx context.Context, id int64, transferReference string, paidAt time.Time) error {
	query := `
		UPDATE rotations
		SET status = $1, transfer_reference = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`

	result, err := r.q.Exec(ctx, query, models.RotationStatusPaid, transferReference, paidAt, id, models.RotationStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark rotation %d paid: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("rotation %d is not pending", id)
	}

	return nil
}

// MarkFailed records a provider-reported transfer failure
func (r *RotationRepository) MarkFailed(ctx context.Context, id int64) error {
	query := `
		UPDATE rotations
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.q.Exec(ctx, query, models.RotationStatusFailed, id, models.RotationStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark rotation %d failed: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("rotation %d is not pending", id)
	}

	return nil
}

// List returns rotations matching the filter, newest first
func (r *RotationRepository) List(ctx context.Context, filter service.RotationFilter) ([]*models.Rotation, error) {
	query := `SELECT ` + rotationColumns + ` FROM rotations WHERE 1=1`
	var args []any

	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		query += fmt.Sprintf(" AND group_id = $%d", len(args))
	}
	if filter.RecipientID != nil {
		args = append(args, *filter.RecipientID)
		query += fmt.Sprintf(" AND recipient_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rotations: %w", err)
	}
	defer rows.Close()

	var rotations []*models.Rotation
	for rows.Next() {
		rotation, err := scanRotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rotation: %w", err)
		}
		rotations = append(rotations, rotation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rotations: %w", err)
	}

	return rotations, nil
}
