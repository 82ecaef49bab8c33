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

// ContributionRepository implements the ContributionRepository interface
type ContributionRepository struct {
	q queryable
}

// NewContributionRepository creates a new contribution repository
func NewContributionRepository(db *database.DB) *ContributionRepository {
	return &ContributionRepository{q: db.Pool}
}

// newContributionRepositoryWithTx creates a new contribution repository with a transaction
func newContributionRepositoryWithTx(tx queryable) *ContributionRepository {
	return &ContributionRepository{q: tx}
}

const contributionColumns = `
	id, user_id, group_id, amount, cycle, week, reference,
	status, paid_at, created_at, updated_at
`

func scanContribution(row pgx.Row) (*models.Contribution, error) {
	var c models.Contribution
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.GroupID,
		&c.Amount,
		&c.Cycle,
		&c.Week,
		&c.Reference,
		&c.Status,
		&c.PaidAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create creates a new contribution record in pending status
func (r *ContributionRepository) Create(ctx context.Context, contribution *models.Contribution) error {
	query := `
		INSERT INTO contributions (user_id, group_id, amount, cycle, week, reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	if contribution.Status == "" {
		contribution.Status = models.ContributionStatusPending
	}

	err := r.q.QueryRow(ctx, query,
		contribution.UserID,
		contribution.GroupID,
		contribution.Amount,
		contribution.Cycle,
		contribution.Week,
		contribution.Reference,
		contribution.Status,
	).Scan(&contribution.ID, &contribution.CreatedAt, &contribution.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contribution %s: %w", contribution.Reference, err)
	}

	return nil
}

// GetByReference retrieves a contribution by its payment reference
func (r *ContributionRepository) GetByReference(ctx context.Context, reference string) (*models.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE reference = $1`

	contribution, err := scanContribution(r.q.QueryRow(ctx, query, reference))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution by reference %s: %w", reference, err)
	}

	return contribution, nil
}

// GetByUserAndPeriod retrieves the contribution a user made for a period
func (r *ContributionRepository) GetByUserAndPeriod(ctx context.Context, userID, groupID int64, period models.Period) (*models.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE user_id = $1 AND group_id = $2 AND cycle = $3 AND week = $4
	`

	contribution, err := scanContribution(r.q.QueryRow(ctx, query, userID, groupID, period.Cycle, period.Week))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution for user %d in group %d: %w", userID, groupID, err)
	}

	return contribution, nil
}

// Confirm transitions a contribution to confirmed. The status predicate makes
// the transition first-writer-wins: a second confirmation for the same
// reference matches no rows and reports false.
func (r *ContributionRepository) Confirm(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE contributions
		SET status = $1, paid_at = $2, updated_at = NOW()
		WHERE reference = $3 AND status != $1
	`

	result, err := r.q.Exec(ctx, query, models.ContributionStatusConfirmed, paidAt, reference)
	if err != nil {
		return false, fmt.Errorf("failed to confirm contribution %s: %w", reference, err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkFailed transitions a pending contribution to failed
func (r *ContributionRepository) MarkFailed(ctx context.Context, reference string) error {
	query := `
		UPDATE contributions
		SET status = $1, updated_at = NOW()
		WHERE reference = $2 AND status = $3
	`

	_, err := r.q.Exec(ctx, query, models.ContributionStatusFailed, reference, models.ContributionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark contribution %s failed: %w", reference, err)
	}

	return nil
}

// ResetForRetry returns a failed contribution to pending under a fresh
// reference so the member can retry without creating a second row
func (r *ContributionRepository) ResetForRetry(ctx context.Context, id int64, newReference string) error {
	query := `
		UPDATE contributions
		SET status = $1, reference = $2, paid_at = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.Exec(ctx, query, models.ContributionStatusPending, newReference, id, models.ContributionStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to reset contribution %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("contribution %d is not in failed status", id)
	}

	return nil
}

// CountConfirmedForPeriod counts confirmed contributions for a period
func (r *ContributionRepository) CountConfirmedForPeriod(ctx context.Context, groupID int64, period models.Period) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM contributions
		WHERE group_id = $1 AND cycle = $2 AND week = $3 AND status = $4
	`

	var count int
	err := r.q.QueryRow(ctx, query, groupID, period.Cycle, period.Week, models.ContributionStatusConfirmed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count confirmed contributions for group %d: %w", groupID, err)
	}

	return count, nil
}

// GetConfirmedUserIDs returns the users with a confirmed contribution for a period
func (r *ContributionRepository) GetConfirmedUserIDs(ctx context.Context, groupID int64, period models.Period) ([]int64, error) {
	query := `
		SELECT user_id
		FROM contributions
		WHERE group_id = $1 AND cycle = $2 AND week = $3 AND status = $4
	`

	rows, err := r.q.Query(ctx, query, groupID, period.Cycle, period.Week, models.ContributionStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed user IDs for group %d: %w", groupID, err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user IDs: %w", err)
	}

	return userIDs, nil
}

// List returns contributions matching the filter, newest first
func (r *ContributionRepository) List(ctx context.Context, filter service.ContributionFilter) ([]*models.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE 1=1`
	var args []any

	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		query += fmt.Sprintf(" AND group_id = $%d", len(args))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
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
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	var contributions []*models.Contribution
	for rows.Next() {
		contribution, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, contribution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}

	return contributions, nil
}
