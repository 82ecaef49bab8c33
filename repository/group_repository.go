package repository

import (
	"context"
	"fmt"

	"esusu/database"
	"esusu/models"
	"esusu/service"

	"github.com/jackc/pgx/v5"
)

// GroupRepository implements the GroupRepository interface
type GroupRepository struct {
	q queryable
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *database.DB) *GroupRepository {
	return &GroupRepository{q: db.Pool}
}

// newGroupRepositoryWithTx creates a new group repository with a transaction
func newGroupRepositoryWithTx(tx queryable) *GroupRepository {
	return &GroupRepository{q: tx}
}

const groupColumns = `
	id, name, description, contribution_amount, cadence, max_members,
	creator_id, current_cycle, start_date, is_active, total_contributions,
	last_advanced_cycle, last_advanced_week, created_at, updated_at
`

func scanGroup(row pgx.Row) (*models.Group, error) {
	var group models.Group
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.ContributionAmount,
		&group.Cadence,
		&group.MaxMembers,
		&group.CreatorID,
		&group.CurrentCycle,
		&group.StartDate,
		&group.IsActive,
		&group.TotalContributions,
		&group.LastAdvancedCycle,
		&group.LastAdvancedWeek,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetByID retrieves a group by its ID
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	group, err := scanGroup(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", id, err)
	}

	return group, nil
}

// GetActiveGroups returns all groups currently collecting contributions
func (r *GroupRepository) GetActiveGroups(ctx context.Context) ([]*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE is_active = TRUE ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, nil
}

// Create creates a new group, filling in generated fields
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO groups (name, description, contribution_amount, cadence, max_members, creator_id, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, current_cycle, is_active, total_contributions,
			last_advanced_cycle, last_advanced_week, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		group.Name,
		group.Description,
		group.ContributionAmount,
		group.Cadence,
		group.MaxMembers,
		group.CreatorID,
		group.StartDate,
	).Scan(
		&group.ID,
		&group.CurrentCycle,
		&group.IsActive,
		&group.TotalContributions,
		&group.LastAdvancedCycle,
		&group.LastAdvancedWeek,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create group %s: %w", group.Name, err)
	}

	return nil
}

// AddMember adds a user to a group. The insert checks the member cap in the
// same statement; the unique constraint rejects duplicate membership.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error) {
	query := `
		INSERT INTO group_members (group_id, user_id)
		SELECT $1, $2
		WHERE (
			SELECT COUNT(*) FROM group_members
			WHERE group_id = $1 AND is_active = TRUE
		) < (SELECT max_members FROM groups WHERE id = $1)
		RETURNING id, group_id, user_id, joined_at, is_active
	`

	var member models.GroupMember
	err := r.q.QueryRow(ctx, query, groupID, userID).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.JoinedAt,
		&member.IsActive,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("group %d: %w", groupID, service.ErrGroupFull)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add user %d to group %d: %w", userID, groupID, err)
	}

	return &member, nil
}

// GetMemberSnapshot returns the group's active members in stable join order.
// Ties on joined_at break by membership id so the ordering is deterministic.
func (r *GroupRepository) GetMemberSnapshot(ctx context.Context, groupID int64) (*models.MemberSnapshot, error) {
	query := `
		SELECT u.id, u.name, u.whatsapp_id, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1 AND gm.is_active = TRUE
		ORDER BY gm.joined_at, gm.id
	`

	rows, err := r.q.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member snapshot for group %d: %w", groupID, err)
	}
	defer rows.Close()

	snapshot := &models.MemberSnapshot{GroupID: groupID}
	for rows.Next() {
		var member models.SnapshotMember
		err := rows.Scan(&member.UserID, &member.Name, &member.WhatsappID, &member.JoinedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		snapshot.Members = append(snapshot.Members, &member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return snapshot, nil
}

// IncrementTotalContributions adds to the group's running confirmed total
func (r *GroupRepository) IncrementTotalContributions(ctx context.Context, groupID int64, amount int64) error {
	query := `
		UPDATE groups
		SET total_contributions = total_contributions + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, groupID)
	if err != nil {
		return fmt.Errorf("failed to increment total contributions for group %d: %w", groupID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("group %d not found", groupID)
	}

	return nil
}

// AdvanceTo moves the group's cycle counter and last-advanced marker to the
// given period. The WHERE clause only matches rows still behind the target,
// so under concurrent sweeps exactly one caller observes a row update.
func (r *GroupRepository) AdvanceTo(ctx context.Context, groupID int64, period models.Period) (bool, error) {
	query := `
		UPDATE groups
		SET current_cycle = $1, last_advanced_cycle = $1, last_advanced_week = $2, updated_at = NOW()
		WHERE id = $3
		  AND (last_advanced_cycle < $1
		       OR (last_advanced_cycle = $1 AND last_advanced_week < $2))
	`

	result, err := r.q.Exec(ctx, query, period.Cycle, period.Week, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to advance group %d: %w", groupID, err)
	}

	return result.RowsAffected() > 0, nil
}
