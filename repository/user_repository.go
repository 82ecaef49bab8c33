package repository

import (
	"context"
	"fmt"

	"esusu/database"
	"esusu/models"

	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `
	id, whatsapp_id, phone_number, name, email,
	account_number, bank_name, account_name,
	is_active, created_at, updated_at
`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var accountNumber, bankName, accountName *string
	err := row.Scan(
		&user.ID,
		&user.WhatsappID,
		&user.PhoneNumber,
		&user.Name,
		&user.Email,
		&accountNumber,
		&bankName,
		&accountName,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if accountNumber != nil {
		user.BankDetails = &models.BankDetails{
			AccountNumber: *accountNumber,
		}
		if bankName != nil {
			user.BankDetails.BankName = *bankName
		}
		if accountName != nil {
			user.BankDetails.AccountName = *accountName
		}
	}
	return &user, nil
}

// GetByID retrieves a user by their internal ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	return user, nil
}

// GetByWhatsappID retrieves a user by their WhatsApp handle
func (r *UserRepository) GetByWhatsappID(ctx context.Context, whatsappID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE whatsapp_id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, whatsappID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by whatsapp ID %s: %w", whatsappID, err)
	}

	return user, nil
}

// Create creates a new user, filling in the generated ID and timestamps
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (whatsapp_id, phone_number, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query, user.WhatsappID, user.PhoneNumber, user.Name, user.Email).Scan(
		&user.ID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.WhatsappID, err)
	}

	return nil
}

// UpdateBankDetails replaces a user's payout destination
func (r *UserRepository) UpdateBankDetails(ctx context.Context, userID int64, details models.BankDetails) error {
	query := `
		UPDATE users
		SET account_number = $1, bank_name = $2, account_name = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.q.Exec(ctx, query, details.AccountNumber, details.BankName, details.AccountName, userID)
	if err != nil {
		return fmt.Errorf("failed to update bank details for user %d: %w", userID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}

	return nil
}
