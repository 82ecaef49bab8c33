package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"esusu/database"
	"esusu/models"
	"esusu/service"

	"github.com/jackc/pgx/v5"
)

// TransactionRepository implements the TransactionRepository interface
type TransactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

// newTransactionRepositoryWithTx creates a new transaction repository with a transaction
func newTransactionRepositoryWithTx(tx queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

const transactionColumns = `
	id, user_id, group_id, amount, type, reference, description,
	status, metadata, related_id, related_type, created_at, updated_at
`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	var metadata []byte
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.GroupID,
		&t.Amount,
		&t.Type,
		&t.Reference,
		&t.Description,
		&t.Status,
		&metadata,
		&t.RelatedID,
		&t.RelatedType,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}
	return &t, nil
}

// Record creates a new ledger entry
func (r *TransactionRepository) Record(ctx context.Context, transaction *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, group_id, amount, type, reference, description, status, metadata, related_id, related_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	if transaction.Status == "" {
		transaction.Status = models.TransactionStatusPending
	}

	var metadata []byte
	if transaction.Metadata != nil {
		var err error
		metadata, err = json.Marshal(transaction.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction metadata: %w", err)
		}
	}

	err := r.q.QueryRow(ctx, query,
		transaction.UserID,
		transaction.GroupID,
		transaction.Amount,
		transaction.Type,
		transaction.Reference,
		transaction.Description,
		transaction.Status,
		metadata,
		transaction.RelatedID,
		transaction.RelatedType,
	).Scan(&transaction.ID, &transaction.CreatedAt, &transaction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction %s: %w", transaction.Reference, err)
	}

	return nil
}

// RecordPayoutAttempt inserts the ledger entry guarding a transfer attempt.
// The partial unique index on (related_type, related_id) for unresolved payout
// rows is the serialization point: of any number of concurrent dispatches for
// the same rotation, exactly one insert returns a row, and the losers get
// false without touching the provider.
func (r *TransactionRepository) RecordPayoutAttempt(ctx context.Context, transaction *models.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (user_id, group_id, amount, type, reference, description, status, metadata, related_id, related_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (related_type, related_id) WHERE type = 'payout' AND status IN ('pending', 'completed') DO NOTHING
		RETURNING id, created_at, updated_at
	`

	if transaction.Status == "" {
		transaction.Status = models.TransactionStatusPending
	}

	var metadata []byte
	if transaction.Metadata != nil {
		var err error
		metadata, err = json.Marshal(transaction.Metadata)
		if err != nil {
			return false, fmt.Errorf("failed to marshal transaction metadata: %w", err)
		}
	}

	err := r.q.QueryRow(ctx, query,
		transaction.UserID,
		transaction.GroupID,
		transaction.Amount,
		transaction.Type,
		transaction.Reference,
		transaction.Description,
		transaction.Status,
		metadata,
		transaction.RelatedID,
		transaction.RelatedType,
	).Scan(&transaction.ID, &transaction.CreatedAt, &transaction.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record payout attempt %s: %w", transaction.Reference, err)
	}

	return true, nil
}

// UpdateStatusByReference transitions a ledger entry's status
func (r *TransactionRepository) UpdateStatusByReference(ctx context.Context, reference string, status models.TransactionStatus) error {
	query := `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE reference = $2
	`

	result, err := r.q.Exec(ctx, query, status, reference)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", reference, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s not found", reference)
	}

	return nil
}

// GetPendingByRelated returns the pending ledger entry attached to an entity,
// if any. Newest first in the degenerate case of multiple pending rows.
func (r *TransactionRepository) GetPendingByRelated(ctx context.Context, relatedType models.RelatedType, relatedID int64) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE related_type = $1 AND related_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	transaction, err := scanTransaction(r.q.QueryRow(ctx, query, relatedType, relatedID, models.TransactionStatusPending))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transaction for %s %d: %w", relatedType, relatedID, err)
	}

	return transaction, nil
}

// List returns ledger entries matching the filter, newest first
func (r *TransactionRepository) List(ctx context.Context, filter service.TransactionFilter) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
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
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}
