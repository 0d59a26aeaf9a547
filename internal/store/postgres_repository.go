/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for the transactions, transaction_fees and
 * refunds tables.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sahelpay/transfer-service/internal/domain"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRefundNotFound      = errors.New("refund not found")
	// ErrRefundConflict is returned when a refund insert collides with an
	// existing in-flight refund for the same transaction.
	ErrRefundConflict = errors.New("transaction already has an active refund")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transactionColumns = `id, gateway_reference, sender_id, recipient_phone, status, amount, currency, gateway_payin_fee, gateway_payout_fee, created_at, settled_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.GatewayReference, &tx.SenderID, &tx.RecipientPhone, &tx.Status,
		&tx.Amount, &tx.Currency, &tx.GatewayPayinFee, &tx.GatewayPayoutFee,
		&tx.CreatedAt, &tx.SettledAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindTransactionByID retrieves a transaction by its internal ID.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, transactionID))
}

// FindTransactionByGatewayReference retrieves a transaction by the reference
// assigned by the payment gateway.
func (r *PostgresRepository) FindTransactionByGatewayReference(ctx context.Context, gatewayReference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_reference = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, gatewayReference))
}

// SaveFeeBreakdown persists the one-time fee decomposition for a settled
// transaction. The row is write-once: a second insert for the same
// transaction is a no-op.
func (r *PostgresRepository) SaveFeeBreakdown(ctx context.Context, transactionID uuid.UUID, breakdown domain.FeeBreakdown) error {
	query := `
		INSERT INTO transaction_fees (transaction_id, gateway_fee, app_fee, total_fee, display_percent, actual_gateway_percent, capped, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (transaction_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query,
		transactionID, breakdown.GatewayFee, breakdown.AppFee, breakdown.TotalFee,
		breakdown.DisplayPercent, breakdown.ActualGatewayPercent, breakdown.Capped, breakdown.Currency,
	)
	if err != nil {
		return fmt.Errorf("failed to save fee breakdown: %w", err)
	}
	return nil
}

const refundColumns = `id, transaction_id, transaction_reference, amount, currency, status, reason, external_reference, failure_reason, created_at, processed_at`

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var refund domain.Refund
	err := row.Scan(
		&refund.ID, &refund.TransactionID, &refund.TransactionReference,
		&refund.Amount, &refund.Currency, &refund.Status, &refund.Reason,
		&refund.ExternalReference, &refund.FailureReason, &refund.CreatedAt, &refund.ProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRefundNotFound
		}
		return nil, err
	}
	return &refund, nil
}

// CreateRefund inserts a new refund record. A partial unique index on
// (transaction_id) WHERE status NOT IN ('failed','rejected') backs the
// at-most-one-active-refund invariant; a unique violation maps to
// ErrRefundConflict.
func (r *PostgresRepository) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	query := `
		INSERT INTO refunds (id, transaction_id, transaction_reference, amount, currency, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		refund.ID, refund.TransactionID, refund.TransactionReference,
		refund.Amount, refund.Currency, refund.Status, refund.Reason, refund.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrRefundConflict
		}
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

// FindRefundByID retrieves a refund by its ID.
func (r *PostgresRepository) FindRefundByID(ctx context.Context, refundID uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`
	return scanRefund(r.db.QueryRow(ctx, query, refundID))
}

// FindRefundByExternalReference retrieves a refund by the gateway-assigned
// settlement reference.
func (r *PostgresRepository) FindRefundByExternalReference(ctx context.Context, externalReference string) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE external_reference = $1`
	return scanRefund(r.db.QueryRow(ctx, query, externalReference))
}

// FindBlockingRefundByTransactionID returns the refund that blocks a new
// refund request for the transaction: any non-terminal refund, or a completed
// one. Failed and rejected refunds do not block a retry.
func (r *PostgresRepository) FindBlockingRefundByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE transaction_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC LIMIT 1`
	return scanRefund(r.db.QueryRow(ctx, query, transactionID,
		domain.RefundStatusRequested, domain.RefundStatusProcessing, domain.RefundStatusCompleted))
}

// TransitionRefund performs a compare-and-swap style status transition. The
// row is only updated when its current status is still one of fromStatuses,
// so a refund that already reached a terminal state rejects further updates.
func (r *PostgresRepository) TransitionRefund(ctx context.Context, refundID uuid.UUID, fromStatuses []string, update RefundTransitionParams) (bool, error) {
	query := `
		UPDATE refunds SET
			status = $2,
			external_reference = COALESCE($3, external_reference),
			failure_reason = COALESCE($4, failure_reason),
			processed_at = COALESCE(processed_at, $5)
		WHERE id = $1 AND status = ANY($6)`
	tag, err := r.db.Exec(ctx, query,
		refundID, update.Status, update.ExternalReference, update.FailureReason, update.ProcessedAt, fromStatuses,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition refund: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListProcessingRefundsOlderThan returns refunds stuck in the processing
// state since before the cutoff, for reconciliation.
func (r *PostgresRepository) ListProcessingRefundsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3`
	rows, err := r.db.Query(ctx, query, domain.RefundStatusProcessing, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, *refund)
	}
	return refunds, rows.Err()
}
