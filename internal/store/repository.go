/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the transfer-service core needs. The interface decouples the business
 * logic from the PostgreSQL implementation and makes the refund state machine
 * testable with plain stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sahelpay/transfer-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Transaction methods. Transactions are read-only for this service except
	// for the fee breakdown, which is written once at settlement.
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionByGatewayReference(ctx context.Context, gatewayReference string) (*domain.Transaction, error)
	SaveFeeBreakdown(ctx context.Context, transactionID uuid.UUID, breakdown domain.FeeBreakdown) error

	// Refund methods.
	CreateRefund(ctx context.Context, refund *domain.Refund) error
	FindRefundByID(ctx context.Context, refundID uuid.UUID) (*domain.Refund, error)
	FindRefundByExternalReference(ctx context.Context, externalReference string) (*domain.Refund, error)
	FindBlockingRefundByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Refund, error)
	// TransitionRefund applies a conditional status transition and reports
	// whether it was applied. The update only succeeds while the refund's
	// current status is still in fromStatuses, which serializes racing
	// confirmations at the database.
	TransitionRefund(ctx context.Context, refundID uuid.UUID, fromStatuses []string, update RefundTransitionParams) (bool, error)
	ListProcessingRefundsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Refund, error)
}

// RefundTransitionParams carries the fields written by a status transition.
// Nil pointers leave the corresponding column untouched.
type RefundTransitionParams struct {
	Status            string
	ExternalReference *string
	FailureReason     *string
	ProcessedAt       *time.Time
}
