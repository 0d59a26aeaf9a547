/**
 * @description
 * This file defines the core domain models for the transfer-service. These structs
 * represent the entities and data transfer objects (DTOs) shared by the service's
 * business logic, database access, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit of the settlement
 *   currency (XOF), which avoids floating-point inaccuracies with financial data.
 *   XOF has no minor subdivision in practice, but keeping the integer convention
 *   matches the rest of the platform.
 * - Distinct types for API requests, database rows, and gateway payloads keep the
 *   layers decoupled and type safe.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is the single settlement currency handled by this service.
const DefaultCurrency = "XOF"

// Transaction is the read model of a settled transfer as this service consumes it.
// The record is owned by the ledger; this service never mutates it directly.
type Transaction struct {
	ID               uuid.UUID `json:"id"`
	GatewayReference string    `json:"gateway_reference"`
	SenderID         uuid.UUID `json:"sender_id"`
	RecipientPhone   string    `json:"recipient_phone"`
	Status           string    `json:"status"` // e.g. 'pending', 'settled', 'failed'
	Amount           int64     `json:"amount"` // in minor units
	Currency         string    `json:"currency"`
	GatewayPayinFee  int64     `json:"gateway_payin_fee"`
	GatewayPayoutFee int64     `json:"gateway_payout_fee"`
	CreatedAt        time.Time `json:"created_at"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}

// Settled reports whether the transaction has reached the settled state and is
// therefore eligible for fee finalization and refunds.
func (t *Transaction) Settled() bool {
	return t.Status == TransactionStatusSettled
}

// Transaction status values as recorded by the ledger.
const (
	TransactionStatusPending = "pending"
	TransactionStatusSettled = "settled"
	TransactionStatusFailed  = "failed"
)

// FeeQuoteRequest is the DTO for fee breakdown API requests.
type FeeQuoteRequest struct {
	Amount           int64 `json:"amount"` // in minor units
	GatewayPayinFee  int64 `json:"gateway_payin_fee"`
	GatewayPayoutFee int64 `json:"gateway_payout_fee"`
}

// FeeBreakdown is the immutable fee decomposition computed once per settled
// transaction. TotalFee == GatewayFee + AppFee unless the cap floor forced
// AppFee to zero.
type FeeBreakdown struct {
	GatewayFee           int64  `json:"gateway_fee"`  // in minor units
	AppFee               int64  `json:"app_fee"`      // in minor units
	TotalFee             int64  `json:"total_fee"`    // in minor units
	DisplayPercent       int    `json:"display_percent"`
	ActualGatewayPercent string `json:"actual_gateway_percent"` // decimal string, e.g. "2.5"
	Capped               bool   `json:"capped"`
	Currency             string `json:"currency"`
}
