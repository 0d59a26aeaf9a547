package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationAttemptedEvent is the audit payload published after every
// mobile-money verification attempt. The audit component owns how these
// become user-facing activity entries.
type VerificationAttemptedEvent struct {
	Phone                string    `json:"phone"`
	Country              string    `json:"country,omitempty"`
	OperatorCode         string    `json:"operator_code,omitempty"`
	Valid                bool      `json:"valid"`
	APIVerified          bool      `json:"api_verified"`
	MobileMoneySupported bool      `json:"mobile_money_supported"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// RefundTransitionedEvent is the audit payload published on every refund
// status change.
type RefundTransitionedEvent struct {
	RefundID          uuid.UUID `json:"refund_id"`
	TransactionID     uuid.UUID `json:"transaction_id"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	FromStatus        string    `json:"from_status"`
	ToStatus          string    `json:"to_status"`
	ExternalReference string    `json:"external_reference,omitempty"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// TransferSettledEvent is the message the ledger publishes when a transfer
// settles. It triggers fee finalization for the transaction.
type TransferSettledEvent struct {
	EventID          string    `json:"event_id"`
	GatewayReference string    `json:"gateway_reference"`
	SettledAt        time.Time `json:"settled_at"`
}

// RefundStatusEvent is the message consumed from the gateway callback queue
// for asynchronous refund settlement updates.
type RefundStatusEvent struct {
	EventID           string    `json:"event_id"`
	ExternalReference string    `json:"external_reference"`
	Status            string    `json:"status"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}
