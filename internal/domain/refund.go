package domain

import (
	"time"

	"github.com/google/uuid"
)

// Refund status values. Requested and processing are non-terminal; the rest
// are terminal and never transition again.
const (
	RefundStatusRequested  = "requested"
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusFailed     = "failed"
	RefundStatusRejected   = "rejected"
)

// RefundStatusTerminal reports whether the given status permits no further
// transitions.
func RefundStatusTerminal(status string) bool {
	switch status {
	case RefundStatusCompleted, RefundStatusFailed, RefundStatusRejected:
		return true
	}
	return false
}

// Refund is a child record of exactly one transaction. At most one refund may
// be non-terminal (or completed) per transaction at any time.
type Refund struct {
	ID                   uuid.UUID  `json:"id"`
	TransactionID        uuid.UUID  `json:"transaction_id"`
	TransactionReference string     `json:"transaction_reference"`
	Amount               int64      `json:"amount"` // in minor units
	Currency             string     `json:"currency"`
	Status               string     `json:"status"`
	Reason               string     `json:"reason"`
	ExternalReference    *string    `json:"external_reference,omitempty"`
	FailureReason        *string    `json:"failure_reason,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
}

// Terminal reports whether the refund has reached a terminal status.
func (r *Refund) Terminal() bool {
	return RefundStatusTerminal(r.Status)
}

// RefundRequest is the DTO for incoming refund API requests.
type RefundRequest struct {
	Amount int64  `json:"amount"` // in minor units; 0 means full original amount
	Reason string `json:"reason"`
}

// RefundOutcome is the normalized settlement outcome reported by the gateway,
// either through the status callback queue or by reconciliation polling.
type RefundOutcome struct {
	Status        string `json:"status"` // 'completed' or 'failed'
	FailureReason string `json:"failure_reason,omitempty"`
}

// RefundReconcileResponse summarizes one reconciliation sweep over refunds
// stuck in the processing state.
type RefundReconcileResponse struct {
	Scanned    int `json:"scanned"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Unresolved int `json:"unresolved"`
	QueryError int `json:"query_errors"`
}
