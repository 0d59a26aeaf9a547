package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/sahelpay/transfer-service/internal/domain"
	"github.com/sahelpay/transfer-service/internal/store"
)

// RefundStatusConsumer consumes asynchronous refund settlement events from
// the gateway callback queue and feeds them into the refund state machine.
type RefundStatusConsumer struct {
	refunds *RefundService
}

func NewRefundStatusConsumer(refunds *RefundService) *RefundStatusConsumer {
	return &RefundStatusConsumer{refunds: refunds}
}

// HandleMessage processes one queue message. Returning true acknowledges the
// message; returning false requeues it. Unparsable payloads are acknowledged
// so a poison message cannot wedge the queue.
func (c *RefundStatusConsumer) HandleMessage(body []byte) bool {
	var event domain.RefundStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("refund-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.ExternalReference == "" {
		log.Printf("refund-consumer: missing external reference in event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome := domain.RefundOutcome{
		Status:        event.Status,
		FailureReason: event.FailureReason,
	}
	if err := c.refunds.ApplyGatewayUpdate(ctx, event.ExternalReference, outcome); err != nil {
		if errors.Is(err, store.ErrRefundNotFound) {
			// The gateway can report references we never issued, or events can
			// arrive before the local record is visible. Acknowledge unknown
			// references rather than requeueing forever.
			log.Printf("refund-consumer: no refund found for external reference %s; acknowledging", event.ExternalReference)
			return true
		}
		log.Printf("refund-consumer: processing error for external reference %s: %v", event.ExternalReference, err)
		return false
	}

	return true
}

// TransferSettledConsumer finalizes fees when the ledger reports a transfer
// settled: it computes the fee breakdown from the transaction's recorded
// gateway fees and persists it write-once.
type TransferSettledConsumer struct {
	repo store.Repository
	fees *FeeCalculator
}

func NewTransferSettledConsumer(repo store.Repository, fees *FeeCalculator) *TransferSettledConsumer {
	return &TransferSettledConsumer{repo: repo, fees: fees}
}

func (c *TransferSettledConsumer) HandleMessage(body []byte) bool {
	var event domain.TransferSettledEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("settlement-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.GatewayReference == "" {
		log.Printf("settlement-consumer: missing gateway reference in event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tx, err := c.repo.FindTransactionByGatewayReference(ctx, event.GatewayReference)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			log.Printf("settlement-consumer: no transaction found for gateway reference %s; acknowledging", event.GatewayReference)
			return true
		}
		log.Printf("settlement-consumer: lookup error for gateway reference %s: %v", event.GatewayReference, err)
		return false
	}

	breakdown, err := c.fees.ComputeFeeBreakdown(tx.Amount, tx.GatewayPayinFee, tx.GatewayPayoutFee)
	if err != nil {
		// Invalid fee inputs will not become valid on retry.
		log.Printf("settlement-consumer: fee computation failed for transaction %s: %v", tx.ID, err)
		return true
	}

	if err := c.repo.SaveFeeBreakdown(ctx, tx.ID, breakdown); err != nil {
		log.Printf("settlement-consumer: fee persistence failed for transaction %s: %v", tx.ID, err)
		return false
	}

	log.Printf("settlement-consumer: fee breakdown persisted for transaction %s (total=%d gateway=%d app=%d capped=%t)", tx.ID, breakdown.TotalFee, breakdown.GatewayFee, breakdown.AppFee, breakdown.Capped)
	return true
}
