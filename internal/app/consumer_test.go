package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sahelpay/transfer-service/internal/domain"
	"github.com/sahelpay/transfer-service/internal/store"
	"github.com/shopspring/decimal"
)

type consumerRepoStub struct {
	store.Repository

	refund  *domain.Refund
	findErr error

	tx      *domain.Transaction
	txErr   error
	saveErr error

	savedBreakdown *domain.FeeBreakdown
	transitions    []store.RefundTransitionParams
}

func (s *consumerRepoStub) FindRefundByExternalReference(ctx context.Context, externalReference string) (*domain.Refund, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.refund == nil {
		return nil, store.ErrRefundNotFound
	}
	return s.refund, nil
}

func (s *consumerRepoStub) TransitionRefund(ctx context.Context, refundID uuid.UUID, fromStatuses []string, update store.RefundTransitionParams) (bool, error) {
	s.transitions = append(s.transitions, update)
	return true, nil
}

func (s *consumerRepoStub) FindTransactionByGatewayReference(ctx context.Context, gatewayReference string) (*domain.Transaction, error) {
	if s.txErr != nil {
		return nil, s.txErr
	}
	if s.tx == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.tx, nil
}

func (s *consumerRepoStub) SaveFeeBreakdown(ctx context.Context, transactionID uuid.UUID, breakdown domain.FeeBreakdown) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedBreakdown = &breakdown
	return nil
}

func marshalEvent(t *testing.T, event interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return body
}

func TestRefundStatusConsumer_AppliesCompletedEvent(t *testing.T) {
	extRef := "ext_42"
	repo := &consumerRepoStub{
		refund: &domain.Refund{
			ID:                uuid.New(),
			Status:            domain.RefundStatusProcessing,
			ExternalReference: &extRef,
		},
	}
	consumer := NewRefundStatusConsumer(NewRefundService(repo, &gatewayStub{}, nil, "", 3))

	body := marshalEvent(t, domain.RefundStatusEvent{
		EventID:           uuid.NewString(),
		ExternalReference: extRef,
		Status:            "completed",
	})
	if !consumer.HandleMessage(body) {
		t.Fatal("expected ack for a processed event")
	}
	if len(repo.transitions) != 1 || repo.transitions[0].Status != domain.RefundStatusCompleted {
		t.Fatalf("expected completed transition, got %+v", repo.transitions)
	}
}

func TestRefundStatusConsumer_AcksUnparsablePayload(t *testing.T) {
	consumer := NewRefundStatusConsumer(NewRefundService(&consumerRepoStub{}, &gatewayStub{}, nil, "", 3))

	if !consumer.HandleMessage([]byte("not json")) {
		t.Fatal("unparsable payloads must be acknowledged, not requeued")
	}
}

func TestRefundStatusConsumer_AcksUnknownReference(t *testing.T) {
	repo := &consumerRepoStub{}
	consumer := NewRefundStatusConsumer(NewRefundService(repo, &gatewayStub{}, nil, "", 3))

	body := marshalEvent(t, domain.RefundStatusEvent{ExternalReference: "never_issued", Status: "completed"})
	if !consumer.HandleMessage(body) {
		t.Fatal("unknown external references must be acknowledged")
	}
	if len(repo.transitions) != 0 {
		t.Fatal("no transition may be applied for an unknown reference")
	}
}

func TestRefundStatusConsumer_RequeuesOnTransientError(t *testing.T) {
	repo := &consumerRepoStub{findErr: errors.New("connection refused")}
	consumer := NewRefundStatusConsumer(NewRefundService(repo, &gatewayStub{}, nil, "", 3))

	body := marshalEvent(t, domain.RefundStatusEvent{ExternalReference: "ext_42", Status: "completed"})
	if consumer.HandleMessage(body) {
		t.Fatal("transient repository errors must requeue the message")
	}
}

func TestTransferSettledConsumer_PersistsFeeBreakdown(t *testing.T) {
	repo := &consumerRepoStub{
		tx: &domain.Transaction{
			ID:               uuid.New(),
			GatewayReference: "gw_tx_123",
			Status:           domain.TransactionStatusSettled,
			Amount:           100000,
			Currency:         domain.DefaultCurrency,
			GatewayPayinFee:  1200,
			GatewayPayoutFee: 800,
		},
	}
	fees := NewFeeCalculator(FeePolicy{
		MarkupPercent: decimal.NewFromInt(1),
		CapPercent:    decimal.NewFromInt(7),
	})
	consumer := NewTransferSettledConsumer(repo, fees)

	body := marshalEvent(t, domain.TransferSettledEvent{GatewayReference: "gw_tx_123"})
	if !consumer.HandleMessage(body) {
		t.Fatal("expected ack after fee persistence")
	}
	if repo.savedBreakdown == nil {
		t.Fatal("expected fee breakdown persisted")
	}
	if repo.savedBreakdown.TotalFee != 3000 || repo.savedBreakdown.GatewayFee != 2000 {
		t.Fatalf("unexpected breakdown %+v", repo.savedBreakdown)
	}
}

func TestTransferSettledConsumer_AcksUnknownTransaction(t *testing.T) {
	repo := &consumerRepoStub{}
	fees := NewFeeCalculator(FeePolicy{CapPercent: decimal.NewFromInt(7)})
	consumer := NewTransferSettledConsumer(repo, fees)

	body := marshalEvent(t, domain.TransferSettledEvent{GatewayReference: "gw_unknown"})
	if !consumer.HandleMessage(body) {
		t.Fatal("unknown transactions must be acknowledged")
	}
	if repo.savedBreakdown != nil {
		t.Fatal("no fee breakdown may be persisted for an unknown transaction")
	}
}

func TestTransferSettledConsumer_RequeuesOnSaveError(t *testing.T) {
	repo := &consumerRepoStub{
		tx: &domain.Transaction{
			ID:               uuid.New(),
			GatewayReference: "gw_tx_123",
			Status:           domain.TransactionStatusSettled,
			Amount:           100000,
			GatewayPayinFee:  1200,
			GatewayPayoutFee: 800,
		},
		saveErr: errors.New("connection reset"),
	}
	fees := NewFeeCalculator(FeePolicy{CapPercent: decimal.NewFromInt(7)})
	consumer := NewTransferSettledConsumer(repo, fees)

	body := marshalEvent(t, domain.TransferSettledEvent{GatewayReference: "gw_tx_123"})
	if consumer.HandleMessage(body) {
		t.Fatal("a failed fee persistence must requeue the message")
	}
}
