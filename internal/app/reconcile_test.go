package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sahelpay/transfer-service/internal/domain"
	"github.com/sahelpay/transfer-service/internal/store"
	"github.com/sahelpay/transfer-service/pkg/gatewayclient"
)

type reconcileRepoStub struct {
	store.Repository

	processing []domain.Refund
	listErr    error

	transitions []store.RefundTransitionParams
}

func (s *reconcileRepoStub) ListProcessingRefundsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Refund, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.processing, nil
}

func (s *reconcileRepoStub) FindRefundByExternalReference(ctx context.Context, externalReference string) (*domain.Refund, error) {
	for i := range s.processing {
		refund := &s.processing[i]
		if refund.ExternalReference != nil && *refund.ExternalReference == externalReference {
			return refund, nil
		}
	}
	return nil, store.ErrRefundNotFound
}

func (s *reconcileRepoStub) TransitionRefund(ctx context.Context, refundID uuid.UUID, fromStatuses []string, update store.RefundTransitionParams) (bool, error) {
	s.transitions = append(s.transitions, update)
	return true, nil
}

func processingRefund(externalReference string, age time.Duration) domain.Refund {
	refund := domain.Refund{
		ID:        uuid.New(),
		Status:    domain.RefundStatusProcessing,
		Amount:    5000,
		Currency:  domain.DefaultCurrency,
		CreatedAt: time.Now().UTC().Add(-age),
	}
	if externalReference != "" {
		refund.ExternalReference = &externalReference
	}
	return refund
}

func refundStatus(status, failureReason string) *gatewayclient.RefundStatusResponse {
	resp := &gatewayclient.RefundStatusResponse{}
	resp.Data.Status = status
	resp.Data.FailureReason = failureReason
	return resp
}

func TestReconcile_AppliesCompletedOutcome(t *testing.T) {
	repo := &reconcileRepoStub{
		processing: []domain.Refund{processingRefund("ext_1", 10*time.Minute)},
	}
	gateway := &gatewayStub{statusResp: refundStatus("completed", "")}
	refunds := NewRefundService(repo, gateway, nil, "", 3)
	reconciler := NewRefundReconciler(repo, gateway, refunds, 24*time.Hour)

	result, err := reconciler.ReconcileProcessingRefunds(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Scanned != 1 || result.Completed != 1 {
		t.Fatalf("expected scanned=1 completed=1, got %+v", result)
	}
	if len(repo.transitions) != 1 || repo.transitions[0].Status != domain.RefundStatusCompleted {
		t.Fatalf("expected one completed transition, got %+v", repo.transitions)
	}
}

func TestReconcile_AppliesFailedOutcome(t *testing.T) {
	repo := &reconcileRepoStub{
		processing: []domain.Refund{processingRefund("ext_1", 10*time.Minute)},
	}
	gateway := &gatewayStub{statusResp: refundStatus("failed", "insufficient gateway float")}
	refunds := NewRefundService(repo, gateway, nil, "", 3)
	reconciler := NewRefundReconciler(repo, gateway, refunds, 24*time.Hour)

	result, err := reconciler.ReconcileProcessingRefunds(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Failed != 1 {
		t.Fatalf("expected failed=1, got %+v", result)
	}
	update := repo.transitions[0]
	if update.Status != domain.RefundStatusFailed || update.FailureReason == nil {
		t.Fatalf("expected failed transition with reason, got %+v", update)
	}
}

func TestReconcile_StillProcessingStaysUnresolved(t *testing.T) {
	repo := &reconcileRepoStub{
		processing: []domain.Refund{processingRefund("ext_1", 10*time.Minute)},
	}
	gateway := &gatewayStub{statusResp: refundStatus("processing", "")}
	refunds := NewRefundService(repo, gateway, nil, "", 3)
	reconciler := NewRefundReconciler(repo, gateway, refunds, 24*time.Hour)

	result, err := reconciler.ReconcileProcessingRefunds(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Unresolved != 1 {
		t.Fatalf("expected unresolved=1, got %+v", result)
	}
	if len(repo.transitions) != 0 {
		t.Fatal("a refund still processing at the gateway must not transition")
	}
}

func TestReconcile_AgesOutRefundPastFailAfter(t *testing.T) {
	repo := &reconcileRepoStub{
		processing: []domain.Refund{processingRefund("ext_1", 48*time.Hour)},
	}
	gateway := &gatewayStub{statusResp: refundStatus("processing", "")}
	refunds := NewRefundService(repo, gateway, nil, "", 3)
	reconciler := NewRefundReconciler(repo, gateway, refunds, 24*time.Hour)

	result, err := reconciler.ReconcileProcessingRefunds(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Failed != 1 {
		t.Fatalf("expected failed=1 from age-out, got %+v", result)
	}
	update := repo.transitions[0]
	if update.Status != domain.RefundStatusFailed {
		t.Fatalf("expected failed transition, got %q", update.Status)
	}
	if update.FailureReason == nil || *update.FailureReason == "" {
		t.Fatal("aged-out refund must carry a failure reason")
	}
	if update.ProcessedAt == nil {
		t.Fatal("aged-out refund must stamp processed_at")
	}
}

func TestReconcile_QueryErrorCountsWithoutTransition(t *testing.T) {
	repo := &reconcileRepoStub{
		processing: []domain.Refund{processingRefund("ext_1", 10*time.Minute)},
	}
	gateway := &gatewayStub{statusErr: errors.New("gateway unreachable")}
	refunds := NewRefundService(repo, gateway, nil, "", 3)
	reconciler := NewRefundReconciler(repo, gateway, refunds, 24*time.Hour)

	result, err := reconciler.ReconcileProcessingRefunds(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.QueryError != 1 {
		t.Fatalf("expected query_errors=1, got %+v", result)
	}
	if len(repo.transitions) != 0 {
		t.Fatal("an ambiguous query failure must not transition the refund")
	}
}

func TestReconcile_ExplicitQueryRejectionFailsRefund(t *testing.T) {
	repo := &reconcileRepoStub{
		processing: []domain.Refund{processingRefund("ext_dead", 10*time.Minute)},
	}
	gateway := &gatewayStub{statusErr: explicitRejection()}
	refunds := NewRefundService(repo, gateway, nil, "", 3)
	reconciler := NewRefundReconciler(repo, gateway, refunds, 24*time.Hour)

	result, err := reconciler.ReconcileProcessingRefunds(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Failed != 1 {
		t.Fatalf("expected failed=1 for a dead reference, got %+v", result)
	}
	if len(repo.transitions) != 1 || repo.transitions[0].Status != domain.RefundStatusFailed {
		t.Fatalf("expected failed transition, got %+v", repo.transitions)
	}
}

func TestReconcile_MissingExternalReferenceStaysUnresolvedUntilAgeOut(t *testing.T) {
	repo := &reconcileRepoStub{
		processing: []domain.Refund{processingRefund("", 10*time.Minute)},
	}
	gateway := &gatewayStub{}
	refunds := NewRefundService(repo, gateway, nil, "", 3)
	reconciler := NewRefundReconciler(repo, gateway, refunds, 24*time.Hour)

	result, err := reconciler.ReconcileProcessingRefunds(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Unresolved != 1 {
		t.Fatalf("expected unresolved=1, got %+v", result)
	}
	if gateway.statusCall != 0 {
		t.Fatal("a refund without an external reference must not be polled")
	}
}
