/**
 * @description
 * This file implements the refund state machine. A refund is requested
 * against a settled transaction, dispatched to the payment gateway, and is
 * driven to a terminal state either by the gateway's asynchronous settlement
 * callback or by the reconciliation sweep.
 *
 * State transitions:
 *   requested  -> processing (gateway accepted the dispatch)
 *   requested  -> rejected   (local pre-flight rejection, before any gateway call)
 *   requested  -> failed     (gateway refused or retry budget exhausted at dispatch)
 *   processing -> completed | failed
 *
 * Terminal states never transition again. All terminal writes go through a
 * conditional update keyed on the current status, so racing confirmations
 * serialize at the database and the loser becomes a no-op.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For refund IDs.
 * - internal/domain, internal/store: Models and persistence.
 * - pkg/gatewayclient, pkg/rabbitmq: Gateway and audit event access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahelpay/transfer-service/internal/domain"
	"github.com/sahelpay/transfer-service/internal/store"
	"github.com/sahelpay/transfer-service/pkg/gatewayclient"
	"github.com/sahelpay/transfer-service/pkg/rabbitmq"
)

const (
	refundReasonMinLength = 10
	refundReasonMaxLength = 500

	defaultRefundRetryAttempts = 3
	defaultRefundRetryBackoff  = 200 * time.Millisecond
)

// ErrInvalidRefundRequest marks a precondition violation: the request is
// rejected before any record is created or gateway call dispatched.
var ErrInvalidRefundRequest = errors.New("invalid refund request")

// RefundService drives the refund lifecycle.
type RefundService struct {
	repo          store.Repository
	gateway       GatewayAPI
	publisher     rabbitmq.Publisher
	auditExchange string
	retryAttempts int
	retryBackoff  time.Duration
	now           func() time.Time
}

// NewRefundService creates a refund service instance.
func NewRefundService(repo store.Repository, gateway GatewayAPI, publisher rabbitmq.Publisher, auditExchange string, retryAttempts int) *RefundService {
	if retryAttempts <= 0 {
		retryAttempts = defaultRefundRetryAttempts
	}
	return &RefundService{
		repo:          repo,
		gateway:       gateway,
		publisher:     publisher,
		auditExchange: auditExchange,
		retryAttempts: retryAttempts,
		retryBackoff:  defaultRefundRetryBackoff,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RequestRefund validates a refund request against the original transaction,
// creates the refund record, and dispatches it to the gateway. A zero amount
// requests a full refund of the original transaction amount.
func (s *RefundService) RequestRefund(ctx context.Context, transactionID uuid.UUID, req domain.RefundRequest) (*domain.Refund, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	// Pre-flight validation. Nothing is persisted and no gateway call is made
	// until every precondition holds.
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < refundReasonMinLength || len(reason) > refundReasonMaxLength {
		return nil, fmt.Errorf("%w: reason must be between %d and %d characters", ErrInvalidRefundRequest, refundReasonMinLength, refundReasonMaxLength)
	}
	if !tx.Settled() {
		return nil, fmt.Errorf("%w: transaction %s is not settled", ErrInvalidRefundRequest, tx.ID)
	}

	amount := req.Amount
	if amount == 0 {
		amount = tx.Amount
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", ErrInvalidRefundRequest)
	}
	if amount > tx.Amount {
		return nil, fmt.Errorf("%w: refund amount %d exceeds transaction amount %d", ErrInvalidRefundRequest, amount, tx.Amount)
	}

	if existing, err := s.repo.FindBlockingRefundByTransactionID(ctx, tx.ID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: transaction already has a refund in status %s", ErrInvalidRefundRequest, existing.Status)
	} else if err != nil && !errors.Is(err, store.ErrRefundNotFound) {
		return nil, fmt.Errorf("failed to check existing refunds: %w", err)
	}

	refund := &domain.Refund{
		ID:                   uuid.New(),
		TransactionID:        tx.ID,
		TransactionReference: tx.GatewayReference,
		Amount:               amount,
		Currency:             tx.Currency,
		Status:               domain.RefundStatusRequested,
		Reason:               reason,
		CreatedAt:            s.now(),
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		if errors.Is(err, store.ErrRefundConflict) {
			// Raced with a concurrent request; the unique index is the final arbiter.
			return nil, fmt.Errorf("%w: transaction already has an active refund", ErrInvalidRefundRequest)
		}
		return nil, fmt.Errorf("failed to create refund record: %w", err)
	}
	s.emitTransition(ctx, refund, "", domain.RefundStatusRequested, "")

	return s.dispatch(ctx, refund)
}

// dispatch sends the refund to the gateway, retrying transient failures a
// bounded number of times, and advances the record to processing or failed.
// The call carries the transaction's gateway reference: refunds reverse money
// at the gateway independent of mobile-money identity.
func (s *RefundService) dispatch(ctx context.Context, refund *domain.Refund) (*domain.Refund, error) {
	var resp *gatewayclient.RefundResponse
	var lastErr error

	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		resp, lastErr = s.gateway.InitiateRefund(ctx, refund.TransactionReference, refund.Amount, refund.Currency, refund.Reason)
		if lastErr == nil {
			break
		}

		var gatewayErr *gatewayclient.ErrorResponse
		if errors.As(lastErr, &gatewayErr) && gatewayErr.IsExplicitRejection() {
			// A definitive refusal will not succeed on retry.
			break
		}
		log.Printf("level=warn component=refund msg=\"refund dispatch attempt failed\" refund_id=%s attempt=%d err=%v", refund.ID, attempt, lastErr)
		if attempt == s.retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = s.retryAttempts
		case <-time.After(s.retryBackoff):
		}
	}

	if lastErr != nil || resp == nil || !resp.Data.Accepted {
		failureReason := "gateway did not accept refund dispatch"
		if lastErr != nil {
			failureReason = fmt.Sprintf("refund dispatch failed: %v", lastErr)
		}
		if err := s.markTerminal(ctx, refund, domain.RefundStatusFailed, failureReason, ""); err != nil {
			return nil, err
		}
		return refund, nil
	}

	externalReference := strings.TrimSpace(resp.Data.ExternalReference)
	applied, err := s.repo.TransitionRefund(ctx, refund.ID,
		[]string{domain.RefundStatusRequested},
		store.RefundTransitionParams{
			Status:            domain.RefundStatusProcessing,
			ExternalReference: optionalString(externalReference),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to advance refund to processing: %w", err)
	}
	if applied {
		from := refund.Status
		refund.Status = domain.RefundStatusProcessing
		if externalReference != "" {
			refund.ExternalReference = &externalReference
		}
		s.emitTransition(ctx, refund, from, domain.RefundStatusProcessing, "")
	}
	return refund, nil
}

// ApplyGatewayUpdate applies an asynchronous settlement outcome reported by
// the gateway, identified by external reference. It is safe to call from any
// goroutine: the conditional transition guarantees a terminal state is
// written at most once, and updates against an already-terminal refund are
// no-ops.
func (s *RefundService) ApplyGatewayUpdate(ctx context.Context, externalReference string, outcome domain.RefundOutcome) error {
	refund, err := s.repo.FindRefundByExternalReference(ctx, externalReference)
	if err != nil {
		return fmt.Errorf("failed to find refund for external reference %s: %w", externalReference, err)
	}

	if refund.Terminal() {
		log.Printf("level=info component=refund msg=\"ignoring update for terminal refund\" refund_id=%s status=%s", refund.ID, refund.Status)
		return nil
	}

	status := normalizeRefundOutcomeStatus(outcome.Status)
	switch status {
	case domain.RefundStatusCompleted:
		return s.markTerminal(ctx, refund, domain.RefundStatusCompleted, "", externalReference)
	case domain.RefundStatusFailed:
		failureReason := outcome.FailureReason
		if strings.TrimSpace(failureReason) == "" {
			failureReason = "gateway reported refund failure"
		}
		return s.markTerminal(ctx, refund, domain.RefundStatusFailed, failureReason, externalReference)
	default:
		// Non-terminal gateway statuses carry no state change for us.
		return nil
	}
}

// GetRefund returns a refund by ID.
func (s *RefundService) GetRefund(ctx context.Context, refundID uuid.UUID) (*domain.Refund, error) {
	return s.repo.FindRefundByID(ctx, refundID)
}

// markTerminal applies a terminal transition, stamping processedAt exactly
// once. A lost race (refund already terminal) is logged and absorbed.
func (s *RefundService) markTerminal(ctx context.Context, refund *domain.Refund, status, failureReason, externalReference string) error {
	processedAt := s.now()
	applied, err := s.repo.TransitionRefund(ctx, refund.ID,
		[]string{domain.RefundStatusRequested, domain.RefundStatusProcessing},
		store.RefundTransitionParams{
			Status:            status,
			FailureReason:     optionalString(failureReason),
			ExternalReference: optionalString(externalReference),
			ProcessedAt:       &processedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to mark refund %s as %s: %w", refund.ID, status, err)
	}
	if !applied {
		log.Printf("level=info component=refund msg=\"terminal transition lost race; refund already settled\" refund_id=%s target=%s", refund.ID, status)
		return nil
	}

	from := refund.Status
	refund.Status = status
	refund.ProcessedAt = &processedAt
	if failureReason != "" {
		refund.FailureReason = &failureReason
	}
	s.emitTransition(ctx, refund, from, status, failureReason)
	return nil
}

func (s *RefundService) emitTransition(ctx context.Context, refund *domain.Refund, from, to, failureReason string) {
	if s.publisher == nil {
		return
	}
	externalReference := ""
	if refund.ExternalReference != nil {
		externalReference = *refund.ExternalReference
	}
	event := domain.RefundTransitionedEvent{
		RefundID:          refund.ID,
		TransactionID:     refund.TransactionID,
		Amount:            refund.Amount,
		Currency:          refund.Currency,
		FromStatus:        from,
		ToStatus:          to,
		ExternalReference: externalReference,
		FailureReason:     failureReason,
		OccurredAt:        time.Now().UTC(),
	}
	if err := s.publisher.PublishRefundTransitioned(ctx, s.auditExchange, event); err != nil {
		log.Printf("level=warn component=refund msg=\"audit event publish failed\" refund_id=%s err=%v", refund.ID, err)
	}
}

func normalizeRefundOutcomeStatus(status string) string {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "completed", "success", "successful", "settled":
		return domain.RefundStatusCompleted
	case "failed", "failure", "rejected", "reversed_failed":
		return domain.RefundStatusFailed
	default:
		return ""
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
