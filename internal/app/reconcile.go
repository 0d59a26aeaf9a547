/**
 * @description
 * This file implements the refund reconciliation sweep. Refunds in the
 * processing state depend on an asynchronous gateway callback for settlement;
 * when the callback never arrives, the sweep polls the gateway directly and
 * applies whatever terminal outcome it reports. Refunds that remain
 * unresolved past the fail-after age are marked failed so they cannot sit in
 * processing forever.
 *
 * The sweep runs on a cron schedule and can also be triggered through the
 * internal API for on-demand reconciliation.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - internal/domain, internal/store: Models and persistence.
 * - pkg/gatewayclient: Refund status polling.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sahelpay/transfer-service/internal/domain"
	"github.com/sahelpay/transfer-service/internal/store"
	"github.com/sahelpay/transfer-service/pkg/gatewayclient"
)

const (
	defaultReconcileLimit = 100
	maxReconcileLimit     = 500

	// A refund must have been in processing at least this long before the
	// sweep touches it, leaving the normal callback path room to win.
	reconcileEligibilityAge = 2 * time.Minute
)

// RefundReconciler polls the gateway for refunds stuck in processing.
type RefundReconciler struct {
	repo      store.Repository
	gateway   GatewayAPI
	refunds   *RefundService
	failAfter time.Duration
	now       func() time.Time
}

// NewRefundReconciler creates a reconciler. failAfter bounds how long a
// refund may stay in processing before it is marked failed as unresolved.
func NewRefundReconciler(repo store.Repository, gateway GatewayAPI, refunds *RefundService, failAfter time.Duration) *RefundReconciler {
	if failAfter <= 0 {
		failAfter = 24 * time.Hour
	}
	return &RefundReconciler{
		repo:      repo,
		gateway:   gateway,
		refunds:   refunds,
		failAfter: failAfter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileProcessingRefunds runs one sweep over refunds stuck in processing
// and returns per-outcome counters.
func (r *RefundReconciler) ReconcileProcessingRefunds(ctx context.Context, limit int) (*domain.RefundReconcileResponse, error) {
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	if limit > maxReconcileLimit {
		limit = maxReconcileLimit
	}

	cutoff := r.now().Add(-reconcileEligibilityAge)
	candidates, err := r.repo.ListProcessingRefundsOlderThan(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing refunds: %w", err)
	}

	result := &domain.RefundReconcileResponse{Scanned: len(candidates)}

	for i := range candidates {
		refund := &candidates[i]
		if refund.ExternalReference == nil || *refund.ExternalReference == "" {
			// Dispatched without a reference; nothing to poll. Age it out like
			// any other unresolved refund.
			if r.ageOut(ctx, refund, result) {
				continue
			}
			result.Unresolved++
			continue
		}

		statusResp, queryErr := r.gateway.QueryRefundStatus(ctx, *refund.ExternalReference)
		if queryErr != nil {
			result.QueryError++
			log.Printf("level=warn component=reconciler msg=\"refund status query failed\" refund_id=%s external_reference=%s err=%v", refund.ID, *refund.ExternalReference, queryErr)
			var gatewayErr *gatewayclient.ErrorResponse
			if errors.As(queryErr, &gatewayErr) && gatewayErr.IsExplicitRejection() {
				// The gateway does not know this reference. Treat as failed
				// rather than polling a dead reference forever.
				if err := r.refunds.ApplyGatewayUpdate(ctx, *refund.ExternalReference, domain.RefundOutcome{
					Status:        domain.RefundStatusFailed,
					FailureReason: fmt.Sprintf("gateway rejected status query: %v", queryErr),
				}); err != nil {
					log.Printf("level=error component=reconciler msg=\"failed to apply rejection outcome\" refund_id=%s err=%v", refund.ID, err)
					continue
				}
				result.Failed++
			}
			continue
		}

		outcome := domain.RefundOutcome{
			Status:        statusResp.Data.Status,
			FailureReason: statusResp.Data.FailureReason,
		}
		switch normalizeRefundOutcomeStatus(outcome.Status) {
		case domain.RefundStatusCompleted:
			if err := r.refunds.ApplyGatewayUpdate(ctx, *refund.ExternalReference, outcome); err != nil {
				log.Printf("level=error component=reconciler msg=\"failed to apply completed outcome\" refund_id=%s err=%v", refund.ID, err)
				continue
			}
			result.Completed++
		case domain.RefundStatusFailed:
			if err := r.refunds.ApplyGatewayUpdate(ctx, *refund.ExternalReference, outcome); err != nil {
				log.Printf("level=error component=reconciler msg=\"failed to apply failed outcome\" refund_id=%s err=%v", refund.ID, err)
				continue
			}
			result.Failed++
		default:
			// Still in flight at the gateway.
			if r.ageOut(ctx, refund, result) {
				continue
			}
			result.Unresolved++
			log.Printf("level=info component=reconciler msg=\"refund still processing at gateway\" refund_id=%s gateway_status=%q", refund.ID, outcome.Status)
		}
	}

	return result, nil
}

// ageOut marks a refund failed when it has exceeded the fail-after budget.
// Returns true when the refund was aged out.
func (r *RefundReconciler) ageOut(ctx context.Context, refund *domain.Refund, result *domain.RefundReconcileResponse) bool {
	if r.now().Sub(refund.CreatedAt) < r.failAfter {
		return false
	}
	failureReason := fmt.Sprintf("unresolved after %s in processing", r.failAfter)
	if err := r.failUnresolved(ctx, refund, failureReason); err != nil {
		log.Printf("level=error component=reconciler msg=\"failed to age out refund\" refund_id=%s err=%v", refund.ID, err)
		return false
	}
	result.Failed++
	log.Printf("level=warn component=reconciler msg=\"refund aged out as failed\" refund_id=%s age=%s", refund.ID, r.now().Sub(refund.CreatedAt))
	return true
}

func (r *RefundReconciler) failUnresolved(ctx context.Context, refund *domain.Refund, failureReason string) error {
	processedAt := r.now()
	applied, err := r.repo.TransitionRefund(ctx, refund.ID,
		[]string{domain.RefundStatusProcessing},
		store.RefundTransitionParams{
			Status:        domain.RefundStatusFailed,
			FailureReason: &failureReason,
			ProcessedAt:   &processedAt,
		},
	)
	if err != nil {
		return err
	}
	if applied {
		from := refund.Status
		refund.Status = domain.RefundStatusFailed
		refund.FailureReason = &failureReason
		refund.ProcessedAt = &processedAt
		r.refunds.emitTransition(ctx, refund, from, domain.RefundStatusFailed, failureReason)
	}
	return nil
}
