/**
 * @description
 * This file contains the HTTP handlers for the transfer-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application layer, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sahelpay/transfer-service/internal/app"
	"github.com/sahelpay/transfer-service/internal/domain"
	"github.com/sahelpay/transfer-service/internal/store"
)

const (
	verifyRateLimitScope  = "verify_mobile_money"
	verifyRateLimit       = 10
	verifyRateLimitWindow = time.Minute
)

// TransferHandlers holds the application components the handlers dispatch to.
type TransferHandlers struct {
	verification *app.VerificationEngine
	fees         *app.FeeCalculator
	refunds      *app.RefundService
	reconciler   *app.RefundReconciler
	limiter      *app.RedisRateLimiter
}

// NewTransferHandlers creates a new instance of TransferHandlers. limiter may
// be nil when Redis is not configured; rate limiting is then disabled.
func NewTransferHandlers(verification *app.VerificationEngine, fees *app.FeeCalculator, refunds *app.RefundService, reconciler *app.RefundReconciler, limiter *app.RedisRateLimiter) *TransferHandlers {
	return &TransferHandlers{
		verification: verification,
		fees:         fees,
		refunds:      refunds,
		reconciler:   reconciler,
		limiter:      limiter,
	}
}

// VerifyMobileMoneyHandler validates a recipient phone number for mobile-money
// transfers, against local operator rules and, when available, the gateway.
func (h *TransferHandlers) VerifyMobileMoneyHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyMobileMoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=verify_mobile_money outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Phone == "" {
		h.writeError(w, http.StatusBadRequest, "Phone is required")
		return
	}

	if h.limiter != nil {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), verifyRateLimitScope, req.Phone, verifyRateLimit, verifyRateLimitWindow)
		if err != nil {
			log.Printf("level=warn component=api endpoint=verify_mobile_money msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > verifyRateLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many verification attempts for this number. Please wait and try again.")
			return
		}
	}

	result := h.verification.Verify(r.Context(), req.Phone, req.Country)
	h.writeJSON(w, http.StatusOK, result)
}

// FeeQuoteHandler computes the fee breakdown for a prospective transfer.
func (h *TransferHandlers) FeeQuoteHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.FeeQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=fee_quote outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	breakdown, err := h.fees.ComputeFeeBreakdown(req.Amount, req.GatewayPayinFee, req.GatewayPayoutFee)
	if err != nil {
		if errors.Is(err, app.ErrInvalidAmount) || errors.Is(err, app.ErrInvalidFee) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=fee_quote outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute fee breakdown")
		return
	}

	h.writeJSON(w, http.StatusOK, breakdown)
}

// RequestRefundHandler initiates a refund for a settled transaction.
func (h *TransferHandlers) RequestRefundHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	var req domain.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=request_refund outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	refund, err := h.refunds.RequestRefund(r.Context(), transactionID, req)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		if errors.Is(err, app.ErrInvalidRefundRequest) {
			log.Printf("level=warn component=api endpoint=request_refund outcome=reject transaction_id=%s err=%v", transactionID, err)
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=request_refund outcome=failed transaction_id=%s err=%v", transactionID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("level=info component=api endpoint=request_refund outcome=accepted transaction_id=%s refund_id=%s status=%s", transactionID, refund.ID, refund.Status)
	h.writeJSON(w, http.StatusCreated, refund)
}

// GetRefundHandler returns the current state of a refund.
func (h *TransferHandlers) GetRefundHandler(w http.ResponseWriter, r *http.Request) {
	refundID, err := uuid.Parse(chi.URLParam(r, "refundID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid refund ID format")
		return
	}

	refund, err := h.refunds.GetRefund(r.Context(), refundID)
	if err != nil {
		if errors.Is(err, store.ErrRefundNotFound) {
			h.writeError(w, http.StatusNotFound, "Refund not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_refund outcome=failed refund_id=%s err=%v", refundID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, refund)
}

// ReconcileRefundsHandler triggers one on-demand reconciliation sweep over
// refunds stuck in processing. Normally the cron schedule drives this; the
// endpoint exists for operators.
func (h *TransferHandlers) ReconcileRefundsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	result, err := h.reconciler.ReconcileProcessingRefunds(r.Context(), limit)
	if err != nil {
		log.Printf("level=error component=api endpoint=reconcile_refunds outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Reconciliation sweep failed")
		return
	}

	log.Printf("level=info component=api endpoint=reconcile_refunds outcome=done scanned=%d completed=%d failed=%d unresolved=%d query_errors=%d", result.Scanned, result.Completed, result.Failed, result.Unresolved, result.QueryError)
	h.writeJSON(w, http.StatusOK, result)
}

// writeJSON is a helper for writing JSON responses.
func (h *TransferHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *TransferHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
