/**
 * @description
 * This file implements the mobile-money verification engine. It orchestrates
 * phone normalization, operator lookup via the prefix directory, and an
 * optional live confirmation against the payment gateway.
 *
 * Key behaviors:
 * - Every verification attempt produces a structured result; failures are
 *   carried in the result, never thrown past this boundary.
 * - A gateway timeout or error degrades gracefully: local operator rules are
 *   sufficient to proceed, so the result stays valid with api_verified=false.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain, internal/phone: Models and phone parsing.
 * - pkg/gatewayclient, pkg/rabbitmq: Gateway and audit event access.
 */

package app

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/sahelpay/transfer-service/internal/domain"
	"github.com/sahelpay/transfer-service/internal/phone"
	"github.com/sahelpay/transfer-service/pkg/gatewayclient"
	"github.com/sahelpay/transfer-service/pkg/rabbitmq"
)

// GatewayAPI is the subset of the gateway client the core depends on. An
// interface here keeps the engine and the refund state machine testable with
// plain stubs.
type GatewayAPI interface {
	VerifyMobileMoney(ctx context.Context, normalizedPhone string, timeout time.Duration) (*gatewayclient.VerifyMobileMoneyResponse, error)
	InitiateRefund(ctx context.Context, transactionReference string, amount int64, currency, reason string) (*gatewayclient.RefundResponse, error)
	QueryRefundStatus(ctx context.Context, externalReference string) (*gatewayclient.RefundStatusResponse, error)
}

// VerificationEngine validates recipient phone numbers for mobile-money
// transfers.
type VerificationEngine struct {
	directory      *phone.Directory
	gateway        GatewayAPI
	publisher      rabbitmq.Publisher
	auditExchange  string
	defaultCountry string
	gatewayTimeout time.Duration
}

// NewVerificationEngine creates a verification engine. gateway may be nil in
// local-only deployments; publisher may be nil when auditing is disabled.
func NewVerificationEngine(directory *phone.Directory, gateway GatewayAPI, publisher rabbitmq.Publisher, auditExchange, defaultCountry string, gatewayTimeout time.Duration) *VerificationEngine {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 5 * time.Second
	}
	return &VerificationEngine{
		directory:      directory,
		gateway:        gateway,
		publisher:      publisher,
		auditExchange:  auditExchange,
		defaultCountry: defaultCountry,
		gatewayTimeout: gatewayTimeout,
	}
}

// Verify runs the full verification protocol for a raw phone string. The
// country hint is optional; when empty the engine falls back to the
// configured default market.
func (e *VerificationEngine) Verify(ctx context.Context, rawPhone, country string) domain.MobileMoneyVerificationResult {
	assumedCountry := strings.TrimSpace(country)
	if assumedCountry == "" {
		assumedCountry = e.defaultCountry
	}

	result := e.verify(ctx, rawPhone, assumedCountry)
	e.emitAuditEvent(ctx, rawPhone, result)
	return result
}

func (e *VerificationEngine) verify(ctx context.Context, rawPhone, assumedCountry string) domain.MobileMoneyVerificationResult {
	normalized, err := phone.Normalize(rawPhone, assumedCountry)
	if err != nil {
		return domain.MobileMoneyVerificationResult{
			Valid:        false,
			ErrorMessage: err.Error(),
		}
	}

	result := domain.MobileMoneyVerificationResult{
		Country:         normalized.CountryCode,
		NormalizedPhone: normalized.NormalizedE164,
	}

	entry, found := e.directory.Lookup(normalized.CountryCode, normalized.NationalNumber)
	if !found {
		result.ErrorMessage = "phone number is not on a known mobile-money range"
		return result
	}

	result.Operator = entry.OperatorName
	result.OperatorCode = entry.OperatorCode
	result.MobileMoneySupported = entry.MobileMoneySupported
	if !entry.MobileMoneySupported {
		result.ErrorMessage = "operator does not support mobile money"
		return result
	}

	// Local rules establish eligibility; the live check only enriches the
	// result with the account holder name.
	result.Valid = true

	if e.gateway == nil {
		return result
	}

	resp, err := e.gateway.VerifyMobileMoney(ctx, normalized.NormalizedE164, e.gatewayTimeout)
	if err != nil {
		log.Printf("level=warn component=verification msg=\"gateway confirmation unavailable; proceeding on local rules\" phone=%s err=%v", normalized.NormalizedE164, err)
		return result
	}
	if !resp.Data.Success {
		// A definitive negative from the gateway is authoritative, unlike a
		// timeout: the wallet does not exist.
		result.Valid = false
		result.ErrorMessage = "gateway found no mobile money account for this number"
		return result
	}

	result.APIVerified = true
	result.AccountName = resp.Data.AccountName
	return result
}

func (e *VerificationEngine) emitAuditEvent(ctx context.Context, rawPhone string, result domain.MobileMoneyVerificationResult) {
	if e.publisher == nil {
		return
	}
	event := domain.VerificationAttemptedEvent{
		Phone:                result.NormalizedPhone,
		Country:              result.Country,
		OperatorCode:         result.OperatorCode,
		Valid:                result.Valid,
		APIVerified:          result.APIVerified,
		MobileMoneySupported: result.MobileMoneySupported,
		ErrorMessage:         result.ErrorMessage,
		OccurredAt:           time.Now().UTC(),
	}
	if event.Phone == "" {
		event.Phone = rawPhone
	}
	if err := e.publisher.PublishVerificationAttempted(ctx, e.auditExchange, event); err != nil {
		log.Printf("level=warn component=verification msg=\"audit event publish failed\" err=%v", err)
	}
}
