/**
 * @description
 * This file implements the fee breakdown computation for settled transfers.
 * The platform charges the gateway's real cost plus a configured markup,
 * capped at a regulatory ceiling percentage. All percent arithmetic is done
 * with decimals so repeated computations and comparisons never drift.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Arbitrary-precision decimal arithmetic.
 * - internal/domain: The FeeBreakdown model.
 */

package app

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sahelpay/transfer-service/internal/domain"
)

var (
	// ErrInvalidAmount is returned when the transfer amount is not positive.
	ErrInvalidAmount = errors.New("transfer amount must be greater than zero")
	// ErrInvalidFee is returned when a gateway fee component is negative.
	ErrInvalidFee = errors.New("gateway fee components must not be negative")
)

// DefaultCapPercent is the hard ceiling on the total fee as a percentage of
// the transfer amount, applied when no cap is configured.
const DefaultCapPercent = 7

var oneHundred = decimal.NewFromInt(100)

// FeePolicy carries the platform's pricing parameters.
type FeePolicy struct {
	// MarkupPercent is the platform's margin over the gateway's real cost,
	// expressed in percent of the transfer amount.
	MarkupPercent decimal.Decimal
	// CapPercent is the maximum total fee percentage, regardless of cost.
	CapPercent decimal.Decimal
}

// FeeCalculator computes fee breakdowns. It holds no mutable state and is
// safe for concurrent use.
type FeeCalculator struct {
	policy FeePolicy
}

// NewFeeCalculator creates a calculator for the given policy. A zero cap
// falls back to the default ceiling.
func NewFeeCalculator(policy FeePolicy) *FeeCalculator {
	if policy.CapPercent.IsZero() {
		policy.CapPercent = decimal.NewFromInt(DefaultCapPercent)
	}
	return &FeeCalculator{policy: policy}
}

// ComputeFeeBreakdown derives the full fee decomposition for a transfer.
// Amounts are in minor currency units. The computation is deterministic and
// idempotent: identical inputs always yield identical output.
func (c *FeeCalculator) ComputeFeeBreakdown(amount, gatewayPayinFee, gatewayPayoutFee int64) (domain.FeeBreakdown, error) {
	if amount <= 0 {
		return domain.FeeBreakdown{}, ErrInvalidAmount
	}
	if gatewayPayinFee < 0 || gatewayPayoutFee < 0 {
		return domain.FeeBreakdown{}, ErrInvalidFee
	}

	gatewayFee := gatewayPayinFee + gatewayPayoutFee
	amountDec := decimal.NewFromInt(amount)
	gatewayFeeDec := decimal.NewFromInt(gatewayFee)

	actualGatewayPercent := gatewayFeeDec.Div(amountDec).Mul(oneHundred)

	rawTotalPercent := actualGatewayPercent.Add(c.policy.MarkupPercent)
	effectivePercent := rawTotalPercent
	capped := false
	if rawTotalPercent.GreaterThan(c.policy.CapPercent) {
		effectivePercent = c.policy.CapPercent
		capped = true
	}

	// Rounding is always upward so the platform never under-collects relative
	// to the displayed percentage.
	totalFee := amountDec.Mul(effectivePercent).Div(oneHundred).Ceil().IntPart()

	appFee := totalFee - gatewayFee
	if appFee < 0 {
		// Floor protection: the gateway cost alone exceeds the cap. The
		// platform absorbs zero margin rather than charging below its real cost.
		totalFee = gatewayFee
		appFee = 0
		capped = true
	}

	// The displayed percent never understates the real cost, even when the
	// cap floor pushed the charged fee above the capped percentage.
	displaySource := effectivePercent
	if actualGatewayPercent.GreaterThan(displaySource) {
		displaySource = actualGatewayPercent
	}
	displayPercent := int(displaySource.Ceil().IntPart())

	return domain.FeeBreakdown{
		GatewayFee:           gatewayFee,
		AppFee:               appFee,
		TotalFee:             totalFee,
		DisplayPercent:       displayPercent,
		ActualGatewayPercent: actualGatewayPercent.String(),
		Capped:               capped,
		Currency:             domain.DefaultCurrency,
	}, nil
}
