package app

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestFeeCalculator(markupPercent string) *FeeCalculator {
	markup, _ := decimal.NewFromString(markupPercent)
	return NewFeeCalculator(FeePolicy{
		MarkupPercent: markup,
		CapPercent:    decimal.NewFromInt(7),
	})
}

func TestComputeFeeBreakdown(t *testing.T) {
	tests := []struct {
		name               string
		markupPercent      string
		amount             int64
		payinFee           int64
		payoutFee          int64
		wantGatewayFee     int64
		wantAppFee         int64
		wantTotalFee       int64
		wantDisplayPercent int
		wantCapped         bool
	}{
		{
			name:               "standard markup below cap",
			markupPercent:      "1",
			amount:             100000,
			payinFee:           1200,
			payoutFee:          800,
			wantGatewayFee:     2000,
			wantAppFee:         1000,
			wantTotalFee:       3000,
			wantDisplayPercent: 3,
			wantCapped:         false,
		},
		{
			name:               "gateway cost alone exceeds cap floors total to gateway fee",
			markupPercent:      "1",
			amount:             10000,
			payinFee:           500,
			payoutFee:          250,
			wantGatewayFee:     750,
			wantAppFee:         0,
			wantTotalFee:       750,
			wantDisplayPercent: 8,
			wantCapped:         true,
		},
		{
			name:               "markup pushes percent over cap",
			markupPercent:      "4",
			amount:             100000,
			payinFee:           2500,
			payoutFee:          2500,
			wantGatewayFee:     5000,
			wantAppFee:         2000,
			wantTotalFee:       7000,
			wantDisplayPercent: 7,
			wantCapped:         true,
		},
		{
			name:               "fractional percent rounds total fee up",
			markupPercent:      "1.5",
			amount:             33333,
			payinFee:           300,
			payoutFee:          100,
			wantGatewayFee:     400,
			wantAppFee:         500,
			wantTotalFee:       900, // 33333 * 2.700027% / 100 = 899.99..., ceiled
			wantDisplayPercent: 3,
			wantCapped:         false,
		},
		{
			name:               "zero gateway fees charge markup only",
			markupPercent:      "2",
			amount:             50000,
			payinFee:           0,
			payoutFee:          0,
			wantGatewayFee:     0,
			wantAppFee:         1000,
			wantTotalFee:       1000,
			wantDisplayPercent: 2,
			wantCapped:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := newTestFeeCalculator(tt.markupPercent)
			got, err := calc.ComputeFeeBreakdown(tt.amount, tt.payinFee, tt.payoutFee)
			if err != nil {
				t.Fatalf("ComputeFeeBreakdown() error = %v", err)
			}
			if got.GatewayFee != tt.wantGatewayFee {
				t.Fatalf("gateway fee = %d, want %d", got.GatewayFee, tt.wantGatewayFee)
			}
			if got.AppFee != tt.wantAppFee {
				t.Fatalf("app fee = %d, want %d", got.AppFee, tt.wantAppFee)
			}
			if got.TotalFee != tt.wantTotalFee {
				t.Fatalf("total fee = %d, want %d", got.TotalFee, tt.wantTotalFee)
			}
			if got.DisplayPercent != tt.wantDisplayPercent {
				t.Fatalf("display percent = %d, want %d", got.DisplayPercent, tt.wantDisplayPercent)
			}
			if got.Capped != tt.wantCapped {
				t.Fatalf("capped = %v, want %v", got.Capped, tt.wantCapped)
			}
			if got.AppFee < 0 {
				t.Fatal("app fee must never be negative")
			}
			if !got.Capped && got.TotalFee != got.GatewayFee+got.AppFee {
				t.Fatal("uncapped total fee must equal gateway fee plus app fee")
			}
			if got.TotalFee < got.GatewayFee {
				t.Fatal("total fee must never undercut the gateway cost")
			}
		})
	}
}

func TestComputeFeeBreakdown_Idempotent(t *testing.T) {
	calc := newTestFeeCalculator("1.25")

	first, err := calc.ComputeFeeBreakdown(987654, 3210, 1234)
	if err != nil {
		t.Fatalf("ComputeFeeBreakdown() error = %v", err)
	}
	second, err := calc.ComputeFeeBreakdown(987654, 3210, 1234)
	if err != nil {
		t.Fatalf("ComputeFeeBreakdown() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected identical output for identical input, got %+v then %+v", first, second)
	}
}

func TestComputeFeeBreakdown_InvalidInputs(t *testing.T) {
	calc := newTestFeeCalculator("1")

	if _, err := calc.ComputeFeeBreakdown(0, 100, 100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if _, err := calc.ComputeFeeBreakdown(-500, 100, 100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative amount, got %v", err)
	}
	if _, err := calc.ComputeFeeBreakdown(10000, -1, 100); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee for negative payin fee, got %v", err)
	}
	if _, err := calc.ComputeFeeBreakdown(10000, 100, -1); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee for negative payout fee, got %v", err)
	}
}
