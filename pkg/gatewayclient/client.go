/**
 * @description
 * This package provides a client for the payment/mobile-money gateway. It
 * encapsulates authenticated HTTP requests to the gateway's verification and
 * refund endpoints, request body construction, and response parsing.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// Client is a client for the payment gateway API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new gateway API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// VerifyMobileMoneyRequest is the payload for a wallet verification lookup.
type VerifyMobileMoneyRequest struct {
	Phone string `json:"phone"`
}

// VerifyMobileMoneyResponse is the gateway's answer to a wallet lookup.
type VerifyMobileMoneyResponse struct {
	Data struct {
		AccountName string `json:"account_name"`
		Success     bool   `json:"success"`
	} `json:"data"`
}

// RefundRequest is the payload for initiating a refund against a settled
// transfer. The gateway reverses money by transaction reference; it never
// sees the recipient's phone number.
type RefundRequest struct {
	Data struct {
		TransactionReference string `json:"transaction_reference"`
		Amount               int64  `json:"amount"`
		Currency             string `json:"currency"`
		Reason               string `json:"reason"`
	} `json:"data"`
}

// RefundResponse is the gateway's acknowledgement of a refund initiation.
type RefundResponse struct {
	Data struct {
		ExternalReference string `json:"external_reference"`
		Accepted          bool   `json:"accepted"`
		Status            string `json:"status"`
	} `json:"data"`
}

// RefundStatusResponse reports the settlement state of a dispatched refund.
type RefundStatusResponse struct {
	Data struct {
		ExternalReference string `json:"external_reference"`
		Status            string `json:"status"` // 'processing', 'completed', 'failed'
		FailureReason     string `json:"failure_reason,omitempty"`
	} `json:"data"`
}

// ErrorResponse represents an error returned by the gateway API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("gateway api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown gateway api error"
}

// IsExplicitRejection reports whether the gateway definitively refused the
// request (4xx), as opposed to an ambiguous failure that may have partially
// applied.
func (e *ErrorResponse) IsExplicitRejection() bool {
	if len(e.Errors) == 0 {
		return false
	}
	code, err := strconv.Atoi(e.Errors[0].Status)
	if err != nil {
		return false
	}
	return code >= 400 && code < 500
}

// VerifyMobileMoney asks the gateway to confirm a mobile-money wallet for the
// given E.164 phone number. The caller supplies the timeout; a slow or
// unavailable gateway must not block verification beyond it.
func (c *Client) VerifyMobileMoney(ctx context.Context, normalizedPhone string, timeout time.Duration) (*VerifyMobileMoneyResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload := VerifyMobileMoneyRequest{Phone: normalizedPhone}
	var resp VerifyMobileMoneyResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/mobile-money/verify", payload, &resp, "verify_mobile_money"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitiateRefund dispatches a refund to the gateway by original transaction
// reference.
func (c *Client) InitiateRefund(ctx context.Context, transactionReference string, amount int64, currency, reason string) (*RefundResponse, error) {
	payload := RefundRequest{}
	payload.Data.TransactionReference = transactionReference
	payload.Data.Amount = amount
	payload.Data.Currency = currency
	payload.Data.Reason = reason

	var resp RefundResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/refunds", payload, &resp, "initiate_refund"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryRefundStatus fetches the current settlement state of a refund by its
// gateway-assigned external reference.
func (c *Client) QueryRefundStatus(ctx context.Context, externalReference string) (*RefundStatusResponse, error) {
	var resp RefundStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/refunds/"+externalReference, nil, &resp, "query_refund_status"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON executes one JSON request/response round trip against the gateway.
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}, out interface{}, op string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-gateway-key", c.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=gateway_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=gateway_client op=%s status=%d title=%q detail=%q", op, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func firstErrorTitle(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Title
}

func firstErrorDetail(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Detail
}
