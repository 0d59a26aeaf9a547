package gatewayclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestVerifyMobileMoney_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/mobile-money/verify" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-gateway-key"); got != "test-key" {
			t.Fatalf("expected api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"account_name":"Awa Diop","success":true}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.VerifyMobileMoney(context.Background(), "+221771234567", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Data.Success || resp.Data.AccountName != "Awa Diop" {
		t.Fatalf("unexpected response %+v", resp.Data)
	}
}

func TestVerifyMobileMoney_TimeoutSurfacesAsError(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := NewClient(server.URL, "test-key")
	_, err := client.VerifyMobileMoney(context.Background(), "+221771234567", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error from a hanging gateway")
	}
}

func TestInitiateRefund_SendsTransactionReference(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/refunds" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"external_reference":"ext_42","accepted":true,"status":"processing"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.InitiateRefund(context.Background(), "gw_tx_123", 5000, "XOF", "duplicate transfer reported")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Data.Accepted || resp.Data.ExternalReference != "ext_42" {
		t.Fatalf("unexpected response %+v", resp.Data)
	}
	for _, want := range []string{`"gw_tx_123"`, `"XOF"`, `5000`} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("request body missing %s: %s", want, gotBody)
		}
	}
}

func TestQueryRefundStatus_DecodesFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/refunds/ext_42" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"external_reference":"ext_42","status":"failed","failure_reason":"insufficient float"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.QueryRefundStatus(context.Background(), "ext_42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data.Status != "failed" || resp.Data.FailureReason != "insufficient float" {
		t.Fatalf("unexpected response %+v", resp.Data)
	}
}

func TestErrorResponse_ExplicitRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"title":"Refund rejected","detail":"transaction already reversed","status":"422"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.InitiateRefund(context.Background(), "gw_tx_123", 5000, "XOF", "duplicate transfer reported")
	if err == nil {
		t.Fatal("expected error from 4xx response")
	}

	var gatewayErr *ErrorResponse
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected *ErrorResponse, got %T", err)
	}
	if !gatewayErr.IsExplicitRejection() {
		t.Fatal("a 422 must be classified as an explicit rejection")
	}
}

func TestErrorResponse_ServerErrorIsNotExplicitRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"errors":[{"title":"Upstream error","detail":"operator unavailable","status":"502"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.QueryRefundStatus(context.Background(), "ext_42")
	if err == nil {
		t.Fatal("expected error from 5xx response")
	}

	var gatewayErr *ErrorResponse
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected *ErrorResponse, got %T", err)
	}
	if gatewayErr.IsExplicitRejection() {
		t.Fatal("a 502 must not be classified as an explicit rejection")
	}
}
