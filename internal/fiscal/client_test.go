package fiscal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidateInvoice_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/invoices/validate" {
			t.Fatalf("path = %s, want /api/invoices/validate", r.URL.Path)
		}

		var req InvoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.InvoiceName != "INV-000001" {
			t.Fatalf("invoice name = %s, want INV-000001", req.InvoiceName)
		}

		resp := ValidationResult{
			Status:          "accepted",
			FiscalReference: "a1b2c3d4e5",
			QRValue:         "https://fiscal.example/qr/a1b2c3d4e5",
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.ValidateInvoice(ctx, InvoiceRequest{
		InvoiceName:   "INV-000001",
		CustomerName:  "Ivan Petrov",
		CustomerTaxID: "800197268-4",
		Amount:        150.00,
	})
	if err != nil {
		t.Fatalf("ValidateInvoice error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
	if res == nil || res.Status != "accepted" || res.FiscalReference != "a1b2c3d4e5" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestValidateInvoice_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.ValidateInvoice(ctx, InvoiceRequest{InvoiceName: "INV-000002"})
	if err != nil {
		t.Fatalf("ValidateInvoice error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 429, got %+v", res)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestValidateInvoice_NotConfigured(t *testing.T) {
	var client *Client

	_, _, _, err := client.ValidateInvoice(context.Background(), InvoiceRequest{})
	if err == nil {
		t.Fatalf("expected error for nil client")
	}
}
