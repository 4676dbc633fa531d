// Package fiscal предоставляет клиент для внешней системы фискальной валидации счетов.
package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с фискальной системой.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// InvoiceRequest описывает счёт, отправляемый на фискальную валидацию.
type InvoiceRequest struct {
	InvoiceName   string  `json:"invoice_name"`
	CustomerName  string  `json:"customer_name"`
	CustomerTaxID string  `json:"customer_tax_id"`
	Amount        float64 `json:"amount"`
	IssuedAt      string  `json:"issued_at"`
}

// ValidationResult описывает ответ фискальной системы по одному счёту.
type ValidationResult struct {
	Status          string `json:"status"`
	FiscalReference string `json:"fiscal_reference"`
	QRValue         string `json:"qr_value"`
	Message         string `json:"message,omitempty"`
}

// NewClient создаёт HTTP-клиент фискальной системы по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil
	// 429 обрабатывается вызывающей стороной по заголовку Retry-After,
	// внутренний повтор здесь только мешает.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

// ValidateInvoice отправляет счёт на фискальную валидацию и возвращает её результат.
func (c *Client) ValidateInvoice(ctx context.Context, inv InvoiceRequest) (*ValidationResult, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("fiscal client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	payload, err := json.Marshal(inv)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("marshal invoice: %w", err)
	}

	url := base + "/api/invoices/validate"

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result ValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
