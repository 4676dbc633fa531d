// Package printer отправляет печатные формы чеков на сетевой принтер.
package printer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client отправляет чеки на принт-сервер по HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент принт-сервера по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Print отправляет печатный текст чека на принт-сервер.
func (c *Client) Print(ctx context.Context, text string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("printer client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/print", strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
