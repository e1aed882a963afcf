// Package transfer предоставляет клиент внешнего провайдера банковских переводов продавцам.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Статусы перевода на стороне провайдера.
const (
	StatusPending   = "PENDING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Client инкапсулирует HTTP-взаимодействие с провайдером переводов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Transfer описывает ответ провайдера по переводу для одной заявки на выплату.
type Transfer struct {
	PayoutRequestID int64  `json:"payout_request_id"`
	Status          string `json:"status"`
	Reference       string `json:"reference,omitempty"`
	// Fee содержит комиссию провайдера в минимальных единицах валюты.
	Fee           int64  `json:"fee"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// NewClient создаёт HTTP-клиент для обращения к провайдеру переводов по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetTransfer запрашивает состояние перевода по идентификатору заявки на выплату.
// Для 429 возвращает рекомендованную паузу из заголовка Retry-After, для 204 пустой ответ.
func (c *Client) GetTransfer(ctx context.Context, payoutRequestID int64) (*Transfer, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("transfer client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/transfers/%d", base, payoutRequestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	case http.StatusNoContent, http.StatusNotFound:
		return nil, resp.StatusCode, 0, nil
	case http.StatusOK:
	default:
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Transfer
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
