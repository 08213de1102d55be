// Package postgrest предоставляет клиент удалённого хранилища, доступного
// через REST API PostgREST.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client инкапсулирует HTTP-взаимодействие с PostgREST.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	logger        *zap.Logger
	maxRetryAfter time.Duration
}

// APIError описывает ответ PostgREST с кодом ошибки.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.Status)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.Status, e.Message)
}

// NewClient создаёт клиент для REST API по указанному адресу. apiKey
// передаётся в заголовках apikey и Authorization.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:        logger,
		maxRetryAfter: 30 * time.Second,
	}
}

// do выполняет запрос к таблице. Ответ 429 повторяется один раз после паузы
// из заголовка Retry-After.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("postgrest client not configured")
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		retryAfter, err := c.send(ctx, method, table, query, payload, out)
		if err != nil || retryAfter < 0 {
			return err
		}
		if attempt > 0 {
			return &APIError{Status: http.StatusTooManyRequests}
		}

		c.logger.Warn("rate limited by remote store", zap.String("table", table), zap.Duration("retryAfter", retryAfter))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

// send выполняет один запрос. Для ответа 429 возвращает неотрицательную паузу.
func (c *Client) send(ctx context.Context, method, table string, query url.Values, payload []byte, out any) (time.Duration, error) {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	u := fmt.Sprintf("%s/%s", base, table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return -1, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return -1, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		if retryAfter > c.maxRetryAfter {
			retryAfter = c.maxRetryAfter
		}
		return retryAfter, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, apiErr)
		return -1, apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return -1, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return -1, fmt.Errorf("decode response: %w", err)
	}
	return -1, nil
}

func eq(id int64) string { return "eq." + strconv.FormatInt(id, 10) }

func in(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "in.(" + strings.Join(parts, ",") + ")"
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func filter(pairs ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Add(pairs[i], pairs[i+1])
	}
	return q
}
