package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Request describes one outbound call made through DoRequest.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
	Limit   int64 // max body bytes read; 0 = 4 MiB
}

// StatusError is returned for a final non-2xx response.
type StatusError struct {
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Snippet)
}

// Is lets callers match rate-limit and forbidden responses against ErrBlocked.
func (e *StatusError) Is(target error) bool {
	return target == ErrBlocked && isBlockingStatus(e.StatusCode)
}

func isBlockingStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusForbidden
}

// DoRequest sends r with stealth retry semantics (429/5xx and transient network
// errors retried with backoff) and returns the response body.
func DoRequest(ctx context.Context, client *http.Client, r Request) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	limit := r.Limit
	if limit <= 0 {
		limit = 4 << 20
	}

	// Status of the last attempt; RetryHTTP hides it once retries are exhausted.
	lastStatus := 0
	resp, err := stealth.RetryHTTP(ctx, stealth.DefaultRetryConfig, func() (*http.Response, error) {
		var body io.Reader
		if r.Body != nil {
			body = bytes.NewReader(r.Body)
		}
		req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", stealth.RandomUserAgent())
		for k, v := range r.Headers {
			req.Header.Set(k, v)
		}
		resp, err := client.Do(req)
		if err == nil {
			lastStatus = resp.StatusCode
		}
		return resp, err
	})
	if err != nil {
		if isBlockingStatus(lastStatus) {
			return nil, fmt.Errorf("%s %s: %w", method, r.URL, &StatusError{StatusCode: lastStatus})
		}
		return nil, fmt.Errorf("%s %s: %w", method, r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{StatusCode: resp.StatusCode, Snippet: string(bytes.TrimSpace(snippet))}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
