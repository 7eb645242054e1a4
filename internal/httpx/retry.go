// Package httpx provides a retrying request executor for calls to the
// generation service. Transport failures and HTTP 429 are retried with
// exponential backoff and jitter; any other non-2xx response fails fast.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts bounds one logical request. Some call sites raise
	// this to 5 via WithMaxAttempts.
	DefaultMaxAttempts = 3

	defaultBackoffBase = time.Second
	defaultTimeout     = 2 * time.Minute
)

// RequestDescriptor fully describes one HTTP call. The executor treats the
// call as idempotent from the caller's perspective.
type RequestDescriptor struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// TransportError is a non-2xx, non-429 response. It is fatal: the executor
// returns it without retrying.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation service returned status %d", e.Status)
	}
	return fmt.Sprintf("generation service returned status %d: %s", e.Status, e.Message)
}

// RetriesExhaustedError reports that every allowed attempt failed with a
// retryable outcome. Last is the final observed error.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// Executor issues requests with sequential retries. It holds no mutable
// state, so concurrent Execute calls are independent.
type Executor struct {
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the attempt budget per logical request.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithBackoffBase scales the backoff schedule. Tests shrink it.
func WithBackoffBase(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.backoffBase = d
		}
	}
}

// NewExecutor creates an Executor with the default retry policy.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client:      &http.Client{Timeout: defaultTimeout},
		maxAttempts: DefaultMaxAttempts,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// errorBody is the error envelope the generation service puts in non-2xx
// responses.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Execute performs the described call, retrying transport failures and 429
// responses. It returns the raw response body on the first 2xx outcome.
func (e *Executor) Execute(ctx context.Context, desc RequestDescriptor) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, desc.Method, desc.URL, bytes.NewReader(desc.Body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, vs := range desc.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := e.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("execute request: %w", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				lastErr = fmt.Errorf("read response body: %w", readErr)
				continue
			}
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &TransportError{Status: resp.StatusCode, Message: parseErrorMessage(body)}
			continue
		}

		return nil, &TransportError{Status: resp.StatusCode, Message: parseErrorMessage(body)}
	}

	return nil, &RetriesExhaustedError{Attempts: e.maxAttempts, Last: lastErr}
}

// sleep waits 2^attempt * base plus up to one base unit of jitter, honoring
// cancellation.
func (e *Executor) sleep(ctx context.Context, attempt int) error {
	delay := e.backoffBase*time.Duration(1<<attempt) + rand.N(e.backoffBase)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseErrorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	return strings.TrimSpace(string(body))
}
