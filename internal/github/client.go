// MIT License
//
// Copyright (c) 2025 The Envjanitor Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package github

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// RetryConfig defines the retry behavior for API calls. MaxBackoff caps the
// exponential growth so that a long rate-limit window cannot consume the
// job's own execution deadline.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig is the retry budget used by NewClient.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     60 * time.Second,
}

// pullRequestOracle implements the Oracle interface using go-github.
type pullRequestOracle struct {
	client      *github.Client
	owner       string
	repo        string
	token       string
	retryConfig RetryConfig
}

// NewClient creates an Oracle for one repository. The repository must be in
// "owner/repo" form and the token is supplied through the environment, never
// argv. An empty token produces an unauthenticated client (useful for tests).
func NewClient(token, repository string) (Oracle, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository %q is not in owner/repo form", repository)
	}

	var httpClient *http.Client
	if token != "" {
		httpClient = github.NewClient(nil).Client()
		httpClient.Transport = &github.BasicAuthTransport{
			Username: "token",
			Password: token,
		}
	}

	return &pullRequestOracle{
		client:      github.NewClient(httpClient),
		owner:       owner,
		repo:        repo,
		token:       token,
		retryConfig: DefaultRetryConfig,
	}, nil
}

// GetPullRequestState resolves the state of one pull request. A 404 is
// reported as StateUnknown with a nil error; callers decide how to treat an
// unresolvable PR. Rate limiting past the retry budget surfaces as a
// *RateLimitedError.
func (o *pullRequestOracle) GetPullRequestState(ctx context.Context, number int) (PullRequestState, error) {
	var pr *github.PullRequest

	err := o.executeWithRetry(ctx, func() error {
		var opErr error
		pr, _, opErr = o.client.PullRequests.Get(ctx, o.owner, o.repo, number)
		return opErr
	})

	if err != nil {
		if isNotFound(err) {
			return PullRequestState{Number: number, State: StateUnknown}, nil
		}
		var rateErr *RateLimitedError
		if errors.As(err, &rateErr) {
			return PullRequestState{}, err
		}
		return PullRequestState{}, fmt.Errorf("failed to get pull request #%d: %w", number, o.redact(err))
	}

	state := State(pr.GetState())
	if pr.GetMerged() {
		state = StateMerged
	}

	return PullRequestState{
		Number:    pr.GetNumber(),
		State:     state,
		UpdatedAt: pr.GetUpdatedAt().Time,
	}, nil
}

// PostComment posts a comment on the pull request conversation. Pull request
// comments go through the issues endpoint.
func (o *pullRequestOracle) PostComment(ctx context.Context, number int, body string) error {
	err := o.executeWithRetry(ctx, func() error {
		_, _, opErr := o.client.Issues.CreateComment(ctx, o.owner, o.repo, number, &github.IssueComment{
			Body: github.String(body),
		})
		return opErr
	})

	if err != nil {
		var rateErr *RateLimitedError
		if errors.As(err, &rateErr) {
			return err
		}
		return fmt.Errorf("failed to comment on pull request #%d: %w", number, o.redact(err))
	}

	return nil
}

// executeWithRetry executes an operation with capped exponential backoff.
// Only transient errors (rate limits, 5xx) are retried; exhausting the retry
// budget on rate limits yields a *RateLimitedError.
func (o *pullRequestOracle) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= o.retryConfig.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt == o.retryConfig.MaxRetries {
			break
		}

		backoff := o.calculateBackoff(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	if isRateLimit(lastErr) {
		return &RateLimitedError{
			Attempts: o.retryConfig.MaxRetries + 1,
			Err:      o.redact(lastErr),
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", o.retryConfig.MaxRetries, lastErr)
}

// calculateBackoff returns min(initial*2^attempt, MaxBackoff) with ±20%
// jitter. The cap keeps total run time bounded by the scheduler's deadline.
func (o *pullRequestOracle) calculateBackoff(attempt int) time.Duration {
	multiplier := 1 << uint(attempt) // 2^attempt
	base := float64(o.retryConfig.InitialBackoff) * float64(multiplier)

	jitter := (rand.Float64() * 0.4) - 0.2 // -0.2 to +0.2
	backoff := time.Duration(base * (1 + jitter))

	if backoff > o.retryConfig.MaxBackoff {
		backoff = o.retryConfig.MaxBackoff
	}

	return backoff
}

// redact scrubs the auth token from an error before it reaches any log line.
// The GitHub API can echo request headers back in failure payloads.
func (o *pullRequestOracle) redact(err error) error {
	if err == nil || o.token == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), o.token, "[REDACTED]")
	return errors.New(msg)
}

// isRetryable determines if an error should trigger another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if isRateLimit(err) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// isRateLimit reports whether the error is a primary or secondary rate limit
// (403 with a rate-limit message, or 429).
func isRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusTooManyRequests:
			return true
		case http.StatusForbidden:
			return strings.Contains(strings.ToLower(ghErr.Message), "rate limit")
		}
	}

	return false
}

// isNotFound reports whether the error is a 404 from the API.
func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
