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
	"fmt"
	"time"
)

// Oracle defines the contract for resolving pull request state and posting
// expiry warnings.
type Oracle interface {
	// GetPullRequestState returns the state of a pull request. A pull
	// request that cannot be found yields StateUnknown with a nil error;
	// absence of evidence is never treated as closure.
	GetPullRequestState(ctx context.Context, number int) (PullRequestState, error)
	// PostComment posts a comment on the pull request's conversation.
	PostComment(ctx context.Context, number int, body string) error
}

// State classifies a pull request as observed through the GitHub API.
type State string

const (
	// StateOpen means the pull request is open.
	StateOpen State = "open"
	// StateClosed means the pull request was closed without merging.
	StateClosed State = "closed"
	// StateMerged means the pull request was merged.
	StateMerged State = "merged"
	// StateUnknown means the pull request could not be found (404).
	StateUnknown State = "unknown"
)

// PullRequestState is the per-run snapshot of one pull request.
type PullRequestState struct {
	Number    int
	State     State
	UpdatedAt time.Time
}

// Resolved reports whether the lookup actually found the pull request.
func (p PullRequestState) Resolved() bool {
	return p.State != StateUnknown
}

// Finished reports whether the pull request is closed or merged, i.e. its
// namespace is reclaimable regardless of age.
func (p PullRequestState) Finished() bool {
	return p.State == StateClosed || p.State == StateMerged
}

// RateLimitedError is returned when the GitHub API kept rate-limiting us
// past the bounded retry budget. The namespace it was raised for is skipped
// for the current cycle and re-evaluated on the next scheduled run.
type RateLimitedError struct {
	Attempts int
	Err      error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by GitHub API after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitedError) Unwrap() error {
	return e.Err
}
