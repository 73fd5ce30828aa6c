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

// Package report carries the per-invocation outcome of a reconciler run:
// summary counts plus one entry per namespace-level error. A report is never
// persisted beyond the run; it drives operator logging and the process exit
// status.
package report

import "fmt"

// ItemError records one failed per-namespace operation. The failure was
// contained at the namespace-processing boundary and the rest of the batch
// continued.
type ItemError struct {
	Namespace string
	Op        string
	Err       error
}

func (e ItemError) String() string {
	return fmt.Sprintf("namespace=%s op=%s error=%v", e.Namespace, e.Op, e.Err)
}

// RunReport is produced once per reconciler invocation.
type RunReport struct {
	Job      string
	Checked  int
	Orphaned int
	Deleted  int
	Warned   int
	Expired  int
	Skipped  int
	Errors   []ItemError
}

// New creates an empty report for the named job.
func New(job string) *RunReport {
	return &RunReport{Job: job}
}

// AddError records a contained per-namespace failure.
func (r *RunReport) AddError(namespace, op string, err error) {
	r.Errors = append(r.Errors, ItemError{Namespace: namespace, Op: op, Err: err})
}

// Failed reports whether the run should exit non-zero under the configured
// policy: only when the per-item failure count exceeds maxItemFailures. The
// full per-item breakdown is logged regardless of exit code.
func (r *RunReport) Failed(maxItemFailures int) bool {
	return len(r.Errors) > maxItemFailures
}

// Summary renders the one-line operator summary.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("job=%s checked=%d orphaned=%d deleted=%d warned=%d expired=%d skipped=%d errors=%d",
		r.Job, r.Checked, r.Orphaned, r.Deleted, r.Warned, r.Expired, r.Skipped, len(r.Errors))
}
