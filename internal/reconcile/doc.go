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

// Package reconcile contains the two batch jobs that converge cluster
// namespace state with GitHub pull-request state.
//
// The OrphanReconciler and PreservationExpirer are stateless, single-shot
// passes invoked on independent schedules. They share no runtime state; all
// coordination happens through the namespace object's labels and
// annotations, which double as the persisted data store.
//
// There is deliberately no mutual exclusion between the two jobs. The
// expirer may clear a preservation moments after the orphan reconciler has
// already passed over the same namespace in the current cycle, in which case
// reclamation happens on the next orphan run. This bounded staleness, at
// most one orphan-run interval, is accepted; callers must not assume
// synchronous reclamation after preserve-expiry.
//
// Every per-namespace mutation is idempotent, so a run killed mid-batch by
// the scheduler's deadline leaves no inconsistent state: the next run simply
// re-evaluates from scratch.
package reconcile
