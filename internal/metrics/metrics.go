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

// Package metrics exposes run counters for the janitor's reconcilers. The
// counters are served on /metrics in daemon mode.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ephemeral-platform/envjanitor/internal/report"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envjanitor_runs_total",
		Help: "Completed reconciler runs by job.",
	}, []string{"job"})

	namespacesCheckedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envjanitor_namespaces_checked_total",
		Help: "Namespaces evaluated, by job.",
	}, []string{"job"})

	namespacesOrphanedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envjanitor_namespaces_orphaned_total",
		Help: "Namespaces classified as orphans.",
	}, []string{"job"})

	namespacesDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envjanitor_namespaces_deleted_total",
		Help: "Namespaces for which a destroy completed.",
	}, []string{"job"})

	warningsPostedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envjanitor_warnings_posted_total",
		Help: "Preservation expiry warnings posted.",
	}, []string{"job"})

	preservationsExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envjanitor_preservations_expired_total",
		Help: "Preservations cleared after their TTL.",
	}, []string{"job"})

	itemErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envjanitor_item_errors_total",
		Help: "Per-namespace errors contained at the batch boundary.",
	}, []string{"job"})
)

// ObserveRun records one reconciler run's report.
func ObserveRun(r *report.RunReport) {
	runsTotal.WithLabelValues(r.Job).Inc()
	namespacesCheckedTotal.WithLabelValues(r.Job).Add(float64(r.Checked))
	namespacesOrphanedTotal.WithLabelValues(r.Job).Add(float64(r.Orphaned))
	namespacesDeletedTotal.WithLabelValues(r.Job).Add(float64(r.Deleted))
	warningsPostedTotal.WithLabelValues(r.Job).Add(float64(r.Warned))
	preservationsExpiredTotal.WithLabelValues(r.Job).Add(float64(r.Expired))
	itemErrorsTotal.WithLabelValues(r.Job).Add(float64(len(r.Errors)))
}
