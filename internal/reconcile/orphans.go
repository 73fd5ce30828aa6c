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

package reconcile

import (
	"context"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ephemeral-platform/envjanitor/internal/github"
	"github.com/ephemeral-platform/envjanitor/internal/inventory"
	"github.com/ephemeral-platform/envjanitor/internal/report"
)

// OrphanReconciler reclaims ephemeral namespaces whose pull request is
// closed or merged, or whose PR cannot be resolved and which have exceeded
// MaxUnmatchedAge. Preserved namespaces are left to the preservation
// expirer.
type OrphanReconciler struct {
	Inventory Inventory
	Oracle    github.Oracle
	Destroyer Destroyer

	// MaxUnmatchedAge is the age past which a namespace with an
	// unresolvable PR is reclaimed anyway. The fallback exists so a
	// transient lookup failure never deletes a namespace immediately, while
	// a PR the oracle can never resolve (deleted fork) cannot leak one
	// forever.
	MaxUnmatchedAge time.Duration
}

// Run performs a single reconciliation pass. Per-namespace failures are
// recorded in the report and never abort evaluation of the remaining
// namespaces; only a failure to list namespaces is returned as an error.
func (r *OrphanReconciler) Run(ctx context.Context, now time.Time) (*report.RunReport, error) {
	logger := log.FromContext(ctx)
	rep := report.New("orphans")

	namespaces, err := r.Inventory.List(ctx)
	if err != nil {
		return rep, err
	}

	// PR state is fetched fresh each run, cached only for the run's
	// duration to avoid duplicate calls.
	prCache := make(map[int]github.PullRequestState)

	for _, ns := range namespaces {
		rep.Checked++
		nsLog := logger.WithValues("namespace", ns.Name, "pr", ns.PRNumber)

		if ns.Preserved() {
			nsLog.V(1).Info("Skipping preserved namespace")
			rep.Skipped++
			continue
		}

		state, cached := prCache[ns.PRNumber]
		if !cached {
			state, err = r.Oracle.GetPullRequestState(ctx, ns.PRNumber)
			if err != nil {
				nsLog.Error(err, "Failed to resolve pull request state, skipping for this cycle")
				rep.AddError(ns.Name, "resolve-pr", err)
				continue
			}
			prCache[ns.PRNumber] = state
		}

		if !r.isOrphan(ns, state, now) {
			continue
		}

		rep.Orphaned++
		nsLog.Info("Namespace classified as orphan", "prState", string(state.State), "age", ns.Age(now).String())

		result, err := r.Destroyer.Destroy(ctx, ns.Name)
		if err != nil {
			nsLog.Error(err, "Failed to destroy orphaned namespace")
			rep.AddError(ns.Name, "destroy", err)
			continue
		}

		rep.Deleted++
		nsLog.Info("Destroyed orphaned namespace", "outcome", string(result.Outcome), "finalizersStripped", result.FinalizersStripped)
	}

	logger.Info("Orphan reconciliation complete", "summary", rep.Summary())
	return rep, nil
}

// isOrphan applies the two-tier classification: reclaim on a finished PR
// regardless of age, or on an unresolvable PR only once the namespace has
// outlived MaxUnmatchedAge.
func (r *OrphanReconciler) isOrphan(ns inventory.EphemeralNamespace, state github.PullRequestState, now time.Time) bool {
	if state.Finished() {
		return true
	}
	if !state.Resolved() && ns.Age(now) > r.MaxUnmatchedAge {
		return true
	}
	return false
}
