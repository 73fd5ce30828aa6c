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
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ephemeral-platform/envjanitor/internal/report"
)

// PreservationExpirer enforces the TTL on preserved namespaces. An expired
// preservation is cleared, which makes the namespace eligible for the orphan
// reconciler's next pass; the expirer itself never destroys anything. A
// preservation inside WarningWindow of expiry gets one advance-warning PR
// comment.
type PreservationExpirer struct {
	Inventory Inventory
	Oracle    Commenter
	Preserver Preserver

	// WarningWindow is how far ahead of expiry the warning comment is
	// posted.
	WarningWindow time.Duration

	// DryRun logs the warning comment instead of posting it. Preserve
	// marker patches are already no-ops in dry-run via the destroyer.
	DryRun bool
}

// Run performs a single expiry pass over preserved namespaces. Per-namespace
// failures are recorded and do not stop the batch.
func (e *PreservationExpirer) Run(ctx context.Context, now time.Time) (*report.RunReport, error) {
	logger := log.FromContext(ctx)
	rep := report.New("expire")

	namespaces, err := e.Inventory.List(ctx)
	if err != nil {
		return rep, err
	}

	for _, ns := range namespaces {
		if !ns.Preserved() {
			continue
		}

		rep.Checked++
		nsLog := logger.WithValues("namespace", ns.Name, "pr", ns.PRNumber, "preserveUntil", ns.PreserveUntil.Format(time.RFC3339))

		if !now.Before(*ns.PreserveUntil) {
			// Expired: release the namespace. Reclamation happens on the
			// orphan reconciler's next scheduled run, not this one.
			if err := e.Preserver.ClearPreserve(ctx, ns.Name); err != nil {
				nsLog.Error(err, "Failed to clear expired preservation")
				rep.AddError(ns.Name, "clear-preserve", err)
				continue
			}
			rep.Expired++
			nsLog.Info("Preservation expired, namespace released for reclamation")
			continue
		}

		// The warning-sent-at annotation is the sole idempotency guard:
		// once set, consecutive hourly runs inside the window post nothing.
		if ns.PreserveUntil.Sub(now) <= e.WarningWindow && ns.WarningSentAt == nil {
			body := warningComment(ns.Name, ns.Branch, *ns.PreserveUntil)
			if e.DryRun {
				nsLog.Info("Dry run: would post expiry warning")
				rep.Warned++
				continue
			}
			if err := e.Oracle.PostComment(ctx, ns.PRNumber, body); err != nil {
				nsLog.Error(err, "Failed to post expiry warning comment")
				rep.AddError(ns.Name, "post-warning", err)
				continue
			}
			if err := e.Preserver.MarkWarningSent(ctx, ns.Name, now); err != nil {
				nsLog.Error(err, "Failed to record warning marker")
				rep.AddError(ns.Name, "mark-warning-sent", err)
				continue
			}
			rep.Warned++
			nsLog.Info("Posted preservation expiry warning")
		}
	}

	logger.Info("Preservation expiry pass complete", "summary", rep.Summary())
	return rep, nil
}

// warningComment renders the PR comment posted ahead of expiry.
func warningComment(namespace, branch string, until time.Time) string {
	return fmt.Sprintf(
		"⏳ The preserved environment `%s` (branch `%s`) expires at %s. "+
			"After that it becomes eligible for automatic cleanup. "+
			"Re-apply the preserve command to extend it.",
		namespace, branch, until.UTC().Format(time.RFC3339))
}
