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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ephemeral-platform/envjanitor/internal/github"
	"github.com/ephemeral-platform/envjanitor/internal/inventory"
)

var _ = Describe("OrphanReconciler", func() {
	var (
		ctx   context.Context
		now   time.Time
		inv   *stubInventory
		orc   *stubOracle
		dst   *stubDestroyer
		recon *OrphanReconciler
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
		inv = &stubInventory{}
		orc = &stubOracle{states: map[int]github.PullRequestState{}, errs: map[int]error{}}
		dst = &stubDestroyer{errs: map[string]error{}}
		recon = &OrphanReconciler{
			Inventory:       inv,
			Oracle:          orc,
			Destroyer:       dst,
			MaxUnmatchedAge: 48 * time.Hour,
		}
	})

	It("destroys a namespace whose pull request is closed, regardless of age", func() {
		inv.items = []inventory.EphemeralNamespace{ephemeralNS("myapp-pr-42", 42, now.Add(-30*time.Hour))}
		orc.states[42] = github.PullRequestState{Number: 42, State: github.StateClosed}

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.destroyed).To(ConsistOf("myapp-pr-42"))
		Expect(rep.Checked).To(Equal(1))
		Expect(rep.Orphaned).To(Equal(1))
		Expect(rep.Deleted).To(Equal(1))
		Expect(rep.Errors).To(BeEmpty())
	})

	It("destroys a namespace whose pull request was merged", func() {
		inv.items = []inventory.EphemeralNamespace{ephemeralNS("myapp-pr-7", 7, now.Add(-time.Hour))}
		orc.states[7] = github.PullRequestState{Number: 7, State: github.StateMerged}

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.destroyed).To(ConsistOf("myapp-pr-7"))
		Expect(rep.Deleted).To(Equal(1))
	})

	It("leaves a namespace with an open pull request alone", func() {
		inv.items = []inventory.EphemeralNamespace{ephemeralNS("myapp-pr-5", 5, now.Add(-90*24*time.Hour))}
		orc.states[5] = github.PullRequestState{Number: 5, State: github.StateOpen}

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.destroyed).To(BeEmpty())
		Expect(rep.Orphaned).To(BeZero())
	})

	It("leaves a young namespace with an unresolvable pull request alone", func() {
		inv.items = []inventory.EphemeralNamespace{ephemeralNS("myapp-pr-404", 404, now.Add(-12*time.Hour))}
		// No canned state: the stub resolves unknown PRs to StateUnknown.

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.destroyed).To(BeEmpty())
		Expect(rep.Orphaned).To(BeZero())
	})

	It("destroys a namespace with an unresolvable pull request once it outlives the unmatched-age threshold", func() {
		inv.items = []inventory.EphemeralNamespace{ephemeralNS("myapp-pr-404", 404, now.Add(-72*time.Hour))}

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.destroyed).To(ConsistOf("myapp-pr-404"))
		Expect(rep.Orphaned).To(Equal(1))
	})

	It("skips preserved namespaces without consulting the oracle", func() {
		inv.items = []inventory.EphemeralNamespace{preservedNS("myapp-pr-9", 9, now.Add(48*time.Hour))}
		orc.states[9] = github.PullRequestState{Number: 9, State: github.StateClosed}

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(orc.lookups).To(BeEmpty())
		Expect(dst.destroyed).To(BeEmpty())
		Expect(rep.Skipped).To(Equal(1))
	})

	It("continues past a rate-limited lookup and processes the remaining namespaces", func() {
		inv.items = []inventory.EphemeralNamespace{
			ephemeralNS("myapp-pr-99", 99, now.Add(-30*time.Hour)),
			ephemeralNS("myapp-pr-42", 42, now.Add(-30*time.Hour)),
		}
		orc.errs[99] = &github.RateLimitedError{Attempts: 3}
		orc.states[42] = github.PullRequestState{Number: 42, State: github.StateClosed}

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.destroyed).To(ConsistOf("myapp-pr-42"))
		Expect(rep.Errors).To(HaveLen(1))
		Expect(rep.Errors[0].Namespace).To(Equal("myapp-pr-99"))
		Expect(rep.Errors[0].Op).To(Equal("resolve-pr"))
	})

	It("records a destroy failure and keeps going", func() {
		inv.items = []inventory.EphemeralNamespace{
			ephemeralNS("myapp-pr-1", 1, now.Add(-time.Hour)),
			ephemeralNS("myapp-pr-2", 2, now.Add(-time.Hour)),
		}
		orc.states[1] = github.PullRequestState{Number: 1, State: github.StateClosed}
		orc.states[2] = github.PullRequestState{Number: 2, State: github.StateClosed}
		dst.errs["myapp-pr-1"] = context.DeadlineExceeded

		rep, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.destroyed).To(ConsistOf("myapp-pr-2"))
		Expect(rep.Orphaned).To(Equal(2))
		Expect(rep.Deleted).To(Equal(1))
		Expect(rep.Errors).To(HaveLen(1))
		Expect(rep.Errors[0].Op).To(Equal("destroy"))
	})

	It("resolves each pull request at most once per run", func() {
		inv.items = []inventory.EphemeralNamespace{
			ephemeralNS("myapp-pr-42", 42, now.Add(-time.Hour)),
			ephemeralNS("myapp-pr-42-retry", 42, now.Add(-time.Hour)),
		}
		orc.states[42] = github.PullRequestState{Number: 42, State: github.StateOpen}

		_, err := recon.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(orc.lookups).To(HaveLen(1))
	})

	It("returns the listing error and an empty report when the inventory is unavailable", func() {
		inv.err = context.DeadlineExceeded

		rep, err := recon.Run(ctx, now)

		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(rep.Checked).To(BeZero())
	})
})
