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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ephemeral-platform/envjanitor/internal/inventory"
)

var _ = Describe("PreservationExpirer", func() {
	var (
		ctx     context.Context
		now     time.Time
		inv     *stubInventory
		orc     *stubOracle
		prs     *stubPreserver
		expirer *PreservationExpirer
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
		inv = &stubInventory{}
		orc = &stubOracle{}
		prs = &stubPreserver{}
		expirer = &PreservationExpirer{
			Inventory:     inv,
			Oracle:        orc,
			Preserver:     prs,
			WarningWindow: 24 * time.Hour,
		}
	})

	It("clears an expired preservation exactly once and destroys nothing", func() {
		inv.items = []inventory.EphemeralNamespace{preservedNS("myapp-pr-13", 13, now.Add(-time.Minute))}

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(prs.cleared).To(ConsistOf("myapp-pr-13"))
		Expect(rep.Expired).To(Equal(1))
		Expect(orc.comments).To(BeEmpty())
	})

	It("treats a preservation expiring this instant as expired", func() {
		inv.items = []inventory.EphemeralNamespace{preservedNS("myapp-pr-13", 13, now)}

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(prs.cleared).To(ConsistOf("myapp-pr-13"))
		Expect(rep.Expired).To(Equal(1))
	})

	It("posts one warning comment inside the warning window and records the marker", func() {
		inv.items = []inventory.EphemeralNamespace{preservedNS("myapp-pr-21", 21, now.Add(6*time.Hour))}

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(orc.comments).To(ConsistOf(21))
		Expect(prs.warned).To(HaveKey("myapp-pr-21"))
		Expect(rep.Warned).To(Equal(1))
		Expect(prs.cleared).To(BeEmpty())
	})

	It("does not repeat the warning once the marker annotation is set", func() {
		ns := preservedNS("myapp-pr-21", 21, now.Add(6*time.Hour))
		sentAt := now.Add(-time.Hour)
		ns.WarningSentAt = &sentAt
		inv.items = []inventory.EphemeralNamespace{ns}

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(orc.comments).To(BeEmpty())
		Expect(rep.Warned).To(BeZero())
	})

	It("does nothing for a preservation still outside the warning window", func() {
		inv.items = []inventory.EphemeralNamespace{preservedNS("myapp-pr-21", 21, now.Add(72*time.Hour))}

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(orc.comments).To(BeEmpty())
		Expect(prs.cleared).To(BeEmpty())
		Expect(rep.Checked).To(Equal(1))
	})

	It("ignores namespaces that are not preserved", func() {
		inv.items = []inventory.EphemeralNamespace{ephemeralNS("myapp-pr-3", 3, now.Add(-time.Hour))}

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Checked).To(BeZero())
	})

	It("leaves the warning marker unset when the comment cannot be posted", func() {
		inv.items = []inventory.EphemeralNamespace{preservedNS("myapp-pr-21", 21, now.Add(6*time.Hour))}
		orc.commentErr = errors.New("boom")

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(prs.warned).To(BeEmpty())
		Expect(rep.Errors).To(HaveLen(1))
		Expect(rep.Errors[0].Op).To(Equal("post-warning"))
	})

	It("records a clear failure and continues with the rest of the batch", func() {
		inv.items = []inventory.EphemeralNamespace{
			preservedNS("myapp-pr-1", 1, now.Add(-time.Hour)),
			preservedNS("myapp-pr-2", 2, now.Add(6*time.Hour)),
		}
		prs.clearErr = errors.New("conflict")

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Errors).To(HaveLen(1))
		Expect(rep.Errors[0].Op).To(Equal("clear-preserve"))
		Expect(orc.comments).To(ConsistOf(2))
	})

	It("counts but does not post warnings in dry-run mode", func() {
		expirer.DryRun = true
		inv.items = []inventory.EphemeralNamespace{preservedNS("myapp-pr-21", 21, now.Add(6*time.Hour))}

		rep, err := expirer.Run(ctx, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(orc.comments).To(BeEmpty())
		Expect(prs.warned).To(BeEmpty())
		Expect(rep.Warned).To(Equal(1))
	})
})
