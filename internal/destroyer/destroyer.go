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

// Package destroyer executes the namespace deletion protocol and owns the
// preserve label/annotation mutation primitives.
//
// Deletion protocol: a foreground delete with a bounded wait, escalating on
// a stall to PVC finalizer stripping followed by a second, non-waiting force
// delete. Finalizers are stripped only after a genuine stall; stripping them
// before the first delete attempt risks orphaning storage backends.
package destroyer

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ephemeral-platform/envjanitor/internal/inventory"
)

// Outcome is the terminal state of one destroy attempt.
type Outcome string

const (
	// OutcomeDeleted means the namespace disappeared within the grace period.
	OutcomeDeleted Outcome = "Deleted"
	// OutcomeForceDeleteRequested means the graceful delete stalled, PVC
	// finalizers were stripped, and a non-waiting force delete was issued.
	OutcomeForceDeleteRequested Outcome = "ForceDeleteRequested"
	// OutcomeAlreadyGone means the namespace no longer existed.
	OutcomeAlreadyGone Outcome = "AlreadyGone"
	// OutcomeDryRun means no mutation was performed.
	OutcomeDryRun Outcome = "DryRun"
)

// DestroyResult reports what happened to one namespace.
type DestroyResult struct {
	Namespace          string
	Outcome            Outcome
	FinalizersStripped bool
	PVCsPatched        int
}

// DeletionStalledError is returned when a namespace survives both the
// graceful wait and the finalizer-strip escalation. The namespace is retried
// on the next scheduled run.
type DeletionStalledError struct {
	Namespace string
	Err       error
}

func (e *DeletionStalledError) Error() string {
	return fmt.Sprintf("deletion of namespace %q stalled: %v", e.Namespace, e.Err)
}

func (e *DeletionStalledError) Unwrap() error {
	return e.Err
}

// Destroyer deletes ephemeral namespaces and mutates their preserve markers.
// All mutations are idempotent merge patches; re-applying one is a no-op.
type Destroyer struct {
	client       client.Client
	gracePeriod  time.Duration
	pollInterval time.Duration
	dryRun       bool
}

// New creates a Destroyer. gracePeriod bounds the wait on a graceful delete
// before escalation; with dryRun set, every mutation is logged and skipped.
func New(c client.Client, gracePeriod time.Duration, dryRun bool) *Destroyer {
	return &Destroyer{
		client:       c,
		gracePeriod:  gracePeriod,
		pollInterval: 2 * time.Second,
		dryRun:       dryRun,
	}
}

// Destroy deletes a namespace: foreground delete, bounded wait, then on a
// stall PVC finalizer stripping and a second delete without waiting. A
// failure here is recorded per namespace by the caller and does not stop the
// batch.
func (d *Destroyer) Destroy(ctx context.Context, name string) (DestroyResult, error) {
	logger := log.FromContext(ctx).WithValues("namespace", name)
	result := DestroyResult{Namespace: name}

	var ns corev1.Namespace
	if err := d.client.Get(ctx, types.NamespacedName{Name: name}, &ns); err != nil {
		if apierrors.IsNotFound(err) {
			result.Outcome = OutcomeAlreadyGone
			return result, nil
		}
		return result, fmt.Errorf("failed to get namespace %q: %w", name, err)
	}

	if d.dryRun {
		logger.Info("Dry run: would delete namespace")
		result.Outcome = OutcomeDryRun
		return result, nil
	}

	logger.Info("Requesting graceful namespace deletion", "gracePeriod", d.gracePeriod.String())
	if err := d.client.Delete(ctx, &ns, client.PropagationPolicy(metav1.DeletePropagationForeground)); err != nil {
		if apierrors.IsNotFound(err) {
			result.Outcome = OutcomeAlreadyGone
			return result, nil
		}
		return result, fmt.Errorf("failed to delete namespace %q: %w", name, err)
	}

	if err := d.waitForDeletion(ctx, name); err == nil {
		result.Outcome = OutcomeDeleted
		return result, nil
	}

	// The graceful delete stalled, most often on a PVC finalizer held by a
	// storage backend that was torn down with the rest of the environment.
	logger.Info("Graceful deletion stalled, stripping PVC finalizers")

	patched, err := d.stripPVCFinalizers(ctx, name)
	result.PVCsPatched = patched
	if err != nil {
		return result, &DeletionStalledError{Namespace: name, Err: err}
	}
	result.FinalizersStripped = true

	// Second delete, no wait this time; the next scheduled run verifies the
	// namespace is actually gone.
	var again corev1.Namespace
	if err := d.client.Get(ctx, types.NamespacedName{Name: name}, &again); err != nil {
		if apierrors.IsNotFound(err) {
			result.Outcome = OutcomeDeleted
			return result, nil
		}
		return result, &DeletionStalledError{Namespace: name, Err: err}
	}
	if err := d.client.Delete(ctx, &again,
		client.PropagationPolicy(metav1.DeletePropagationBackground),
		client.GracePeriodSeconds(0),
	); err != nil && !apierrors.IsNotFound(err) {
		return result, &DeletionStalledError{Namespace: name, Err: err}
	}

	result.Outcome = OutcomeForceDeleteRequested
	return result, nil
}

// waitForDeletion polls until the namespace is gone or the grace period is
// exhausted.
func (d *Destroyer) waitForDeletion(ctx context.Context, name string) error {
	return wait.PollUntilContextTimeout(ctx, d.pollInterval, d.gracePeriod, true,
		func(ctx context.Context) (bool, error) {
			var ns corev1.Namespace
			err := d.client.Get(ctx, types.NamespacedName{Name: name}, &ns)
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			// Transient get errors just mean another poll.
			return false, nil
		})
}

// stripPVCFinalizers patches the finalizers off every PersistentVolumeClaim
// in the namespace, returning how many were patched.
func (d *Destroyer) stripPVCFinalizers(ctx context.Context, namespace string) (int, error) {
	var pvcList corev1.PersistentVolumeClaimList
	if err := d.client.List(ctx, &pvcList, client.InNamespace(namespace)); err != nil {
		return 0, fmt.Errorf("failed to list PVCs in %q: %w", namespace, err)
	}

	patched := 0
	for idx := range pvcList.Items {
		pvc := &pvcList.Items[idx]
		if len(pvc.Finalizers) == 0 {
			continue
		}

		original := pvc.DeepCopy()
		pvc.Finalizers = nil
		if err := d.client.Patch(ctx, pvc, client.MergeFrom(original)); err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			return patched, fmt.Errorf("failed to strip finalizers from PVC %s/%s: %w", namespace, pvc.Name, err)
		}
		patched++
	}

	return patched, nil
}

// SetPreserve marks a namespace preserved until the given time.
func (d *Destroyer) SetPreserve(ctx context.Context, name string, until time.Time) error {
	return d.patchNamespace(ctx, name, "set preserve", func(ns *corev1.Namespace) {
		if ns.Labels == nil {
			ns.Labels = make(map[string]string)
		}
		if ns.Annotations == nil {
			ns.Annotations = make(map[string]string)
		}
		ns.Labels[inventory.LabelPreserve] = "true"
		ns.Annotations[inventory.AnnotationPreserveUntil] = until.UTC().Format(time.RFC3339)
	})
}

// ClearPreserve releases a namespace back into the pool the orphan
// reconciler collects. The warning marker is cleared with it so a future
// preservation starts from a clean slate, and cleanup-triggered-at lets a
// later orphan run prioritize the namespace.
func (d *Destroyer) ClearPreserve(ctx context.Context, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return d.patchNamespace(ctx, name, "clear preserve", func(ns *corev1.Namespace) {
		delete(ns.Labels, inventory.LabelPreserve)
		delete(ns.Annotations, inventory.AnnotationPreserveUntil)
		delete(ns.Annotations, inventory.AnnotationWarningSentAt)
		if ns.Annotations == nil {
			ns.Annotations = make(map[string]string)
		}
		ns.Annotations[inventory.AnnotationCleanupTriggeredAt] = now
	})
}

// MarkWarningSent records that the expiry warning was posted, which is the
// idempotency guard against duplicate comments across hourly runs.
func (d *Destroyer) MarkWarningSent(ctx context.Context, name string, when time.Time) error {
	return d.patchNamespace(ctx, name, "mark warning sent", func(ns *corev1.Namespace) {
		if ns.Annotations == nil {
			ns.Annotations = make(map[string]string)
		}
		ns.Annotations[inventory.AnnotationWarningSentAt] = when.UTC().Format(time.RFC3339)
	})
}

// patchNamespace applies a merge patch built by mutate. A missing namespace
// is treated as success: the mutation is moot once the namespace is gone.
func (d *Destroyer) patchNamespace(ctx context.Context, name, op string, mutate func(*corev1.Namespace)) error {
	logger := log.FromContext(ctx).WithValues("namespace", name)

	var ns corev1.Namespace
	if err := d.client.Get(ctx, types.NamespacedName{Name: name}, &ns); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get namespace %q: %w", name, err)
	}

	if d.dryRun {
		logger.Info("Dry run: would patch namespace", "op", op)
		return nil
	}

	original := ns.DeepCopy()
	mutate(&ns)

	if err := d.client.Patch(ctx, &ns, client.MergeFrom(original)); err != nil {
		return fmt.Errorf("failed to %s on namespace %q: %w", op, name, err)
	}

	return nil
}
