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

package inventory

import (
	"fmt"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
)

// Label and annotation keys that make up the persisted format of an ephemeral
// environment. The labels are applied by the provisioning workflow at PR-open
// time and are immutable; the preserve label and the annotations are mutated
// by the preservation expirer.
const (
	// LabelType marks a namespace as an ephemeral environment. Only
	// namespaces carrying this label are considered by the janitor.
	LabelType = "env.ephemeral-platform.io/type"

	// TypeEphemeral is the required value of LabelType.
	TypeEphemeral = "ephemeral"

	// LabelProjectID identifies the owning project.
	LabelProjectID = "env.ephemeral-platform.io/project-id"

	// LabelPRNumber is the pull request number the namespace was created for.
	LabelPRNumber = "env.ephemeral-platform.io/pr-number"

	// LabelBranch is the PR head branch name, sanitized for label rules.
	LabelBranch = "env.ephemeral-platform.io/branch"

	// LabelCommitSHA is the commit the environment was built from.
	LabelCommitSHA = "env.ephemeral-platform.io/commit-sha"

	// LabelPreserve, when set to "true", protects the namespace from orphan
	// reclamation until AnnotationPreserveUntil.
	LabelPreserve = "env.ephemeral-platform.io/preserve"

	// AnnotationPreserveUntil is the RFC3339 expiry of a preservation.
	// Present if and only if LabelPreserve is "true".
	AnnotationPreserveUntil = "env.ephemeral-platform.io/preserve-until"

	// AnnotationWarningSentAt records when the expiry-warning PR comment was
	// posted. Its presence is the sole idempotency guard against duplicate
	// warnings.
	AnnotationWarningSentAt = "env.ephemeral-platform.io/warning-sent-at"

	// AnnotationCleanupTriggeredAt is set by the expirer when it releases a
	// namespace, so a later orphan run can prioritize re-checking it.
	AnnotationCleanupTriggeredAt = "env.ephemeral-platform.io/cleanup-triggered-at"
)

// EphemeralNamespace is the typed view of one per-PR namespace, parsed from
// the namespace object's labels and annotations.
type EphemeralNamespace struct {
	Name          string
	ProjectID     string
	PRNumber      int
	Branch        string
	CommitSHA     string
	CreatedAt     time.Time
	PreserveFlag  bool
	PreserveUntil *time.Time
	WarningSentAt *time.Time
}

// Preserved reports whether the namespace carries an active preservation.
func (e EphemeralNamespace) Preserved() bool {
	return e.PreserveFlag
}

// Age returns how long the namespace has existed as of now.
func (e EphemeralNamespace) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Parse builds an EphemeralNamespace from a namespace object. It returns an
// error for any namespace missing a required label or carrying metadata that
// violates the preserve invariant; callers are expected to skip such
// namespaces rather than fail the run.
func Parse(ns *corev1.Namespace) (EphemeralNamespace, error) {
	rec := EphemeralNamespace{
		Name:      ns.Name,
		CreatedAt: ns.CreationTimestamp.Time,
	}

	if ns.Labels[LabelType] != TypeEphemeral {
		return rec, fmt.Errorf("namespace %q: missing or invalid %s label", ns.Name, LabelType)
	}

	var err error
	if rec.ProjectID, err = requiredLabel(ns, LabelProjectID); err != nil {
		return rec, err
	}
	if rec.Branch, err = requiredLabel(ns, LabelBranch); err != nil {
		return rec, err
	}
	if rec.CommitSHA, err = requiredLabel(ns, LabelCommitSHA); err != nil {
		return rec, err
	}

	prRaw, err := requiredLabel(ns, LabelPRNumber)
	if err != nil {
		return rec, err
	}
	rec.PRNumber, err = strconv.Atoi(prRaw)
	if err != nil || rec.PRNumber < 1 {
		return rec, fmt.Errorf("namespace %q: label %s=%q is not a valid PR number", ns.Name, LabelPRNumber, prRaw)
	}

	rec.PreserveFlag = ns.Labels[LabelPreserve] == "true"

	if raw, ok := ns.Annotations[AnnotationPreserveUntil]; ok {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rec, fmt.Errorf("namespace %q: annotation %s=%q is not RFC3339", ns.Name, AnnotationPreserveUntil, raw)
		}
		rec.PreserveUntil = &t
	}

	// preserve-until must be present exactly when the preserve label is set.
	if rec.PreserveFlag != (rec.PreserveUntil != nil) {
		return rec, fmt.Errorf("namespace %q: %s and %s disagree", ns.Name, LabelPreserve, AnnotationPreserveUntil)
	}

	if raw, ok := ns.Annotations[AnnotationWarningSentAt]; ok {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rec, fmt.Errorf("namespace %q: annotation %s=%q is not RFC3339", ns.Name, AnnotationWarningSentAt, raw)
		}
		rec.WarningSentAt = &t
	}

	return rec, nil
}

func requiredLabel(ns *corev1.Namespace, key string) (string, error) {
	val, ok := ns.Labels[key]
	if !ok || val == "" {
		return "", fmt.Errorf("namespace %q: missing required label %s", ns.Name, key)
	}
	return val, nil
}
