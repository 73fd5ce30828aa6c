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
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Inventory lists the cluster's ephemeral-environment namespaces and parses
// them into typed records.
type Inventory struct {
	client    client.Client
	projectID string
}

// New creates an Inventory backed by the given cluster client. If projectID
// is non-empty, listing is restricted to namespaces of that project.
func New(c client.Client, projectID string) *Inventory {
	return &Inventory{
		client:    c,
		projectID: projectID,
	}
}

// List returns all ephemeral namespaces visible to the janitor. Namespaces
// with malformed metadata are skipped with a logged warning so that one bad
// namespace cannot halt reclamation of the rest. Namespaces already
// terminating are skipped as well.
//
// List only returns an error when the namespace listing itself fails, which
// is fatal to the run.
func (i *Inventory) List(ctx context.Context) ([]EphemeralNamespace, error) {
	logger := log.FromContext(ctx)

	selector := client.MatchingLabels{LabelType: TypeEphemeral}
	if i.projectID != "" {
		selector[LabelProjectID] = i.projectID
	}

	var nsList corev1.NamespaceList
	if err := i.client.List(ctx, &nsList, selector); err != nil {
		return nil, fmt.Errorf("failed to list ephemeral namespaces: %w", err)
	}

	records := make([]EphemeralNamespace, 0, len(nsList.Items))
	for idx := range nsList.Items {
		ns := &nsList.Items[idx]

		if ns.Status.Phase == corev1.NamespaceTerminating {
			logger.V(1).Info("Skipping terminating namespace", "namespace", ns.Name)
			continue
		}

		rec, err := Parse(ns)
		if err != nil {
			logger.Info("Skipping namespace with malformed metadata", "namespace", ns.Name, "reason", err.Error())
			continue
		}

		records = append(records, rec)
	}

	return records, nil
}
