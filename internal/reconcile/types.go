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

	"github.com/ephemeral-platform/envjanitor/internal/destroyer"
	"github.com/ephemeral-platform/envjanitor/internal/inventory"
)

// Inventory lists the cluster's ephemeral namespaces.
type Inventory interface {
	List(ctx context.Context) ([]inventory.EphemeralNamespace, error)
}

// Destroyer executes the deletion protocol for one namespace.
type Destroyer interface {
	Destroy(ctx context.Context, name string) (destroyer.DestroyResult, error)
}

// Commenter posts a comment on a pull request conversation.
type Commenter interface {
	PostComment(ctx context.Context, number int, body string) error
}

// Preserver mutates the preserve markers on a namespace.
type Preserver interface {
	ClearPreserve(ctx context.Context, name string) error
	MarkWarningSent(ctx context.Context, name string, when time.Time) error
}
