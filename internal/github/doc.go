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

// Package github is the pull-request oracle: it resolves the state of the
// pull request that owns an ephemeral namespace, and posts preservation
// expiry warnings as PR comments.
//
// State resolution rules:
//   - open/closed/merged come straight from the API
//   - a 404 yields StateUnknown, never StateClosed; a namespace whose PR
//     cannot be found is reclaimed only through the age fallback
//   - 403/429 rate limits are retried with capped exponential backoff, then
//     surfaced as a typed *RateLimitedError so the caller can skip the
//     namespace for the cycle without aborting the batch
//
// Authentication:
//
// The client takes a GitHub token from the process environment. The token is
// scrubbed from every error the package returns, including API failure
// payloads that echo request headers.
package github
