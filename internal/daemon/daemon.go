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

// Package daemon runs both reconcilers on in-process cron schedules for
// deployments that cannot use CronJobs. Each scheduled invocation is the
// same single-shot pass the CLI subcommands run; the daemon adds only the
// trigger, a /metrics endpoint, and a health check.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ephemeral-platform/envjanitor/internal/metrics"
	"github.com/ephemeral-platform/envjanitor/internal/report"
)

// RunFunc is one single-shot reconciler pass.
type RunFunc func(ctx context.Context, now time.Time) (*report.RunReport, error)

// Daemon schedules the orphan reconciler and the preservation expirer and
// serves metrics.
type Daemon struct {
	addr           string
	orphanSchedule string
	expireSchedule string
	orphans        RunFunc
	expire         RunFunc
	server         *http.Server
}

// New creates a Daemon. The schedules are standard 5-field cron specs (or
// descriptors like "@hourly").
func New(addr, orphanSchedule, expireSchedule string, orphans, expire RunFunc) *Daemon {
	return &Daemon{
		addr:           addr,
		orphanSchedule: orphanSchedule,
		expireSchedule: expireSchedule,
		orphans:        orphans,
		expire:         expire,
	}
}

// Start runs the cron scheduler and HTTP endpoints until the context is
// canceled.
func (d *Daemon) Start(ctx context.Context) error {
	logger := log.FromContext(ctx)

	c := cron.New()
	if _, err := c.AddFunc(d.orphanSchedule, d.scheduled(ctx, "orphans", d.orphans)); err != nil {
		return fmt.Errorf("invalid orphan schedule %q: %w", d.orphanSchedule, err)
	}
	if _, err := c.AddFunc(d.expireSchedule, d.scheduled(ctx, "expire", d.expire)); err != nil {
		return fmt.Errorf("invalid expire schedule %q: %w", d.expireSchedule, err)
	}
	c.Start()
	defer c.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	d.server = &http.Server{
		Addr:    d.addr,
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting janitor daemon", "addr", d.addr,
			"orphanSchedule", d.orphanSchedule, "expireSchedule", d.expireSchedule)
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return d.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	log.Log.Info("Shutting down janitor daemon")
	return d.server.Shutdown(ctx)
}

// scheduled wraps one pass with logging and metrics. A failed pass is
// reported and the daemon continues to the next tick.
func (d *Daemon) scheduled(ctx context.Context, job string, run RunFunc) func() {
	return func() {
		logger := log.FromContext(ctx).WithValues("job", job)

		rep, err := run(ctx, time.Now().UTC())
		if err != nil {
			logger.Error(err, "Scheduled run failed")
			return
		}

		metrics.ObserveRun(rep)
		for _, item := range rep.Errors {
			logger.Info("Per-namespace error", "namespace", item.Namespace, "op", item.Op, "error", item.Err.Error())
		}
	}
}
