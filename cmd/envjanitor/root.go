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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/ephemeral-platform/envjanitor/internal/config"
	"github.com/ephemeral-platform/envjanitor/internal/daemon"
	"github.com/ephemeral-platform/envjanitor/internal/destroyer"
	gh "github.com/ephemeral-platform/envjanitor/internal/github"
	"github.com/ephemeral-platform/envjanitor/internal/inventory"
	"github.com/ephemeral-platform/envjanitor/internal/metrics"
	"github.com/ephemeral-platform/envjanitor/internal/reconcile"
	"github.com/ephemeral-platform/envjanitor/internal/report"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "envjanitor",
		Short: "Reclaims ephemeral per-PR Kubernetes namespaces",
		Long: "envjanitor reconciles the cluster's ephemeral-environment namespaces " +
			"against GitHub pull-request state. Configuration comes from the " +
			"environment; see the repository README for the variable reference.",
		SilenceUsage: true,
	}

	root.AddCommand(newOrphansCommand())
	root.AddCommand(newExpireCommand())
	root.AddCommand(newDaemonCommand())

	return root
}

// runtime bundles the wired components for one invocation.
type runtime struct {
	cfg       *config.Config
	inventory *inventory.Inventory
	destroyer *destroyer.Destroyer
	oracle    gh.Oracle
}

// newRuntime loads configuration and connects to both APIs. A failure here
// is fatal to the run; per-namespace failures later are not.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	restCfg, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	k8s, err := client.New(restCfg, client.Options{Scheme: scheme.Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client: %w", err)
	}

	oracle, err := gh.NewClient(cfg.GitHub.Token, cfg.GitHub.Repository)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:       cfg,
		inventory: inventory.New(k8s, cfg.Janitor.ProjectID),
		destroyer: destroyer.New(k8s, cfg.Janitor.GracePeriod, cfg.Janitor.DryRun),
		oracle:    oracle,
	}, nil
}

func (rt *runtime) orphanRun(ctx context.Context, now time.Time) (*report.RunReport, error) {
	reconciler := &reconcile.OrphanReconciler{
		Inventory:       rt.inventory,
		Oracle:          rt.oracle,
		Destroyer:       rt.destroyer,
		MaxUnmatchedAge: rt.cfg.Janitor.MaxUnmatchedAge,
	}
	return reconciler.Run(ctx, now)
}

func (rt *runtime) expireRun(ctx context.Context, now time.Time) (*report.RunReport, error) {
	expirer := &reconcile.PreservationExpirer{
		Inventory:     rt.inventory,
		Oracle:        rt.oracle,
		Preserver:     rt.destroyer,
		WarningWindow: rt.cfg.Janitor.WarningWindow,
		DryRun:        rt.cfg.Janitor.DryRun,
	}
	return expirer.Run(ctx, now)
}

// runOnce executes a single-shot pass and applies the exit-status policy:
// non-zero only when the per-item failure count exceeds the configured
// threshold, with the full per-item breakdown always logged.
func runOnce(ctx context.Context, run daemon.RunFunc, maxItemFailures int) error {
	logger := log.FromContext(ctx)

	rep, err := run(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	metrics.ObserveRun(rep)
	for _, item := range rep.Errors {
		logger.Info("Per-namespace error", "namespace", item.Namespace, "op", item.Op, "error", item.Err.Error())
	}
	logger.Info("Run complete", "summary", rep.Summary())

	if rep.Failed(maxItemFailures) {
		return fmt.Errorf("run completed with %d per-namespace failures (threshold %d)", len(rep.Errors), maxItemFailures)
	}
	return nil
}

func newOrphansCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "Reclaim namespaces whose pull request is closed or unresolvable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), rt.orphanRun, rt.cfg.Janitor.MaxItemFailures)
		},
	}
}

func newExpireCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire preservation TTLs and post advance warnings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), rt.expireRun, rt.cfg.Janitor.MaxItemFailures)
		},
	}
}

func newDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run both reconcilers on in-process cron schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}

			ctx := ctrl.SetupSignalHandler()
			d := daemon.New(
				rt.cfg.Janitor.HTTPAddr,
				rt.cfg.Janitor.OrphanSchedule,
				rt.cfg.Janitor.ExpireSchedule,
				rt.orphanRun,
				rt.expireRun,
			)
			return d.Start(ctx)
		},
	}
}
