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

// Package config loads janitor configuration from the process environment.
// The scheduler (a CronJob in production) supplies everything through
// environment variables; the GitHub token in particular must never appear in
// argv.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration for one janitor invocation.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Janitor JanitorConfig `mapstructure:"janitor"`
}

// GitHubConfig holds API access settings.
type GitHubConfig struct {
	// Token is the bearer token, from GITHUB_TOKEN.
	Token string `mapstructure:"token"`
	// Repository is the "owner/repo" the ephemeral environments belong to.
	Repository string `mapstructure:"repository"`
}

// JanitorConfig holds reclamation policy settings.
type JanitorConfig struct {
	// ProjectID optionally restricts the run to one project's namespaces.
	ProjectID string `mapstructure:"project_id"`
	// MaxUnmatchedAge is the age past which a namespace with an
	// unresolvable PR is reclaimed.
	MaxUnmatchedAge time.Duration `mapstructure:"max_unmatched_age"`
	// GracePeriod bounds the wait on a graceful namespace delete before
	// finalizer-strip escalation.
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// WarningWindow is how far ahead of preserve-expiry the warning comment
	// is posted.
	WarningWindow time.Duration `mapstructure:"warning_window"`
	// DryRun logs intended mutations without performing them.
	DryRun bool `mapstructure:"dry_run"`
	// MaxItemFailures is the per-item failure count above which the process
	// exits non-zero. The per-item breakdown is always logged.
	MaxItemFailures int `mapstructure:"max_item_failures"`
	// HTTPAddr is the daemon-mode listen address for /metrics and /healthz.
	HTTPAddr string `mapstructure:"http_addr"`
	// OrphanSchedule is the daemon-mode cron spec for the orphan reconciler.
	OrphanSchedule string `mapstructure:"orphan_schedule"`
	// ExpireSchedule is the daemon-mode cron spec for the expirer.
	ExpireSchedule string `mapstructure:"expire_schedule"`
}

// Load reads configuration from the environment using viper with typed
// defaults and validation.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("janitor.max_unmatched_age", 48*time.Hour)
	v.SetDefault("janitor.grace_period", 240*time.Second)
	v.SetDefault("janitor.warning_window", 24*time.Hour)
	v.SetDefault("janitor.dry_run", false)
	v.SetDefault("janitor.max_item_failures", 0)
	v.SetDefault("janitor.http_addr", ":8080")
	v.SetDefault("janitor.orphan_schedule", "0 */6 * * *")
	v.SetDefault("janitor.expire_schedule", "@hourly")
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"github.token",
		"github.repository",
		"janitor.project_id",
		"janitor.max_unmatched_age",
		"janitor.grace_period",
		"janitor.warning_window",
		"janitor.dry_run",
		"janitor.max_item_failures",
		"janitor.http_addr",
		"janitor.orphan_schedule",
		"janitor.expire_schedule",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// Validate checks the loaded configuration for coherence.
func (c *Config) Validate() error {
	if c.GitHub.Repository == "" {
		return fmt.Errorf("GITHUB_REPOSITORY is required")
	}
	if !strings.Contains(c.GitHub.Repository, "/") {
		return fmt.Errorf("GITHUB_REPOSITORY %q is not in owner/repo form", c.GitHub.Repository)
	}
	if c.GitHub.Token == "" && !c.Janitor.DryRun {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	if c.Janitor.MaxUnmatchedAge <= 0 {
		return fmt.Errorf("JANITOR_MAX_UNMATCHED_AGE must be positive, got %s", c.Janitor.MaxUnmatchedAge)
	}
	if c.Janitor.GracePeriod <= 0 {
		return fmt.Errorf("JANITOR_GRACE_PERIOD must be positive, got %s", c.Janitor.GracePeriod)
	}
	if c.Janitor.WarningWindow <= 0 {
		return fmt.Errorf("JANITOR_WARNING_WINDOW must be positive, got %s", c.Janitor.WarningWindow)
	}
	if c.Janitor.MaxItemFailures < 0 {
		return fmt.Errorf("JANITOR_MAX_ITEM_FAILURES must not be negative, got %d", c.Janitor.MaxItemFailures)
	}
	return nil
}
