package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for fetchpub.
type Config struct {
	Version  string         `yaml:"version"`
	Repo     RepoConfig     `yaml:"repository"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Lock     LockConfig     `yaml:"lock"`
	Journal  JournalConfig  `yaml:"journal"`
	Notify   NotifyConfig   `yaml:"notify"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RepoConfig describes the repository the job publishes into.
type RepoConfig struct {
	// Path is the local worktree. If it does not contain a repository yet and
	// URL is set, the repository is cloned there on first run.
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
	Remote string `yaml:"remote"`

	// MainlineBranch is where the job's own logic lives; DataBranch is the
	// long-lived branch that accumulates one snapshot commit per run.
	MainlineBranch string `yaml:"mainline_branch"`
	DataBranch     string `yaml:"data_branch"`

	// TokenEnv names the environment variable holding the push token. Only the
	// name is configured; the value stays in the process environment.
	TokenEnv string `yaml:"token_env"`

	AuthorName    string `yaml:"author_name"`
	AuthorEmail   string `yaml:"author_email"`
	CommitMessage string `yaml:"commit_message"`
}

// FetchConfig describes the external fetch program and its contract.
type FetchConfig struct {
	// Setup commands run before the fetch command (interpreter provisioning,
	// dependency install). Any failure aborts the run before fetching.
	Setup [][]string `yaml:"setup"`

	// Command is the fetch program argv. It receives the credential via
	// environment, writes files under OutputDir and exits non-zero on failure.
	Command []string `yaml:"command"`

	WorkDir   string `yaml:"work_dir"`
	OutputDir string `yaml:"output_dir"`

	// CredentialEnv names the environment variable carrying the API key.
	CredentialEnv string `yaml:"credential_env"`

	Timeout string `yaml:"timeout"`
}

// ScheduleConfig selects the daemon trigger cadence. Every and Cron are
// mutually exclusive; Every wins when both are empty after defaulting.
type ScheduleConfig struct {
	Every string `yaml:"every"`
	Cron  string `yaml:"cron"`
}

// LockConfig enables the cross-process run lock. Empty file disables it.
type LockConfig struct {
	File string `yaml:"file"`
}

// JournalConfig locates the run journal database. Empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig enables publishing run events to NATS.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// AdminConfig configures the daemon's admin HTTP listener.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FetchTimeout parses the fetch timeout. Zero means no timeout.
func (f FetchConfig) FetchTimeout() (time.Duration, error) {
	if f.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch timeout %q: %w", f.Timeout, err)
	}
	return d, nil
}

// Interval parses the schedule interval. Only valid when Every is set.
func (s ScheduleConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(s.Every)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule interval %q: %w", s.Every, err)
	}
	return d, nil
}
