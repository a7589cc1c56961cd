package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads, expands and validates a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env/.env.local if present; existing process env wins.
	for _, envPath := range []string{".env", ".env.local"} {
		if err := godotenv.Load(envPath); err == nil {
			fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
			break
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Version != "1.0" {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.0)", cfg.Version)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values after unmarshal so canonical values drive validation.
func applyDefaults(cfg *Config) {
	if cfg.Repo.Remote == "" {
		cfg.Repo.Remote = "origin"
	}
	if cfg.Repo.MainlineBranch == "" {
		cfg.Repo.MainlineBranch = "main"
	}
	if cfg.Repo.DataBranch == "" {
		cfg.Repo.DataBranch = "data"
	}
	if cfg.Repo.TokenEnv == "" {
		cfg.Repo.TokenEnv = "GITHUB_TOKEN"
	}
	if cfg.Repo.CommitMessage == "" {
		cfg.Repo.CommitMessage = "Update data snapshot"
	}
	if cfg.Fetch.OutputDir == "" {
		cfg.Fetch.OutputDir = "now_data_github"
	}
	if cfg.Fetch.CredentialEnv == "" {
		cfg.Fetch.CredentialEnv = "CWB_API_KEY"
	}
	if cfg.Fetch.Timeout == "" {
		cfg.Fetch.Timeout = "10m"
	}
	if cfg.Schedule.Every == "" && cfg.Schedule.Cron == "" {
		cfg.Schedule.Every = "1h"
	}
	if cfg.Admin.Enabled && cfg.Admin.Addr == "" {
		cfg.Admin.Addr = ":8085"
	}
	if cfg.Notify.Enabled {
		if cfg.Notify.Subject == "" {
			cfg.Notify.Subject = "fetchpub.runs"
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Repo.Path == "" {
		return fmt.Errorf("repository.path is required")
	}
	if cfg.Repo.MainlineBranch == cfg.Repo.DataBranch {
		return fmt.Errorf("repository.data_branch must differ from repository.mainline_branch")
	}
	if cfg.Repo.AuthorName == "" || cfg.Repo.AuthorEmail == "" {
		return fmt.Errorf("repository.author_name and repository.author_email are required")
	}
	if len(cfg.Fetch.Command) == 0 {
		return fmt.Errorf("fetch.command is required")
	}
	for i, setup := range cfg.Fetch.Setup {
		if len(setup) == 0 {
			return fmt.Errorf("fetch.setup[%d] is empty", i)
		}
	}
	if filepath.IsAbs(cfg.Fetch.OutputDir) || strings.HasPrefix(cfg.Fetch.OutputDir, "..") {
		return fmt.Errorf("fetch.output_dir must be a path inside the repository: %s", cfg.Fetch.OutputDir)
	}
	if _, err := cfg.Fetch.FetchTimeout(); err != nil {
		return err
	}
	if cfg.Schedule.Every != "" && cfg.Schedule.Cron != "" {
		return fmt.Errorf("schedule.every and schedule.cron are mutually exclusive")
	}
	if cfg.Schedule.Every != "" {
		if _, err := cfg.Schedule.Interval(); err != nil {
			return err
		}
	}
	if cfg.Notify.Enabled && cfg.Notify.NATSURL == "" {
		return fmt.Errorf("notify.nats_url is required when notify is enabled")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported logging.level: %s", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported logging.format: %s", cfg.Logging.Format)
	}
	return nil
}
