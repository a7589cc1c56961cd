// Package fetcher runs the external fetch program. The program's only contract
// with the job is: read the credential from the environment, write result files
// under the output directory, exit non-zero on failure.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlwx/fetchpub/internal/config"
	"github.com/mlwx/fetchpub/internal/logfields"
)

// FetchError reports a fetch program failure with its exit code.
type FetchError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch program %q failed (exit %d): %v", e.Command, e.ExitCode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrNoOutput is returned when the fetch program exits zero but wrote nothing.
var ErrNoOutput = errors.New("fetch program produced no output files")

// Runner executes the setup and fetch commands inside the repository worktree.
type Runner struct {
	cfg      config.FetchConfig
	repoPath string
}

// NewRunner creates a runner rooted at the repository worktree.
func NewRunner(cfg config.FetchConfig, repoPath string) *Runner {
	return &Runner{cfg: cfg, repoPath: repoPath}
}

// InstallDeps runs the configured setup commands in order. The first failure
// aborts; per the run contract nothing is fetched after a setup failure.
func (r *Runner) InstallDeps(ctx context.Context) error {
	for _, argv := range r.cfg.Setup {
		slog.Info("Running setup command", logfields.Command(strings.Join(argv, " ")))
		if err := r.runCommand(ctx, argv, nil); err != nil {
			return fmt.Errorf("setup command %q: %w", argv[0], err)
		}
	}
	return nil
}

// Fetch runs the fetch program with the credential injected via environment and
// verifies that the output directory is non-empty afterwards. The credential
// never appears in the argument list and is scrubbed from logged output.
func (r *Runner) Fetch(ctx context.Context) error {
	credential := os.Getenv(r.cfg.CredentialEnv)
	if credential == "" {
		return fmt.Errorf("credential environment variable %s is not set", r.cfg.CredentialEnv)
	}

	timeout, err := r.cfg.FetchTimeout()
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	slog.Info("Running fetch program", logfields.Command(r.cfg.Command[0]))

	env := append(os.Environ(), r.cfg.CredentialEnv+"="+credential)
	if err := r.runCommand(ctx, r.cfg.Command, env); err != nil {
		return err
	}

	slog.Info("Fetch program finished",
		logfields.Command(r.cfg.Command[0]),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))

	return r.verifyOutput()
}

// OutputPath is the absolute path of the fetch output directory.
func (r *Runner) OutputPath() string {
	return filepath.Join(r.repoPath, r.cfg.OutputDir)
}

func (r *Runner) runCommand(ctx context.Context, argv []string, env []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.workDir()
	if env != nil {
		cmd.Env = env
	}

	scrub := newScrubWriter(os.Getenv(r.cfg.CredentialEnv))
	cmd.Stdout = scrub
	cmd.Stderr = scrub

	err := cmd.Run()
	scrub.Flush()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("command %q: %w", argv[0], ctx.Err())
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &FetchError{Command: argv[0], ExitCode: exitCode, Err: err}
}

func (r *Runner) workDir() string {
	if r.cfg.WorkDir == "" {
		return r.repoPath
	}
	if filepath.IsAbs(r.cfg.WorkDir) {
		return r.cfg.WorkDir
	}
	return filepath.Join(r.repoPath, r.cfg.WorkDir)
}

func (r *Runner) verifyOutput() error {
	entries, err := os.ReadDir(r.OutputPath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s missing", ErrNoOutput, r.cfg.OutputDir)
		}
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrNoOutput, r.cfg.OutputDir)
	}
	slog.Debug("Fetch output verified", logfields.Path(r.OutputPath()), slog.Int("files", len(entries)))
	return nil
}
