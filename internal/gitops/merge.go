package gitops

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/mlwx/fetchpub/internal/logfields"
)

// MergeMainline folds the mainline branch into the currently checked-out data
// branch, bringing in any script/logic updates. Conflicts abort the merge and
// leave the worktree clean for the next trigger.
//
// go-git only implements fast-forward merges and the data branch diverges from
// mainline by design, so this step shells out to the git CLI.
func (c *Client) MergeMainline(ctx context.Context) error {
	gitBin, err := exec.LookPath("git")
	if err != nil {
		return fmt.Errorf("git binary required for merge: %w", err)
	}

	before, err := c.Head()
	if err != nil {
		return err
	}

	out, err := c.runGit(ctx, gitBin, "merge", "--no-edit", c.cfg.MainlineBranch)
	if err != nil {
		if !isMergeConflict(out) {
			// Missing branch, index lock, untracked-overwrite refusal and the
			// like: no merge was started, nothing to abort.
			return fmt.Errorf("merge %s: %s: %w", c.cfg.MainlineBranch, firstLine(out), err)
		}
		// Leave no partial merge state behind.
		if _, abortErr := c.runGit(ctx, gitBin, "merge", "--abort"); abortErr != nil {
			slog.Warn("Failed to abort conflicted merge", logfields.Error(abortErr))
		}
		return fmt.Errorf("%w: %s", ErrMergeConflict, firstLine(out))
	}

	after, err := c.Head()
	if err != nil {
		return err
	}
	if after == before {
		slog.Debug("Data branch already contains mainline", logfields.Branch(c.cfg.DataBranch))
	} else {
		slog.Info("Merged mainline into data branch",
			logfields.Branch(c.cfg.DataBranch),
			logfields.Commit(after[:8]))
	}
	return nil
}

func (c *Client) runGit(ctx context.Context, gitBin string, args ...string) (string, error) {
	full := append([]string{
		"-C", c.cfg.Path,
		"-c", "user.name=" + c.cfg.AuthorName,
		"-c", "user.email=" + c.cfg.AuthorEmail,
	}, args...)

	cmd := exec.CommandContext(ctx, gitBin, full...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		return buf.String(), fmt.Errorf("git %s: %w", args[0], err)
	}
	return buf.String(), nil
}

// isMergeConflict reports whether the merge output describes a content
// conflict, as opposed to a failure that never started a merge.
func isMergeConflict(out string) bool {
	return strings.Contains(out, "CONFLICT") || strings.Contains(out, "Automatic merge failed")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
