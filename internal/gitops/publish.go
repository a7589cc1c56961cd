package gitops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/mlwx/fetchpub/internal/logfields"
)

// StashOutput moves the fetch output out of the worktree and returns its stash
// location. The fetch runs while mainline is checked out, so the output sits
// untracked in the worktree; checking out the data branch would rewrite those
// paths to the previous snapshot. Stashing first keeps the fresh data safe
// across the branch switch and merge. An absent output directory returns "".
func (c *Client) StashOutput(outputDir string) (string, error) {
	src := filepath.Join(c.cfg.Path, outputDir)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", outputDir, err)
	}

	// Sibling of the worktree so the rename never crosses filesystems.
	stashRoot, err := os.MkdirTemp(filepath.Dir(c.cfg.Path), ".fetchpub-stash-")
	if err != nil {
		return "", fmt.Errorf("create stash dir: %w", err)
	}
	dst := filepath.Join(stashRoot, filepath.Base(outputDir))
	if err := os.Rename(src, dst); err != nil {
		_ = os.RemoveAll(stashRoot)
		return "", fmt.Errorf("stash %s: %w", outputDir, err)
	}

	slog.Debug("Fetch output stashed", logfields.Path(dst))
	return dst, nil
}

// RestoreOutput moves a stashed output directory back into the worktree,
// replacing whatever the branch switch and merge left there. Files from the
// previous snapshot that the fetch no longer produces disappear and are staged
// as deletions.
func (c *Client) RestoreOutput(stashPath, outputDir string) error {
	if stashPath == "" {
		return nil
	}
	dst := filepath.Join(c.cfg.Path, outputDir)
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clear %s: %w", outputDir, err)
	}
	if err := os.Rename(stashPath, dst); err != nil {
		return fmt.Errorf("restore %s: %w", outputDir, err)
	}
	_ = os.Remove(filepath.Dir(stashPath))

	slog.Debug("Fetch output restored", logfields.Path(dst))
	return nil
}

// StageOutput stages exactly the output directory and reports whether any
// change was staged. Changes elsewhere in the worktree are never staged by
// this job; mainline content reaches the data branch only through the merge.
func (c *Client) StageOutput(outputDir string) (bool, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("get worktree: %w", err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{Path: outputDir}); err != nil {
		return false, fmt.Errorf("stage %s: %w", outputDir, err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("worktree status: %w", err)
	}

	prefix := strings.TrimSuffix(outputDir, "/") + "/"
	staged := 0
	for path, st := range status {
		if path != outputDir && !strings.HasPrefix(path, prefix) {
			continue
		}
		if st.Staging != git.Unmodified && st.Staging != git.Untracked {
			staged++
		}
	}

	slog.Debug("Output directory staged", logfields.Path(outputDir), slog.Int("changes", staged))
	return staged > 0, nil
}

// CommitSnapshot creates the snapshot commit with the fixed author identity
// and message. Returns ErrNothingToCommit when the staged diff is empty.
func (c *Client) CommitSnapshot() (string, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("get worktree: %w", err)
	}

	sig := &object.Signature{
		Name:  c.cfg.AuthorName,
		Email: c.cfg.AuthorEmail,
		When:  time.Now(),
	}
	hash, err := wt.Commit(c.cfg.CommitMessage, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", ErrNothingToCommit
		}
		return "", fmt.Errorf("commit snapshot: %w", err)
	}

	slog.Info("Snapshot committed",
		logfields.Branch(c.cfg.DataBranch),
		logfields.Commit(hash.String()[:8]))
	return hash.String(), nil
}

// PushDataBranch pushes the data branch to the remote. A remote that is
// already up to date is a no-op; a non-fast-forward rejection maps to
// ErrPushRejected. Repositories without the remote skip the push.
func (c *Client) PushDataBranch(ctx context.Context) error {
	if _, err := c.repo.Remote(c.cfg.Remote); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			slog.Debug("No remote configured, skipping push", slog.String("remote", c.cfg.Remote))
			return nil
		}
		return fmt.Errorf("lookup remote %s: %w", c.cfg.Remote, err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", c.cfg.DataBranch, c.cfg.DataBranch))
	err := c.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: c.cfg.Remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       c.auth(),
	})
	if err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			slog.Debug("Remote already up to date", logfields.Branch(c.cfg.DataBranch))
			return nil
		}
		// go-git reports a rejected ref as a plain "non-fast-forward update" error.
		if strings.Contains(err.Error(), "non-fast-forward") {
			return fmt.Errorf("%w: %v", ErrPushRejected, err)
		}
		return fmt.Errorf("push %s: %w", c.cfg.DataBranch, err)
	}

	slog.Info("Data branch pushed", logfields.Branch(c.cfg.DataBranch))
	return nil
}
