package gitops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/mlwx/fetchpub/internal/logfields"
)

// SyncMainline fetches the remote and forces the local mainline branch to the
// remote tip, so the working copy matches the latest mainline commit at
// trigger time. Repositories without the configured remote (local fixtures)
// fall back to the local branch tip.
func (c *Client) SyncMainline(ctx context.Context) error {
	fetched, err := c.fetchRemote(ctx)
	if err != nil {
		return err
	}

	target, err := c.resolveBranchTip(c.cfg.MainlineBranch, fetched)
	if err != nil {
		return fmt.Errorf("resolve mainline %s: %w", c.cfg.MainlineBranch, err)
	}

	if err := c.checkoutAt(c.cfg.MainlineBranch, target); err != nil {
		return fmt.Errorf("checkout mainline %s: %w", c.cfg.MainlineBranch, err)
	}

	slog.Info("Mainline synced",
		logfields.Branch(c.cfg.MainlineBranch),
		logfields.Commit(target.String()[:8]))
	return nil
}

// SwitchDataBranch checks out the long-lived data branch, creating it when it
// does not exist yet: from the remote data branch when one exists, otherwise
// bootstrapped from the current mainline tip.
func (c *Client) SwitchDataBranch(ctx context.Context) error {
	branch := c.cfg.DataBranch

	if _, err := c.repo.Reference(c.branchRef(branch), true); err == nil {
		wt, wtErr := c.repo.Worktree()
		if wtErr != nil {
			return fmt.Errorf("get worktree: %w", wtErr)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Branch: c.branchRef(branch)}); err != nil {
			return fmt.Errorf("checkout data branch %s: %w", branch, err)
		}
		slog.Debug("Switched to data branch", logfields.Branch(branch))
		return nil
	}

	// No local data branch. Prefer the remote one so history continues.
	start, err := c.repo.Reference(c.remoteRef(branch), true)
	if err != nil {
		head, headErr := c.repo.Head()
		if headErr != nil {
			return fmt.Errorf("bootstrap data branch %s: %w", branch, headErr)
		}
		slog.Info("Creating data branch from mainline", logfields.Branch(branch))
		return c.createBranchAt(branch, head.Hash())
	}

	slog.Info("Creating data branch from remote", logfields.Branch(branch))
	return c.createBranchAt(branch, start.Hash())
}

// fetchRemote updates remote-tracking refs. Returns false when the repository
// has no such remote, which is tolerated for local-only repositories.
func (c *Client) fetchRemote(ctx context.Context) (bool, error) {
	_, err := c.repo.Remote(c.cfg.Remote)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			slog.Debug("No remote configured, skipping fetch", slog.String("remote", c.cfg.Remote))
			return false, nil
		}
		return false, fmt.Errorf("lookup remote %s: %w", c.cfg.Remote, err)
	}

	err = c.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: c.cfg.Remote,
		Auth:       c.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("fetch %s: %w", c.cfg.Remote, err)
	}
	return true, nil
}

// resolveBranchTip picks the remote-tracking tip when the remote was fetched,
// falling back to the local branch.
func (c *Client) resolveBranchTip(branch string, preferRemote bool) (plumbing.Hash, error) {
	if preferRemote {
		if ref, err := c.repo.Reference(c.remoteRef(branch), true); err == nil {
			return ref.Hash(), nil
		}
	}
	ref, err := c.repo.Reference(c.branchRef(branch), true)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// checkoutAt force-checkouts branch and hard-resets it to the target commit.
func (c *Client) checkoutAt(branch string, target plumbing.Hash) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}

	if _, err := c.repo.Reference(c.branchRef(branch), true); err != nil {
		return c.createBranchAt(branch, target)
	}

	if err := wt.Checkout(&git.CheckoutOptions{Branch: c.branchRef(branch), Force: true}); err != nil {
		return err
	}
	return wt.Reset(&git.ResetOptions{Commit: target, Mode: git.HardReset})
}

func (c *Client) createBranchAt(branch string, target plumbing.Hash) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: c.branchRef(branch),
		Hash:   target,
		Create: true,
	})
	if err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}
