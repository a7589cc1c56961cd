package gitops

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/mlwx/fetchpub/internal/config"
	"github.com/mlwx/fetchpub/internal/logfields"
)

// Client handles Git operations on the publish repository.
type Client struct {
	cfg  config.RepoConfig
	repo *git.Repository
}

// Open opens the repository at the configured path, cloning it from the
// configured URL when the path does not hold a repository yet.
func Open(cfg config.RepoConfig) (*Client, error) {
	repo, err := git.PlainOpen(cfg.Path)
	if err == nil {
		return &Client{cfg: cfg, repo: repo}, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repository %s: %w", cfg.Path, err)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("no repository at %s and no repository.url configured", cfg.Path)
	}

	slog.Info("Cloning repository", logfields.Path(cfg.Path), slog.String("url", cfg.URL))
	c := &Client{cfg: cfg}
	repo, err = git.PlainClone(cfg.Path, false, &git.CloneOptions{
		URL:        cfg.URL,
		RemoteName: cfg.Remote,
		Auth:       c.auth(),
	})
	if err != nil {
		return nil, fmt.Errorf("clone repository %s: %w", cfg.URL, err)
	}
	c.repo = repo
	return c, nil
}

// Path is the worktree path.
func (c *Client) Path() string { return c.cfg.Path }

// Head returns the current HEAD commit hash.
func (c *Client) Head() (string, error) {
	ref, err := c.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// auth builds token auth for the remote from the configured environment
// variable. A missing token means anonymous access (local or public remotes).
func (c *Client) auth() transport.AuthMethod {
	token := os.Getenv(c.cfg.TokenEnv)
	if token == "" {
		return nil
	}
	// GitHub/GitLab accept the token as basic-auth password.
	return &http.BasicAuth{Username: "token", Password: token}
}

func (c *Client) branchRef(branch string) plumbing.ReferenceName {
	return plumbing.NewBranchReferenceName(branch)
}

func (c *Client) remoteRef(branch string) plumbing.ReferenceName {
	return plumbing.NewRemoteReferenceName(c.cfg.Remote, branch)
}
