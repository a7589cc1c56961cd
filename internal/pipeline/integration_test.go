package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlwx/fetchpub/internal/config"
	"github.com/mlwx/fetchpub/internal/gitops"
)

// scriptedFetcher stands in for the external crawler: it writes into the
// worktree while mainline is checked out, exactly like the real fetch program.
type scriptedFetcher struct {
	write func() error
}

func (scriptedFetcher) InstallDeps(context.Context) error { return nil }
func (f scriptedFetcher) Fetch(context.Context) error     { return f.write() }

func initPublishRepo(t *testing.T) (string, config.RepoConfig) {
	t.Helper()
	path := t.TempDir()
	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(path, "crawler.py"), []byte("print('fetch')\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("crawler.py")
	require.NoError(t, err)
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()}
	_, err = wt.Commit("initial commit", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	return path, config.RepoConfig{
		Path:           path,
		Remote:         "origin",
		MainlineBranch: "main",
		DataBranch:     "data",
		AuthorName:     "fetchpub",
		AuthorEmail:    "fetchpub@example.com",
		CommitMessage:  "Update data snapshot",
	}
}

// Consecutive runs in one worktree must each publish the output the fetch just
// wrote; the data branch switch must not revert it to the previous snapshot.
func TestConsecutiveRunsPublishFreshData(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	path, repoCfg := initPublishRepo(t)
	client, err := gitops.Open(repoCfg)
	require.NoError(t, err)

	outFile := filepath.Join(path, "now_data_github", "weather.json")
	payload := "v1"
	fetch := scriptedFetcher{write: func() error {
		if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
			return err
		}
		return os.WriteFile(outFile, []byte(payload), 0o644)
	}}

	p := New(client, fetch, "now_data_github")

	committedPayload := func(hash string) string {
		repo, err := git.PlainOpen(path)
		require.NoError(t, err)
		commit, err := repo.CommitObject(plumbing.NewHash(hash))
		require.NoError(t, err)
		tree, err := commit.Tree()
		require.NoError(t, err)
		file, err := tree.File("now_data_github/weather.json")
		require.NoError(t, err)
		content, err := file.Contents()
		require.NoError(t, err)
		return content
	}

	first := p.Run(t.Context(), TriggerSchedule)
	require.Equal(t, OutcomeSuccess, first.Outcome)
	require.NoError(t, first.Err)
	assert.Equal(t, "v1", committedPayload(first.CommitHash))

	payload = "v2"
	second := p.Run(t.Context(), TriggerSchedule)
	require.Equal(t, OutcomeSuccess, second.Outcome, "second run must publish, not report no_change")
	assert.Equal(t, "v2", committedPayload(second.CommitHash))

	// The worktree reflects the latest fetch output after the run.
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// An identical payload is a genuine no-change run.
	third := p.Run(t.Context(), TriggerSchedule)
	assert.Equal(t, OutcomeNoChange, third.Outcome)
	assert.Empty(t, third.CommitHash)
}
