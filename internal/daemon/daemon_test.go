package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlwx/fetchpub/internal/config"
	"github.com/mlwx/fetchpub/internal/journal"
	"github.com/mlwx/fetchpub/internal/pipeline"
)

type stubRepo struct {
	changed    bool
	commitHash string
}

func (s *stubRepo) SyncMainline(context.Context) error     { return nil }
func (s *stubRepo) StashOutput(string) (string, error)     { return "", nil }
func (s *stubRepo) RestoreOutput(string, string) error     { return nil }
func (s *stubRepo) SwitchDataBranch(context.Context) error { return nil }
func (s *stubRepo) MergeMainline(context.Context) error    { return nil }
func (s *stubRepo) StageOutput(string) (bool, error)       { return s.changed, nil }
func (s *stubRepo) CommitSnapshot() (string, error)        { return s.commitHash, nil }
func (s *stubRepo) PushDataBranch(context.Context) error   { return nil }

type stubFetcher struct {
	// block, when non-nil, holds Fetch until closed.
	block    chan struct{}
	fetchErr error
}

func (s *stubFetcher) InstallDeps(context.Context) error { return nil }

func (s *stubFetcher) Fetch(context.Context) error {
	if s.block != nil {
		<-s.block
	}
	return s.fetchErr
}

type failingStore struct{ journal.NoopStore }

func (failingStore) Recent(context.Context, int) ([]journal.Run, error) {
	return nil, errors.New("database is locked")
}

func testConfig() *config.Config {
	return &config.Config{
		Version: "1.0",
		Repo: config.RepoConfig{
			Path:           "/srv/weather-data",
			MainlineBranch: "main",
			DataBranch:     "data",
			AuthorName:     "Data Bot",
			AuthorEmail:    "bot@example.com",
			CommitMessage:  "Update data snapshot",
		},
		Fetch: config.FetchConfig{
			Command:   []string{"python", "crawler.py"},
			OutputDir: "now_data_github",
		},
		Schedule: config.ScheduleConfig{Every: "1h"},
	}
}

func newTestDaemon(t *testing.T, cfg *config.Config, fetch pipeline.Fetcher, store journal.Store) *Daemon {
	t.Helper()
	repo := &stubRepo{changed: true, commitHash: "abc123def456"}
	pipe := pipeline.New(repo, fetch, cfg.Fetch.OutputDir, pipeline.WithJournal(store))

	d, err := New(cfg, "fetchpub.yaml", pipe, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.scheduler.Stop(context.Background()) })
	return d
}

func TestTriggerRunRejectsConcurrent(t *testing.T) {
	fetch := &stubFetcher{block: make(chan struct{})}
	d := newTestDaemon(t, testConfig(), fetch, journal.NoopStore{})

	type runReply struct {
		res *pipeline.Result
		err error
	}
	done := make(chan runReply, 1)
	go func() {
		res, err := d.TriggerRun(context.Background(), pipeline.TriggerManual)
		done <- runReply{res, err}
	}()

	require.Eventually(t, d.InFlight, 2*time.Second, 10*time.Millisecond)

	_, err := d.TriggerRun(context.Background(), pipeline.TriggerManual)
	assert.ErrorIs(t, err, ErrRunInFlight)

	close(fetch.block)
	reply := <-done
	require.NoError(t, reply.err)
	res := reply.res
	assert.Equal(t, pipeline.OutcomeSuccess, res.Outcome)
	assert.False(t, d.InFlight())
	assert.Same(t, res, d.LastResult())
}

func TestReloadConfigUpdatesSchedule(t *testing.T) {
	d := newTestDaemon(t, testConfig(), &stubFetcher{}, journal.NoopStore{})
	require.NoError(t, d.scheduler.Schedule(d.GetConfig().Schedule))

	newCfg := testConfig()
	newCfg.Schedule.Every = "30m"
	require.NoError(t, d.ReloadConfig(context.Background(), newCfg))
	assert.Equal(t, "30m", d.GetConfig().Schedule.Every)
}

func TestReloadConfigRejectsBadSchedule(t *testing.T) {
	d := newTestDaemon(t, testConfig(), &stubFetcher{}, journal.NoopStore{})

	newCfg := testConfig()
	newCfg.Schedule.Every = "not-a-duration"
	assert.Error(t, d.ReloadConfig(context.Background(), newCfg))
}

func TestHealthChecksBeforeFirstRun(t *testing.T) {
	d := newTestDaemon(t, testConfig(), &stubFetcher{}, journal.NoopStore{})

	health := d.PerformHealthChecks()
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.False(t, health.InFlight)
	require.Len(t, health.Checks, 2)
	assert.Equal(t, "last_run", health.Checks[0].Name)
	assert.Equal(t, "journal", health.Checks[1].Name)
}

func TestHealthChecksDegradedAfterAbortedRun(t *testing.T) {
	fetch := &stubFetcher{fetchErr: errors.New("exit status 1")}
	d := newTestDaemon(t, testConfig(), fetch, journal.NoopStore{})

	res, err := d.TriggerRun(context.Background(), pipeline.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeAborted, res.Outcome)

	health := d.PerformHealthChecks()
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Checks[0].Message, "fetching")
}

func TestHealthChecksUnhealthyJournal(t *testing.T) {
	d := newTestDaemon(t, testConfig(), &stubFetcher{}, failingStore{})

	health := d.PerformHealthChecks()
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
}

func TestRenderStatusPage(t *testing.T) {
	store, err := journal.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	d := newTestDaemon(t, testConfig(), &stubFetcher{}, store)

	res, err := d.TriggerRun(context.Background(), pipeline.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeSuccess, res.Outcome)

	page, err := d.RenderStatusPage(context.Background())
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "<title>fetchpub status</title>")
	assert.Contains(t, html, "success")
	assert.Contains(t, html, shortHash(res.CommitHash))
	assert.Contains(t, html, "<table>")
}

func TestAdminTriggerConflict(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, Addr: "127.0.0.1:0"}
	d := newTestDaemon(t, cfg, &stubFetcher{}, journal.NoopStore{})

	d.inFlight.Store(true)
	defer d.inFlight.Store(false)

	rec := httptest.NewRecorder()
	d.httpServer.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminTriggerAccepted(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, Addr: "127.0.0.1:0"}
	d := newTestDaemon(t, cfg, &stubFetcher{}, journal.NoopStore{})

	rec := httptest.NewRecorder()
	d.httpServer.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// The run is detached from the request; wait for it to land.
	require.Eventually(t, func() bool { return d.LastResult() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, pipeline.OutcomeSuccess, d.LastResult().Outcome)
}

func TestAdminTriggerAdmissionIsSynchronous(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, Addr: "127.0.0.1:0"}
	fetch := &stubFetcher{block: make(chan struct{})}
	d := newTestDaemon(t, cfg, fetch, journal.NoopStore{})

	// The 202 means the run was admitted, so a second request right behind it
	// must see the conflict without any settling delay.
	first := httptest.NewRecorder()
	d.httpServer.srv.Handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.True(t, d.InFlight())

	second := httptest.NewRecorder()
	d.httpServer.srv.Handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	assert.Equal(t, http.StatusConflict, second.Code)

	close(fetch.block)
	require.Eventually(t, func() bool { return d.LastResult() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, pipeline.OutcomeSuccess, d.LastResult().Outcome)
}

func TestAdminRunsEndpoint(t *testing.T) {
	store, err := journal.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, Addr: "127.0.0.1:0"}
	d := newTestDaemon(t, cfg, &stubFetcher{}, store)

	_, err = d.TriggerRun(context.Background(), pipeline.TriggerManual)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.httpServer.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []journal.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].Outcome)
}

func TestAdminHealthEndpointUnhealthy(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, Addr: "127.0.0.1:0"}
	d := newTestDaemon(t, cfg, &stubFetcher{}, failingStore{})

	rec := httptest.NewRecorder()
	d.httpServer.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
}
