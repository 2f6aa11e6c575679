package orchestrate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/crawler"
	"campus-crawler/pkg/models"
	"campus-crawler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testAppConfig(t *testing.T, baseURL string) *config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.OutputFile = filepath.Join(t.TempDir(), "data.json")
	cfg.EnableMetadataYAML = false
	cfg.StateDir = t.TempDir()
	return &cfg
}

// blockingFetcher serves two pages but holds every fetch until release is closed.
type blockingFetcher struct {
	base    string
	started chan struct{}
	release chan struct{}
}

func newBlockingFetcher(base string) *blockingFetcher {
	return &blockingFetcher{base: base, started: make(chan struct{}, 100), release: make(chan struct{})}
}

func (b *blockingFetcher) Fetch(ctx context.Context, pageURL string) models.FetchResult {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return models.FetchFailed(pageURL, 0, ctx.Err())
	}
	if pageURL == b.base {
		return models.FetchOk(pageURL, pageURL, 200, []byte(`<a href="/about">About</a>`))
	}
	return models.FetchOk(pageURL, pageURL, 200, []byte(`<body>About the college</body>`))
}

func TestRun_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/" {
			fmt.Fprint(w, `<a href="/about">About</a>`)
			return
		}
		fmt.Fprint(w, `<body>About the college</body>`)
	}))
	defer server.Close()

	cfg := testAppConfig(t, server.URL)
	o, err := NewOrchestrator(cfg, testLogger())
	require.NoError(t, err)
	defer o.Close()

	assert.Nil(t, o.LastResult())

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.TotalRoutes)

	last := o.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, res.RunID, last.RunID)

	_, active := o.Progress()
	assert.False(t, active)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	cfg := testAppConfig(t, "https://example.test")
	fetcher := newBlockingFetcher("https://example.test")
	o := NewOrchestratorWithDeps(cfg, crawler.Deps{Fetcher: fetcher}, testLogger())
	defer o.Close()

	done := make(chan models.RunResult, 1)
	go func() {
		res, err := o.Run(context.Background())
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case <-fetcher.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started fetching")
	}

	progress, active := o.Progress()
	require.True(t, active)
	assert.Equal(t, models.RunStateDiscovering, progress.State)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRunInProgress)
	assert.Contains(t, err.Error(), progress.RunID)

	close(fetcher.release)
	select {
	case res := <-done:
		assert.True(t, res.Success, res.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}

	// The slot is free again.
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
}

func TestCancel(t *testing.T) {
	cfg := testAppConfig(t, "https://example.test")
	fetcher := newBlockingFetcher("https://example.test")
	o := NewOrchestratorWithDeps(cfg, crawler.Deps{Fetcher: fetcher}, testLogger())
	defer o.Close()

	done := make(chan models.RunResult, 1)
	go func() {
		res, _ := o.Run(context.Background())
		done <- res
	}()
	<-fetcher.started
	o.Cancel()

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testAppConfig(t, "https://example.test")
	cfg.DisallowedPathPatterns = []string{"(["}
	o := NewOrchestratorWithDeps(cfg, crawler.Deps{}, testLogger())
	defer o.Close()

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)

	// A failed start does not hold the slot.
	_, active := o.Progress()
	assert.False(t, active)
}

func TestLastResult_FromStateStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	cfg := testAppConfig(t, server.URL)
	cfg.EnableStateStore = true
	cfg.MaxRetries = 0

	o1, err := NewOrchestrator(cfg, testLogger())
	require.NoError(t, err)
	res, err := o1.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NoError(t, o1.Close())

	o2, err := NewOrchestrator(cfg, testLogger())
	require.NoError(t, err)
	defer o2.Close()

	last := o2.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, res.RunID, last.RunID)
	assert.False(t, last.Success)
	assert.Equal(t, models.RunStateFailed, last.State)
}

func TestSiteKey(t *testing.T) {
	assert.Equal(t, "coek.dypgroup.edu.in", siteKey(&config.AppConfig{BaseURL: "https://coek.dypgroup.edu.in"}))
	assert.Equal(t, "site", siteKey(&config.AppConfig{BaseURL: ""}))
}
