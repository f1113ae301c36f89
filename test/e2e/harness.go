// Package e2e exercises the assay server end to end: real HTTP, real SSE
// streams, scripted analyzers.
package e2e

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/assay-dev/assay/pkg/api"
	"github.com/assay-dev/assay/pkg/config"
	"github.com/assay-dev/assay/pkg/engine"
)

// TestApp boots a complete assay instance for e2e testing.
type TestApp struct {
	Config  *config.Config
	Manager *engine.Manager
	Store   engine.SnapshotStore
	BaseURL string

	t *testing.T
}

type testAppConfig struct {
	cfg      *config.Config
	analyzer engine.Analyzer
	store    engine.SnapshotStore
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithConfig sets a custom config.
func WithConfig(cfg *config.Config) TestAppOption {
	return func(c *testAppConfig) { c.cfg = cfg }
}

// WithAnalyzer sets the analyzer backing the pipeline.
func WithAnalyzer(a engine.Analyzer) TestAppOption {
	return func(c *testAppConfig) { c.analyzer = a }
}

// WithStore sets a snapshot store. Passing the same store to two apps
// simulates a process restart over shared persistence.
func WithStore(store engine.SnapshotStore) TestAppOption {
	return func(c *testAppConfig) { c.store = store }
}

// NewTestApp starts an assay server on a random port and tears it down with
// the test.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	c := &testAppConfig{
		cfg:      FastConfig(),
		analyzer: NewScriptedAnalyzer(),
	}
	for _, opt := range opts {
		opt(c)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := engine.NewManager(c.analyzer, c.cfg, c.store, logger)
	server := api.NewServer(manager, c.cfg, logger)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &TestApp{
		Config:  c.cfg,
		Manager: manager,
		Store:   c.store,
		BaseURL: ts.URL,
		t:       t,
	}
}

// FastConfig returns defaults tightened for tests: short retry delays, small
// stage timeouts, stateless resume.
func FastConfig() *config.Config {
	cfg := config.Defaults()
	cfg.ResumeMode = config.ResumeModeStateless
	cfg.Retry.InitialDelay = 5 * time.Millisecond
	cfg.Retry.MaxDelay = 20 * time.Millisecond
	cfg.Pipeline.OverallTimeout = 10 * time.Second
	cfg.Pipeline.Stages.Screening.Timeout = 2 * time.Second
	cfg.Pipeline.Stages.Dimensions.Timeout = 2 * time.Second
	cfg.Pipeline.Stages.Verdict.Timeout = 2 * time.Second
	cfg.Pipeline.Stages.Secondary.Timeout = 2 * time.Second
	cfg.Pipeline.Stages.Synthesis.Timeout = 2 * time.Second
	return cfg
}
