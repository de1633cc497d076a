package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harun/websurfer/internal/config"
	"github.com/harun/websurfer/internal/logger"
	"github.com/harun/websurfer/internal/observability"
	"github.com/harun/websurfer/internal/tracing"
	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/browser"
	"github.com/harun/websurfer/pkg/cache"
	"github.com/harun/websurfer/pkg/surfer"
	"github.com/rs/zerolog"
)

const serviceName = "websurfer"

// app owns everything a command needs for its lifetime
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	logger  zerolog.Logger
	cache   cache.Cache
	fetcher *browser.RodFetcher
	session *browser.TextBrowser
	surfer  *surfer.Surfer
	metrics *http.Server
}

type appOptions struct {
	withCache  bool
	withSurfer bool
}

// providerFactory is replaced in tests to keep commands offline
var providerFactory agent.ProviderCreator

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// API keys are checked by the providers on first use
	v := config.NewValidator()
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := v.ValidateEndpoint("search url", cfg.Search.SearXNGURL, "http", "https"); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log, logger: log.Component("cli")}

	if err := tracing.InitOpenTelemetry(serviceName, cfg.Tracing.SampleRatio); err != nil {
		a.logger.Warn().Err(err).Msg("Tracing disabled")
	}
	if cfg.Logging.AuditLog != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditLog); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}
	observability.EnsureRegistered()
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}

	if opts.withCache && cfg.Cache.Enabled {
		selector := cache.NewSelector(cache.WithSelectorLogger(log.Component("cache")))
		c, err := selector.Select(ctx, cfg.Cache.Params())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		a.cache = cache.Instrument(c)
	}

	if opts.withSurfer {
		if err := a.buildSurfer(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) buildSurfer(ctx context.Context) error {
	cfg := a.cfg

	a.fetcher = browser.NewRodFetcher(cfg.Chrome)
	searchTimeout := time.Duration(cfg.Search.Timeout) * time.Second
	session, err := browser.New(ctx, cfg.Browser,
		browser.WithFetcher(a.fetcher),
		browser.WithSearchEngine(browser.NewSearXNGClient(cfg.Search.SearXNGURL, searchTimeout)),
		browser.WithLogger(a.log.Component("browser")),
	)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	a.session = session

	llm := cfg.LLM
	sc := surfer.Config{
		Name:               cfg.Surfer.Name,
		LLM:                &llm,
		Summarizer:         cfg.Summarizer,
		SummarizerDisabled: cfg.Surfer.SummarizerDisabled,
		PreferredModels:    cfg.Surfer.PreferredModels,
		TokenLimit:         cfg.Surfer.TokenLimit,
		TokenHeadroom:      cfg.Surfer.TokenHeadroom,
		SystemPrompt:       cfg.Surfer.SystemPrompt,
		ToolTimeout:        time.Duration(cfg.Surfer.ToolTimeout) * time.Second,
		Logger:             a.log.GetZerolog(),
	}
	if a.cache != nil {
		sc.Cache = a.cache
	}

	var surferOpts []surfer.Option
	if providerFactory != nil {
		surferOpts = append(surferOpts, surfer.WithProviderFactory(providerFactory))
	}

	s, err := surfer.New(sc, session, surferOpts...)
	if err != nil {
		return fmt.Errorf("failed to create surfer: %w", err)
	}
	a.surfer = s
	return nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	a.metrics = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.logger.Info().Str("addr", addr).Msg("Serving metrics")
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
		cancel()
	}
	if a.fetcher != nil {
		if err := a.fetcher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close browser")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to flush traces")
	}
	if err := observability.GetAuditLogger().Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close audit log")
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}
