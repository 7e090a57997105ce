package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shpitdev/bizcard-pipeline/internal/config"
	"github.com/shpitdev/bizcard-pipeline/internal/model"
	"github.com/shpitdev/bizcard-pipeline/internal/model/gemini"
	"github.com/shpitdev/bizcard-pipeline/internal/model/openai"
	"github.com/shpitdev/bizcard-pipeline/internal/pipeline"
	"github.com/shpitdev/bizcard-pipeline/internal/redact"
	"github.com/shpitdev/bizcard-pipeline/internal/search"
	"github.com/shpitdev/bizcard-pipeline/internal/server"
	"github.com/shpitdev/bizcard-pipeline/internal/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("bizcardd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var addr string
	var configPath string
	var pretty bool
	fs.StringVar(&addr, "addr", "", "Listen address, overrides config (env: PORT)")
	fs.StringVar(&configPath, "config", "", "Optional YAML config file path")
	fs.BoolVar(&pretty, "pretty", false, "Human-readable log output instead of JSON")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}

	logger := newLogger(pretty)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Str("error", redact.Secrets(err.Error())).Msg("config.invalid")
		return 2
	}
	if addr != "" {
		cfg.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		logger.Error().Str("error", redact.Secrets(err.Error())).Msg("model.init_failed")
		return 2
	}

	var searcher search.Searcher = search.Disabled{}
	if cfg.SearchEnabled() {
		sc, err := search.NewClient(search.Config{
			APIKey:       cfg.SearchAPIKey,
			CSEID:        cfg.SearchCSEID,
			RateLimitRPS: cfg.SearchRateRPS,
		})
		if err != nil {
			logger.Error().Str("error", redact.Secrets(err.Error())).Msg("search.init_failed")
			return 2
		}
		searcher = sc
	} else {
		logger.Warn().Msg("search.disabled")
	}

	submitter, err := sink.NewClient(sink.Config{URL: cfg.SinkURL})
	if err != nil {
		logger.Error().Str("error", redact.Secrets(err.Error())).Msg("sink.init_failed")
		return 2
	}

	runner := pipeline.NewRunner(gen, searcher, submitter, pipeline.Options{
		SearchResults: cfg.SearchResults,
	})
	srv := server.New(runner, logger, server.Options{RequestTimeout: cfg.RequestTimeout})

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("provider", string(cfg.Provider)).
			Str("model", cfg.Model).
			Bool("search", cfg.SearchEnabled()).
			Msg("server.start")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("server.shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Str("error", err.Error()).Msg("server.shutdown_failed")
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Str("error", err.Error()).Msg("server.failed")
			return 1
		}
		return 0
	}
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func newGenerator(ctx context.Context, cfg config.Config) (model.Generator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.ModelBaseURL,
		})
	case config.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.ModelBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", string(cfg.Provider))
	}
}
