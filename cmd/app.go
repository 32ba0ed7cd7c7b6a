package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/mentor-ranker/internal/ai"
	"github.com/spigell/mentor-ranker/internal/ai/gemini"
	"github.com/spigell/mentor-ranker/internal/logger"
	"github.com/spigell/mentor-ranker/internal/matching"
	"github.com/spigell/mentor-ranker/internal/metrics"
	"github.com/spigell/mentor-ranker/internal/ranking"
	"github.com/spigell/mentor-ranker/internal/secrets"
	"github.com/spigell/mentor-ranker/internal/store"
	"github.com/spigell/mentor-ranker/internal/store/file"
	"github.com/spigell/mentor-ranker/internal/store/postgres"
)

// application holds everything the commands share.
type application struct {
	config  *Config
	logger  *zap.Logger
	metrics *metrics.Manager
	store   store.Store
	service *matching.Service
}

func newApplication(ctx context.Context, config *Config, log *zap.Logger) (*application, error) {
	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	m := metrics.NewManager(metrics.WithRuntimeCollectors())

	reasoner, err := newReasoner(ctx, config, log)
	if err != nil {
		return nil, err
	}

	opts := []ranking.Option{
		ranking.WithLogger(log),
		ranking.WithRecorder(m),
		ranking.WithMaxLogLength(config.AI.Gemini.MaxLogLength),
	}
	if reasoner == nil {
		opts = append(opts, ranking.WithHeuristicOnly())
	}

	orchestrator, err := ranking.New(reasoner, opts...)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, config, log)
	if err != nil {
		return nil, err
	}

	service := matching.New(st, st, orchestrator, matching.Config{
		IncludeConnected: config.Ranking.IncludeConnected,
		ExcludeFile:      config.ExcludeFile,
	}, log)

	for _, status := range service.Filters() {
		log.Debug("candidate filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return &application{
		config:  config,
		logger:  log,
		metrics: m,
		store:   st,
		service: service,
	}, nil
}

func (a *application) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
}

// newReasoner returns a nil ranker when ranking must stay heuristic-only.
func newReasoner(ctx context.Context, config *Config, log *zap.Logger) (ai.Ranker, error) {
	if config.Ranking.HeuristicOnly {
		log.Info("reasoning service disabled", zap.String("reason", "heuristic-only mode"))
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("%w: unsupported ai provider: %s", ai.ErrConfiguration, config.AI.Provider)
	}

	cfg := config.AI.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if errors.Is(err, secrets.ErrNotConfigured) && config.Ranking.AllowHeuristicOnly {
		log.Warn("reasoning service disabled",
			zap.String("reason", "gemini api key is not configured"),
			zap.String("hint", "set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key-file"),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w (set GEMINI_API_KEY or enable ranking.allow-heuristic-only)", ai.ErrConfiguration, err)
	}

	reasoningLogger := logger.WithReasoning(log, "gemini", cfg.Model)

	generator, err := gemini.NewGenerator(ctx, gemini.GeneratorConfig{
		APIKey:            apiKey,
		Endpoint:          cfg.Endpoint,
		Model:             cfg.Model,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, reasoningLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewRanker(generator, reasoningLogger, cfg.Timeout, cfg.MaxLogLength), nil
}

// openStore prefers Postgres and falls back to a profiles file.
func openStore(ctx context.Context, config *Config, log *zap.Logger) (store.Store, error) {
	dsn, err := secrets.Load(secrets.Source{
		Name:  "database url",
		Value: config.Database.DSN,
		File:  config.Database.DSNFile,
		Env:   "DATABASE_URL",
	})
	switch {
	case err == nil:
		st, err := postgres.Connect(ctx, postgres.Config{
			DSN:            dsn,
			MaxConns:       config.Database.MaxConns,
			ConnectTimeout: config.Database.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		logger.WithStore(log, "postgres").Info("store opened")
		return st, nil
	case !errors.Is(err, secrets.ErrNotConfigured):
		return nil, err
	}

	path := strings.TrimSpace(config.ProfilesFile)
	if path == "" {
		return nil, errors.New("no profile store configured: set DATABASE_URL, database.dsn or profiles-file")
	}

	st, err := file.Load(path)
	if err != nil {
		return nil, err
	}
	logger.WithStore(log, "file").Info("store opened", zap.String("path", path))
	return st, nil
}

// redacted returns a copy of config safe to log.
func redacted(config *Config) Config {
	out := *config
	if config.Database != nil && config.Database.DSN != "" {
		db := *config.Database
		db.DSN = "<redacted>"
		out.Database = &db
	}
	if config.AI != nil && config.AI.Gemini != nil && config.AI.Gemini.APIKey != "" {
		g := *config.AI.Gemini
		g.APIKey = "<redacted>"
		aiCfg := *config.AI
		aiCfg.Gemini = &g
		out.AI = &aiCfg
	}
	return out
}
