package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lunara/reportmesh/agent"
	"github.com/lunara/reportmesh/artifact"
	"github.com/lunara/reportmesh/artifact/s3"
	"github.com/lunara/reportmesh/code"
	"github.com/lunara/reportmesh/code/local"
	"github.com/lunara/reportmesh/config"
	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/logging"
	"github.com/lunara/reportmesh/model"
	"github.com/lunara/reportmesh/model/anthropic"
	"github.com/lunara/reportmesh/model/gemini"
	"github.com/lunara/reportmesh/model/openai"
	"github.com/lunara/reportmesh/observability"
	"github.com/lunara/reportmesh/report"
	"github.com/lunara/reportmesh/runner"
	"github.com/lunara/reportmesh/sqlstore"
)

// app holds the wired components shared by serve and generate.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	store    *sqlstore.Store
	engine   *report.Engine
	metrics  *observability.Metrics
	registry *prometheus.Registry
	shutdown func(context.Context) error
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if path == "" {
		cfg = config.FromEnv()
	} else if cfg, err = config.Load(path); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg config.LogConfig) logging.Logger {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, using info\n", err)
	}

	return logging.NewSlogLogger(level, cfg.Format, cfg.AddSource)
}

func openStore(ctx context.Context, cfg *config.Config) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return store, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg.Log)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	artifacts, err := newArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	root, err := newTeam(ctx, cfg.Models)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var executor code.Executor
	if cfg.Runtime.Code.Enabled {
		executor = local.New(func(o *local.Options) {
			o.Command = cfg.Runtime.Code.Command
			o.Timeout = cfg.Runtime.Code.Timeout
			o.MaxOutputBytes = cfg.Runtime.Code.MaxOutputBytes
			o.Logger = logger
		})
	}

	rt := runner.New(root, func(o *runner.Options) {
		o.AppName = cfg.App.Name
		o.MaxModelCalls = cfg.Runtime.MaxModelCalls
		o.SessionStore = store.Sessions()
		o.ArtifactStore = artifacts
		o.CodeExecutor = executor
		o.Logger = logger
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.App.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})

	engine := report.NewEngine(rt, artifacts, store.Datasets(), func(o *report.Options) {
		o.MaxConcurrentTurns = cfg.Engine.MaxConcurrentTurns
		if cfg.Engine.OutputBufferSize > 0 {
			o.OutputBufferSize = cfg.Engine.OutputBufferSize
		}

		o.Logger = logger
		o.Metrics = metrics
		o.Tracer = tracer
		o.Reconciler = append(o.Reconciler, func(r *report.ReconcilerOptions) {
			r.MaxPendingTitles = cfg.Reconciler.MaxPendingTitles
			r.MaxUnassignedImages = cfg.Reconciler.MaxUnassignedImages
			r.PendingTitleTTL = cfg.Reconciler.PendingTitleTTLTurns
		})
	})

	logger.Info("reportmesh.app.ready",
		"database", cfg.Database.Path,
		"artifacts", cfg.Artifacts.Backend,
		"root_model", cfg.Models.Root.Provider+"/"+cfg.Models.Root.Model,
		"code_executor", cfg.Runtime.Code.Enabled,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		engine:   engine,
		metrics:  metrics,
		registry: registry,
		shutdown: shutdown,
	}, nil
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.shutdown(ctx), a.store.Close())
}

func newArtifactStore(ctx context.Context, cfg config.ArtifactsConfig) (core.ArtifactStore, error) {
	switch cfg.Backend {
	case config.BackendS3:
		store, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 artifact store: %w", err)
		}

		return store, nil
	default:
		return artifact.NewInMemoryStore(), nil
	}
}

func newTeam(ctx context.Context, cfg config.ModelsConfig) (*agent.Agent, error) {
	root, err := newModel(ctx, cfg.Root, cfg.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("root model: %w", err)
	}

	models := agent.TeamModels{Root: root}

	if cfg.DataTools.Provider != "" {
		if models.DataTools, err = newModel(ctx, cfg.DataTools, cfg.APIKeys); err != nil {
			return nil, fmt.Errorf("data_tools model: %w", err)
		}
	}

	if cfg.CodeExecutor.Provider != "" {
		if models.CodeExecutor, err = newModel(ctx, cfg.CodeExecutor, cfg.APIKeys); err != nil {
			return nil, fmt.Errorf("code_executor model: %w", err)
		}
	}

	return agent.NewReportTeam(models)
}

func newModel(ctx context.Context, mc config.ModelConfig, keys config.APIKeys) (model.Model, error) {
	switch mc.Provider {
	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			if mc.Model != "" {
				o.Model = mc.Model
			}

			o.APIKey = keys.Google
			o.Temperature = float32(mc.Temperature)
		})
		if err != nil {
			return nil, err
		}

		return m, nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if mc.Model != "" {
				o.Model = mc.Model
			}

			o.APIKey = keys.OpenAI
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Model != "" {
				o.Model = anthropicsdk.Model(mc.Model)
			}

			o.APIKey = keys.Anthropic
			o.Temperature = mc.Temperature
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", mc.Provider)
	}
}
