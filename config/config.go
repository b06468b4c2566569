// Package config loads the reportmesh YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Models     ModelsConfig     `yaml:"models"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Engine     EngineConfig     `yaml:"engine"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// AppConfig scopes backing sessions and artifacts.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// DefaultUserID is used when a request carries no X-User-ID header.
	DefaultUserID string `yaml:"default_user_id"`
}

// DatabaseConfig points at the SQLite file. An empty path keeps everything
// in memory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ArtifactsConfig selects the artifact store backend.
type ArtifactsConfig struct {
	Backend string   `yaml:"backend"`
	S3      S3Config `yaml:"s3"`
}

// S3Config configures the S3 artifact store.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// ModelsConfig assigns a model per agent role.
type ModelsConfig struct {
	Root         ModelConfig `yaml:"root"`
	DataTools    ModelConfig `yaml:"data_tools"`
	CodeExecutor ModelConfig `yaml:"code_executor"`
	APIKeys      APIKeys     `yaml:"api_keys"`
}

// ModelConfig names a provider and model. An empty provider inherits the
// root role's model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
}

// APIKeys holds vendor credentials.
type APIKeys struct {
	Google    string `yaml:"google"`
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
}

// RuntimeConfig configures the agent runtime.
type RuntimeConfig struct {
	MaxModelCalls int        `yaml:"max_model_calls"`
	Code          CodeConfig `yaml:"code"`
}

// CodeConfig configures the local code executor.
type CodeConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Command        []string      `yaml:"command"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxOutputBytes int           `yaml:"max_output_bytes"`
}

// ReconcilerConfig bounds the chart pairing queues.
type ReconcilerConfig struct {
	MaxPendingTitles    int `yaml:"max_pending_titles"`
	MaxUnassignedImages int `yaml:"max_unassigned_images"`
	// PendingTitleTTLTurns of 0 keeps titles until their image arrives.
	PendingTitleTTLTurns int `yaml:"pending_title_ttl_turns"`
}

// EngineConfig bounds turn concurrency.
type EngineConfig struct {
	MaxConcurrentTurns int64 `yaml:"max_concurrent_turns"`
	OutputBufferSize   int   `yaml:"output_buffer_size"`
}

// TracingConfig configures the OTLP exporter. Tracing is off without an
// endpoint.
type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"service_name"`
}

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	BackendMemory = "memory"
	BackendS3     = "s3"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		App: AppConfig{Name: "lunara_report_builder", Environment: "development"},
		Log: LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			DefaultUserID:     "default_user",
		},
		Database:  DatabaseConfig{Path: "reportmesh.db"},
		Artifacts: ArtifactsConfig{Backend: BackendMemory},
		Models: ModelsConfig{
			Root: ModelConfig{Provider: ProviderGemini, Model: "gemini-2.5-flash", Temperature: 0.2},
		},
		Runtime: RuntimeConfig{
			MaxModelCalls: 25,
			Code: CodeConfig{
				Command:        []string{"python3"},
				Timeout:        60 * time.Second,
				MaxOutputBytes: 64 * 1024,
			},
		},
		Reconciler: ReconcilerConfig{
			MaxPendingTitles:     32,
			MaxUnassignedImages:  32,
			PendingTitleTTLTurns: 3,
		},
		Engine:  EngineConfig{MaxConcurrentTurns: 8, OutputBufferSize: 64},
		Tracing: TracingConfig{SamplingRate: 1.0, ServiceName: "reportmesh"},
	}
}

// Load reads a YAML file, expands ${ENV} references and fills unset
// fields from Default. Keys absent from the file keep their defaults, so
// an explicit zero is preserved.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration bytes the same way Load does.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

// FromEnv returns Default with environment overrides applied.
func FromEnv() *Config {
	cfg := Default()
	applyEnv(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.App.Name == "" {
		cfg.App.Name = def.App.Name
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = def.HTTP.Addr
	}

	if cfg.HTTP.DefaultUserID == "" {
		cfg.HTTP.DefaultUserID = def.HTTP.DefaultUserID
	}

	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = BackendMemory
	}

	if cfg.Models.Root.Provider == "" {
		cfg.Models.Root.Provider = def.Models.Root.Provider
	}

	if len(cfg.Runtime.Code.Command) == 0 {
		cfg.Runtime.Code.Command = def.Runtime.Code.Command
	}

	if cfg.Runtime.Code.Timeout == 0 {
		cfg.Runtime.Code.Timeout = def.Runtime.Code.Timeout
	}

	if cfg.Engine.MaxConcurrentTurns == 0 {
		cfg.Engine.MaxConcurrentTurns = def.Engine.MaxConcurrentTurns
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = def.Tracing.ServiceName
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REPORTMESH_DB"); v != "" {
		cfg.Database.Path = v
	}

	if cfg.Models.APIKeys.Google == "" {
		cfg.Models.APIKeys.Google = firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY")
	}

	if cfg.Models.APIKeys.OpenAI == "" {
		cfg.Models.APIKeys.OpenAI = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Models.APIKeys.Anthropic == "" {
		cfg.Models.APIKeys.Anthropic = os.Getenv("ANTHROPIC_API_KEY")
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}

	return ""
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	switch c.Artifacts.Backend {
	case BackendMemory:
	case BackendS3:
		if strings.TrimSpace(c.Artifacts.S3.Bucket) == "" {
			errs = append(errs, errors.New("artifacts.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifacts.backend must be memory or s3, got %q", c.Artifacts.Backend))
	}

	roles := []struct {
		name string
		m    ModelConfig
	}{
		{"models.root", c.Models.Root},
		{"models.data_tools", c.Models.DataTools},
		{"models.code_executor", c.Models.CodeExecutor},
	}

	for _, r := range roles {
		if r.m.Provider == "" && r.name != "models.root" {
			continue
		}

		if !validProvider(r.m.Provider) {
			errs = append(errs, fmt.Errorf("%s.provider %q is not supported", r.name, r.m.Provider))
		}
	}

	if c.Runtime.MaxModelCalls < 0 {
		errs = append(errs, errors.New("runtime.max_model_calls must not be negative"))
	}

	if c.Reconciler.MaxPendingTitles < 0 || c.Reconciler.MaxUnassignedImages < 0 || c.Reconciler.PendingTitleTTLTurns < 0 {
		errs = append(errs, errors.New("reconciler limits must not be negative"))
	}

	if c.Engine.MaxConcurrentTurns < 1 {
		errs = append(errs, errors.New("engine.max_concurrent_turns must be at least 1"))
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sampling_rate must be within [0,1], got %v", c.Tracing.SamplingRate))
	}

	return errors.Join(errs...)
}

func validProvider(p string) bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return true
	default:
		return false
	}
}

// Role returns the model for an agent role, falling back to root when the
// role has no provider of its own.
func (m ModelsConfig) Role(role ModelConfig) ModelConfig {
	if role.Provider == "" {
		return m.Root
	}

	return role
}
