package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// DefaultGenerationBaseURL is the OpenAI-compatible Groq endpoint.
const DefaultGenerationBaseURL = "https://api.groq.com/openai/v1"

// Config holds the billsearch configuration shared by the server and the index builder.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Readiness   ReadinessConfig   `yaml:"readiness"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Index       IndexConfig       `yaml:"index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	Database    DatabaseConfig    `yaml:"database"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Profiles    ProfilesConfig    `yaml:"profiles"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port                 int `yaml:"port"`
	ReadTimeoutSec       int `yaml:"read_timeout_sec"`
	WriteTimeoutSec      int `yaml:"write_timeout_sec"`
	ShutdownSec          int `yaml:"shutdown_timeout_sec"`
	MaxConcurrentQueries int `yaml:"max_concurrent_queries"`
}

// ReadinessConfig controls how serving entry points treat the readiness gate.
type ReadinessConfig struct {
	// StrictState makes every entry point check readiness before any other work.
	// nil means unset and defaults to true.
	StrictState *bool `yaml:"strict_state"`
}

// Strict reports the effective strict-state flag.
func (r ReadinessConfig) Strict() bool {
	return r.StrictState == nil || *r.StrictState
}

// DocumentsConfig points at the tabular document source.
type DocumentsConfig struct {
	Source string `yaml:"source"` // .csv or .parquet
}

// IndexConfig holds artifact location, retrieval limits and build parallelism.
type IndexConfig struct {
	ArtifactDir string `yaml:"artifact_dir"`
	DefaultK    int    `yaml:"default_k"`
	MaxK        int    `yaml:"max_k"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai, local
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	MaxInputChars       int    `yaml:"max_input_chars"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	CacheTTLHours       int    `yaml:"cache_ttl_hours"` // 0 = no expiry
	MaxRetries          int    `yaml:"max_retries"`     // rate-limited or 5xx calls; 0 = provider default, <0 = none
}

// GenerationConfig holds chat completion settings.
type GenerationConfig struct {
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TopP              float32 `yaml:"top_p"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	SystemPrompt      string  `yaml:"system_prompt"`
	// ExecStyle post-processes answers for executives. nil defaults to true.
	ExecStyle *bool `yaml:"exec_style"`
}

// Polished reports the effective exec-style flag.
func (g GenerationConfig) Polished() bool {
	return g.ExecStyle == nil || *g.ExecStyle
}

// DatabaseConfig holds KV store connection settings. Empty addrs selects the in-memory store.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// ObjectStoreConfig holds S3-compatible storage settings for artifact publishing.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// Enabled reports whether an object store is configured.
func (o ObjectStoreConfig) Enabled() bool {
	return o.Endpoint != "" && o.Bucket != ""
}

// ProfilesConfig holds onboarding session settings.
type ProfilesConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.applyHTTPDefaults()
	c.applyIndexDefaults()
	c.applyModelDefaults()

	if c.Readiness.StrictState == nil {
		strict := true
		c.Readiness.StrictState = &strict
	}
	if c.Generation.ExecStyle == nil {
		polished := true
		c.Generation.ExecStyle = &polished
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "billsearch:"
	}
	if c.Profiles.TTLHours <= 0 {
		c.Profiles.TTLHours = 24 * 30
	}
}

func (c *Config) applyHTTPDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxConcurrentQueries <= 0 {
		c.HTTP.MaxConcurrentQueries = 32
	}
}

func (c *Config) applyIndexDefaults() {
	if c.Index.ArtifactDir == "" {
		c.Index.ArtifactDir = "artifacts/index"
	}
	if c.Index.DefaultK <= 0 {
		c.Index.DefaultK = 8
	}
	if c.Index.MaxK <= 0 {
		c.Index.MaxK = 50
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 64
	}
	if c.Index.Concurrency <= 0 {
		c.Index.Concurrency = 4
	}
}

func (c *Config) applyModelDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 15
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 32000
	}
	if c.Embedding.Provider == ProviderLocal {
		if c.Embedding.Model == "" {
			c.Embedding.Model = "hashvec"
		}
		if c.Embedding.Dimensions <= 0 {
			c.Embedding.Dimensions = 1024
		}
	}

	if c.Generation.Model == "" {
		c.Generation.Model = "llama-3.3-70b-versatile"
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = DefaultGenerationBaseURL
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.2
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 600
	}
	if c.Generation.TopP <= 0 {
		c.Generation.TopP = 0.9
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 30
	}
	if c.Generation.Burst <= 0 {
		c.Generation.Burst = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Documents.Source == "" {
		return fmt.Errorf("documents.source is required")
	}
	switch strings.ToLower(filepath.Ext(c.Documents.Source)) {
	case ".csv", ".parquet":
		// ok
	default:
		return fmt.Errorf("documents.source must be a .csv or .parquet file, got %q", c.Documents.Source)
	}
	if c.Index.DefaultK > c.Index.MaxK {
		return fmt.Errorf("index.default_k (%d) must not exceed index.max_k (%d)", c.Index.DefaultK, c.Index.MaxK)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", ProviderOpenAI)
		}
	case ProviderLocal:
		// ok
	default:
		return fmt.Errorf(
			"embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderLocal, c.Embedding.Provider,
		)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.CacheTTLHours < 0 {
		return fmt.Errorf("embedding.cache_ttl_hours must not be negative, got %d", c.Embedding.CacheTTLHours)
	}
	if c.Generation.RequestsPerSecond < 0 {
		return fmt.Errorf("generation.requests_per_second must not be negative")
	}
	if c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket == "" {
		return fmt.Errorf("object_store.bucket is required when object_store.endpoint is set")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
