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

// Config holds the AppScout API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	CacheTTLMin int    `yaml:"cache_ttl_min"`
}

// CompletionConfig holds chat-completion provider settings, shared by the
// intent analyzer and the reranker.
type CompletionConfig struct {
	Provider        string  `yaml:"provider"`
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	BreakerFailures int     `yaml:"breaker_failures"`
	BreakerResetSec int     `yaml:"breaker_reset_sec"`
}

// CatalogConfig holds catalog index settings.
type CatalogConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	ScanFallbackCap int `yaml:"scan_fallback_cap"`
}

// PipelineConfig holds the retrieval/fusion/rerank tuning knobs. The
// numbers are empirical, not principled; treat them as starting points.
type PipelineConfig struct {
	MaxQueryLen   int `yaml:"max_query_len"`
	MaxLimit      int `yaml:"max_limit"`
	RetrieveLimit int `yaml:"retrieve_limit"` // per-retriever candidate cap

	// Vector retriever
	MinSimilarity float64 `yaml:"min_similarity"`

	// Keyword retriever
	MinKeywordScore    float64 `yaml:"min_keyword_score"`
	CategoryMultiplier float64 `yaml:"category_multiplier"`
	SubstringPenalty   float64 `yaml:"substring_penalty"`
	KeywordRatingBonus float64 `yaml:"keyword_rating_bonus"`

	// Fusion
	RRFK            int     `yaml:"rrf_k"`
	MagnitudeWeight float64 `yaml:"magnitude_weight"`
	DiversityBoost  float64 `yaml:"diversity_boost"`
	RatingWeight    float64 `yaml:"rating_weight"`

	// Reranker
	RerankTopN       int     `yaml:"rerank_top_n"`
	RerankBatchSize  int     `yaml:"rerank_batch_size"`
	RerankTimeoutSec int     `yaml:"rerank_timeout_sec"`
	RetrievalWeight  float64 `yaml:"retrieval_weight"`
	LLMWeight        float64 `yaml:"llm_weight"`
	ConfidenceBonus  float64 `yaml:"confidence_bonus"`
	HighConfidence   float64 `yaml:"high_confidence"`
	MinConfidence    float64 `yaml:"min_confidence"`

	// Stage timeouts
	IntentTimeoutSec    int `yaml:"intent_timeout_sec"`
	RetrievalTimeoutSec int `yaml:"retrieval_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60 // rerank batches can take a while
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.CacheTTLMin <= 0 {
		c.Embedding.CacheTTLMin = 24 * 60
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = 1024
	}
	if c.Completion.BreakerFailures <= 0 {
		c.Completion.BreakerFailures = 3
	}
	if c.Completion.BreakerResetSec <= 0 {
		c.Completion.BreakerResetSec = 30
	}
	if c.Catalog.HNSWM <= 0 {
		c.Catalog.HNSWM = 16
	}
	if c.Catalog.HNSWEFConstruct <= 0 {
		c.Catalog.HNSWEFConstruct = 200
	}
	if c.Catalog.ScanFallbackCap <= 0 {
		c.Catalog.ScanFallbackCap = 500
	}

	c.Pipeline.applyDefaults()
}

func (p *PipelineConfig) applyDefaults() {
	if p.MaxQueryLen <= 0 {
		p.MaxQueryLen = 2000
	}
	if p.MaxLimit <= 0 {
		p.MaxLimit = 50
	}
	if p.RetrieveLimit <= 0 {
		p.RetrieveLimit = 40
	}
	if p.MinSimilarity <= 0 {
		p.MinSimilarity = 0.45
	}
	if p.MinKeywordScore <= 0 {
		p.MinKeywordScore = 0.3
	}
	if p.CategoryMultiplier <= 0 {
		p.CategoryMultiplier = 1.5
	}
	if p.SubstringPenalty <= 0 {
		p.SubstringPenalty = 0.75
	}
	if p.KeywordRatingBonus <= 0 {
		p.KeywordRatingBonus = 0.05
	}
	if p.RRFK <= 0 {
		p.RRFK = 60
	}
	if p.MagnitudeWeight <= 0 {
		p.MagnitudeWeight = 0.1
	}
	if p.DiversityBoost <= 0 {
		p.DiversityBoost = 0.002
	}
	if p.RatingWeight <= 0 {
		p.RatingWeight = 0.001
	}
	if p.RerankTopN <= 0 {
		p.RerankTopN = 15
	}
	if p.RerankBatchSize <= 0 {
		p.RerankBatchSize = 4
	}
	if p.RerankTimeoutSec <= 0 {
		p.RerankTimeoutSec = 15
	}
	if p.RetrievalWeight <= 0 {
		p.RetrievalWeight = 0.6
	}
	if p.LLMWeight <= 0 {
		p.LLMWeight = 0.4
	}
	if p.ConfidenceBonus <= 0 {
		p.ConfidenceBonus = 0.05
	}
	if p.HighConfidence <= 0 {
		p.HighConfidence = 0.8
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = 0.3
	}
	if p.IntentTimeoutSec <= 0 {
		p.IntentTimeoutSec = 8
	}
	if p.RetrievalTimeoutSec <= 0 {
		p.RetrievalTimeoutSec = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("completion.model is required")
	}

	p := &c.Pipeline
	if p.MinSimilarity >= 1 {
		return fmt.Errorf("pipeline.min_similarity must be below 1, got %g", p.MinSimilarity)
	}
	if p.MinConfidence >= 1 {
		return fmt.Errorf("pipeline.min_confidence must be below 1, got %g", p.MinConfidence)
	}
	if sum := p.RetrievalWeight + p.LLMWeight; sum < 0.99 || sum > 1.01 {
		return fmt.Errorf(
			"pipeline.retrieval_weight + pipeline.llm_weight must sum to 1, got %g", sum)
	}
	if p.RerankBatchSize > p.RerankTopN {
		return fmt.Errorf(
			"pipeline.rerank_batch_size (%d) cannot exceed rerank_top_n (%d)",
			p.RerankBatchSize, p.RerankTopN)
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
