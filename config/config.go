// Package config loads the command line configuration from the environment.
//
// Values are read from an optional .env file first and then from VECSIM_*
// environment variables, which take precedence. Provider credentials also
// fall back to their conventional unprefixed names such as OPENAI_API_KEY.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/codec"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/snapshot"
)

// Prefix is the environment variable prefix.
const Prefix = "VECSIM"

// Config holds the command line configuration.
type Config struct {
	// Engine
	Metric              string `envconfig:"METRIC" default:"cosine"`
	Dimension           int    `envconfig:"DIMENSION" default:"0"`
	HNSWM               int    `envconfig:"HNSW_M" default:"16"`
	HNSWEFConstruction  int    `envconfig:"HNSW_EF_CONSTRUCTION" default:"200"`
	HNSWEFSearch        int    `envconfig:"HNSW_EF_SEARCH" default:"64"`
	StalenessThreshold  int    `envconfig:"STALENESS_THRESHOLD" default:"0"` // 0 means adaptive
	BruteForceThreshold int    `envconfig:"BRUTE_FORCE_THRESHOLD" default:"1000"`

	// Snapshots
	StoreURL    string `envconfig:"STORE_URL" default:"file://./data"`
	Codec       string `envconfig:"CODEC" default:"go-json"`
	Compression string `envconfig:"COMPRESSION" default:"zstd"`
	KeepSnaps   int    `envconfig:"KEEP_SNAPSHOTS" default:"3"`

	S3Region      string `envconfig:"S3_REGION"`
	S3Endpoint    string `envconfig:"S3_ENDPOINT"`
	S3PathStyle   bool   `envconfig:"S3_PATH_STYLE" default:"false"`
	DynamoDBTable string `envconfig:"DYNAMODB_TABLE"`

	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioSecure    bool   `envconfig:"MINIO_SECURE" default:"true"`

	// Embeddings
	Provider         string  `envconfig:"PROVIDER" default:"openai"`
	EmbeddingModel   string  `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDim     int     `envconfig:"EMBEDDING_DIMENSION" default:"0"`
	OpenAIAPIKey     string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `envconfig:"OPENAI_BASE_URL"`
	GoogleAPIKey     string  `envconfig:"GOOGLE_API_KEY"`
	GoogleProject    string  `envconfig:"GOOGLE_CLOUD_PROJECT"`
	GoogleLocation   string  `envconfig:"GOOGLE_CLOUD_LOCATION" default:"us-central1"`
	RateLimitRPS     float64 `envconfig:"RATE_LIMIT_RPS" default:"0"` // 0 means disabled
	RateLimitBurst   int     `envconfig:"RATE_LIMIT_BURST" default:"0"`
	BatchSize        int     `envconfig:"BATCH_SIZE" default:"100"`
	EmbedConcurrency int     `envconfig:"EMBED_CONCURRENCY" default:"4"`
	EmbedCacheSize   int     `envconfig:"EMBED_CACHE_SIZE" default:"1024"` // 0 means disabled

	// Recommendations
	MinSimilarity float64 `envconfig:"MIN_SIMILARITY" default:"0.7"`

	// Observability
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Providers understood by Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
	ProviderVertex = "vertex"
)

// Config validation errors
var (
	ErrInvalidMetric        = errors.New("metric must be cosine or euclidean")
	ErrInvalidDimension     = errors.New("dimension must not be negative")
	ErrInvalidHNSW          = errors.New("hnsw parameters must be positive")
	ErrInvalidStoreURL      = errors.New("store_url cannot be empty")
	ErrInvalidCodec         = errors.New("codec must be go-json, json or msgpack")
	ErrInvalidCompression   = errors.New("compression must be none, lz4 or zstd")
	ErrInvalidProvider      = errors.New("provider must be openai, genai or vertex")
	ErrInvalidBatchSize     = errors.New("batch_size must be positive")
	ErrInvalidConcurrency   = errors.New("embed_concurrency must be positive")
	ErrInvalidRateLimit     = errors.New("rate_limit_rps must not be negative")
	ErrInvalidCacheSize     = errors.New("embed_cache_size must not be negative")
	ErrInvalidMinSimilarity = errors.New("min_similarity must be within [-1, 1]")
	ErrInvalidLogFormat     = errors.New("log_format must be 'json' or 'text'")
	ErrInvalidLogLevel      = errors.New("log_level must be debug, info, warn, or error")
)

// Default returns a Config with default values.
func Default() Config {
	return Config{
		Metric:              "cosine",
		HNSWM:               16,
		HNSWEFConstruction:  200,
		HNSWEFSearch:        64,
		BruteForceThreshold: 1000,
		StoreURL:            "file://./data",
		Codec:               codec.Default.Name(),
		Compression:         "zstd",
		KeepSnaps:           3,
		MinioSecure:         true,
		Provider:            ProviderOpenAI,
		GoogleLocation:      "us-central1",
		BatchSize:           100,
		EmbedConcurrency:    4,
		EmbedCacheSize:      1024,
		MinSimilarity:       0.7,
		LogFormat:           "text",
		LogLevel:            "info",
	}
}

// Load reads the given dotenv files (".env" when none are named), then the
// environment, and validates the result. Missing dotenv files are ignored.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load dotenv: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate returns the first invalid setting.
func (c *Config) Validate() error {
	if _, err := distance.ParseMetric(c.Metric); err != nil {
		return ErrInvalidMetric
	}
	if c.Dimension < 0 {
		return ErrInvalidDimension
	}
	if c.HNSWM <= 0 || c.HNSWEFConstruction <= 0 || c.HNSWEFSearch <= 0 {
		return ErrInvalidHNSW
	}
	if c.StoreURL == "" {
		return ErrInvalidStoreURL
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		return ErrInvalidCodec
	}
	if _, err := snapshot.ParseCompression(c.Compression); err != nil {
		return ErrInvalidCompression
	}
	switch c.Provider {
	case ProviderOpenAI, ProviderGenAI, ProviderVertex:
	default:
		return ErrInvalidProvider
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.EmbedConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateLimitRPS < 0 {
		return ErrInvalidRateLimit
	}
	if c.EmbedCacheSize < 0 {
		return ErrInvalidCacheSize
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return ErrInvalidMinSimilarity
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return ErrInvalidLogFormat
	}
	if _, err := c.level(); err != nil {
		return ErrInvalidLogLevel
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		err := l.UnmarshalText([]byte(c.LogLevel))
		return l, err
	default:
		return l, ErrInvalidLogLevel
	}
}

// Logger builds the configured logger.
func (c *Config) Logger() *vecsim.Logger {
	level, _ := c.level()
	if c.LogFormat == "json" {
		return vecsim.NewJSONLogger(level)
	}
	return vecsim.NewTextLogger(level)
}

// EngineOptions translates the engine settings. c must be valid.
func (c *Config) EngineOptions() []vecsim.Option {
	metric, _ := distance.ParseMetric(c.Metric)
	cd, _ := codec.ByName(c.Codec)
	comp, _ := snapshot.ParseCompression(c.Compression)

	return []vecsim.Option{
		vecsim.WithMetric(metric),
		vecsim.WithDimension(c.Dimension),
		vecsim.WithHNSW(c.HNSWM, c.HNSWEFConstruction, c.HNSWEFSearch),
		vecsim.WithStalenessThreshold(c.StalenessThreshold),
		vecsim.WithBruteForceThreshold(c.BruteForceThreshold),
		vecsim.WithCodec(cd),
		vecsim.WithCompression(comp),
		vecsim.WithLogger(c.Logger()),
	}
}
