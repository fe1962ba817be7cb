package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Embed     EmbedConfig     `yaml:"embed" mapstructure:"embed"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Analyze   AnalyzeConfig   `yaml:"analyze" mapstructure:"analyze"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// GeocodeConfig holds Yandex geocoder settings.
type GeocodeConfig struct {
	YandexAPIKey string  `yaml:"yandex_api_key" mapstructure:"yandex_api_key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	City         string  `yaml:"city" mapstructure:"city"`
	CacheEnabled bool    `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// ScrapeConfig configures page fetching for the provider scrapers.
type ScrapeConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	Headless       bool    `yaml:"headless" mapstructure:"headless"`
	BrowserBin     string  `yaml:"browser_bin" mapstructure:"browser_bin"`
	ScrollCount    int     `yaml:"scroll_count" mapstructure:"scroll_count"`
	CheckpointPath string  `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
	UchiPages      int     `yaml:"uchi_pages" mapstructure:"uchi_pages"`
	UchiRegion     string  `yaml:"uchi_region" mapstructure:"uchi_region"`
	UchiCity       string  `yaml:"uchi_city" mapstructure:"uchi_city"`
}

// EmbedConfig selects the text embedding backend.
type EmbedConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"`
	OllamaURL  string `yaml:"ollama_url" mapstructure:"ollama_url"`
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ReconcileConfig holds the similarity thresholds for record matching.
type ReconcileConfig struct {
	SourceThreshold   float64 `yaml:"source_threshold" mapstructure:"source_threshold"`
	NearThreshold     float64 `yaml:"near_threshold" mapstructure:"near_threshold"`
	NearUsedThreshold float64 `yaml:"near_used_threshold" mapstructure:"near_used_threshold"`
	NearTopK          int     `yaml:"near_top_k" mapstructure:"near_top_k"`
}

// ClassifyConfig configures review topic/sentiment tagging.
type ClassifyConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	LexiconPath     string  `yaml:"lexicon_path" mapstructure:"lexicon_path"`
	Model           string  `yaml:"model" mapstructure:"model"`
	MaxTokens       int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	DetectThreshold float64 `yaml:"detect_threshold" mapstructure:"detect_threshold"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// AnalyzeConfig configures aggregation and trend analysis.
type AnalyzeConfig struct {
	YearFrom int     `yaml:"year_from" mapstructure:"year_from"`
	YearTo   int     `yaml:"year_to" mapstructure:"year_to"`
	ChangeZ  float64 `yaml:"change_z" mapstructure:"change_z"`
}

// Load reads configuration from path, or from an optional ./config.yaml
// when path is empty, then applies SCHOOL_RESEARCH_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("SCHOOL_RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to "" so Unmarshal sees their env overrides.
	v.SetDefault("store.database_url", "")
	v.SetDefault("geocode.yandex_api_key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("scrape.browser_bin", "")
	v.SetDefault("classify.lexicon_path", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("geocode.base_url", "https://geocode-maps.yandex.ru/1.x/")
	v.SetDefault("geocode.rate_limit", 5.0)
	v.SetDefault("geocode.city", "Саратов")
	v.SetDefault("geocode.cache_enabled", true)
	v.SetDefault("geocode.concurrency", 4)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.rate_limit", 1.0)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.concurrency", 2)
	v.SetDefault("scrape.headless", true)
	v.SetDefault("scrape.scroll_count", 10)
	v.SetDefault("scrape.checkpoint_path", "scrape_checkpoint.db")
	v.SetDefault("scrape.uchi_pages", 15)
	v.SetDefault("scrape.uchi_region", "Саратовская область")
	v.SetDefault("scrape.uchi_city", "Саратов")
	v.SetDefault("embed.provider", "ngram")
	v.SetDefault("embed.ollama_url", "http://localhost:11434")
	v.SetDefault("embed.model", "nomic-embed-text")
	v.SetDefault("embed.dimensions", 384)
	v.SetDefault("embed.batch_size", 32)
	v.SetDefault("reconcile.source_threshold", 0.78)
	v.SetDefault("reconcile.near_threshold", 0.65)
	v.SetDefault("reconcile.near_used_threshold", 0.75)
	v.SetDefault("reconcile.near_top_k", 3)
	v.SetDefault("classify.provider", "rules")
	v.SetDefault("classify.model", "claude-haiku-4-5-20251001")
	v.SetDefault("classify.max_tokens", 512)
	v.SetDefault("classify.detect_threshold", 0.4)
	v.SetDefault("classify.concurrency", 4)
	v.SetDefault("analyze.year_from", 2022)
	v.SetDefault("analyze.year_to", 2025)
	v.SetDefault("analyze.change_z", 1.5)

	// An explicit path must exist; ./config.yaml is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "load", "migrate":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "geocode":
		if c.Geocode.YandexAPIKey == "" {
			errs = append(errs, "geocode.yandex_api_key is required")
		}
		if c.Geocode.RateLimit <= 0 {
			errs = append(errs, "geocode.rate_limit must be > 0")
		}
	case "scrape":
		if c.Scrape.TimeoutSecs <= 0 {
			errs = append(errs, "scrape.timeout_secs must be > 0")
		}
		if c.Scrape.Concurrency < 1 || c.Scrape.Concurrency > 16 {
			errs = append(errs, "scrape.concurrency must be between 1 and 16")
		}
	case "reconcile":
		for name, v := range map[string]float64{
			"reconcile.source_threshold":    c.Reconcile.SourceThreshold,
			"reconcile.near_threshold":      c.Reconcile.NearThreshold,
			"reconcile.near_used_threshold": c.Reconcile.NearUsedThreshold,
		} {
			if v < 0 || v > 1 {
				errs = append(errs, name+" must be between 0 and 1")
			}
		}
		if c.Reconcile.NearTopK < 1 {
			errs = append(errs, "reconcile.near_top_k must be >= 1")
		}
	case "classify":
		switch c.Classify.Provider {
		case "rules", "anthropic":
		default:
			errs = append(errs, "classify.provider must be rules or anthropic")
		}
	case "analyze":
		if c.Analyze.YearFrom > c.Analyze.YearTo {
			errs = append(errs, "analyze.year_from must be <= analyze.year_to")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
