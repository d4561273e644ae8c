// Package config handles application configuration using Viper.
// Defaults, an optional YAML file and environment variables are merged in
// that priority order.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName names the XDG data directory.
const AppName = "restaurant-images"

// Config is the root configuration struct.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Governor    GovernorConfig    `mapstructure:"governor"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Resolver    ResolverConfig    `mapstructure:"resolver"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Restaurants RestaurantsConfig `mapstructure:"restaurants"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	ThumbnailDir string `mapstructure:"thumbnail_dir"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ProvidersConfig holds image search credentials. Missing credentials
// disable a provider rather than failing startup.
type ProvidersConfig struct {
	Google   GoogleConfig   `mapstructure:"google"`
	Unsplash UnsplashConfig `mapstructure:"unsplash"`
	Timeout  time.Duration  `mapstructure:"timeout"`
}

type GoogleConfig struct {
	APIKey   string `mapstructure:"api_key"`
	CSEID    string `mapstructure:"cse_id"`
	Endpoint string `mapstructure:"endpoint"`
	Num      int    `mapstructure:"num"`
}

type UnsplashConfig struct {
	AccessKey string `mapstructure:"access_key"`
	Endpoint  string `mapstructure:"endpoint"`
	PerPage   int    `mapstructure:"per_page"`
}

type CacheConfig struct {
	Images      CacheTier `mapstructure:"images"`
	Restaurants CacheTier `mapstructure:"restaurants"`
	// Persist mirrors the image cache to SQLite for warm starts.
	Persist bool `mapstructure:"persist"`
}

type CacheTier struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type GovernorConfig struct {
	Window       time.Duration `mapstructure:"window"`
	MaxPerWindow int           `mapstructure:"max_per_window"`
}

type QueueConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Spacing     time.Duration `mapstructure:"spacing"`
}

type ResolverConfig struct {
	TargetCount    int    `mapstructure:"target_count"`
	MaxCount       int    `mapstructure:"max_count"`
	DedupeInflight bool   `mapstructure:"dedupe_inflight"`
	QuerySuffix    string `mapstructure:"query_suffix"`
}

type LLMConfig struct {
	// ProviderOrder controls which LLM providers are used and in what order.
	// First provider is primary, rest are fallbacks. Example: ["openai", "anthropic"]
	ProviderOrder []string        `mapstructure:"provider_order"`
	Anthropic     AnthropicConfig `mapstructure:"anthropic"`
	OpenAI        OpenAIConfig    `mapstructure:"openai"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type RestaurantsConfig struct {
	// SearchImages spends provider quota on the featured carousel.
	SearchImages bool `mapstructure:"search_images"`
}

type ProxyConfig struct {
	MaxBytes    int64         `mapstructure:"max_bytes"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// envAliases binds config keys to the unprefixed variable names deployments
// already use, alongside the RESTO_ form.
var envAliases = []struct {
	key  string
	envs []string
}{
	{"providers.google.api_key", []string{"GOOGLE_API_KEY", "GOOGLE_SEARCH_API_KEY"}},
	{"providers.google.cse_id", []string{"GOOGLE_CSE_ID", "GOOGLE_SEARCH_ENGINE_ID"}},
	{"providers.unsplash.access_key", []string{"UNSPLASH_ACCESS_KEY"}},
	{"providers.unsplash.per_page", []string{"UNSPLASH_FALLBACK_PER_PAGE"}},
	{"llm.openai.api_key", []string{"OPENAI_API_KEY"}},
	{"llm.anthropic.api_key", []string{"ANTHROPIC_API_KEY"}},
}

// DataDir is the default directory for the database and thumbnails.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Load reads configuration from a YAML file and environment variables.
// An empty configPath searches ./config.yaml and ./config/config.yaml.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found": defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// RESTO_ prefix + nested keys: RESTO_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("RESTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, a := range envAliases {
		prefixed := "RESTO_" + strings.ToUpper(strings.ReplaceAll(a.key, ".", "_"))
		if err := v.BindEnv(append([]string{a.key, prefixed}, a.envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", a.key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := DataDir()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", filepath.Join(dataDir, "restaurant-images.db"))
	v.SetDefault("storage.thumbnail_dir", filepath.Join(dataDir, "thumbnails"))
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("providers.timeout", 30*time.Second)
	v.SetDefault("providers.google.num", 10)
	v.SetDefault("providers.unsplash.per_page", 10)

	v.SetDefault("cache.images.capacity", 500)
	v.SetDefault("cache.images.ttl", 24*time.Hour)
	v.SetDefault("cache.restaurants.capacity", 16)
	v.SetDefault("cache.restaurants.ttl", 30*time.Minute)
	v.SetDefault("cache.persist", true)

	// the Custom Search free tier is 100 queries a day
	v.SetDefault("governor.window", 24*time.Hour)
	v.SetDefault("governor.max_per_window", 100)

	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.spacing", time.Second)

	v.SetDefault("resolver.target_count", 3)
	v.SetDefault("resolver.max_count", 10)
	v.SetDefault("resolver.dedupe_inflight", true)
	v.SetDefault("resolver.query_suffix", "restaurant")

	v.SetDefault("llm.provider_order", []string{"openai", "anthropic"})
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")

	v.SetDefault("restaurants.search_images", false)

	v.SetDefault("proxy.max_bytes", 10<<20)
	v.SetDefault("proxy.negative_ttl", 10*time.Minute)
	v.SetDefault("proxy.timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Images.Capacity < 1 || c.Cache.Restaurants.Capacity < 1 {
		errs = append(errs, errors.New("cache capacities must be at least 1"))
	}
	if c.Cache.Images.TTL <= 0 || c.Cache.Restaurants.TTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Governor.Window <= 0 || c.Governor.MaxPerWindow < 1 {
		errs = append(errs, errors.New("governor needs a positive window and max_per_window"))
	}
	if c.Queue.Concurrency < 1 || c.Queue.Spacing < 0 {
		errs = append(errs, errors.New("queue needs concurrency >= 1 and spacing >= 0"))
	}
	if c.Resolver.TargetCount < 1 || c.Resolver.MaxCount < c.Resolver.TargetCount {
		errs = append(errs, errors.New("resolver needs target_count >= 1 and max_count >= target_count"))
	}
	for _, name := range c.LLM.ProviderOrder {
		if name != "openai" && name != "anthropic" {
			errs = append(errs, fmt.Errorf("unknown LLM provider %q", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
