package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "SKYFEED_CONFIG"
	secretEnv     = "SKYFEED_SECRET"
	redisAddrEnv  = "SKYFEED_REDIS"
	genAPIKeyEnv  = "GENERATOR_API_KEY"
)

// Duration lets YAML carry human-readable values like "10s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds everything the pipeline needs at startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Badger    BadgerConfig    `yaml:"badger"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Generator GeneratorConfig `yaml:"generator"`
	Feeds     []FeedGroup     `yaml:"feeds"`
}

// ServerConfig describes the HTTP trigger surface.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type BadgerConfig struct {
	Path string `yaml:"path"`
}

// FetchConfig bounds one ingestion cycle.
type FetchConfig struct {
	Timeout      Duration `yaml:"timeout"`
	UserAgent    string   `yaml:"userAgent"`
	ItemsPerFeed int      `yaml:"itemsPerFeed"`
}

// GeneratorConfig defines how to reach the article-generation service.
type GeneratorConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Model    string   `yaml:"model"`
	APIKey   string   `yaml:"apiKey"`
	Timeout  Duration `yaml:"timeout"`
	MaxBatch int      `yaml:"maxBatch"`
}

// FeedGroup is one content category with its source URLs.
type FeedGroup struct {
	Category string   `yaml:"category"`
	URLs     []string `yaml:"urls"`
}

// Load reads YAML configuration (path from SKYFEED_CONFIG or the given
// fallback) and applies environment overrides for secrets.
func Load(fallbackPath string) (Config, error) {
	cfg := defaultConfig()

	path := os.Getenv(configPathEnv)
	if path == "" {
		path = fallbackPath
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(secretEnv); v != "" {
		c.Server.Secret = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(genAPIKeyEnv); v != "" {
		c.Generator.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = def.Redis.Addr
	}
	if c.Badger.Path == "" {
		c.Badger.Path = def.Badger.Path
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = def.Fetch.Timeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = def.Fetch.UserAgent
	}
	if c.Fetch.ItemsPerFeed <= 0 {
		c.Fetch.ItemsPerFeed = def.Fetch.ItemsPerFeed
	}
	if c.Generator.Timeout <= 0 {
		c.Generator.Timeout = def.Generator.Timeout
	}
	if c.Generator.MaxBatch <= 0 {
		c.Generator.MaxBatch = def.Generator.MaxBatch
	}
}

// ValidateForServe checks the settings the HTTP surface cannot run
// without. Reported as an explicit startup failure, never a silent
// partial success.
func (c Config) ValidateForServe() error {
	if c.Server.Secret == "" {
		return fmt.Errorf("config: trigger secret is not set (server.secret or %s)", secretEnv)
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("config: no feed sources configured")
	}
	if c.Generator.Endpoint == "" {
		return fmt.Errorf("config: generator endpoint is not set")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Badger: BadgerConfig{Path: "./badger-data"},
		Fetch: FetchConfig{
			Timeout:      Duration(20 * time.Second),
			UserAgent:    "skyfeed/1.0 (+https://skyfeed.example.com)",
			ItemsPerFeed: 15,
		},
		Generator: GeneratorConfig{
			Timeout:  Duration(60 * time.Second),
			MaxBatch: 5,
		},
	}
}
