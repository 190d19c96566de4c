package config

import (
	"fmt"
	"os"
	"time"

	"moderation-service/internal/events"
	"moderation-service/internal/llm"
	"moderation-service/internal/pipeline"
	"moderation-service/internal/repository"
	"moderation-service/internal/storage"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set
const DefaultPath = "configs/config.yml"

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Development bool `yaml:"development"`
	} `yaml:"log"`

	// Reasoning providers, tried in order
	Providers               []llm.ProviderConfig `yaml:"providers"`
	MaxFailuresBeforeSwitch int                  `yaml:"max_failures_before_switch"`

	// Vision, and fallback reasoning when no providers are configured
	Gemini struct {
		APIKey      string `yaml:"api_key"`
		ModelName   string `yaml:"model_name"`
		VisionModel string `yaml:"vision_model"`
		MaxRetries  int    `yaml:"max_retries"`
	} `yaml:"gemini"`

	ImageGeneration struct {
		Enabled   bool   `yaml:"enabled"`
		APIKey    string `yaml:"api_key"` // defaults to gemini.api_key
		ModelName string `yaml:"model_name"`
	} `yaml:"image_generation"`

	Database repository.Config `yaml:"database"`

	BlobStore struct {
		Enabled        bool `yaml:"enabled"`
		storage.Config `yaml:",inline"`
	} `yaml:"blob_store"`

	Redis events.Config `yaml:"redis"`

	Pipeline pipeline.Config `yaml:"pipeline"`
}

// Path returns the config file location, honouring CONFIG_PATH
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	// Booleans that default to true must be set before decoding
	config.Pipeline.ReanalyzeGenerated = true

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	config.expandEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8003"
	}

	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Gemini.ModelName == "" {
		c.Gemini.ModelName = "gemini-2.0-flash"
	}

	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 3
	}

	if c.ImageGeneration.ModelName == "" {
		c.ImageGeneration.ModelName = "imagen-3.0-generate-002"
	}

	if c.Database.Type == "" {
		c.Database.Type = repository.DriverSQLite
	}

	if c.Database.Type == repository.DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "./data/moderation.db"
	}

	if c.BlobStore.Bucket == "" {
		c.BlobStore.Bucket = "moderation-images"
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}

	if c.Pipeline.StepTimeout == 0 {
		c.Pipeline.StepTimeout = pipeline.DefaultStepTimeout
	}
}

// expandEnv resolves ${VAR} references in secrets and locations
func (c *Config) expandEnv() {
	for i := range c.Providers {
		c.Providers[i].APIKey = os.ExpandEnv(c.Providers[i].APIKey)
	}
	c.Gemini.APIKey = os.ExpandEnv(c.Gemini.APIKey)

	c.ImageGeneration.APIKey = os.ExpandEnv(c.ImageGeneration.APIKey)
	if c.ImageGeneration.APIKey == "" {
		c.ImageGeneration.APIKey = c.Gemini.APIKey
	}

	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.BlobStore.AccessKey = os.ExpandEnv(c.BlobStore.AccessKey)
	c.BlobStore.SecretKey = os.ExpandEnv(c.BlobStore.SecretKey)
	c.Redis.Password = os.ExpandEnv(c.Redis.Password)
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case repository.DriverSQLite:
	case repository.DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	if c.BlobStore.Enabled && c.BlobStore.Endpoint == "" {
		return fmt.Errorf("blob_store.endpoint is required when the blob store is enabled")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}

	return nil
}
