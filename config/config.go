package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging         LoggingConfig    `yaml:"logging"`
	LLM             LLMConfig        `yaml:"llm"`
	Search          SearchConfig     `yaml:"search"`
	Generation      GenerationConfig `yaml:"generation"`
	Database        *DatabaseConfig  `yaml:"database,omitempty"`
	Sources         []SourceConfig   `yaml:"sources,omitempty"`
	CredentialsFile string           `yaml:"credentials_file,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	SeqURL string `yaml:"seq_url,omitempty"`
}

type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	Temperature       float32 `yaml:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

type SearchConfig struct {
	Provider          string  `yaml:"provider"`
	APIKey            string  `yaml:"api_key,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Crawl             bool    `yaml:"crawl"`
}

type GenerationConfig struct {
	ChunkSize   int    `yaml:"chunk_size"`
	Layout      string `yaml:"layout"`
	Parallelism int    `yaml:"parallelism,omitempty"`
}

type DatabaseConfig struct {
	DBType           string `yaml:"type"`
	ConnectionString string `yaml:"connection_string,omitempty"`
	File             string `yaml:"file,omitempty"`
}

// SourceConfig registers a named table before generation. Path is used by
// csv and parquet sources, Table by database sources.
type SourceConfig struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path,omitempty"`
	Table string `yaml:"table,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.Search.Provider == "" {
		c.Search.Provider = "serper"
	}
	if c.Generation.ChunkSize == 0 {
		c.Generation.ChunkSize = 20
	}
	if c.Generation.Layout == "" {
		c.Generation.Layout = "row"
	}
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return errors.Newf("unsupported llm provider: %s", c.LLM.Provider)
	}
	if c.Search.Provider != "serper" {
		return errors.Newf("unsupported search provider: %s", c.Search.Provider)
	}
	if c.Generation.ChunkSize < 0 {
		return errors.Newf("chunk_size must be positive, got %d", c.Generation.ChunkSize)
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return errors.Newf("sources[%d]: name is required", i)
		}
		if seen[s.Name] {
			return errors.Newf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		switch s.Kind {
		case "csv", "parquet":
			if s.Path == "" {
				return errors.Newf("source %q: path is required for %s sources", s.Name, s.Kind)
			}
		case "database":
			if s.Table == "" {
				return errors.Newf("source %q: table is required for database sources", s.Name)
			}
			if c.Database == nil {
				return errors.Newf("source %q: database section is missing", s.Name)
			}
		default:
			return errors.Newf("source %q: unsupported kind %q", s.Name, s.Kind)
		}
	}
	return nil
}

func (d *DatabaseConfig) GetConnectionString() (string, error) {
	switch d.DBType {
	case "postgres", "mysql":
		if d.ConnectionString == "" {
			return "", errors.Newf("connection string is required for %s connection", d.DBType)
		}
		return d.ConnectionString, nil

	case "sqlite":
		if d.File == "" {
			d.File = "database.db"
		}
		return d.File, nil

	default:
		return "", errors.Newf("unsupported database type: %s", d.DBType)
	}
}
