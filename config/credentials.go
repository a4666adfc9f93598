package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"gopkg.in/yaml.v3"
)

// Well-known credential keys.
const (
	OpenAIAPIKey = "OPENAI_API_KEY"
	SerperAPIKey = "SERPER_API_KEY"
)

// DefaultCredentialsFile returns ~/.tablegen/credentials.yaml.
func DefaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tablegen", "credentials.yaml")
	}
	return filepath.Join(home, ".tablegen", "credentials.yaml")
}

// Credentials is a YAML key/value file. Environment variables of the same
// name take precedence over the file.
type Credentials struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// LoadCredentials reads path. A missing file is an empty store.
func LoadCredentials(path string) (*Credentials, error) {
	if path == "" {
		path = DefaultCredentialsFile()
	}
	c := &Credentials{path: path, values: map[string]string{}}
	data, err := os.ReadFile(path)
	if oserror.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read credentials file %s", path)
	}
	if err := yaml.Unmarshal(data, &c.values); err != nil {
		return nil, errors.Wrapf(err, "failed to parse credentials file %s", path)
	}
	if c.values == nil {
		c.values = map[string]string{}
	}
	return c, nil
}

func (c *Credentials) Path() string { return c.path }

func (c *Credentials) Get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

// Set stores value under key and rewrites the file.
func (c *Credentials) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	data, err := yaml.Marshal(c.values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create credentials directory")
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write credentials file %s", c.path)
	}
	return nil
}

// Resolve returns explicit when set, else the value of key from the
// environment or the file.
func (c *Credentials) Resolve(explicit, key string) string {
	if explicit != "" {
		return explicit
	}
	if c == nil {
		return os.Getenv(key)
	}
	return c.Get(key)
}
