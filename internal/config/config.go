// Package config resolves the connector configuration from, in increasing
// precedence: a local TOML profile, environment variables, and the
// invocation's secrets object.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/mailbutler/fivetran-bitbucket-connector/internal/bitbucket"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/fivetran"
)

// DefaultFanOutLimit caps how many per-pull-request nested fetches run
// concurrently.
const DefaultFanOutLimit = 8

var (
	// ErrMissingWorkspace indicates no workspace identifier was provided.
	ErrMissingWorkspace = errors.New("config: missing workspace")

	// ErrMissingCredentials indicates neither basic credentials nor a
	// token were provided.
	ErrMissingCredentials = errors.New("config: missing credentials, set username/password or token")
)

// Config is the resolved connector configuration.
type Config struct {
	Workspace       string `env:"WORKSPACE" toml:"workspace"`
	Username        string `env:"BITBUCKET_USERNAME" toml:"username"`
	Password        string `env:"BITBUCKET_PASSWORD" toml:"password"`
	Token           string `env:"BITBUCKET_TOKEN" toml:"token"`
	RepositorySlugs string `env:"REPOSITORY_SLUGS" toml:"repository_slugs"`
	FanOutLimit     int    `env:"FAN_OUT_LIMIT" toml:"fan_out_limit"`
}

// Load reads the configuration. A non-empty path names a TOML profile read
// first; environment variables override its values.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = DefaultFanOutLimit
	}
	return cfg, nil
}

// ApplySecrets overlays the invocation's secrets; request values win over
// environment and file values.
func (c *Config) ApplySecrets(s fivetran.Secrets) {
	if s.Workspace != "" {
		c.Workspace = s.Workspace
	}
	if s.Username != "" {
		c.Username = s.Username
	}
	if s.Password != "" {
		c.Password = s.Password
	}
	if s.Token != "" {
		c.Token = s.Token
	}
	if s.RepositorySlugs != "" {
		c.RepositorySlugs = s.RepositorySlugs
	}
}

// Validate checks the configuration is sufficient to run a sync.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return ErrMissingWorkspace
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return ErrMissingCredentials
	}
	return nil
}

// Credentials returns the upstream API credentials.
func (c *Config) Credentials() bitbucket.Credentials {
	return bitbucket.Credentials{
		Username: c.Username,
		Password: c.Password,
		Token:    c.Token,
	}
}

// Slugs returns the configured repository slugs, nil when repositories
// should be discovered from the workspace listing.
func (c *Config) Slugs() []string {
	var slugs []string
	for _, s := range strings.Split(c.RepositorySlugs, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			slugs = append(slugs, s)
		}
	}
	return slugs
}
