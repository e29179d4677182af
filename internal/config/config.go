// Package config loads and validates the pairsync client configuration.
//
// The config file is JSON. Every field can also be supplied through flags
// or PAIRSYNC_* environment variables, which are bound by the CLI layer
// through viper.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pairsync/pairsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".pairsync", "config.json")
	DefaultLogPath    = filepath.Join(home, ".pairsync", "logs", "pairsync.log")
)

const (
	// ProviderS3 selects the S3/S3-compatible storage provider.
	ProviderS3 = "s3"

	defaultWorkers = 4
)

var (
	ErrNoPairs             = errors.New("no sync pairs configured")
	ErrUnsupportedProvider = errors.New("unsupported storage provider")
)

// Pair binds one local tree to one remote prefix. It is the unit of
// top-level configuration.
type Pair struct {
	LocalRoot    string `json:"local_root" mapstructure:"local_root"`
	RemotePrefix string `json:"remote_prefix" mapstructure:"remote_prefix"`
}

// S3 holds credentials and addressing for an S3 or S3-compatible store.
type S3 struct {
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	Region    string `json:"region" mapstructure:"region"`
	Endpoint  string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
}

type Config struct {
	Provider string `json:"provider"`
	Pairs    []Pair `json:"pairs"`
	S3       S3     `json:"s3"`
	Workers  int    `json:"workers,omitempty"`
	DryRun   bool   `json:"-"`
	Path     string `json:"-"`
}

// Validate checks the configuration before any transfer is attempted.
// Configuration and credential problems are fatal by design: the process
// must exit without touching the remote store.
func (c *Config) Validate() error {
	if c.Provider != ProviderS3 {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, c.Provider)
	}

	if len(c.Pairs) == 0 {
		return ErrNoPairs
	}

	for i, pair := range c.Pairs {
		if pair.LocalRoot == "" {
			return fmt.Errorf("pair %d: local_root is required", i)
		}
		if pair.RemotePrefix == "" {
			return fmt.Errorf("pair %d: remote_prefix is required", i)
		}
		resolved, err := utils.ResolvePath(pair.LocalRoot)
		if err != nil {
			return fmt.Errorf("pair %d: resolve local_root: %w", i, err)
		}
		c.Pairs[i].LocalRoot = resolved
		c.Pairs[i].RemotePrefix = utils.NormPath(pair.RemotePrefix)
	}

	if c.S3.Bucket == "" {
		return errors.New("s3.bucket is required")
	}
	if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
		return errors.New("s3 credentials are required")
	}
	if c.S3.Region == "" && c.S3.Endpoint == "" {
		return errors.New("one of s3.region or s3.endpoint is required")
	}

	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}

	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse %q: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
