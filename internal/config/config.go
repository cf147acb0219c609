// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "ballot.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"
	envPrefix              = "ballot"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// RunMode represents the operational mode of the ballot server
type RunMode string

const (
	RunModeServe RunMode = "serve" // Normal operation (default)
	RunModeDev   RunMode = "dev"   // Development mode, enables airdrops
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

// IsDevMode returns true if the mode enables development behaviors
func (m RunMode) IsDevMode() bool {
	return m == RunModeDev
}

type tempConfig struct {
	Config   yaml.Node                 `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath    string  `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string  `yaml:"blobPlugin"      split_words:"true"`
	MetadataPlugin  string  `yaml:"metadataPlugin"  split_words:"true"`
	BindAddr        string  `yaml:"bindAddr"        split_words:"true"`
	ProgramID       string  `yaml:"programId"       envconfig:"program_id"`
	ShutdownTimeout string  `yaml:"shutdownTimeout" split_words:"true"`
	RunMode         RunMode `yaml:"runMode"         split_words:"true"`
	ApiPort         uint    `yaml:"apiPort"         split_words:"true"`
	MetricsPort     uint    `yaml:"metricsPort"     split_words:"true"`
	// Ledger limits (0 = use default)
	MaxVoters     int `yaml:"maxVoters"     split_words:"true"`
	MaxTxnRetries int `yaml:"maxTxnRetries" split_words:"true"`
	// Per-client API rate limit (0 = use default, negative = disabled)
	RateLimit      float64 `yaml:"rateLimit"      split_words:"true"`
	RateLimitBurst int     `yaml:"rateLimitBurst" split_words:"true"`
	Tracing        bool    `yaml:"tracing"`
	TracingStdout  bool    `yaml:"tracingStdout"  split_words:"true"`
}

// ShutdownTimeoutDuration parses ShutdownTimeout
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return time.ParseDuration(DefaultShutdownTimeout)
	}
	ret, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return ret, nil
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".ballot",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		ProgramID:       address.DefaultProgramID.String(),
		ShutdownTimeout: DefaultShutdownTimeout,
		RunMode:         RunModeServe,
		ApiPort:         8080,
		MetricsPort:     12799,
	}
}

var globalConfig = defaultConfig()

// findConfigFile checks ~/.ballot/ballot.yaml and then /etc/ballot/ballot.yaml
func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".ballot", "ballot.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/ballot/ballot.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// LoadConfig loads the config file, if any, then a .env file from the
// working directory, and then applies BALLOT_* environment variables
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadConfigFile(configFile); err != nil {
			return nil, err
		}
	}
	// Values already in the environment take precedence over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	if err := envconfig.Process(envPrefix, globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}
	if globalConfig.RunMode == "" {
		globalConfig.RunMode = RunModeServe
	}
	return globalConfig, nil
}

func (c *Config) validate() error {
	if !c.RunMode.Valid() {
		return fmt.Errorf(
			"invalid runMode: %q (must be 'serve' or 'dev')",
			c.RunMode,
		)
	}
	if _, err := address.Parse(c.ProgramID); err != nil {
		return fmt.Errorf("invalid programId: %w", err)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func loadConfigFile(configFile string) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if !tempCfg.Config.IsZero() {
		// Only keys present in the section overwrite the defaults
		if err := tempCfg.Config.Decode(globalConfig); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else if err := yaml.Unmarshal(buf, globalConfig); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			if name := pluginSection(
				"blob",
				tempCfg.Database.Blob,
				pluginConfig,
			); name != "" {
				globalConfig.BlobPlugin = name
			}
		}
		if tempCfg.Database.Metadata != nil {
			if name := pluginSection(
				"metadata",
				tempCfg.Database.Metadata,
				pluginConfig,
			); name != "" {
				globalConfig.MetadataPlugin = name
			}
		}
	}
	if len(pluginConfig) > 0 {
		if err := plugin.ProcessConfig(pluginConfig); err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// pluginSection merges a database.<type> section into pluginConfig and
// returns the selected plugin name, if any
func pluginSection(
	pluginType string,
	section map[string]any,
	pluginConfig map[string]map[string]map[string]any,
) string {
	var name string
	if val, ok := section["plugin"].(string); ok {
		name = val
	}
	entries := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			entries[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			entries[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				pluginType,
				k,
				v,
			)
		}
	}
	if pluginConfig[pluginType] == nil {
		pluginConfig[pluginType] = entries
	} else {
		maps.Copy(pluginConfig[pluginType], entries)
	}
	return name
}

func GetConfig() *Config {
	return globalConfig
}
