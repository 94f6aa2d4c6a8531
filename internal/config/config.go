// Copyright 2025 Proven Labs
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
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "sigil.config"

const DefaultShutdownTimeout = "30s"

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

// PinEndpoint describes a remote pinning service used as a backup
// behind the primary IPFS node
type PinEndpoint struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	AuthToken string `yaml:"authToken"`
}

type Config struct {
	DataDir         string        `yaml:"dataDir"         split_words:"true"`
	BindAddr        string        `yaml:"bindAddr"        split_words:"true"`
	MetricsPort     uint          `yaml:"metricsPort"     split_words:"true"`
	IpfsApiUrl      string        `yaml:"ipfsApiUrl"      envconfig:"IPFS_API_URL"`
	GatewayBaseUrl  string        `yaml:"gatewayBaseUrl"  envconfig:"GATEWAY_BASE_URL"`
	PublicGateways  []string      `yaml:"publicGateways"  split_words:"true"`
	PinEndpoints    []PinEndpoint `yaml:"pinEndpoints"`
	GcsBucket       string        `yaml:"gcsBucket"       envconfig:"GCS_BUCKET"`
	StorageTimeout  string        `yaml:"storageTimeout"  split_words:"true"`
	RetryQueueSize  int           `yaml:"retryQueueSize"  split_words:"true"`
	MaxRetries      int           `yaml:"maxRetries"      split_words:"true"`
	RetryDelay      string        `yaml:"retryDelay"      split_words:"true"`
	RetryInterval   string        `yaml:"retryInterval"   split_words:"true"`
	LedgerUrl       string        `yaml:"ledgerUrl"       envconfig:"LEDGER_URL"`
	OperatorAccount string        `yaml:"operatorAccount" split_words:"true"`
	OperatorKeyFile string        `yaml:"operatorKeyFile" split_words:"true"`
	LedgerTimeout   string        `yaml:"ledgerTimeout"   split_words:"true"`
	TokenClassId    string        `yaml:"tokenClassId"    envconfig:"TOKEN_CLASS_ID"`
	SubBatchSize    int           `yaml:"subBatchSize"    split_words:"true"`
	BatchCooldown   string        `yaml:"batchCooldown"   split_words:"true"`
	ShutdownTimeout string        `yaml:"shutdownTimeout" split_words:"true"`
	Tracing         bool          `yaml:"tracing"`
	TracingStdout   bool          `yaml:"tracingStdout"   split_words:"true"`
}

var globalConfig = &Config{
	DataDir:         ".sigil",
	BindAddr:        "0.0.0.0",
	MetricsPort:     12880,
	IpfsApiUrl:      "http://localhost:5001",
	GatewayBaseUrl:  "https://ipfs.io",
	StorageTimeout:  "30s",
	RetryQueueSize:  256,
	MaxRetries:      3,
	RetryDelay:      "5s",
	RetryInterval:   "1m",
	LedgerTimeout:   "30s",
	SubBatchSize:    10,
	BatchCooldown:   "2s",
	ShutdownTimeout: DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.sigil/sigil.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".sigil", "sigil.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/sigil/sigil.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/sigil/sigil.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Overlay config values onto existing defaults
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("sigil", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

// Validate fails fast on configuration the service cannot start with
func (c *Config) Validate() error {
	if c.TokenClassId == "" {
		return errors.New("no token class id configured")
	}
	if c.LedgerUrl == "" {
		return errors.New("no ledger gateway URL configured")
	}
	if c.OperatorAccount == "" {
		return errors.New("no operator account configured")
	}
	if c.IpfsApiUrl == "" {
		return errors.New("no IPFS API URL configured")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"storageTimeout", c.StorageTimeout},
		{"retryDelay", c.RetryDelay},
		{"retryInterval", c.RetryInterval},
		{"ledgerTimeout", c.LedgerTimeout},
		{"batchCooldown", c.BatchCooldown},
		{"shutdownTimeout", c.ShutdownTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}
	return nil
}

func GetConfig() *Config {
	return globalConfig
}
