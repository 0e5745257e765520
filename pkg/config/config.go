// Copyright 2018-2024 CERN
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
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package config loads the worker configuration from the process
// environment. Every knob is an environment variable; missing required
// variables are a startup error, never a per-message one.
package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Database holds the relational store settings.
type Database struct {
	URI string `mapstructure:"postgres_uri"`
}

// Storage holds the object store settings.
type Storage struct {
	Endpoint  string `mapstructure:"storage_endpoint"`
	AccessKey string `mapstructure:"storage_access_key"`
	SecretKey string `mapstructure:"storage_secret_key"`
	Bucket    string `mapstructure:"storage_bucket"`
	Region    string `mapstructure:"storage_region"`
}

// Search holds the search index settings.
type Search struct {
	Endpoint string `mapstructure:"opensearch_endpoint"`
	User     string `mapstructure:"opensearch_user"`
	Password string `mapstructure:"opensearch_password"`
	CACert   string `mapstructure:"opensearch_ca_cert"`
	// Timeout bounds every call to the cluster, e.g. "30s".
	Timeout string `mapstructure:"opensearch_timeout"`
}

// RequestTimeout returns the parsed per-call timeout.
func (s Search) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Broker holds the message broker settings.
type Broker struct {
	Host     string `mapstructure:"rabbitmq_host"`
	User     string `mapstructure:"rabbitmq_user"`
	Password string `mapstructure:"rabbitmq_password"`
	SSL      bool   `mapstructure:"rabbitmq_ssl"`
}

// Embedder holds the embedding provider settings.
type Embedder struct {
	APIKey string `mapstructure:"openai_api_key"`
}

// OCR holds the optional OCR settings.
type OCR struct {
	// Languages is passed to the OCR engine as-is. Empty means the
	// engine default.
	Languages string `mapstructure:"ocr_languages"`
}

// Config is the full worker configuration.
type Config struct {
	Queue    string `mapstructure:"queue"`
	LogLevel string `mapstructure:"log_level"`
	LogMode  string `mapstructure:"log_mode"`

	Database Database `mapstructure:",squash"`
	Storage  Storage  `mapstructure:",squash"`
	Search   Search   `mapstructure:",squash"`
	Broker   Broker   `mapstructure:",squash"`
	Embedder Embedder `mapstructure:",squash"`
	OCR      OCR      `mapstructure:",squash"`
}

// ApplyDefaults fills in defaults for optional settings.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMode == "" {
		c.LogMode = "json"
	}
	if c.Storage.Region == "" {
		// Supplying a region to the S3 client means it does not need the
		// GetBucketLocation permission.
		c.Storage.Region = "insight"
	}
	if c.Search.Timeout == "" {
		c.Search.Timeout = "30s"
	}
}

// Validate returns an error naming every missing required variable.
func (c *Config) Validate() error {
	required := map[string]string{
		"POSTGRES_URI":        c.Database.URI,
		"STORAGE_ENDPOINT":    c.Storage.Endpoint,
		"STORAGE_ACCESS_KEY":  c.Storage.AccessKey,
		"STORAGE_SECRET_KEY":  c.Storage.SecretKey,
		"STORAGE_BUCKET":      c.Storage.Bucket,
		"OPENSEARCH_ENDPOINT": c.Search.Endpoint,
		"RABBITMQ_HOST":       c.Broker.Host,
		"RABBITMQ_USER":       c.Broker.User,
		"RABBITMQ_PASSWORD":   c.Broker.Password,
		"QUEUE":               c.Queue,
		"OPENAI_API_KEY":      c.Embedder.APIKey,
	}

	var missing []string
	for name, val := range required {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Search.Timeout != "" {
		if _, err := time.ParseDuration(c.Search.Timeout); err != nil {
			return errors.Errorf("invalid OPENSEARCH_TIMEOUT: %s", c.Search.Timeout)
		}
	}
	return nil
}

// FromEnv decodes the configuration from the process environment.
func FromEnv() (*Config, error) {
	return fromEnviron(os.Environ())
}

func fromEnviron(environ []string) (*Config, error) {
	m := map[string]interface{}{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[strings.ToLower(k)] = v
	}

	c := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "config: error creating decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, errors.Wrap(err, "config: error decoding environment")
	}

	c.ApplyDefaults()
	return c, nil
}
