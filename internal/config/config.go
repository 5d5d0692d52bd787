// Copyright 2026 github.com/DervexDev/racky
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the server configuration stored at
// config/racky.toml and the schema machinery shared with per-program
// configs. One Config instance is shared by the CLI, the core and the web
// façade; accessors lock internally.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/DervexDev/racky/internal/dirs"
	"github.com/DervexDev/racky/internal/util"
)

// Values are the recognized server settings.
type Values struct {
	Alias        string
	Address      string
	Port         uint64
	Password     string
	LogSizeLimit uint64
	LogFileLimit uint64
}

// Defaults returns the built-in server settings.
func Defaults() Values {
	return Values{
		Alias:        "default",
		Address:      "localhost",
		Port:         5000,
		Password:     "",
		LogSizeLimit: 10,
		LogFileLimit: 8,
	}
}

var serverSchema = Schema[Values]{
	StringField("alias", "Default server alias", func(v *Values) *string { return &v.Alias }),
	StringField("address", "Default server address", func(v *Values) *string { return &v.Address }),
	PortField("port", "Default server port", func(v *Values) *uint64 { return &v.Port }),
	StringField("password", "Default server password", func(v *Values) *string { return &v.Password }),
	UintField("log_size_limit", "Maximum size of a log file in megabytes", func(v *Values) *uint64 { return &v.LogSizeLimit }),
	UintField("log_file_limit", "Maximum number of log files to keep", func(v *Values) *uint64 { return &v.LogFileLimit }),
}

// Config is the concurrency-safe holder for the server settings.
type Config struct {
	mu sync.RWMutex
	v  Values
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{v: Defaults()}
}

// Path is the location of the server config file.
func Path() string {
	return filepath.Join(dirs.Config(), "racky.toml")
}

// Load reads config/racky.toml over the defaults. A missing file is not an
// error; unknown keys are ignored.
func Load() (*Config, error) {
	cfg := New()

	raw, err := os.ReadFile(Path())
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read server config: %w", err)
	}

	var table map[string]any
	if err := toml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("cannot parse server config: %w", err)
	}
	for key, value := range table {
		if !serverSchema.Has(key) {
			continue
		}
		if err := serverSchema.Set(&cfg.v, key, FormatValue(value)); err != nil {
			return nil, fmt.Errorf("cannot load server config: %w", err)
		}
	}
	return cfg, nil
}

// Save writes the settings that differ from the defaults.
func (c *Config) Save() error {
	v := c.Snapshot()
	d := Defaults()

	doc := map[string]any{}
	if v.Alias != d.Alias {
		doc["alias"] = v.Alias
	}
	if v.Address != d.Address {
		doc["address"] = v.Address
	}
	if v.Port != d.Port {
		doc["port"] = v.Port
	}
	if v.Password != d.Password {
		doc["password"] = v.Password
	}
	if v.LogSizeLimit != d.LogSizeLimit {
		doc["log_size_limit"] = v.LogSizeLimit
	}
	if v.LogFileLimit != d.LogFileLimit {
		doc["log_file_limit"] = v.LogFileLimit
	}

	raw, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cannot serialize server config: %w", err)
	}
	if err := os.WriteFile(Path(), raw, 0o644); err != nil {
		return fmt.Errorf("cannot write server config: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current settings.
func (c *Config) Snapshot() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

func (c *Config) Alias() string { return c.Snapshot().Alias }

func (c *Config) Address() string { return c.Snapshot().Address }

func (c *Config) Port() uint64 { return c.Snapshot().Port }

func (c *Config) Password() string { return c.Snapshot().Password }

// LogSizeLimit is the rotation threshold in megabytes.
func (c *Config) LogSizeLimit() uint64 { return c.Snapshot().LogSizeLimit }

// LogFileLimit is the number of rotated files kept per program.
func (c *Config) LogFileLimit() uint64 { return c.Snapshot().LogFileLimit }

// Get returns the formatted value of one setting.
func (c *Config) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return serverSchema.Get(&c.v, key)
}

// Set parses and stores one setting.
func (c *Config) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return serverSchema.Set(&c.v, key, value)
}

// List renders the settings table. The Current column only appears when at
// least one setting differs from its default.
func (c *Config) List() string {
	v := c.Snapshot()
	d := Defaults()
	defaultsOnly := v == d

	var table *util.Table
	if defaultsOnly {
		table = util.NewTable("Setting", "Default", "Description")
	} else {
		table = util.NewTable("Setting", "Default", "Current", "Description")
	}

	for _, field := range serverSchema {
		def := field.Get(&d)
		if defaultsOnly {
			table.AddRow(field.Name, def, field.Doc)
			continue
		}
		current := field.Get(&v)
		if current == def {
			current = ""
		}
		table.AddRow(field.Name, def, current, field.Doc)
	}
	return table.String()
}

// Apply implements the server config contract shared by the local
// `racky config` command and POST /server/config: list the settings,
// restore defaults, or apply comma-separated key=value pairs where an
// empty value resets that key. The returned string is the user-facing
// message.
func (c *Config) Apply(data string, restoreDefaults, list bool) (string, error) {
	if list {
		return "Server configuration:\n" + c.List(), nil
	}

	if restoreDefaults {
		c.mu.Lock()
		c.v = Defaults()
		c.mu.Unlock()
		if err := c.Save(); err != nil {
			return "", err
		}
		return "Server configuration restored to defaults successfully", nil
	}

	if strings.TrimSpace(data) == "" {
		return "", errors.New("No key=value pairs provided")
	}

	defaults := Defaults()
	changed := 0

	for _, pair := range strings.Split(data, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return "", fmt.Errorf("Invalid key=value or key= pair: %s", pair)
		}

		c.mu.Lock()
		original, known := serverSchema.Get(&c.v, key)
		if !known {
			c.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		if value == "" {
			value, _ = serverSchema.Get(&defaults, key)
		}
		if err := serverSchema.Set(&c.v, key, value); err != nil {
			c.mu.Unlock()
			return "", err
		}
		now, _ := serverSchema.Get(&c.v, key)
		c.mu.Unlock()

		if now != original {
			changed++
		}
	}

	if err := c.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Server configuration updated successfully (%d changed)", changed), nil
}
