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

package core

import "github.com/DervexDev/racky/internal/config"

// Config are the recognized per-program settings stored in
// config/<name>.toml. Keys the schema does not recognize become
// environment variables for the child process.
type Config struct {
	AutoStart       bool   `toml:"auto_start"`
	AutoRestart     bool   `toml:"auto_restart"`
	RestartDelay    uint64 `toml:"restart_delay"`
	RestartAttempts uint64 `toml:"restart_attempts"`
}

// DefaultConfig returns the built-in program settings.
func DefaultConfig() Config {
	return Config{
		AutoStart:       false,
		AutoRestart:     true,
		RestartDelay:    3,
		RestartAttempts: 5,
	}
}

var configSchema = config.Schema[Config]{
	config.BoolField("auto_start",
		"Whether to automatically start the program when the Racky server starts",
		func(c *Config) *bool { return &c.AutoStart }),
	config.BoolField("auto_restart",
		"Whether to automatically restart the program after it exits",
		func(c *Config) *bool { return &c.AutoRestart }),
	config.UintField("restart_delay",
		"The delay in seconds before restarting the program after it exits",
		func(c *Config) *uint64 { return &c.RestartDelay }),
	config.UintField("restart_attempts",
		"The maximum number of restart attempts after the program exits with an error code",
		func(c *Config) *uint64 { return &c.RestartAttempts }),
}

// ConfigFields exposes the program settings schema in render order.
func ConfigFields() config.Schema[Config] { return configSchema }

// Get returns the formatted value of one recognized setting.
func (c Config) Get(key string) (string, bool) {
	return configSchema.Get(&c, key)
}
