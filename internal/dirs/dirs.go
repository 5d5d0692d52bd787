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

// Package dirs resolves the on-disk layout used by both the Racky client
// and server. Everything lives under a single root, which is the user's
// home directory joined with ".racky" unless RACKY_HOME overrides it.
package dirs

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

// Racky returns the root directory that holds bin/, config/ and logs/.
func Racky() string {
	if root := os.Getenv("RACKY_HOME"); root != "" {
		return root
	}
	home, err := homedir.Dir()
	if err != nil {
		// Falling back to the relative directory keeps the process
		// usable in stripped-down environments (containers, CI).
		return ".racky"
	}
	return filepath.Join(home, ".racky")
}

// Bin holds program roots and the racky executable itself.
func Bin() string { return filepath.Join(Racky(), "bin") }

// Config holds racky.toml and one <name>.toml per program.
func Config() string { return filepath.Join(Racky(), "config") }

// Logs holds one rotated log directory per program plus logs/racky for the
// server's own output.
func Logs() string { return filepath.Join(Racky(), "logs") }

// ServersFile is the client-side alias book.
func ServersFile() string { return filepath.Join(Racky(), "servers.toml") }

// Ensure creates the root layout when missing.
func Ensure() error {
	for _, dir := range []string{Bin(), Config(), Logs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	return nil
}
