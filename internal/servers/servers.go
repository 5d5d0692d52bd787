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

// Package servers keeps the client-side alias book. Every remote the CLI
// can talk to lives in servers.toml under the Racky home, keyed by alias;
// exactly one entry is marked as the default target.
package servers

import (
	"errors"
	"fmt"
	"os"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/DervexDev/racky/internal/dirs"
)

// ErrNoMatch reports that neither the requested alias nor a default entry
// could be resolved.
var ErrNoMatch = errors.New("no matching server found")

// Server is one remote Racky instance. The password travels to the server
// verbatim on every request, so it is stored in the clear here.
type Server struct {
	Address  string `toml:"address"`
	Port     uint64 `toml:"port"`
	Password string `toml:"password"`
	Default  bool   `toml:"default"`
}

// URL is the base address requests are sent to.
func (s Server) URL() string {
	return fmt.Sprintf("http://%s:%d", s.Address, s.Port)
}

// Book maps aliases to configured servers.
type Book map[string]Server

// Aliases lists the configured aliases in stable order.
func (b Book) Aliases() []string {
	aliases := make([]string, 0, len(b))
	for alias := range b {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// HasDefault reports whether any entry is marked as the default.
func (b Book) HasDefault() bool {
	for _, server := range b {
		if server.Default {
			return true
		}
	}
	return false
}

// Read loads the alias book. A missing file is an empty book.
func Read() (Book, error) {
	raw, err := os.ReadFile(dirs.ServersFile())
	if errors.Is(err, os.ErrNotExist) {
		return Book{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read servers file: %w", err)
	}
	var book Book
	if err := toml.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("cannot parse servers file: %w", err)
	}
	return book, nil
}

// Write stores the alias book.
func Write(book Book) error {
	raw, err := toml.Marshal(book)
	if err != nil {
		return fmt.Errorf("cannot serialize servers file: %w", err)
	}
	if err := os.WriteFile(dirs.ServersFile(), raw, 0o644); err != nil {
		return fmt.Errorf("cannot write servers file: %w", err)
	}
	return nil
}

// Get resolves the target for a request: the named alias when given, the
// default entry otherwise.
func Get(alias string) (Server, error) {
	book, err := Read()
	if err != nil {
		return Server{}, err
	}
	for a, server := range book {
		if alias != "" && a == alias {
			return server, nil
		}
		if alias == "" && server.Default {
			return server, nil
		}
	}
	return Server{}, ErrNoMatch
}
