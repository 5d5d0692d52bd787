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

// Package core supervises registered programs: it resolves their files
// under the Racky home, launches them in isolated process groups,
// captures their output into rotated logs and restarts them according to
// their configuration.
package core

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/DervexDev/racky/internal/config"
	"github.com/DervexDev/racky/internal/dirs"
)

// Sentinel errors surface verbatim in API responses, hence the
// sentence casing.
var (
	// ErrAlreadyExists reports a registration under a name that is
	// already taken.
	ErrAlreadyExists = errors.New("Program already exists")
	// ErrNotFound reports a name that resolves to no known program.
	ErrNotFound = errors.New("Program does not exist")
	// ErrAlreadyRunning reports a start of a program that is running.
	ErrAlreadyRunning = errors.New("Program is already running")
	// ErrRestarting reports a start of a program whose supervisor is
	// between attempts; the pending restart owns the next spawn.
	ErrRestarting = errors.New("Program is now restarting")
	// ErrNotRunning reports a stop or restart of an inactive program.
	ErrNotRunning = errors.New("Program is not running")
)

// Core is the program registry. It holds one supervisor per program that
// has been run since the server started and hands out the handles the
// HTTP layer operates on.
type Core struct {
	cfg       *config.Config
	logger    hclog.Logger
	startTime time.Time

	mu       sync.RWMutex
	programs map[string]*Program
}

func New(cfg *config.Config, logger hclog.Logger) *Core {
	return &Core{
		cfg:       cfg,
		logger:    logger.Named("core"),
		startTime: time.Now(),
		programs:  map[string]*Program{},
	}
}

// NewProgram builds a detached supervisor handle. The handle only joins
// the registry through AddProgram.
func (c *Core) NewProgram(name string) *Program {
	return newProgram(name, c.cfg, c.logger)
}

// Config exposes the server configuration the core was built with.
func (c *Core) Config() *config.Config { return c.cfg }

// StartTime reports when this core instance came up.
func (c *Core) StartTime() time.Time { return c.startTime }

// Program looks up a registered supervisor.
func (c *Core) Program(name string) (*Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[name]
	return p, ok
}

// Programs snapshots the registry sorted by name.
func (c *Core) Programs() []*Program {
	c.mu.RLock()
	defer c.mu.RUnlock()
	programs := make([]*Program, 0, len(c.programs))
	for _, p := range c.programs {
		programs = append(programs, p)
	}
	sort.Slice(programs, func(i, j int) bool { return programs[i].name < programs[j].name })
	return programs
}

// AddProgram registers a supervisor handle under its name.
func (c *Core) AddProgram(p *Program) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.programs[p.name]; ok {
		c.logger.Warn("program already registered", "program", p.name)
		return ErrAlreadyExists
	}
	c.programs[p.name] = p
	c.logger.Trace("program registered", "program", p.name)
	return nil
}

// RemoveProgram detaches the named supervisor from the registry and
// returns it. Stopping the program and deleting its files is the
// caller's business.
func (c *Core) RemoveProgram(name string) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.programs[name]
	if !ok {
		c.logger.Warn("program not registered", "program", name)
		return nil, false
	}
	delete(c.programs, name)
	c.logger.Trace("program deregistered", "program", name)
	return p, true
}

// StartProgram launches the supervised program. Starting something that
// is running or mid-restart is refused; a fresh start forgives the
// previous failure streak and rereads the configuration from disk.
func (c *Core) StartProgram(p *Program) error {
	switch p.Status().Kind {
	case StatusRunning:
		c.logger.Warn("program could not be started", "program", p.name, "error", ErrAlreadyRunning)
		return ErrAlreadyRunning
	case StatusRestarting:
		c.logger.Warn("program could not be started", "program", p.name, "error", ErrRestarting)
		return ErrRestarting
	}

	p.resetAttempts()
	p.LoadConfig()
	return p.start()
}

// StopProgram ends the current run of the supervised program.
func (c *Core) StopProgram(p *Program) error {
	if !p.IsActive() {
		c.logger.Warn("program could not be stopped", "program", p.name, "error", ErrNotRunning)
		return ErrNotRunning
	}
	return p.stop()
}

// StartAll starts every installed program whose configuration asks for
// auto_start. It reports how many of the eligible programs came up.
// Autostart candidates without a valid executable still count toward the
// total; their start attempt fails and leaves them registered as Failed.
func (c *Core) StartAll() (started, total int) {
	entries, err := os.ReadDir(dirs.Config())
	if err != nil {
		c.logger.Error("cannot scan program configs", "error", err)
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".toml")
		if name == "racky" {
			continue
		}

		p := c.NewProgram(name)
		p.LoadConfig()
		if !p.Config().AutoStart {
			continue
		}

		total++
		if err := c.AddProgram(p); err != nil {
			c.logger.Error("cannot autostart program", "program", name, "error", err)
			continue
		}
		if err := p.start(); err != nil {
			c.logger.Error("cannot autostart program", "program", name, "error", err)
			continue
		}
		started++
	}
	return started, total
}

// Shutdown stops every active program and collects the failures.
func (c *Core) Shutdown() error {
	var result *multierror.Error
	for _, p := range c.Programs() {
		if !p.IsActive() {
			continue
		}
		if err := p.stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
