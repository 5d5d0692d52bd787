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

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/DervexDev/racky/internal/config"
	"github.com/DervexDev/racky/internal/logsink"
)

// sigtermCode is the exit classification of a SIGTERM death. It still
// yields Errored, but the error log line is suppressed because the signal
// usually means an operator or the OS asked the program to leave.
const sigtermCode = 15

// waitTolerance bounds how long the watcher keeps draining stdout/stderr
// after the child exits when descendants inherited the pipes.
const waitTolerance = 2 * time.Second

// Program supervises a single registered program: it owns the state
// machine, spawns the process in its own group, and arms a watcher that
// classifies the exit and drives the restart policy. The generation
// counter in State fences watchers of runs that were superseded by a
// newer start or an explicit stop.
type Program struct {
	name   string
	paths  Paths
	cfg    *config.Config
	logger hclog.Logger
	bc     *logsink.Broadcaster

	mu    sync.RWMutex
	state State
}

func newProgram(name string, cfg *config.Config, logger hclog.Logger) *Program {
	return &Program{
		name:   name,
		paths:  PathsFromName(name),
		cfg:    cfg,
		logger: logger.With("program", name),
		bc:     logsink.NewBroadcaster(),
		state: State{
			Vars:   map[string]string{},
			Config: DefaultConfig(),
		},
	}
}

func (p *Program) Name() string { return p.name }

func (p *Program) Paths() Paths { return p.paths }

// Broadcaster streams every log line the program writes while running.
func (p *Program) Broadcaster() *logsink.Broadcaster { return p.bc }

// State returns a snapshot. The vars map is copied so callers cannot race
// the supervisor.
func (p *Program) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state := p.state
	state.Vars = maps.Clone(p.state.Vars)
	return state
}

func (p *Program) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Config
}

func (p *Program) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Status
}

// IsActive reports whether the supervisor owns a live or imminent process.
func (p *Program) IsActive() bool {
	status := p.Status()
	return status.Kind == StatusRunning || status.Kind == StatusRestarting
}

// LoadConfig reads config/<name>.toml into the state. Recognized keys fill
// the config, everything else (including values the schema rejects)
// becomes an environment variable. Missing or unreadable files leave the
// state untouched.
func (p *Program) LoadConfig() {
	raw, err := os.ReadFile(p.paths.Config)
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("program config not found", "path", p.paths.Config)
		return
	}
	if err != nil {
		p.logger.Error("cannot read program config", "error", err)
		return
	}

	var table map[string]any
	if err := toml.Unmarshal(raw, &table); err != nil {
		p.logger.Error("cannot parse program config", "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for key, value := range table {
		formatted := config.FormatValue(value)
		if err := configSchema.Set(&p.state.Config, key, formatted); err != nil {
			p.state.Vars[key] = formatted
		}
	}
	p.logger.Debug("program config loaded")
}

// SaveConfig writes the recognized settings in schema order followed by
// the environment variables.
func (p *Program) SaveConfig() error {
	p.mu.RLock()
	cfg := p.state.Config
	vars := maps.Clone(p.state.Vars)
	p.mu.RUnlock()

	raw, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot serialize config of %s: %w", p.name, err)
	}
	if len(vars) > 0 {
		extra, err := toml.Marshal(vars)
		if err != nil {
			return fmt.Errorf("cannot serialize vars of %s: %w", p.name, err)
		}
		raw = append(raw, extra...)
	}
	if err := os.WriteFile(p.paths.Config, raw, 0o644); err != nil {
		return fmt.Errorf("cannot write config of %s: %w", p.name, err)
	}
	p.logger.Debug("program config saved")
	return nil
}

// UpdateConfig stores one key=value pair: recognized keys go through the
// schema, unknown keys become environment variables. A recognized key
// with an unparsable value is an error.
func (p *Program) UpdateConfig(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := configSchema.Set(&p.state.Config, key, value)
	switch {
	case err == nil:
		p.logger.Info("program config updated", "key", key, "value", value)
		return nil
	case errors.Is(err, config.ErrUnknownField):
		p.state.Vars[key] = value
		p.logger.Info("program var updated", "key", key, "value", value)
		return nil
	default:
		p.logger.Warn("program config update rejected", "key", key, "value", value, "error", err)
		return err
	}
}

// ResetConfig restores the defaults and drops all environment variables.
func (p *Program) ResetConfig() {
	p.mu.Lock()
	p.state.Config = DefaultConfig()
	p.state.Vars = map[string]string{}
	p.mu.Unlock()
}

func (p *Program) resetAttempts() {
	p.mu.Lock()
	p.state.Attempts.Current = 0
	p.mu.Unlock()
}

// start spawns the program and arms its watcher. The write lock is held
// from the precondition check through the spawn so concurrent starts
// cannot double-spawn; everything slow (waiting, sleeping, killing)
// happens off-lock.
func (p *Program) start() error {
	executable := p.paths.Executable

	var cmd *exec.Cmd
	if filepath.Ext(executable) == ".sh" {
		cmd = exec.Command("bash", executable)
	} else {
		cmd = exec.Command(executable)
	}
	cmd.Dir = p.paths.WorkingDirectory()
	cmd.WaitDelay = waitTolerance
	setProcessGroup(cmd)

	limits := logsink.LimitsMB(p.cfg.LogSizeLimit(), p.cfg.LogFileLimit())
	sink, err := logsink.Open(p.paths.Logs, limits, p.logger, p.bc)
	if err != nil {
		p.logger.Error("program failed to start", "error", err)
		p.mu.Lock()
		p.state.setStatus(Failed(err.Error()))
		p.mu.Unlock()
		return fmt.Errorf("cannot open logs of %s: %w", p.name, err)
	}
	stdout := sink.StreamWriter(logsink.TagStdout)
	stderr := sink.StreamWriter(logsink.TagStderr)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	p.mu.Lock()
	if p.state.Status.Kind == StatusRunning {
		p.mu.Unlock()
		sink.Close()
		return ErrAlreadyRunning
	}

	env := os.Environ()
	for key, value := range p.state.Vars {
		env = append(env, key+"="+value)
	}
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		p.state.setStatus(Failed(err.Error()))
		p.mu.Unlock()
		sink.Close()
		p.logger.Error("program failed to start", "error", err)
		return fmt.Errorf("cannot start %s: %w", p.name, err)
	}

	p.state.setStatus(Running(cmd.Process.Pid))
	p.state.Executions++
	generation := p.state.generation
	p.mu.Unlock()

	p.logger.Info("program started", "pid", cmd.Process.Pid)
	go p.watch(cmd, sink, stdout, stderr, generation)
	return nil
}

// watch waits for the run that owns generation, classifies its exit and
// applies the restart policy. A generation mismatch means a newer start or
// stop took over; the watcher then leaves the state alone except for
// clearing the failure streak after a successful run.
func (p *Program) watch(cmd *exec.Cmd, sink *logsink.Sink, stdout, stderr *logsink.StreamWriter, generation uint64) {
	waitErr := cmd.Wait()
	stdout.Close()
	stderr.Close()
	sink.Close()

	var status Status
	ps := cmd.ProcessState
	switch {
	case ps != nil && ps.Success():
		p.logger.Info("program exited successfully")
		status = Finished(stdout.Tail())
	case ps != nil:
		code := exitCode(ps)
		if code != sigtermCode {
			p.logger.Error("program exited with an error", "code", code)
		}
		out := stderr.Tail()
		if out == "" {
			out = strconv.Itoa(code)
		}
		status = Errored(out)
	default:
		p.logger.Error("program encountered an unexpected error", "error", waitErr)
		status = Errored(waitErr.Error())
	}
	success := status.Kind == StatusFinished

	p.mu.Lock()
	if p.state.generation != generation {
		if success {
			p.state.Attempts.Current = 0
		}
		p.mu.Unlock()
		return
	}

	p.state.setStatus(status)

	if !p.state.Config.AutoRestart {
		p.mu.Unlock()
		p.logger.Warn("program will not restart: auto_restart disabled")
		return
	}
	if p.state.Attempts.Current >= p.state.Config.RestartAttempts {
		attempts := p.state.Attempts.Current
		p.mu.Unlock()
		p.logger.Warn("program will not restart: maximum restart attempts reached", "attempts", attempts)
		return
	}

	p.state.setStatus(Restarting())
	if success {
		p.state.Attempts.Current = 0
	} else {
		p.state.Attempts.Current++
		p.state.Attempts.Total++
	}
	attempts := p.state.Attempts.Current
	limit := p.state.Config.RestartAttempts
	delay := time.Duration(p.state.Config.RestartDelay) * time.Second
	p.mu.Unlock()

	if attempts > 0 {
		p.logger.Info("program will restart", "delay", delay, "attempt", fmt.Sprintf("%d/%d", attempts, limit))
	} else {
		p.logger.Info("program will restart", "delay", delay)
	}

	time.Sleep(delay)

	p.mu.RLock()
	stale := p.state.generation != generation
	p.mu.RUnlock()
	if !stale {
		// A failure here records status Failed and ends the chain.
		_ = p.start()
	}
}

// stop ends the current run. The status becomes Stopped first (advancing
// the generation so the watcher goes inert), then the whole process group
// is signalled. Stopping a program that is not running just records
// Stopped.
func (p *Program) stop() error {
	p.mu.Lock()
	if p.state.Status.Kind != StatusRunning {
		p.state.setStatus(Stopped())
		p.mu.Unlock()
		return nil
	}
	pid := p.state.Status.PID
	p.state.setStatus(Stopped())
	p.mu.Unlock()

	if err := killProcessGroup(pid); err != nil {
		p.logger.Error("program failed to stop", "pid", pid, "error", err)
		return fmt.Errorf("cannot stop %s: %w", p.name, err)
	}
	p.logger.Info("program stopped", "pid", pid)
	return nil
}
