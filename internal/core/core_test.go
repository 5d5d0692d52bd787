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
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/DervexDev/racky/internal/config"
	"github.com/DervexDev/racky/internal/dirs"
)

func testLogger(t *testing.T) hclog.Logger {
	t.Helper()
	return hclog.New(&hclog.LoggerOptions{Output: io.Discard})
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("program scripts are driven through bash")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash is not installed")
	}
}

// installProgram lays the program out under the Racky home and registers
// it. The script must exist before the handle is built, otherwise the
// executable resolves to the .sh sibling fallback.
func installProgram(t *testing.T, c *Core, name, script string) *Program {
	t.Helper()
	writeScript(t, filepath.Join(dirs.Bin(), name, "racky.sh"), script)
	p := c.NewProgram(name)
	if err := c.AddProgram(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func waitForStatus(t *testing.T, p *Program, kind StatusKind) Status {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if st := p.Status(); st.Kind == kind {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out, last status was %s", p.Status())
	return Status{}
}

func waitUntil(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for", desc)
}

func TestStartProgramFinishes(t *testing.T) {
	requireShell(t)
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	c := New(config.New(), testLogger(t))

	p := installProgram(t, c, "myprog", "#!/bin/sh\necho all done\n")
	if err := p.UpdateConfig("auto_restart", "false"); err != nil {
		t.Fatal(err)
	}
	if err := c.StartProgram(p); err != nil {
		t.Fatal(err)
	}

	status := waitForStatus(t, p, StatusFinished)
	if status.Payload != "all done" {
		t.Errorf("unexpected payload: %q", status.Payload)
	}
	if n := p.State().Executions; n != 1 {
		t.Error("unexpected execution count:", n)
	}
	if p.IsActive() {
		t.Error("a finished program is not active")
	}
}

func TestProgramEnvironment(t *testing.T) {
	requireShell(t)
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	c := New(config.New(), testLogger(t))

	p := installProgram(t, c, "myprog", "#!/bin/sh\necho value is $MY_VAR\n")
	if err := p.UpdateConfig("auto_restart", "false"); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateConfig("MY_VAR", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := c.StartProgram(p); err != nil {
		t.Fatal(err)
	}

	if status := waitForStatus(t, p, StatusFinished); status.Payload != "value is hello" {
		t.Errorf("unexpected payload: %q", status.Payload)
	}
}

func TestProgramRestartAttempts(t *testing.T) {
	requireShell(t)
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	c := New(config.New(), testLogger(t))

	p := installProgram(t, c, "myprog", "#!/bin/sh\necho bad >&2\nexit 1\n")
	if err := p.UpdateConfig("restart_delay", "0"); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateConfig("restart_attempts", "2"); err != nil {
		t.Fatal(err)
	}
	if err := c.StartProgram(p); err != nil {
		t.Fatal(err)
	}

	// Initial run plus two restart attempts, then the supervisor gives up.
	waitUntil(t, "the restart chain to end", func() bool {
		return p.State().Executions == 3 && p.Status().Kind == StatusErrored
	})

	state := p.State()
	if state.Attempts.Current != 2 || state.Attempts.Total != 2 {
		t.Error("unexpected attempt counters:", state.Attempts)
	}
	if state.Status.Payload != "bad" {
		t.Errorf("unexpected payload: %q", state.Status.Payload)
	}
	if p.IsActive() {
		t.Error("a given-up program is not active")
	}
}

func TestStopRunningProgram(t *testing.T) {
	requireShell(t)
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	c := New(config.New(), testLogger(t))

	p := installProgram(t, c, "myprog", "#!/bin/sh\nsleep 30\n")
	if err := p.UpdateConfig("auto_restart", "false"); err != nil {
		t.Fatal(err)
	}
	if err := c.StartProgram(p); err != nil {
		t.Fatal(err)
	}

	if status := waitForStatus(t, p, StatusRunning); status.PID <= 0 {
		t.Error("a running program should report its pid, got", status.PID)
	}
	if err := c.StopProgram(p); err != nil {
		t.Fatal(err)
	}
	if status := p.Status(); status.Kind != StatusStopped {
		t.Error("unexpected status after stop:", status)
	}

	// The superseded watcher must not overwrite the stop.
	time.Sleep(100 * time.Millisecond)
	if status := p.Status(); status.Kind != StatusStopped {
		t.Error("the watcher overwrote the stop:", status)
	}

	if err := c.StopProgram(p); !errors.Is(err, ErrNotRunning) {
		t.Error("expected ErrNotRunning, got:", err)
	}
}

func TestStartProgramWhileRunning(t *testing.T) {
	requireShell(t)
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	c := New(config.New(), testLogger(t))

	p := installProgram(t, c, "myprog", "#!/bin/sh\nsleep 30\n")
	if err := p.UpdateConfig("auto_restart", "false"); err != nil {
		t.Fatal(err)
	}
	if err := c.StartProgram(p); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, p, StatusRunning)

	if err := c.StartProgram(p); !errors.Is(err, ErrAlreadyRunning) {
		t.Error("expected ErrAlreadyRunning, got:", err)
	}
	if err := c.StopProgram(p); err != nil {
		t.Fatal(err)
	}
}

func TestStopProgramNeverStarted(t *testing.T) {
	t.Setenv("RACKY_HOME", t.TempDir())
	c := New(config.New(), testLogger(t))

	p := c.NewProgram("myprog")
	if err := c.StopProgram(p); !errors.Is(err, ErrNotRunning) {
		t.Error("expected ErrNotRunning, got:", err)
	}
}

func TestAddRemoveProgram(t *testing.T) {
	t.Setenv("RACKY_HOME", t.TempDir())
	c := New(config.New(), testLogger(t))

	p := c.NewProgram("myprog")
	if err := c.AddProgram(p); err != nil {
		t.Fatal(err)
	}
	if err := c.AddProgram(c.NewProgram("myprog")); !errors.Is(err, ErrAlreadyExists) {
		t.Error("expected ErrAlreadyExists, got:", err)
	}

	removed, ok := c.RemoveProgram("myprog")
	if !ok || removed != p {
		t.Error("expected the registered handle back")
	}
	if _, ok := c.Program("myprog"); ok {
		t.Error("the program should be gone from the registry")
	}
	if _, ok := c.RemoveProgram("myprog"); ok {
		t.Error("removing twice should report a miss")
	}
}

func TestProgramsSorted(t *testing.T) {
	t.Setenv("RACKY_HOME", t.TempDir())
	c := New(config.New(), testLogger(t))

	for _, name := range []string{"gamma", "alpha", "beta"} {
		if err := c.AddProgram(c.NewProgram(name)); err != nil {
			t.Fatal(err)
		}
	}

	programs := c.Programs()
	if l := len(programs); l != 3 {
		t.Fatal("unexpected program count:", l)
	}
	for i, expected := range []string{"alpha", "beta", "gamma"} {
		if got := programs[i].Name(); got != expected {
			t.Errorf("position %d: expected %q, got %q", i, expected, got)
		}
	}
}

func TestStartAll(t *testing.T) {
	requireShell(t)
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	c := New(config.New(), testLogger(t))

	// alpha is a healthy autostart program.
	writeScript(t, filepath.Join(dirs.Bin(), "alpha", "racky.sh"), "#!/bin/sh\necho hi\n")
	writeConfig(t, "alpha", "auto_start = true\nauto_restart = false\n")

	// beta wants to autostart but its executable cannot be spawned.
	if err := os.WriteFile(filepath.Join(dirs.Bin(), "beta"), []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, "beta", "auto_start = true\n")

	// gamma is installed but not marked for autostart.
	writeScript(t, filepath.Join(dirs.Bin(), "gamma", "racky.sh"), "#!/bin/sh\necho hi\n")
	writeConfig(t, "gamma", "auto_start = false\n")

	// The server's own config and stray entries must be skipped.
	writeConfig(t, "racky", "port = 5001\n")
	if err := os.WriteFile(filepath.Join(dirs.Config(), "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dirs.Config(), "stray"), 0o755); err != nil {
		t.Fatal(err)
	}

	started, total := c.StartAll()
	if started != 1 || total != 2 {
		t.Errorf("expected 1 of 2 programs to start, got %d of %d", started, total)
	}

	alpha, ok := c.Program("alpha")
	if !ok {
		t.Fatal("alpha should be registered")
	}
	waitForStatus(t, alpha, StatusFinished)

	beta, ok := c.Program("beta")
	if !ok {
		t.Fatal("beta should stay registered after a failed spawn")
	}
	if status := beta.Status(); status.Kind != StatusFailed {
		t.Error("unexpected beta status:", status)
	}

	if _, ok := c.Program("gamma"); ok {
		t.Error("gamma should not be registered")
	}
	if _, ok := c.Program("racky"); ok {
		t.Error("the server config is not a program")
	}
}

func TestShutdown(t *testing.T) {
	requireShell(t)
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	c := New(config.New(), testLogger(t))

	first := installProgram(t, c, "first", "#!/bin/sh\nsleep 30\n")
	second := installProgram(t, c, "second", "#!/bin/sh\nsleep 30\n")
	idle := c.NewProgram("third")
	if err := c.AddProgram(idle); err != nil {
		t.Fatal(err)
	}

	for _, p := range []*Program{first, second} {
		if err := p.UpdateConfig("auto_restart", "false"); err != nil {
			t.Fatal(err)
		}
		if err := c.StartProgram(p); err != nil {
			t.Fatal(err)
		}
		waitForStatus(t, p, StatusRunning)
	}

	if err := c.Shutdown(); err != nil {
		t.Fatal("unexpected shutdown error:", err)
	}
	if status := first.Status(); status.Kind != StatusStopped {
		t.Error("first should be stopped, got", status)
	}
	if status := second.Status(); status.Kind != StatusStopped {
		t.Error("second should be stopped, got", status)
	}
	if status := idle.Status(); status.Kind != StatusIdle {
		t.Error("an idle program should stay untouched, got", status)
	}
}

func writeConfig(t *testing.T, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dirs.Config(), name+".toml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
