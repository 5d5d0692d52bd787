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

package util

import (
	"runtime"
	"strings"
	"testing"
	"time"

	hclog "github.com/hashicorp/go-hclog"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{500 * time.Millisecond, "0s"},
		{-3 * time.Second, "0s"},
		{5 * time.Second, "5s"},
		{65 * time.Second, "1m 5s"},
		{time.Hour + 5*time.Second, "1h 0m 5s"},
		{24 * time.Hour, "1d 0h 0m 0s"},
		{2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second, "2d 3h 4m 5s"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 123456789, time.UTC)
	if got := Timestamp(at); got != "2026-03-14 15:09:26" {
		t.Errorf("unexpected timestamp %q", got)
	}
}

func TestUser(t *testing.T) {
	t.Setenv("SUDO_USER", "alice")
	t.Setenv("USER", "bob")
	if u, err := User(); err != nil || u != "alice" {
		t.Errorf("sudo user should win, got %q (%v)", u, err)
	}

	t.Setenv("SUDO_USER", "")
	if u, err := User(); err != nil || u != "bob" {
		t.Errorf("login user should be the fallback, got %q (%v)", u, err)
	}
}

func TestServiceName(t *testing.T) {
	t.Setenv("SUDO_USER", "alice")
	if got := ServiceName(); got != "racky-alice" {
		t.Errorf("unexpected service name %q", got)
	}
}

func TestVerbosityLevel(t *testing.T) {
	cases := map[string]hclog.Level{
		"off":    hclog.Off,
		"error":  hclog.Error,
		"WARN":   hclog.Warn,
		" info ": hclog.Info,
		"debug":  hclog.Debug,
		"trace":  hclog.Trace,
		"":       hclog.Error,
		"junk":   hclog.Error,
	}
	for in, want := range cases {
		if got := VerbosityLevel(in); got != want {
			t.Errorf("VerbosityLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseColorMode(t *testing.T) {
	cases := map[string]ColorMode{
		"always": ColorAlways,
		"ALWAYS": ColorAlways,
		"never":  ColorNever,
		"auto":   ColorAuto,
		"":       ColorAuto,
		"junk":   ColorAuto,
	}
	for in, want := range cases {
		if got := ParseColorMode(in); got != want {
			t.Errorf("ParseColorMode(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEnvSwitches(t *testing.T) {
	t.Setenv("RUST_YES", "true")
	if !EnvYes() {
		t.Error("RUST_YES=true should count as yes")
	}
	t.Setenv("RUST_YES", "no")
	if EnvYes() {
		t.Error("RUST_YES=no should not count as yes")
	}

	t.Setenv("RUST_BACKTRACE", "full")
	if !EnvBacktrace() {
		t.Error("RUST_BACKTRACE=full should enable backtraces")
	}
	t.Setenv("RUST_BACKTRACE", "0")
	if EnvBacktrace() {
		t.Error("RUST_BACKTRACE=0 should disable backtraces")
	}
}

func TestPrompt(t *testing.T) {
	t.Run("assume yes skips reading", func(t *testing.T) {
		var out strings.Builder
		if !Prompt(strings.NewReader(""), &out, "sure?", false, true) {
			t.Error("assumeYes should answer true")
		}
		if out.Len() != 0 {
			t.Error("assumeYes should not print the question")
		}
	})
	t.Run("explicit answers", func(t *testing.T) {
		var out strings.Builder
		if !Prompt(strings.NewReader("y\n"), &out, "sure?", false, false) {
			t.Error("y should answer true")
		}
		if Prompt(strings.NewReader("no\n"), &out, "sure?", true, false) {
			t.Error("no should answer false")
		}
	})
	t.Run("empty line keeps the default", func(t *testing.T) {
		var out strings.Builder
		if !Prompt(strings.NewReader("\n"), &out, "sure?", true, false) {
			t.Error("empty line should keep default true")
		}
		if Prompt(strings.NewReader("\n"), &out, "sure?", false, false) {
			t.Error("empty line should keep default false")
		}
	})
	t.Run("eof keeps the default", func(t *testing.T) {
		var out strings.Builder
		if !Prompt(strings.NewReader(""), &out, "sure?", true, false) {
			t.Error("eof should keep the default")
		}
	})
	t.Run("hint follows the default", func(t *testing.T) {
		var out strings.Builder
		Prompt(strings.NewReader("\n"), &out, "sure?", true, false)
		if !strings.Contains(out.String(), "[Y/n]") {
			t.Errorf("question should carry the Y/n hint, got %q", out.String())
		}
	})
}

func TestRunCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	out, err := RunCommand("sh", "-c", "echo hi")
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if strings.TrimSpace(out) != "hi" {
		t.Errorf("unexpected output %q", out)
	}

	_, err = RunCommand("sh", "-c", "echo broken >&2; exit 1")
	if err == nil || err.Error() != "broken" {
		t.Errorf("stderr should become the error text, got %v", err)
	}
}

func TestDelay(t *testing.T) {
	done := make(chan struct{})
	Delay(10*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("delayed function never ran")
	}
}

func TestTable(t *testing.T) {
	table := NewTable("Alias", "Address")
	table.AddRow("a", "localhost")
	table.AddRow("backup", "10.0.0.2")

	want := strings.Join([]string{
		"Alias   Address",
		"a       localhost",
		"backup  10.0.0.2",
	}, "\n")
	if got := table.String(); got != want {
		t.Errorf("unexpected table rendering\ngot:\n%s\nwant:\n%s", got, want)
	}
}
