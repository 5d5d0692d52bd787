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

// Package util carries the small shared helpers: timestamp and duration
// rendering, environment compatibility switches and the systemd service
// naming scheme.
package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"
)

// Timestamp renders a local wall-clock time the way every Racky surface
// displays it.
func Timestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// FormatDuration renders whole-second durations as "2d 3h 4m 5s", dropping
// leading zero units. Sub-second durations render as "0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)

	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60
	seconds := secs % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 || b.Len() > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if minutes > 0 || b.Len() > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
	}
	fmt.Fprintf(&b, "%ds", seconds)
	return b.String()
}

// User is the account Racky acts for: SUDO_USER when running under sudo,
// the login user otherwise.
func User() (string, error) {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u, nil
	}
	if u := os.Getenv("USER"); u != "" {
		return u, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("cannot determine current user: %w", err)
	}
	return u.Username, nil
}

// ServiceName is the per-user systemd unit name, or plain "racky" when
// the user cannot be determined.
func ServiceName() string {
	u, err := User()
	if err != nil {
		return "racky"
	}
	return "racky-" + u
}

// RunCommand executes a program and returns its stdout. A non-zero exit
// surfaces the command's stderr as the error text.
func RunCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", errors.New(strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// IsService reports whether the process runs under systemd on Linux.
func IsService() bool {
	return runtime.GOOS == "linux" && os.Getenv("INVOCATION_ID") != ""
}

// Delay schedules fn after d without blocking the caller.
func Delay(d time.Duration, fn func()) {
	go func() {
		time.Sleep(d)
		fn()
	}()
}

// EnvYes reads the RUST_YES compatibility switch.
func EnvYes() bool {
	v := strings.ToLower(os.Getenv("RUST_YES"))
	return v == "1" || v == "true" || v == "yes"
}

// EnvBacktrace reads the RUST_BACKTRACE compatibility switch.
func EnvBacktrace() bool {
	v := strings.ToLower(os.Getenv("RUST_BACKTRACE"))
	return v == "1" || v == "true" || v == "full"
}

// VerbosityLevel maps a RUST_VERBOSE value to a log level. Unknown values
// fall back to Error, the quietest level the CLI still surfaces.
func VerbosityLevel(v string) hclog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "off":
		return hclog.Off
	case "error":
		return hclog.Error
	case "warn":
		return hclog.Warn
	case "info":
		return hclog.Info
	case "debug":
		return hclog.Debug
	case "trace":
		return hclog.Trace
	default:
		return hclog.Error
	}
}

// ColorMode is the terminal coloring policy.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode maps --color values and RUST_LOG_STYLE to a ColorMode.
func ParseColorMode(v string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Prompt asks a yes/no question on the terminal. assumeYes answers it
// without asking, def is the answer for an empty line.
func Prompt(in io.Reader, out io.Writer, question string, def, assumeYes bool) bool {
	if assumeYes {
		return true
	}

	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(out, "%s [%s]: ", question, hint)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}
