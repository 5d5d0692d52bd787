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

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"

	"github.com/DervexDev/racky/internal/dirs"
)

// snapshotLines renders every recognized setting as key=value, the shape
// the _testdata fixtures expect.
func snapshotLines(c *Config) string {
	var b strings.Builder
	for _, field := range serverSchema {
		value, _ := c.Get(field.Name)
		b.WriteString(field.Name + "=" + value + "\n")
	}
	return strings.TrimSpace(b.String())
}

func TestLoad(t *testing.T) {
	err := filepath.Walk("_testdata", func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".txtar" {
			return nil
		}
		archive, err := txtar.ParseFile(path)
		if err != nil {
			return err
		}
		var stored []byte
		var expected string
		for _, f := range archive.Files {
			switch f.Name {
			case "racky.toml":
				stored = f.Data
			case "expected":
				expected = string(f.Data)
			}
		}
		t.Run(path, func(t *testing.T) {
			t.Setenv("RACKY_HOME", t.TempDir())
			if err := dirs.Ensure(); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(Path(), stored, 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("cannot load config (%q): %v", path, err)
			}
			if got := snapshotLines(cfg); got != strings.TrimSpace(expected) {
				t.Log("got:", got)
				t.Log("expected:", strings.TrimSpace(expected))
				t.Error("config loading is broken")
			}
		})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("RACKY_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal("a missing config file should not be an error:", err)
	}
	if !cmp.Equal(cfg.Snapshot(), Defaults()) {
		t.Error("missing file should load as defaults")
	}
}

func TestLoadBadValue(t *testing.T) {
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(), []byte(`port = "eighty"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("a malformed setting value should fail the load")
	}
}

func TestSaveOnlyStoresOverrides(t *testing.T) {
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}

	cfg := New()
	if err := cfg.Set("port", "8080"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatal("unexpected error", err)
	}

	raw, err := os.ReadFile(Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "port = 8080") {
		t.Errorf("changed setting missing from file:\n%s", raw)
	}
	if strings.Contains(string(raw), "alias") {
		t.Errorf("default settings should not be stored:\n%s", raw)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if loaded.Port() != 8080 {
		t.Error("saved setting did not survive the trip, got", loaded.Port())
	}
}

func TestApply(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		t.Setenv("RACKY_HOME", t.TempDir())
		cfg := New()

		message, err := cfg.Apply("", false, true)
		if err != nil {
			t.Fatal("unexpected error", err)
		}
		if !strings.HasPrefix(message, "Server configuration:\n") {
			t.Errorf("unexpected message %q", message)
		}
		if strings.Contains(message, "Current") {
			t.Error("defaults-only table should not carry a Current column")
		}

		if err := cfg.Set("port", "9000"); err != nil {
			t.Fatal(err)
		}
		message, err = cfg.Apply("", false, true)
		if err != nil {
			t.Fatal("unexpected error", err)
		}
		if !strings.Contains(message, "Current") {
			t.Error("table should grow a Current column once a setting differs")
		}
		if !strings.Contains(message, "9000") {
			t.Error("changed value missing from the table")
		}
	})

	t.Run("pairs", func(t *testing.T) {
		t.Setenv("RACKY_HOME", t.TempDir())
		if err := dirs.Ensure(); err != nil {
			t.Fatal(err)
		}
		cfg := New()

		message, err := cfg.Apply("port=9000,alias=main", false, false)
		if err != nil {
			t.Fatal("unexpected error", err)
		}
		if message != "Server configuration updated successfully (2 changed)" {
			t.Errorf("unexpected message %q", message)
		}
		if v := cfg.Snapshot(); v.Port != 9000 || v.Alias != "main" {
			t.Errorf("settings not applied: %+v", v)
		}

		// An empty value asks for the default back.
		message, err = cfg.Apply("port=", false, false)
		if err != nil {
			t.Fatal("unexpected error", err)
		}
		if message != "Server configuration updated successfully (1 changed)" {
			t.Errorf("unexpected message %q", message)
		}
		if cfg.Port() != 5000 {
			t.Error("empty value should restore the default, got", cfg.Port())
		}

		message, err = cfg.Apply("alias=main", false, false)
		if err != nil {
			t.Fatal("unexpected error", err)
		}
		if message != "Server configuration updated successfully (0 changed)" {
			t.Errorf("re-applying the same value should count zero changes, got %q", message)
		}
	})

	t.Run("restore defaults", func(t *testing.T) {
		t.Setenv("RACKY_HOME", t.TempDir())
		if err := dirs.Ensure(); err != nil {
			t.Fatal(err)
		}
		cfg := New()
		if err := cfg.Set("port", "9000"); err != nil {
			t.Fatal(err)
		}

		message, err := cfg.Apply("", true, false)
		if err != nil {
			t.Fatal("unexpected error", err)
		}
		if message != "Server configuration restored to defaults successfully" {
			t.Errorf("unexpected message %q", message)
		}
		if !cmp.Equal(cfg.Snapshot(), Defaults()) {
			t.Error("settings were not restored")
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Setenv("RACKY_HOME", t.TempDir())
		cfg := New()

		if _, err := cfg.Apply("", false, false); err == nil {
			t.Error("no pairs should be an error")
		}
		if _, err := cfg.Apply("junk", false, false); err == nil || !strings.Contains(err.Error(), "Invalid key=value") {
			t.Errorf("malformed pair should be rejected, got %v", err)
		}
		if _, err := cfg.Apply("nope=1", false, false); !errors.Is(err, ErrUnknownField) {
			t.Errorf("unknown setting should be ErrUnknownField, got %v", err)
		}
		if _, err := cfg.Apply("port=eighty", false, false); err == nil {
			t.Error("unparsable value should be rejected")
		}
	})
}

func TestSchemaFields(t *testing.T) {
	cfg := New()

	if _, ok := cfg.Get("nope"); ok {
		t.Error("unknown setting should not resolve")
	}
	if value, ok := cfg.Get("log_file_limit"); !ok || value != "8" {
		t.Errorf("unexpected log_file_limit %q (%v)", value, ok)
	}
	if err := cfg.Set("port", "70000"); err == nil {
		t.Error("ports beyond 65535 should be rejected")
	}
	if err := cfg.Set("log_size_limit", "-1"); err == nil {
		t.Error("negative sizes should be rejected")
	}
}
