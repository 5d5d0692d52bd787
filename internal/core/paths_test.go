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
	"os"
	"path/filepath"
	"testing"

	"github.com/DervexDev/racky/internal/dirs"
)

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestPathsFromPathDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "myprog")
	writeScript(t, filepath.Join(root, "racky.sh"), "#!/bin/sh\n")

	p := PathsFromPath(root)
	if p.Executable != filepath.Join(root, "racky.sh") {
		t.Error("unexpected executable:", p.Executable)
	}
	if !p.IsValid() {
		t.Error("expected a valid program")
	}
	if p.ProgramRoot() != root {
		t.Error("unexpected root:", p.ProgramRoot())
	}
	if p.WorkingDirectory() != root {
		t.Error("unexpected working directory:", p.WorkingDirectory())
	}
}

func TestPathsFromPathScriptsSubdirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "myprog")
	writeScript(t, filepath.Join(root, "scripts", "racky.sh"), "#!/bin/sh\n")

	p := PathsFromPath(root)
	if p.Executable != filepath.Join(root, "scripts", "racky.sh") {
		t.Error("unexpected executable:", p.Executable)
	}
	if !p.IsValid() {
		t.Error("expected a valid program")
	}
	if p.ProgramRoot() != root {
		t.Error("the root should be the scripts directory's parent, got", p.ProgramRoot())
	}
	if p.WorkingDirectory() != root {
		t.Error("unexpected working directory:", p.WorkingDirectory())
	}
}

func TestPathsFromPathFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "server.jar")
	writeScript(t, file, "binary")

	p := PathsFromPath(file)
	if p.Executable != file {
		t.Error("unexpected executable:", p.Executable)
	}
	if !p.IsValid() {
		t.Error("expected a valid program")
	}
	if p.ProgramRoot() != file {
		t.Error("a plain file is its own root, got", p.ProgramRoot())
	}
	if p.WorkingDirectory() != filepath.Dir(file) {
		t.Error("unexpected working directory:", p.WorkingDirectory())
	}
}

func TestPathsFromPathMissing(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "myprog")

	p := PathsFromPath(missing)
	if p.Executable != missing+".sh" {
		t.Error("a missing path should fall back to its .sh sibling, got", p.Executable)
	}
	if p.IsValid() {
		t.Error("expected an invalid program")
	}

	writeScript(t, missing+".sh", "#!/bin/sh\n")
	if !p.IsValid() {
		t.Error("expected the sibling script to validate the program")
	}
}

func TestPathsFromName(t *testing.T) {
	t.Setenv("RACKY_HOME", t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	writeScript(t, filepath.Join(dirs.Bin(), "myprog", "racky.sh"), "#!/bin/sh\n")

	p := PathsFromName("myprog")
	if p.Executable != filepath.Join(dirs.Bin(), "myprog", "racky.sh") {
		t.Error("unexpected executable:", p.Executable)
	}
	if p.Config != filepath.Join(dirs.Config(), "myprog.toml") {
		t.Error("unexpected config path:", p.Config)
	}
	if p.Logs != filepath.Join(dirs.Logs(), "myprog") {
		t.Error("unexpected log directory:", p.Logs)
	}
	if !p.IsValid() {
		t.Error("expected a valid program")
	}
}
