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

	"github.com/DervexDev/racky/internal/dirs"
)

// entryScript is the executable a program directory must carry, either at
// its root or under scripts/.
const entryScript = "racky.sh"

// Paths locates everything that belongs to one program: the executable,
// the config file and the log directory.
type Paths struct {
	Executable string
	Config     string
	Logs       string
}

// PathsFromPath resolves the executable for an arbitrary filesystem entry:
// a directory is entered through racky.sh (or scripts/racky.sh), a missing
// path falls back to a sibling <name>.sh script, an existing file is used
// as is. Config and Logs stay empty.
func PathsFromPath(path string) Paths {
	executable := path

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		script := filepath.Join(path, entryScript)
		if _, err := os.Stat(script); err != nil {
			script = filepath.Join(path, "scripts", entryScript)
		}
		executable = script
	} else if err != nil {
		executable = filepath.Join(filepath.Dir(path), filepath.Base(path)+".sh")
	}

	return Paths{Executable: executable}
}

// PathsFromName resolves a program by name inside the Racky layout.
func PathsFromName(name string) Paths {
	paths := PathsFromPath(filepath.Join(dirs.Bin(), name))
	paths.Config = filepath.Join(dirs.Config(), name+".toml")
	paths.Logs = filepath.Join(dirs.Logs(), name)
	return paths
}

// IsValid reports whether the resolved executable exists.
func (p Paths) IsValid() bool {
	_, err := os.Stat(p.Executable)
	return err == nil
}

// ProgramRoot is the filesystem entry that represents the program: the
// directory containing racky.sh (its grandparent when the script lives
// under scripts/), or the executable itself.
func (p Paths) ProgramRoot() string {
	if filepath.Base(p.Executable) != entryScript {
		return p.Executable
	}
	parent := filepath.Dir(p.Executable)
	if filepath.Base(parent) == "scripts" {
		return filepath.Dir(parent)
	}
	return parent
}

// WorkingDirectory is where the program runs: its root when the root is a
// directory, the root's parent otherwise.
func (p Paths) WorkingDirectory() string {
	root := p.ProgramRoot()
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return root
	}
	return filepath.Dir(root)
}
