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

// Package installer sets Racky up on a machine: the directory tree, the
// default config, the binary under bin/, the systemd unit for servers,
// and self-updates from GitHub releases.
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/DervexDev/racky/internal/config"
	"github.com/DervexDev/racky/internal/dirs"
	"github.com/DervexDev/racky/internal/util"
)

const systemdService = `[Unit]
Description=Racky Server (%[1]s)
After=network.target

[Service]
ExecStart=/home/%[1]s/.racky/bin/racky server start -vvvv -y
Environment=HOME=/home/%[1]s SUDO_USER=%[1]s
Restart=always

[Install]
WantedBy=default.target
`

const systemdDir = "/etc/systemd/system"

// Install lays down the Racky home. With server set it additionally
// writes, enables and starts the systemd unit, which only works on
// Linux. force overwrites files a previous install left behind.
func Install(logger hclog.Logger, server, force bool) error {
	if err := dirs.Ensure(); err != nil {
		return err
	}

	bin := dirs.Bin()
	if !pathListed(bin) {
		logger.Warn(fmt.Sprintf(
			"%s is not in your PATH. Add it to use Racky from your shell!", bin))
	}

	if _, err := os.Stat(config.Path()); err != nil || force {
		if err := config.New().Save(); err != nil {
			logger.Warn(fmt.Sprintf("Failed to create config file at %s", config.Path()), "error", err)
		}
	}

	if err := installExecutable(bin, force); err != nil {
		return err
	}

	if !server {
		return nil
	}
	if runtime.GOOS != "linux" {
		return fmt.Errorf("Racky server is currently only supported on Linux!")
	}

	service := util.ServiceName()
	servicePath := filepath.Join(systemdDir, service+".service")

	if err := os.MkdirAll(systemdDir, 0o755); err != nil {
		return fmt.Errorf("Failed to create service directory: %w", err)
	}

	if _, err := os.Stat(servicePath); err != nil || force {
		user, err := util.User()
		if err != nil {
			return fmt.Errorf("Failed to create service file: %w", err)
		}
		unit := fmt.Sprintf(systemdService, user)
		if err := os.WriteFile(servicePath, []byte(unit), 0o644); err != nil {
			return fmt.Errorf("Failed to create service file: %w", err)
		}
	}

	if out, err := util.RunCommand("systemctl", "enable", service); err != nil {
		logger.Error(fmt.Sprintf(
			"Failed to enable Racky service! Try running `sudo systemctl enable %s` manually", service), "error", err)
	} else {
		logger.Trace("racky service enabled", "output", out)
	}

	if out, err := util.RunCommand("systemctl", "start", service); err != nil {
		logger.Error(fmt.Sprintf(
			"Failed to start Racky service! Try running `sudo systemctl start %s` manually", service), "error", err)
	} else {
		logger.Trace("racky service started", "output", out)
	}

	return nil
}

// Uninstall removes the whole Racky home, programs and logs included.
func Uninstall() error {
	if err := os.RemoveAll(dirs.Racky()); err != nil {
		return fmt.Errorf("Failed to remove `.racky` directory: %w", err)
	}
	return nil
}

// installExecutable copies the running binary into bin/ unless it is
// already running from there.
func installExecutable(bin string, force bool) error {
	target := filepath.Join(bin, executableName())

	current, err := os.Executable()
	if err != nil {
		return fmt.Errorf("Failed to copy Racky executable to bin directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(current); err == nil {
		current = resolved
	}

	if _, err := os.Stat(target); err == nil && !force {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(target); err == nil && resolved == current {
		return nil
	}

	data, err := os.ReadFile(current)
	if err != nil {
		return fmt.Errorf("Failed to copy Racky executable to bin directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o755); err != nil {
		return fmt.Errorf("Failed to copy Racky executable to bin directory: %w", err)
	}
	return nil
}

func executableName() string {
	if runtime.GOOS == "windows" {
		return "racky.exe"
	}
	return "racky"
}

// pathListed reports whether dir already appears in $PATH.
func pathListed(dir string) bool {
	for _, entry := range filepath.SplitList(os.Getenv("PATH")) {
		if entry == dir {
			return true
		}
	}
	return false
}
