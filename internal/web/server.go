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

package web

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/DervexDev/racky/internal/dirs"
	"github.com/DervexDev/racky/internal/installer"
	"github.com/DervexDev/racky/internal/logsink"
	"github.com/DervexDev/racky/internal/util"
	"github.com/DervexDev/racky/internal/version"
)

func (s *Server) serverStatus(w http.ResponseWriter, _ *http.Request) {
	var b strings.Builder

	b.WriteString("Server:\n")
	fmt.Fprintf(&b, "  Version: %s\n", version.Version)
	fmt.Fprintf(&b, "  Uptime: %s\n", util.FormatDuration(time.Since(s.core.StartTime())))
	fmt.Fprintf(&b, "  Start Time: %s\n", util.Timestamp(s.core.StartTime()))

	programs := s.core.Programs()
	var running []string
	for _, p := range programs {
		if p.IsActive() {
			running = append(running, p.Name())
		}
	}
	fmt.Fprintf(&b, "  Running Programs: %d/%d (%s)\n\n",
		len(running), len(programs), strings.Join(running, ", "))

	writeSystemReport(&b)

	respond(w, http.StatusOK, "%s", b.String())
}

func (s *Server) serverLogs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.FormValue("page"))

	logs, err := logsink.ReadPage(filepath.Join(dirs.Logs(), "racky"), page)
	if err != nil {
		respond(w, http.StatusBadRequest, "%v", err)
		return
	}
	respond(w, http.StatusOK, "%s", logs)
}

func (s *Server) serverConfig(w http.ResponseWriter, r *http.Request) {
	message, err := s.core.Config().Apply(r.FormValue("data"), formBool(r, "default"), formBool(r, "list"))
	if err != nil {
		respond(w, http.StatusInternalServerError, "%v", err)
		return
	}
	respond(w, http.StatusOK, "%s", message)
}

// serverStop replies before acting so the response still reaches the
// client. Under systemd the unit is stopped; otherwise the owner's
// shutdown hook tears the process down.
func (s *Server) serverStop(w http.ResponseWriter, _ *http.Request) {
	s.logger.Debug("server stopping in 1 second")

	util.Delay(time.Second, func() {
		if util.IsService() {
			service := util.ServiceName()
			if _, err := util.RunCommand("systemctl", "stop", service); err != nil {
				s.logger.Error(fmt.Sprintf("Failed to run `systemctl stop %s` command", service), "error", err)
			}
			return
		}
		if s.shutdown != nil {
			s.shutdown()
			return
		}
		os.Exit(0)
	})

	respond(w, http.StatusOK, "Server stopping in 1 second...")
}

func (s *Server) serverRestart(w http.ResponseWriter, _ *http.Request) {
	if !util.IsService() {
		respond(w, http.StatusBadRequest,
			"Restarting the server is currently only supported on Linux systems running Racky as a service!")
		return
	}

	s.logger.Debug("server restarting in 1 second")

	util.Delay(time.Second, func() {
		service := util.ServiceName()
		if _, err := util.RunCommand("systemctl", "restart", service); err != nil {
			s.logger.Error(fmt.Sprintf("Failed to run `systemctl restart %s` command", service), "error", err)
		}
	})

	respond(w, http.StatusOK, "Server restarting in 1 second...")
}

func (s *Server) serverShutdown(w http.ResponseWriter, _ *http.Request) {
	name, args := shutdownCommand(false)
	if _, err := util.RunCommand(name, args...); err != nil {
		s.logger.Error("server failed to shut down", "error", err)
		respond(w, http.StatusInternalServerError, "Failed to run `%s` command: %v", commandLine(name, args), err)
		return
	}

	s.logger.Debug("server shutting down")
	respond(w, http.StatusOK, "Server shutting down...")
}

func (s *Server) serverReboot(w http.ResponseWriter, _ *http.Request) {
	name, args := shutdownCommand(true)
	if _, err := util.RunCommand(name, args...); err != nil {
		s.logger.Error("server failed to reboot", "error", err)
		respond(w, http.StatusInternalServerError, "Failed to run `%s` command: %v", commandLine(name, args), err)
		return
	}

	s.logger.Debug("server rebooting")
	respond(w, http.StatusOK, "Server rebooting...")
}

func (s *Server) serverUpdate(w http.ResponseWriter, _ *http.Request) {
	if err := installer.Update(false); err != nil {
		s.logger.Error("server failed to update", "error", err)
		respond(w, http.StatusInternalServerError, "%v", err)
		return
	}

	s.logger.Debug("server has been updated")
	respond(w, http.StatusOK, "Server updated successfully. Restart it for the changes to take effect")
}

func shutdownCommand(reboot bool) (string, []string) {
	if runtime.GOOS == "windows" {
		if reboot {
			return "shutdown", []string{"/r", "/t", "0"}
		}
		return "shutdown", []string{"/s", "/t", "0"}
	}
	if reboot {
		return "shutdown", []string{"-r", "now"}
	}
	return "shutdown", []string{"now"}
}

func commandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
