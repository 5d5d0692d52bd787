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
	"io"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/DervexDev/racky/internal/archive"
	"github.com/DervexDev/racky/internal/core"
	"github.com/DervexDev/racky/internal/dirs"
	"github.com/DervexDev/racky/internal/logsink"
	"github.com/DervexDev/racky/internal/util"
)

// readUpload drains a multipart body: the zip archive travels in the
// `file` field, every other field is a textual setting. Mirrors a
// best-effort reader: a torn part ends the scan but keeps what arrived.
func readUpload(r *http.Request) (data []byte, settings map[string]string) {
	settings = map[string]string{}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, settings
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return data, settings
		}
		value, err := io.ReadAll(part)
		if err != nil {
			return data, settings
		}
		if part.FormName() == "file" {
			data = value
		} else {
			settings[part.FormName()] = string(value)
		}
	}
}

func (s *Server) programAdd(w http.ResponseWriter, r *http.Request) {
	data, settings := readUpload(r)
	if data == nil {
		respond(w, http.StatusBadRequest, "missing multipart field `file` (program)")
		return
	}

	name, err := archive.RootName(data)
	if err != nil {
		respond(w, http.StatusInternalServerError, "Failed to get name of zipped program: %v", err)
		return
	}

	bin := dirs.Bin()
	if exists(filepath.Join(bin, name)) || exists(filepath.Join(bin, name+".sh")) {
		respond(w, http.StatusConflict, "Program %s already exists", pretty(r, name))
		return
	}

	if err := archive.Decompress(data, bin); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to decompress zipped program: %v", err)
		return
	}
	s.logger.Trace("decompressed program archive", "program", name, "size", humanize.Bytes(uint64(len(data))))

	p := s.core.NewProgram(name)
	total := len(settings)
	failed := 0

	for key, value := range settings {
		if err := p.UpdateConfig(key, value); err != nil {
			s.logger.Warn("cannot apply program setting", "program", name, "error", err)
			failed++
		}
	}

	var message string
	if err := p.SaveConfig(); err != nil {
		s.logger.Warn("cannot create program config", "program", name, "error", err)
		message = " but failed to create config file"
	} else if failed != 0 {
		message = " but failed to load " + strconv.Itoa(failed) + " of " + strconv.Itoa(total) + " settings"
	}

	if !p.Config().AutoStart {
		respond(w, http.StatusOK, "Program %s added successfully%s", pretty(r, name), message)
		return
	}

	// Stale registrations can linger after files were removed by hand;
	// reuse the handle so the registry stays one-per-name.
	handle, registered := s.core.Program(name)
	if !registered {
		handle = p
	}
	started := (registered || s.core.AddProgram(handle) == nil) &&
		s.core.StartProgram(handle) == nil

	if !started || message != "" {
		message += ". See server logs for more details"
	}
	if started {
		respond(w, http.StatusOK, "Program %s added and started successfully%s", pretty(r, name), message)
	} else {
		respond(w, http.StatusOK, "Program %s added successfully but failed to start%s",
			pretty(r, name), strings.ReplaceAll(message, "but", "and"))
	}
}

// programUpdate swaps a program's files for the uploaded ones. The
// archive is unpacked into a scratch directory first so a torn upload
// cannot leave the program gutted, then the old root is traded for the
// new one. The config file is untouched.
func (s *Server) programUpdate(w http.ResponseWriter, r *http.Request) {
	data, _ := readUpload(r)
	if data == nil {
		respond(w, http.StatusBadRequest, "missing multipart field `file` (program)")
		return
	}

	name, err := archive.RootName(data)
	if err != nil {
		respond(w, http.StatusInternalServerError, "Failed to get name of zipped program: %v", err)
		return
	}

	bin := dirs.Bin()
	currentRoot := filepath.Join(bin, name)
	if !exists(currentRoot) {
		currentRoot = filepath.Join(bin, name+".sh")
		if !exists(currentRoot) {
			respond(w, http.StatusNotFound, "Program %s does not exist", name)
			return
		}
	}

	scratch, err := os.MkdirTemp(dirs.Racky(), "update-*")
	if err != nil {
		respond(w, http.StatusInternalServerError, "Failed to decompress zipped program: %v", err)
		return
	}
	defer os.RemoveAll(scratch)

	if err := archive.Decompress(data, scratch); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to decompress zipped program: %v", err)
		return
	}
	s.logger.Trace("decompressed program archive", "program", name, "size", humanize.Bytes(uint64(len(data))))

	entries, err := os.ReadDir(scratch)
	if err != nil || len(entries) == 0 {
		respond(w, http.StatusInternalServerError, "Failed to decompress zipped program: empty archive")
		return
	}
	newRoot := entries[0].Name()

	if p, ok := s.core.Program(name); ok && p.IsActive() {
		if err := s.core.StopProgram(p); err != nil {
			respond(w, http.StatusInternalServerError, "Failed to stop program %s: %v", name, err)
			return
		}
	}

	if err := os.RemoveAll(currentRoot); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to remove %s program binary: %v", name, err)
		return
	}
	s.logger.Trace("removed program binary", "program", name)

	if err := os.Rename(filepath.Join(scratch, newRoot), filepath.Join(bin, newRoot)); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to replace %s program binary: %v", name, err)
		return
	}

	respond(w, http.StatusOK, "Program %s updated successfully. Restart it for the changes to take effect", name)
}

func (s *Server) programRemove(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")
	paths := core.PathsFromName(name)
	root := paths.ProgramRoot()

	rootKind := "program file"
	if fi, err := os.Stat(root); err == nil && fi.IsDir() {
		rootKind = "program directory"
	}

	targets := []struct {
		path string
		desc string
	}{
		{root, rootKind},
		{paths.Config, "config file"},
		{paths.Logs, "logs directory"},
	}

	removed := 0
	var failures []string
	for _, target := range targets {
		if !exists(target.path) {
			continue
		}
		removed++
		if err := os.RemoveAll(target.path); err != nil {
			s.logger.Error("cannot remove program files", "program", name, "path", target.path, "error", err)
			failures = append(failures, target.desc)
		}
	}

	var message string
	if len(failures) > 0 {
		message = "Failed to remove " + strings.Join(failures, " and ")
	}

	if p, ok := s.core.RemoveProgram(name); ok && p.IsActive() {
		if err := s.core.StopProgram(p); err != nil {
			message += " and failed to stop the process"
		}
	}

	if message != "" {
		message += ". See server logs for more details!"
	}

	switch {
	case removed == 0:
		respond(w, http.StatusNotFound, "Program %s does not exist%s", name, message)
	case len(failures) > 0:
		respond(w, http.StatusInternalServerError, "Failed to remove program: %s", message)
	default:
		respond(w, http.StatusOK, "Program %s removed successfully%s", name, strings.ReplaceAll(message, "and", "but"))
	}
}

func (s *Server) programStart(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")

	p, registered := s.core.Program(name)
	if registered && p.IsActive() {
		respond(w, http.StatusBadRequest, "Program %s is already running", name)
		return
	}
	if !registered {
		p = s.core.NewProgram(name)
	}

	if !p.Paths().IsValid() {
		respond(w, http.StatusNotFound, "Program %s does not exist", name)
		return
	}

	if !registered {
		if err := s.core.AddProgram(p); err != nil {
			respond(w, http.StatusInternalServerError, "Failed to start program %s: %v", name, err)
			return
		}
	}

	if err := s.core.StartProgram(p); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to start program %s: %v", name, err)
		return
	}
	respond(w, http.StatusOK, "Program %s started successfully", name)
}

func (s *Server) programStop(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")

	p, ok := s.core.Program(name)
	if !ok || !p.IsActive() {
		respond(w, http.StatusBadRequest, "Program %s is not running", name)
		return
	}

	if err := s.core.StopProgram(p); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to stop program %s: %v", name, err)
		return
	}
	respond(w, http.StatusOK, "Program %s stopped successfully", name)
}

func (s *Server) programRestart(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")

	p, ok := s.core.Program(name)
	if !ok || !p.IsActive() {
		respond(w, http.StatusBadRequest, "Program %s is not running", name)
		return
	}

	if err := s.core.StopProgram(p); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to restart program %s: Failed to stop program: %v", name, err)
		return
	}
	if err := s.core.StartProgram(p); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to restart program %s: Failed to start program: %v", name, err)
		return
	}
	respond(w, http.StatusOK, "Program %s restarted successfully", name)
}

func (s *Server) programStatus(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")

	p, ok := s.core.Program(name)
	if !ok {
		respond(w, http.StatusNotFound, "Program %s has not been run since the server was started", name)
		return
	}

	state := p.State()
	runtime := state.Runtime()

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Status: %s\n", state.Status)
	fmt.Fprintf(&b, "Executions: %d\n\n", state.Executions)

	b.WriteString("Current:\n")
	fmt.Fprintf(&b, "  Restart Attempts: %d/%d\n", state.Attempts.Current, state.Config.RestartAttempts)
	fmt.Fprintf(&b, "  Runtime: %s\n", util.FormatDuration(runtime.Current))
	fmt.Fprintf(&b, "  Start Time: %s\n\n", timestampOrNA(state.StartTime.Current))

	b.WriteString("Total:\n")
	fmt.Fprintf(&b, "  Restart Attempts: %d\n", state.Attempts.Total)
	fmt.Fprintf(&b, "  Runtime: %s\n", util.FormatDuration(runtime.Total))
	fmt.Fprintf(&b, "  Start Time: %s\n", timestampOrNA(state.StartTime.Total))

	respond(w, http.StatusOK, "%s", b.String())
}

func (s *Server) programLogs(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")

	dir := filepath.Join(dirs.Logs(), name)
	if !exists(dir) {
		respond(w, http.StatusNotFound, "Program %s does not exist", name)
		return
	}

	page, _ := strconv.Atoi(r.FormValue("page"))
	logs, err := logsink.ReadPage(dir, page)
	if err != nil {
		respond(w, http.StatusBadRequest, "Failed to get %s logs: %v", name, err)
		return
	}
	respond(w, http.StatusOK, "%s", logs)
}

func (s *Server) programConfig(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")

	p := s.core.NewProgram(name)
	if !p.Paths().IsValid() {
		respond(w, http.StatusNotFound, "Program %s does not exist", name)
		return
	}
	p.LoadConfig()

	defaults := core.DefaultConfig()
	cfg := p.Config()
	state := p.State()

	if formBool(r, "list") {
		defaultsOnly := cfg == defaults && len(state.Vars) == 0

		var table *util.Table
		if defaultsOnly {
			table = util.NewTable("Setting", "Default", "Description")
		} else {
			table = util.NewTable("Setting", "Default", "Current", "Description")
		}

		for _, field := range core.ConfigFields() {
			def := field.Get(&defaults)
			if defaultsOnly {
				table.AddRow(field.Name, def, field.Doc)
				continue
			}
			current := field.Get(&cfg)
			if current == def {
				current = ""
			}
			table.AddRow(field.Name, def, current, field.Doc)
		}
		for _, key := range slices.Sorted(maps.Keys(state.Vars)) {
			table.AddRow(key, "", state.Vars[key], "User-defined program environment variable")
		}

		respond(w, http.StatusOK, "Program configuration:\n%s", table)
		return
	}

	if formBool(r, "default") {
		p.ResetConfig()
		if err := p.SaveConfig(); err != nil {
			respond(w, http.StatusInternalServerError, "Failed to save %s configuration: %v", name, err)
			return
		}
		respond(w, http.StatusOK, "Configuration of %s restored to defaults successfully", name)
		return
	}

	data := r.FormValue("data")
	if data == "" {
		respond(w, http.StatusBadRequest, "No key=value pairs provided")
		return
	}

	changed := 0
	for _, pair := range strings.Split(data, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			respond(w, http.StatusBadRequest, "Invalid key=value or key= pair: %s", pair)
			return
		}

		original, recognized := cfg.Get(key)
		if !recognized {
			previous, had := state.Vars[key]
			p.UpdateConfig(key, value)
			if !had || previous != value {
				changed++
			}
			continue
		}

		// An empty value asks for the default back.
		if value == "" {
			value, _ = defaults.Get(key)
		}
		if err := p.UpdateConfig(key, value); err != nil {
			respond(w, http.StatusInternalServerError, "Failed to update %s configuration: %v", name, err)
			return
		}
		if now, _ := p.Config().Get(key); now != original {
			changed++
		}
	}

	if err := p.SaveConfig(); err != nil {
		respond(w, http.StatusInternalServerError, "Failed to save %s configuration: %v", name, err)
		return
	}
	respond(w, http.StatusOK, "Configuration of %s updated successfully (%d changed)", name, changed)
}

func (s *Server) programList(w http.ResponseWriter, r *http.Request) {
	names := map[string]bool{}
	for _, p := range s.core.Programs() {
		names[p.Name()] = true
	}
	if entries, err := os.ReadDir(dirs.Bin()); err == nil {
		for _, entry := range entries {
			stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if stem == "racky" || !core.PathsFromName(stem).IsValid() {
				continue
			}
			names[stem] = true
		}
	}

	if len(names) == 0 {
		respond(w, http.StatusNotFound, "There are no installed programs on the server")
		return
	}

	table := util.NewTable("Name", "Status", "Executions", "Runtime", "Start Time")
	for _, name := range slices.Sorted(maps.Keys(names)) {
		p, ok := s.core.Program(name)
		if !ok {
			p = s.core.NewProgram(name)
		}
		state := p.State()
		table.AddRow(
			name,
			state.Status.Short(),
			strconv.FormatUint(state.Executions, 10),
			util.FormatDuration(state.Runtime().Current),
			timestampOrNA(state.StartTime.Current),
		)
	}
	respond(w, http.StatusOK, "%s", table)
}

const (
	followPingInterval = 30 * time.Second
	followWriteWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// programFollow streams log lines over a websocket as the program emits
// them. Only registered programs carry a live broadcaster.
func (s *Server) programFollow(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("program")

	p, ok := s.core.Program(name)
	if !ok {
		respond(w, http.StatusNotFound, "Program %s has not been run since the server was started", name)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("cannot upgrade follow connection", "program", name, "error", err)
		return
	}
	defer conn.Close()

	stream := p.Broadcaster().Subscribe()
	defer p.Broadcaster().Unsubscribe(stream)

	// The reader only exists to notice the peer going away; followers
	// never send data.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(followPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(followWriteWait)); err != nil {
				return
			}
		case line := <-stream:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.FormValue(key))
	return err == nil && v
}

func timestampOrNA(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return util.Timestamp(t)
}
