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

// Package web is the HTTP face of a Racky server. Every endpoint speaks
// plain text: simple commands are form-encoded POSTs, reads are GETs with
// query parameters, and program payloads travel as multipart zip uploads.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	oversight "cirello.io/oversight/easy"
	"github.com/fatih/color"
	hclog "github.com/hashicorp/go-hclog"

	"github.com/DervexDev/racky/internal/core"
)

// maxUploadSize bounds program archives accepted by add and update.
const maxUploadSize = 100 * 1024 * 1024

// Server serves the Racky API for one core instance.
type Server struct {
	core     *core.Core
	logger   hclog.Logger
	address  string
	port     uint64
	password string

	// shutdown is invoked when a stop request arrives while the server
	// is not under systemd; the owner tears the process down.
	shutdown func()
}

// New assembles a server. password is the stored password hash and may be
// empty, which disables authentication. shutdown must stop the process
// gracefully and may be nil.
func New(c *core.Core, logger hclog.Logger, address string, port uint64, password string, shutdown func()) *Server {
	return &Server{
		core:     c,
		logger:   logger.Named("web"),
		address:  address,
		port:     port,
		password: password,
		shutdown: shutdown,
	}
}

// Addr is the host:port the server binds.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.address, s.port)
}

// IsPortFree reports whether the configured port can still be bound.
func (s *Server) IsPortFree() bool {
	l, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return false
	}
	l.Close()
	return true
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/server/status", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, "pong")
	})

	mux.HandleFunc("POST /program/add", s.limitBody(s.programAdd))
	mux.HandleFunc("POST /program/config", s.programConfig)
	mux.HandleFunc("GET /program/follow", s.programFollow)
	mux.HandleFunc("GET /program/list", s.programList)
	mux.HandleFunc("GET /program/logs", s.programLogs)
	mux.HandleFunc("POST /program/remove", s.programRemove)
	mux.HandleFunc("POST /program/restart", s.programRestart)
	mux.HandleFunc("POST /program/start", s.programStart)
	mux.HandleFunc("GET /program/status", s.programStatus)
	mux.HandleFunc("POST /program/stop", s.programStop)
	mux.HandleFunc("POST /program/update", s.limitBody(s.programUpdate))

	mux.HandleFunc("POST /server/config", s.serverConfig)
	mux.HandleFunc("GET /server/logs", s.serverLogs)
	mux.HandleFunc("POST /server/reboot", s.serverReboot)
	mux.HandleFunc("POST /server/restart", s.serverRestart)
	mux.HandleFunc("POST /server/shutdown", s.serverShutdown)
	mux.HandleFunc("GET /server/status", s.serverStatus)
	mux.HandleFunc("POST /server/stop", s.serverStop)
	mux.HandleFunc("POST /server/update", s.serverUpdate)

	return s.authenticate(s.detectAgent(mux))
}

// Start serves until ctx is cancelled. The listener is supervised so a
// crashed serve loop is restarted rather than silently lost.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", s.Addr(), err)
	}

	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = oversight.WithContext(ctx)
	oversight.Add(ctx, func(context.Context) error {
		err := server.Serve(l)
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve loop ended", "error", err)
		}
		return err
	})
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		next(w, r)
	}
}

// respond writes a plain-text reply.
func respond(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, format, args...)
}

type contextKey int

const agentKey contextKey = 0

// isRacky reports whether the request came from the Racky CLI.
func isRacky(r *http.Request) bool {
	is, _ := r.Context().Value(agentKey).(bool)
	return is
}

var bold = func() *color.Color {
	c := color.New(color.Bold)
	// Responses travel over HTTP, so the usual terminal detection would
	// always strip the styling the CLI is meant to render.
	c.EnableColor()
	return c
}()

// pretty renders a program name, bolded for the Racky CLI.
func pretty(r *http.Request, name string) string {
	if isRacky(r) {
		return bold.Sprint(name)
	}
	return name
}
