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
	"fmt"
	"time"
)

// StatusKind enumerates the supervisor states.
type StatusKind int

const (
	// StatusIdle is the state before the first start.
	StatusIdle StatusKind = iota
	// StatusRunning means a child process is alive.
	StatusRunning
	// StatusRestarting is the window between an exit and the next spawn.
	StatusRestarting
	// StatusStopped means stop() was the last word.
	StatusStopped
	// StatusFinished means the last run exited successfully.
	StatusFinished
	// StatusErrored means the last run exited with a failure.
	StatusErrored
	// StatusFailed means the spawn itself failed.
	StatusFailed
)

// Status is the supervisor state with its payload: the pid while running,
// collected stdout for Finished, collected stderr or the exit code for
// Errored, the spawn error for Failed.
type Status struct {
	Kind    StatusKind
	PID     int
	Payload string
}

func Idle() Status                { return Status{Kind: StatusIdle} }
func Running(pid int) Status      { return Status{Kind: StatusRunning, PID: pid} }
func Restarting() Status          { return Status{Kind: StatusRestarting} }
func Stopped() Status             { return Status{Kind: StatusStopped} }
func Finished(out string) Status  { return Status{Kind: StatusFinished, Payload: out} }
func Errored(out string) Status   { return Status{Kind: StatusErrored, Payload: out} }
func Failed(reason string) Status { return Status{Kind: StatusFailed, Payload: reason} }

func (s Status) String() string {
	switch s.Kind {
	case StatusRunning:
		return fmt.Sprintf("Running (%d)", s.PID)
	case StatusRestarting:
		return "Restarting..."
	case StatusStopped:
		return "Stopped"
	case StatusFinished:
		return fmt.Sprintf("Finished (%s)", s.Payload)
	case StatusErrored:
		return fmt.Sprintf("Errored (%s)", s.Payload)
	case StatusFailed:
		return fmt.Sprintf("Failed (%s)", s.Payload)
	default:
		return "Idle"
	}
}

// Short renders the status without its payload, which may span lines and
// would tear table cells.
func (s Status) Short() string {
	switch s.Kind {
	case StatusFinished:
		return "Finished"
	case StatusErrored:
		return "Errored"
	case StatusFailed:
		return "Failed"
	default:
		return s.String()
	}
}

// Tracker pairs a value for the current run with its lifetime total.
type Tracker[T any] struct {
	Current T
	Total   T
}

// State is everything a supervisor tracks about its program. Copies are
// handed out as snapshots; the generation counter fences stale watchers.
type State struct {
	Vars       map[string]string
	Config     Config
	Status     Status
	Executions uint64
	Attempts   Tracker[uint64]
	StartTime  Tracker[time.Time]

	runtime    Tracker[time.Duration]
	generation uint64
}

// setStatus records a transition. Entering Running stamps the start times
// and clears the current runtime; leaving Running freezes the elapsed time
// into both runtime counters. The generation advances on every transition
// to Running or Stopped, invalidating outstanding watchers.
func (s *State) setStatus(status Status) {
	switch {
	case status.Kind == StatusRunning:
		now := time.Now()
		s.StartTime.Current = now
		s.runtime.Current = 0
		if s.StartTime.Total.IsZero() {
			s.StartTime.Total = now
		}
	case s.Status.Kind == StatusRunning && !s.StartTime.Current.IsZero():
		elapsed := time.Since(s.StartTime.Current)
		s.runtime.Current = elapsed
		s.runtime.Total += elapsed
	}

	if status.Kind == StatusRunning || status.Kind == StatusStopped {
		s.generation++
	}
	s.Status = status
}

// Runtime returns the runtime counters, extended by the live elapsed time
// while the program is running.
func (s *State) Runtime() Tracker[time.Duration] {
	var elapsed time.Duration
	if s.Status.Kind == StatusRunning && !s.StartTime.Current.IsZero() {
		elapsed = time.Since(s.StartTime.Current)
	}
	return Tracker[time.Duration]{
		Current: s.runtime.Current + elapsed,
		Total:   s.runtime.Total + elapsed,
	}
}

// Generation exposes the fencing counter for tests and diagnostics.
func (s *State) Generation() uint64 { return s.generation }
