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

// Package logsink implements the size- and count-bounded log directories
// Racky keeps per program (and for the server itself under logs/racky).
// One sink serializes all writers of a directory behind a single mutex so
// lines never tear and rotation has a single decision point.
package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	hclog "github.com/hashicorp/go-hclog"

	"github.com/DervexDev/racky/internal/util"
)

// Limits bounds one log directory.
type Limits struct {
	// FileSize is the rotation threshold in bytes.
	FileSize uint64
	// FileCount is how many rotated files are kept, the active one
	// included.
	FileCount uint64
}

// LimitsMB builds Limits from the configured megabyte/file-count settings.
func LimitsMB(sizeMB, files uint64) Limits {
	if sizeMB == 0 {
		sizeMB = 1
	}
	if files == 0 {
		files = 1
	}
	return Limits{FileSize: sizeMB * 1024 * 1024, FileCount: files}
}

// Sink is a rotated writer over one log directory. Files are named
// <dir-base>.log.<N> with N increasing; the highest N is the active file.
type Sink struct {
	dir    string
	base   string
	limits Limits
	logger hclog.Logger
	bc     *Broadcaster

	mu    sync.Mutex
	file  *os.File
	index int
	size  uint64
}

// Open creates the directory when missing and continues the numbering of
// whatever rotation state it finds there. bc may be nil.
func Open(dir string, limits Limits, logger hclog.Logger, bc *Broadcaster) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create log directory: %w", err)
	}

	s := &Sink{
		dir:    dir,
		base:   baseName(dir),
		limits: limits,
		logger: logger,
		bc:     bc,
	}

	indexes, err := listIndexes(dir, s.base)
	if err != nil {
		return nil, err
	}
	s.index = 0
	if len(indexes) > 0 {
		s.index = indexes[len(indexes)-1]
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteLine appends one timestamped, tagged line and forwards it to the
// broadcaster.
func (s *Sink) WriteLine(tag, line string) {
	entry := fmt.Sprintf("%s [%s] %s\n", util.Timestamp(time.Now()), tag, line)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.write([]byte(entry))
	s.bc.publish(strings.TrimSuffix(entry, "\n"))
}

// Write appends already formatted output, still enforcing rotation. It is
// the raw path used by the server's own logger.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(p)
	for _, line := range strings.Split(strings.TrimSuffix(string(p), "\n"), "\n") {
		s.bc.publish(line)
	}
	return len(p), nil
}

// Close closes the active file. Writes after Close are dropped.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Dir returns the directory the sink writes to.
func (s *Sink) Dir() string { return s.dir }

// write appends p to the active file, rotating first when p would push it
// past the size limit. Callers hold s.mu.
func (s *Sink) write(p []byte) {
	if s.file == nil {
		return
	}
	if s.size > 0 && s.size+uint64(len(p)) > s.limits.FileSize {
		if err := s.rotate(); err != nil {
			s.logger.Error("log rotation failed", "dir", s.dir, "error", err)
			return
		}
	}
	n, err := s.file.Write(p)
	if err != nil {
		s.logger.Error("log write failed", "dir", s.dir, "error", err)
	}
	s.size += uint64(n)
}

func (s *Sink) rotate() error {
	if err := s.file.Close(); err != nil {
		s.logger.Warn("cannot close rotated log file", "dir", s.dir, "error", err)
	}
	s.file = nil
	s.index++
	if err := s.open(); err != nil {
		return err
	}
	s.purge()
	s.logger.Debug("rotated log file",
		"dir", s.dir, "index", s.index, "limit", humanize.IBytes(s.limits.FileSize))
	return nil
}

func (s *Sink) open() error {
	path := filepath.Join(s.dir, fmt.Sprintf("%s.%d", s.base, s.index))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("cannot stat log file: %w", err)
	}
	s.file = file
	s.size = uint64(info.Size())
	return nil
}

// purge removes the oldest files beyond the count limit. Callers hold s.mu.
func (s *Sink) purge() {
	indexes, err := listIndexes(s.dir, s.base)
	if err != nil {
		s.logger.Warn("cannot list log files for purge", "dir", s.dir, "error", err)
		return
	}
	if uint64(len(indexes)) <= s.limits.FileCount {
		return
	}
	for _, idx := range indexes[:uint64(len(indexes))-s.limits.FileCount] {
		path := filepath.Join(s.dir, fmt.Sprintf("%s.%d", s.base, idx))
		if err := os.Remove(path); err != nil {
			s.logger.Warn("cannot remove old log file", "path", path, "error", err)
		}
	}
}

// ReadPage returns the content of one rotated file: page 0 is the newest,
// each following page one file older.
func ReadPage(dir string, page int) (string, error) {
	indexes, err := listIndexes(dir, baseName(dir))
	if err != nil {
		return "", err
	}
	if page < 0 || page >= len(indexes) {
		return "", fmt.Errorf("no log file for page %d", page)
	}
	// indexes are ascending; page counts from the newest backwards.
	idx := indexes[len(indexes)-1-page]
	raw, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("%s.%d", baseName(dir), idx)))
	if err != nil {
		return "", fmt.Errorf("cannot read log file: %w", err)
	}
	return string(raw), nil
}

func baseName(dir string) string {
	return filepath.Base(filepath.Clean(dir)) + ".log"
}

// listIndexes returns the rotation indexes found in dir, ascending.
func listIndexes(dir, base string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read log directory: %w", err)
	}
	var indexes []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		rest, ok := strings.CutPrefix(entry.Name(), base+".")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 0 {
			continue
		}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes, nil
}
