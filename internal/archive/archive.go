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

// Package archive moves programs between client and server as zip blobs.
// Archives are rooted at the program name: the first entry names the
// program, and every entry is extracted with its recorded permissions so
// scripts stay executable.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// entryMode is applied to every compressed entry so the executable bit
// survives the trip regardless of the client's umask.
const entryMode = fs.FileMode(0o755)

// Compress packs the file or directory at target into an in-memory zip.
// Directories are archived under their own base name so the archive root
// carries the program name.
func Compress(target string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", target, err)
	}

	if info.IsDir() {
		root := filepath.Base(target)
		err = filepath.WalkDir(target, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(target, p)
			if err != nil {
				return err
			}
			name := path.Join(root, filepath.ToSlash(rel))
			if d.IsDir() {
				return addDir(zw, name)
			}
			return addFile(zw, name, p)
		})
	} else {
		err = addFile(zw, filepath.Base(target), target)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot compress %s: %w", target, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("cannot finish archive of %s: %w", target, err)
	}
	return buf.Bytes(), nil
}

// Decompress unpacks an archive into the target directory. Entries that
// try to escape the target are rejected.
func Decompress(data []byte, target string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("cannot open archive: %w", err)
	}

	root := filepath.Clean(target)
	for _, entry := range zr.File {
		p := filepath.Join(root, filepath.FromSlash(entry.Name))
		if p != root && !strings.HasPrefix(p, root+string(os.PathSeparator)) {
			return fmt.Errorf("cannot extract %s: invalid path", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(p, entry.Mode()); err != nil {
				return fmt.Errorf("cannot extract directory %s: %w", entry.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("cannot create parent of %s: %w", entry.Name, err)
		}
		if err := extractFile(entry, p); err != nil {
			return fmt.Errorf("cannot extract file %s: %w", entry.Name, err)
		}
	}
	return nil
}

// RootName reads the program name off the archive: the base name of the
// first entry, without its extension.
func RootName(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("cannot open archive: %w", err)
	}
	if len(zr.File) == 0 {
		return "", errors.New("archive is empty")
	}
	base := path.Base(strings.TrimSuffix(zr.File[0].Name, "/"))
	return strings.TrimSuffix(base, path.Ext(base)), nil
}

func addDir(zw *zip.Writer, name string) error {
	header := &zip.FileHeader{Name: name + "/"}
	header.SetMode(entryMode | fs.ModeDir)
	_, err := zw.CreateHeader(header)
	return err
}

func addFile(zw *zip.Writer, name, p string) error {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	header.SetMode(entryMode)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func extractFile(entry *zip.File, p string) error {
	r, err := entry.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
