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

package installer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	goversion "github.com/hashicorp/go-version"

	"github.com/DervexDev/racky/internal/archive"
	"github.com/DervexDev/racky/internal/version"
)

const releaseURL = "https://api.github.com/repos/DervexDev/racky/releases/latest"

type release struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name        string `json:"name"`
		DownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Update replaces the running executable with the latest GitHub release
// when that release carries a greater version. progress enables byte
// counting on stderr for interactive runs.
func Update(progress bool) error {
	client := cleanhttp.DefaultClient()

	latest, err := fetchRelease(client)
	if err != nil {
		return fmt.Errorf("Failed to get latest release details: %w", err)
	}

	current, err := goversion.NewVersion(version.Version)
	if err != nil {
		return fmt.Errorf("Failed to get latest release details: %w", err)
	}
	next, err := goversion.NewVersion(strings.TrimPrefix(latest.TagName, "v"))
	if err != nil {
		return fmt.Errorf("Failed to get latest release details: %w", err)
	}
	if !next.GreaterThan(current) {
		return fmt.Errorf("Already up to date")
	}

	asset, ok := matchAsset(latest)
	if !ok {
		return fmt.Errorf("Failed to download update: no release asset for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	binary, err := downloadAsset(client, asset, progress)
	if err != nil {
		return fmt.Errorf("Failed to download update: %w", err)
	}

	if err := swapExecutable(binary); err != nil {
		return fmt.Errorf("Failed to download update: %w", err)
	}
	return nil
}

func fetchRelease(client *http.Client) (*release, error) {
	req, err := http.NewRequest(http.MethodGet, releaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "racky")
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// matchAsset picks the release asset built for this platform by name
// convention, e.g. racky-0.2.0-linux-amd64.zip.
func matchAsset(rel *release) (string, bool) {
	for _, asset := range rel.Assets {
		name := strings.ToLower(asset.Name)
		if strings.Contains(name, runtime.GOOS) && strings.Contains(name, runtime.GOARCH) {
			return asset.DownloadURL, true
		}
	}
	return "", false
}

func downloadAsset(client *http.Client, url string, progress bool) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "racky")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if progress {
		fmt.Fprintf(os.Stderr, "Downloaded %d bytes\n", len(data))
	}

	if strings.HasSuffix(strings.ToLower(req.URL.Path), ".zip") {
		return unpackBinary(data)
	}
	return data, nil
}

// unpackBinary pulls the racky executable out of a zipped asset.
func unpackBinary(data []byte) ([]byte, error) {
	scratch, err := os.MkdirTemp("", "racky-update-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	if err := archive.Decompress(data, scratch); err != nil {
		return nil, err
	}

	var binary []byte
	walkErr := filepath.WalkDir(scratch, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if stem == "racky" {
			binary, err = os.ReadFile(path)
			return err
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if binary == nil {
		return nil, fmt.Errorf("no racky binary in release archive")
	}
	return binary, nil
}

// swapExecutable writes the new binary beside the current one and
// renames it over, which keeps the running process intact.
func swapExecutable(binary []byte) error {
	current, err := os.Executable()
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(current); err == nil {
		current = resolved
	}

	staged := current + ".new"
	if err := os.WriteFile(staged, binary, 0o755); err != nil {
		return err
	}
	if err := os.Rename(staged, current); err != nil {
		os.Remove(staged)
		return err
	}
	return nil
}
