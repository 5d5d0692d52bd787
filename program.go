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

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"
	cli "github.com/urfave/cli/v2"

	"github.com/DervexDev/racky/internal/archive"
	"github.com/DervexDev/racky/internal/client"
	"github.com/DervexDev/racky/internal/core"
	"github.com/DervexDev/racky/internal/servers"
)

func programCommand() *cli.Command {
	return &cli.Command{
		Name:  "program",
		Usage: "Run and setup programs on Racky servers",
		Subcommands: []*cli.Command{
			programAdd(),
			programConfig(),
			programFollow(),
			programList(),
			programLogs(),
			programRemove(),
			programRestart(),
			programStart(),
			programStatus(),
			programStop(),
			programUpdate(),
		},
	}
}

func programAdd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a new program to the server",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.BoolFlag{
				Name:    "auto_start",
				Aliases: []string{"a"},
				Usage:   "Automatically start the program",
			},
		},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to add program"

			data, err := zipProgram(ctx)
			if err != nil {
				return desc(err, message)
			}
			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.
				File("file", data).
				Text("auto_start", ctx.Bool("auto_start")).
				Post("program/add")
			return handle(resp, err, message)
		},
	}
}

func programConfig() *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Update program configuration",
		ArgsUsage: "<program> [key=value...]",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.BoolFlag{
				Name:    "default",
				Aliases: []string{"d"},
				Usage:   "Restore all settings to their default values",
			},
			&cli.BoolFlag{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List current configuration",
			},
		},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to update/list program config"

			program, err := requireArg(ctx, 0, "program")
			if err != nil {
				return desc(err, message)
			}
			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.
				Text("program", program).
				Text("data", strings.Join(ctx.Args().Tail(), ",")).
				Text("default", ctx.Bool("default")).
				Text("list", ctx.Bool("list")).
				Post("program/config")
			return handle(resp, err, message)
		},
	}
}

func programFollow() *cli.Command {
	return &cli.Command{
		Name:      "follow",
		Usage:     "Stream live output of a program from the server",
		ArgsUsage: "<program>",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to follow program output"

			program, err := requireArg(ctx, 0, "program")
			if err != nil {
				return desc(err, message)
			}
			server, err := servers.Get(ctx.String("server"))
			if err != nil {
				return desc(err, message)
			}
			return desc(followProgram(server, program), message)
		},
	}
}

func programList() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all programs on the server",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to list server programs"

			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.Get("program/list")
			if err != nil {
				return desc(err, message)
			}
			return handle(resp.WithPrefix("Program list:\n"), nil, message)
		},
	}
}

func programLogs() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Read logs of a program from the server",
		ArgsUsage: "<program>",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.IntFlag{
				Name:    "page",
				Aliases: []string{"p"},
				Usage:   "Page number (higher values mean older logs)",
			},
		},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to get program logs"

			program, err := requireArg(ctx, 0, "program")
			if err != nil {
				return desc(err, message)
			}
			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.
				Text("program", program).
				Text("page", ctx.Int("page")).
				Get("program/logs")
			if err != nil {
				return desc(err, message)
			}
			return handle(resp.WithPrefix("Program logs:\n"), nil, message)
		},
	}
}

func programRemove() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a program from the server",
		ArgsUsage: "<program>",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			return programAction(ctx, "program/remove", "Failed to remove program")
		},
	}
}

func programRestart() *cli.Command {
	return &cli.Command{
		Name:      "restart",
		Usage:     "Restart a program on the server",
		ArgsUsage: "<program>",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			return programAction(ctx, "program/restart", "Failed to restart program")
		},
	}
}

func programStart() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start a program on the server",
		ArgsUsage: "<program>",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			return programAction(ctx, "program/start", "Failed to start program")
		},
	}
}

func programStatus() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Get the status of a program on the server",
		ArgsUsage: "<program>",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to get program status"

			program, err := requireArg(ctx, 0, "program")
			if err != nil {
				return desc(err, message)
			}
			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.Text("program", program).Get("program/status")
			if err != nil {
				return desc(err, message)
			}
			return handle(resp.WithPrefix("Program status:\n"), nil, message)
		},
	}
}

func programStop() *cli.Command {
	return &cli.Command{
		Name:      "stop",
		Usage:     "Stop a program on the server",
		ArgsUsage: "<program>",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			return programAction(ctx, "program/stop", "Failed to stop program")
		},
	}
}

func programUpdate() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a program on the server",
		ArgsUsage: "<path>",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to update program"

			data, err := zipProgram(ctx)
			if err != nil {
				return desc(err, message)
			}
			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.File("file", data).Post("program/update")
			return handle(resp, err, message)
		},
	}
}

// programAction posts the single-field requests shared by start, stop,
// restart and remove.
func programAction(ctx *cli.Context, path, message string) error {
	program, err := requireArg(ctx, 0, "program")
	if err != nil {
		return desc(err, message)
	}
	c, err := remote(ctx)
	if err != nil {
		return desc(err, message)
	}
	resp, err := c.Text("program", program).Post(path)
	return handle(resp, err, message)
}

// zipProgram validates and compresses the program path argument shared by
// add and update.
func zipProgram(ctx *cli.Context) ([]byte, error) {
	arg, err := requireArg(ctx, 0, "path")
	if err != nil {
		return nil, err
	}
	path, err := filepath.Abs(arg)
	if err != nil {
		return nil, desc(err, "Failed to resolve path")
	}
	if !core.PathsFromPath(path).IsValid() {
		return nil, fmt.Errorf("Path %s does not point to a valid program", bold.Sprint(path))
	}
	data, err := archive.Compress(path)
	if err != nil {
		return nil, desc(err, "Failed to zip program")
	}
	return data, nil
}

// followProgram prints log lines as they arrive until the peer closes the
// stream or the user interrupts.
func followProgram(server servers.Server, program string) error {
	target := url.URL{
		Scheme:   "ws",
		Host:     fmt.Sprintf("%s:%d", server.Address, server.Port),
		Path:     "/program/follow",
		RawQuery: url.Values{"program": {program}}.Encode(),
	}
	header := http.Header{}
	header.Set("User-Agent", client.UserAgent)
	if server.Password != "" {
		header.Set("Authorization", server.Password)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(target.String(), header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if len(body) > 0 {
				return fmt.Errorf("%s (%d %s)", body, resp.StatusCode, http.StatusText(resp.StatusCode))
			}
		}
		return err
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			lines <- string(data)
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				err := <-readErr
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			}
			printInfo("%s", line)
		case <-interrupt:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}
