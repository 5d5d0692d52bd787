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

/*
Command racky manages programs running on remote machines.

The same binary serves both sides of the wire: every subcommand is a thin
client for the HTTP API, except `racky server start` which runs the server
itself. Install it once per machine with `racky install` (add --server on
the machine that should run programs) and point the client at it with
`racky server add`.
*/
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	hclog "github.com/hashicorp/go-hclog"
	isatty "github.com/mattn/go-isatty"
	cli "github.com/urfave/cli/v2"

	"github.com/DervexDev/racky/internal/client"
	"github.com/DervexDev/racky/internal/config"
	"github.com/DervexDev/racky/internal/servers"
	"github.com/DervexDev/racky/internal/util"
	"github.com/DervexDev/racky/internal/version"
)

var (
	logger hclog.InterceptLogger
	cfg    *config.Config

	assumeYes bool
	logLevel  hclog.Level

	verboseCount int
	quiet        bool

	bold = color.New(color.Bold)
)

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "Print version information",
	}

	app := &cli.App{
		Name:        "racky",
		Usage:       "Manage programs running on remote machines",
		Version:     version.Version,
		Description: "Run, monitor and update programs on remote machines over a small HTTP API.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Automatically answer to any prompts",
			},
			&cli.BoolFlag{
				Name:    "backtrace",
				Aliases: []string{"B"},
				Usage:   "Print full backtrace on panic",
			},
			&cli.StringFlag{
				Name:        "color",
				Aliases:     []string{"C"},
				Usage:       "Output coloring mode (auto, always or never)",
				Value:       "auto",
				DefaultText: "auto",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Increase logging verbosity, may be repeated",
				Count:   &verboseCount,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "Silence all logging",
				Destination: &quiet,
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			configCommand(),
			installCommand(),
			programCommand(),
			serverCommand(),
			uninstallCommand(),
			updateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// setup resolves the global switches and prepares the logger. Environment
// variables set by a parent racky process win over command line flags, and
// the resolved values are re-exported so child processes inherit them.
func setup(ctx *cli.Context) error {
	assumeYes = ctx.Bool("yes")
	if _, ok := os.LookupEnv("RUST_YES"); ok {
		assumeYes = util.EnvYes()
	}

	backtrace := ctx.Bool("backtrace")
	if _, ok := os.LookupEnv("RUST_BACKTRACE"); ok {
		backtrace = util.EnvBacktrace()
	}

	logLevel = countLevel(verboseCount, quiet)
	if v, ok := os.LookupEnv("RUST_VERBOSE"); ok {
		logLevel = util.VerbosityLevel(v)
	}

	mode := util.ParseColorMode(ctx.String("color"))
	if v, ok := os.LookupEnv("RUST_LOG_STYLE"); ok {
		mode = util.ParseColorMode(v)
	}

	switch mode {
	case util.ColorAlways:
		color.NoColor = false
	case util.ColorNever:
		color.NoColor = true
	}
	if backtrace {
		debug.SetTraceback("all")
	}

	style := "never"
	if mode == util.ColorAlways || (mode == util.ColorAuto && isatty.IsTerminal(os.Stdin.Fd())) {
		style = "always"
	}
	os.Setenv("RUST_LOG_STYLE", style)
	os.Setenv("RUST_VERBOSE", logLevel.String())
	os.Setenv("RUST_YES", flagValue(assumeYes))
	os.Setenv("RUST_BACKTRACE", flagValue(backtrace))

	logger = hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:   "racky",
		Level:  logLevel,
		Output: os.Stderr,
		Color:  logColor(mode),
	})

	loaded, err := config.Load()
	if err != nil {
		cfg = config.New()
		logger.Error("Failed to load config", "error", err)
	} else {
		cfg = loaded
		logger.Info("Racky config loaded successfully")
	}
	return nil
}

// countLevel maps repeated -v flags onto log levels. The default only
// surfaces errors; four or more turn everything on.
func countLevel(count int, quiet bool) hclog.Level {
	if quiet {
		return hclog.Off
	}
	switch count {
	case 0:
		return hclog.Error
	case 1:
		return hclog.Warn
	case 2:
		return hclog.Info
	case 3:
		return hclog.Debug
	default:
		return hclog.Trace
	}
}

func logColor(mode util.ColorMode) hclog.ColorOption {
	switch mode {
	case util.ColorAlways:
		return hclog.ForceColor
	case util.ColorNever:
		return hclog.ColorOff
	default:
		return hclog.AutoColor
	}
}

func flagValue(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// printInfo writes user-facing output to stdout. Unlike log lines it shows
// at every verbosity.
func printInfo(format string, args ...any) {
	fmt.Fprintf(color.Output, format+"\n", args...)
}

func printWarn(format string, args ...any) {
	fmt.Fprintf(color.Error, "%s %s\n",
		color.New(color.FgYellow, color.Bold).Sprint("warning:"),
		fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintf(color.Error, "%s %s\n",
		color.New(color.FgRed, color.Bold).Sprint("error:"),
		fmt.Sprintf(format, args...))
}

// desc prefixes an error with the failure description every command
// carries, mirroring how the server words its own responses.
func desc(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// requireArg enforces a positional argument the help text promises.
func requireArg(ctx *cli.Context, index int, name string) (string, error) {
	value := ctx.Args().Get(index)
	if value == "" {
		return "", fmt.Errorf("missing required argument <%s>", name)
	}
	return value, nil
}

// remote builds a request for the server selected by --server, falling
// back to the default entry of the alias book.
func remote(ctx *cli.Context) (*client.Client, error) {
	server, err := servers.Get(ctx.String("server"))
	if err != nil {
		return nil, err
	}
	return client.New(server, server.Password), nil
}

// handle surfaces a server response: success bodies go to stdout, anything
// else becomes the command's error.
func handle(resp *client.Response, err error, message string) error {
	if err != nil {
		return desc(err, message)
	}
	return desc(resp.Handle(color.Output), message)
}

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Target server alias",
	}
}
