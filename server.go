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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	hclog "github.com/hashicorp/go-hclog"
	cli "github.com/urfave/cli/v2"

	"github.com/DervexDev/racky/internal/config"
	"github.com/DervexDev/racky/internal/core"
	"github.com/DervexDev/racky/internal/dirs"
	"github.com/DervexDev/racky/internal/logsink"
	"github.com/DervexDev/racky/internal/servers"
	"github.com/DervexDev/racky/internal/util"
	"github.com/DervexDev/racky/internal/web"
)

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Manage and configure Racky servers",
		Subcommands: []*cli.Command{
			serverAdd(),
			serverChange(),
			serverConfig(),
			serverList(),
			serverLogs(),
			serverReboot(),
			serverRemove(),
			serverRestart(),
			serverShutdown(),
			serverStart(),
			serverStatus(),
			serverStop(),
			serverUpdate(),
		},
	}
}

func serverStart() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start the actual Racky server (used by the systemd service)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"A"}, Usage: "Server address"},
			&cli.Uint64Flag{Name: "port", Aliases: []string{"P"}, Usage: "Server port"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Server password"},
		},
		Action: func(ctx *cli.Context) error {
			return desc(startServer(ctx), "Failed to start server")
		},
	}
}

func startServer(ctx *cli.Context) error {
	address := cfg.Address()
	if ctx.IsSet("address") {
		address = ctx.String("address")
	}
	port := cfg.Port()
	if ctx.IsSet("port") {
		port = ctx.Uint64("port")
	}
	password := cfg.Password()
	if ctx.IsSet("password") {
		password = ctx.String("password")
	}

	if err := dirs.Ensure(); err != nil {
		return err
	}

	// Everything the logger emits also lands in the rotated sink that
	// serves GET /server/logs. The sink reports its own failures through a
	// plain stderr logger so they cannot loop back into it.
	sink, err := logsink.Open(
		filepath.Join(dirs.Logs(), "racky"),
		logsink.LimitsMB(cfg.LogSizeLimit(), cfg.LogFileLimit()),
		hclog.New(&hclog.LoggerOptions{Name: "racky.logsink", Output: os.Stderr}),
		nil,
	)
	if err != nil {
		return err
	}
	defer sink.Close()

	// The persisted log keeps Info and up even when the console runs
	// quieter.
	sinkLevel := logLevel
	if sinkLevel > hclog.Info {
		sinkLevel = hclog.Info
	}
	logger.RegisterSink(hclog.NewSinkAdapter(&hclog.LoggerOptions{
		Output: sink,
		Color:  hclog.ColorOff,
		Level:  sinkLevel,
	}))

	serveCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := core.New(cfg, logger)
	srv := web.New(c, logger, address, port, password, cancel)
	if !srv.IsPortFree() {
		return fmt.Errorf("Port %s is already in use",
			bold.Sprint(strconv.FormatUint(port, 10)))
	}

	started, total := c.StartAll()
	message := fmt.Sprintf("Started %s of %s autostart programs",
		bold.Sprint(strconv.Itoa(started)),
		bold.Sprint(strconv.Itoa(total)))
	switch {
	case started == total:
		printInfo("%s", message)
	case started == 0:
		printError("%s", message)
	default:
		printWarn("%s", message)
	}

	printInfo("Racky server is running on %s",
		bold.Sprintf("http://%s:%d", address, port))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)
	go func() {
		<-signals
		logger.Debug("shutdown signal received")
		cancel()
	}()

	err = srv.Start(serveCtx)
	if stopErr := c.Shutdown(); stopErr != nil {
		logger.Error("failed to stop programs on shutdown", "error", stopErr)
	}
	return desc(err, "Could not start the serve session")
}

func serverAdd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Configure a new server",
		ArgsUsage: "<alias>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"A"}, Usage: "Server address"},
			&cli.Uint64Flag{Name: "port", Aliases: []string{"P"}, Usage: "Server port"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Server password"},
		},
		Action: func(ctx *cli.Context) error {
			return desc(addServer(ctx), "Failed to add server")
		},
	}
}

func addServer(ctx *cli.Context) error {
	alias, err := requireArg(ctx, 0, "alias")
	if err != nil {
		return err
	}

	defaults := config.Defaults()
	address := defaults.Address
	if ctx.IsSet("address") {
		address = ctx.String("address")
	}
	port := defaults.Port
	if ctx.IsSet("port") {
		port = ctx.Uint64("port")
	}
	password := defaults.Password
	if ctx.IsSet("password") {
		password = ctx.String("password")
	}

	book, err := servers.Read()
	if err != nil {
		return err
	}
	if _, ok := book[alias]; ok {
		return fmt.Errorf("Server with alias %s already exists", bold.Sprint(alias))
	}
	for _, server := range book {
		if server.Address == address && server.Port == port {
			return fmt.Errorf("Server with address %s and port %s already exists",
				bold.Sprint(address),
				bold.Sprint(strconv.FormatUint(port, 10)))
		}
	}

	book[alias] = servers.Server{
		Address:  address,
		Port:     port,
		Password: password,
		Default:  !book.HasDefault(),
	}
	if err := servers.Write(book); err != nil {
		return err
	}

	printInfo("Server %s with URL %s added successfully",
		bold.Sprint(alias),
		bold.Sprintf("http://%s:%d", address, port))
	return nil
}

func serverChange() *cli.Command {
	return &cli.Command{
		Name:      "change",
		Usage:     "Change the default server",
		ArgsUsage: "<alias>",
		Action: func(ctx *cli.Context) error {
			return desc(changeServer(ctx), "Failed to change default server")
		},
	}
}

func changeServer(ctx *cli.Context) error {
	alias, err := requireArg(ctx, 0, "alias")
	if err != nil {
		return err
	}

	book, err := servers.Read()
	if err != nil {
		return err
	}
	if _, ok := book[alias]; !ok {
		return fmt.Errorf("Server with alias %s does not exist", bold.Sprint(alias))
	}

	for a, server := range book {
		server.Default = a == alias
		book[a] = server
	}
	if err := servers.Write(book); err != nil {
		return err
	}

	printInfo("Server %s is now the default", bold.Sprint(alias))
	return nil
}

func serverRemove() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove the existing server",
		ArgsUsage: "<alias>",
		Action: func(ctx *cli.Context) error {
			return desc(removeServer(ctx), "Failed to remove server")
		},
	}
}

func removeServer(ctx *cli.Context) error {
	alias, err := requireArg(ctx, 0, "alias")
	if err != nil {
		return err
	}

	book, err := servers.Read()
	if err != nil {
		return err
	}
	if _, ok := book[alias]; !ok {
		return fmt.Errorf("Server with alias %s does not exist", bold.Sprint(alias))
	}

	delete(book, alias)
	if err := servers.Write(book); err != nil {
		return err
	}

	printInfo("Server %s removed successfully", bold.Sprint(alias))
	return nil
}

func serverList() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all configured servers",
		Action: func(ctx *cli.Context) error {
			return desc(listServers(), "Failed to list servers")
		},
	}
}

func listServers() error {
	book, err := servers.Read()
	if err != nil {
		return err
	}
	if len(book) == 0 {
		return errors.New("There are no configured Racky servers")
	}

	table := util.NewTable("Alias", "Address", "Port", "Password", "Default")
	for _, alias := range book.Aliases() {
		server := book[alias]
		table.AddRow(
			alias,
			server.Address,
			strconv.FormatUint(server.Port, 10),
			server.Password,
			strconv.FormatBool(server.Default),
		)
	}

	printInfo("All currently configured Racky servers:\n%s", table)
	return nil
}

func serverStatus() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Get the status of the server",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to get server status"

			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.Get("server/status")
			if err != nil {
				return desc(err, message)
			}
			return handle(resp.WithPrefix("Server status:\n"), nil, message)
		},
	}
}

func serverLogs() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Read logs from the server",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.IntFlag{
				Name:    "page",
				Aliases: []string{"p"},
				Usage:   "Page number (higher values mean older logs)",
			},
		},
		Action: func(ctx *cli.Context) error {
			const message = "Failed to get server logs"

			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.Text("page", ctx.Int("page")).Get("server/logs")
			if err != nil {
				return desc(err, message)
			}
			return handle(resp.WithPrefix("Server logs:\n"), nil, message)
		},
	}
}

func serverConfig() *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Update server configuration",
		ArgsUsage: "[key=value...]",
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
			const message = "Failed to update/list server config"

			c, err := remote(ctx)
			if err != nil {
				return desc(err, message)
			}
			resp, err := c.
				Text("list", ctx.Bool("list")).
				Text("default", ctx.Bool("default")).
				Text("data", strings.Join(ctx.Args().Slice(), ",")).
				Post("server/config")
			return handle(resp, err, message)
		},
	}
}

func serverStop() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Stop the server (software)",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			if !util.Prompt(os.Stdin, os.Stdout,
				"Are you sure you want to stop the server? This will only stop system service but you will need to start it manually to use Racky again!",
				true, assumeYes) {
				return nil
			}
			return serverAction(ctx, "server/stop", "Failed to stop the server")
		},
	}
}

func serverRestart() *cli.Command {
	return &cli.Command{
		Name:  "restart",
		Usage: "Restart the server (software)",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			if !util.Prompt(os.Stdin, os.Stdout,
				"Are you sure you want to restart the server? This will only restart the system service but you may still need to wait a few seconds before you can use Racky again!",
				true, assumeYes) {
				return nil
			}
			return serverAction(ctx, "server/restart", "Failed to restart the server")
		},
	}
}

func serverShutdown() *cli.Command {
	return &cli.Command{
		Name:  "shutdown",
		Usage: "Shutdown the server (hardware)",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			if !util.Prompt(os.Stdin, os.Stdout,
				"Are you sure you want to shutdown the server? This will shutdown your actual hardware and you will need to start it manually to use Racky again!",
				true, assumeYes) {
				return nil
			}
			return serverAction(ctx, "server/shutdown", "Failed to shutdown the server")
		},
	}
}

func serverReboot() *cli.Command {
	return &cli.Command{
		Name:  "reboot",
		Usage: "Reboot the server (hardware)",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			if !util.Prompt(os.Stdin, os.Stdout,
				"Are you sure you want to reboot the server? This will reboot your actual hardware and you will need to wait until it boots up before you can use Racky again!",
				true, assumeYes) {
				return nil
			}
			return serverAction(ctx, "server/reboot", "Failed to reboot the server")
		},
	}
}

func serverUpdate() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Update the server to the latest version",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx *cli.Context) error {
			return serverAction(ctx, "server/update", "Failed to update the server")
		},
	}
}

// serverAction posts the bodyless requests shared by the lifecycle
// commands.
func serverAction(ctx *cli.Context, path, message string) error {
	c, err := remote(ctx)
	if err != nil {
		return desc(err, message)
	}
	resp, err := c.Post(path)
	return handle(resp, err, message)
}
