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
	"os"

	cli "github.com/urfave/cli/v2"

	"github.com/DervexDev/racky/internal/installer"
	"github.com/DervexDev/racky/internal/util"
)

func installCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "Install and/or verify Racky installation",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Install Racky server (requires sudo)",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite all files even if they already exist (including config)",
			},
		},
		Action: func(ctx *cli.Context) error {
			side := "client"
			if ctx.Bool("server") {
				side = "server"
			}
			if err := installer.Install(logger, ctx.Bool("server"), ctx.Bool("force")); err != nil {
				return desc(err, fmt.Sprintf("Failed to install Racky %s", side))
			}
			printInfo("Racky %s has been installed successfully", side)
			return nil
		},
	}
}

func uninstallCommand() *cli.Command {
	return &cli.Command{
		Name:  "uninstall",
		Usage: "Uninstall Racky and all its contents",
		Action: func(ctx *cli.Context) error {
			if !util.Prompt(os.Stdin, os.Stdout,
				"Are you sure you want to uninstall Racky? All programs, configs and logs it stores will be permanently deleted!",
				false, assumeYes) {
				return nil
			}
			if err := installer.Uninstall(); err != nil {
				return desc(err, "Failed to uninstall Racky")
			}
			printInfo("Racky has been uninstalled successfully")
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Update Racky to the latest version",
		Action: func(ctx *cli.Context) error {
			if err := installer.Update(true); err != nil {
				return desc(err, "Failed to update Racky")
			}
			printInfo("Racky has been updated successfully")
			return nil
		},
	}
}
