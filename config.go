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
	"strings"

	cli "github.com/urfave/cli/v2"
)

// configCommand edits the local racky.toml, the same settings the running
// server exposes over POST /server/config.
func configCommand() *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Update Racky configuration",
		ArgsUsage: "[key=value...]",
		Flags: []cli.Flag{
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
			const message = "Failed to update/list Racky config"

			out, err := cfg.Apply(
				strings.Join(ctx.Args().Slice(), ","),
				ctx.Bool("default"),
				ctx.Bool("list"),
			)
			if err != nil {
				return desc(err, message)
			}
			printInfo("%s", out)
			return nil
		},
	}
}
