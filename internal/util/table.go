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

package util

import (
	"strings"

	"github.com/ryanuber/columnize"
)

// Table renders aligned plain-text tables for terminal display.
type Table struct {
	lines []string
}

// NewTable starts a table with the given header cells.
func NewTable(header ...string) *Table {
	t := &Table{}
	t.AddRow(header...)
	return t
}

// AddRow appends one row.
func (t *Table) AddRow(cells ...string) {
	t.lines = append(t.lines, strings.Join(cells, "|"))
}

func (t *Table) String() string {
	return columnize.SimpleFormat(t.lines)
}
