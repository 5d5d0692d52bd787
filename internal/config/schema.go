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

package config

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownField reports a setting name the schema does not recognize.
var ErrUnknownField = errors.New("unknown setting")

// Field describes one recognized setting of a configuration struct: its
// flat TOML key, the documentation line shown by the settings table, and
// typed get/set accessors.
type Field[T any] struct {
	Name string
	Doc  string
	Get  func(*T) string
	Set  func(*T, string) error
}

// Schema is the ordered list of recognized settings for one configuration
// struct. Order follows the struct declaration and is the render order of
// every settings table.
type Schema[T any] []Field[T]

// Get returns the formatted value of a setting, or false for unknown names.
func (s Schema[T]) Get(c *T, name string) (string, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Get(c), true
		}
	}
	return "", false
}

// Set parses and stores a setting value. Unknown names return
// ErrUnknownField so callers can decide whether that is an error or an
// environment variable.
func (s Schema[T]) Set(c *T, name, value string) error {
	for _, f := range s {
		if f.Name == name {
			if err := f.Set(c, value); err != nil {
				return fmt.Errorf("invalid value %q for %s: %w", value, name, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// Has reports whether the schema recognizes a setting name.
func (s Schema[T]) Has(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

// StringField builds a plain string setting.
func StringField[T any](name, doc string, ptr func(*T) *string) Field[T] {
	return Field[T]{
		Name: name,
		Doc:  doc,
		Get:  func(c *T) string { return *ptr(c) },
		Set: func(c *T, v string) error {
			*ptr(c) = v
			return nil
		},
	}
}

// BoolField builds a boolean setting accepting strconv.ParseBool forms.
func BoolField[T any](name, doc string, ptr func(*T) *bool) Field[T] {
	return Field[T]{
		Name: name,
		Doc:  doc,
		Get:  func(c *T) string { return strconv.FormatBool(*ptr(c)) },
		Set: func(c *T, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.New("expected true or false")
			}
			*ptr(c) = b
			return nil
		},
	}
}

// UintField builds an unsigned integer setting.
func UintField[T any](name, doc string, ptr func(*T) *uint64) Field[T] {
	return Field[T]{
		Name: name,
		Doc:  doc,
		Get:  func(c *T) string { return strconv.FormatUint(*ptr(c), 10) },
		Set: func(c *T, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return errors.New("expected a non-negative integer")
			}
			*ptr(c) = n
			return nil
		},
	}
}

// PortField builds a TCP port setting (0..65535).
func PortField[T any](name, doc string, ptr func(*T) *uint64) Field[T] {
	return Field[T]{
		Name: name,
		Doc:  doc,
		Get:  func(c *T) string { return strconv.FormatUint(*ptr(c), 10) },
		Set: func(c *T, v string) error {
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return errors.New("expected a port number between 0 and 65535")
			}
			*ptr(c) = n
			return nil
		},
	}
}

// FormatValue renders a decoded TOML value the way schema setters expect
// it: bare strings, decimal integers, true/false.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
