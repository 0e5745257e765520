// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package logger constructs the zerolog loggers handed to every component.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Level  string
	Writer io.Writer
	Mode   string
}

// WithLevel provides a function to set the log level option.
func WithLevel(lvl string) Option {
	return func(o *Options) {
		o.Level = lvl
	}
}

// WithWriter provides a function to set the log output option.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.Writer = w
	}
}

// WithMode sets the output mode, "console" or "json".
func WithMode(mode string) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

// New returns a new logger with the given options applied.
func New(opts ...Option) *zerolog.Logger {
	o := &Options{
		Level:  zerolog.InfoLevel.String(),
		Writer: os.Stderr,
		Mode:   "json",
	}
	for _, opt := range opts {
		opt(o)
	}

	lvl, err := zerolog.ParseLevel(o.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	w := o.Writer
	if o.Mode == "console" {
		w = zerolog.ConsoleWriter{Out: o.Writer}
	}

	l := zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	return &l
}
