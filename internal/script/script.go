// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package script runs story scripts in an embedded scripting runtime.
//
// A [Runtime] is a script-execution context: it is created by an [Engine],
// has the standard library installed with [Runtime.OpenLibs], executes a file
// with [Runtime.ExecFile] and is released with [Runtime.Close]. [Run] does all
// of that and guarantees that the runtime is released exactly once, whatever
// the outcome.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"go.astrophena.name/storyhost/internal/logger"
)

// Engine creates runtimes for one scripting language.
type Engine interface {
	// Name returns the engine name, as accepted by [Lookup].
	Name() string
	// Extensions returns file name extensions handled by this engine,
	// including the leading dot.
	Extensions() []string
	// New acquires a fresh runtime. Runtimes never share state.
	New(Options) Runtime
}

// Runtime is a single script-execution context.
type Runtime interface {
	// OpenLibs installs the standard library surface.
	OpenLibs() error
	// ExecFile loads and executes the script at path.
	ExecFile(ctx context.Context, path string) error
	// Close releases the runtime. Calling Close more than once returns
	// ErrClosed.
	Close() error
}

// Options configure a runtime.
type Options struct {
	// Stdout receives the output of print (and io.write for Lua). If nil,
	// output is discarded.
	Stdout io.Writer
	// Args are passed to the script: as the arg table in Lua and as the argv
	// tuple in Starlark.
	Args []string
}

func (o Options) stdout() io.Writer {
	if o.Stdout == nil {
		return io.Discard
	}
	return o.Stdout
}

var (
	// ErrClosed is returned when a runtime is used after it was released.
	ErrClosed = errors.New("script: runtime is closed")
	// ErrUnknownEngine is returned when no engine matches a name or a file
	// extension.
	ErrUnknownEngine = errors.New("script: unknown engine")
)

// Error describes a failure to load or execute a script.
type Error struct {
	Op   string // "load" or "run"
	Path string
	Err  error
}

// Error omits Path when the underlying message already starts with it.
func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Path != "" && strings.HasPrefix(msg, e.Path+":") {
		return e.Op + " " + msg
	}
	return e.Op + " " + e.Path + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// oneLine trims msg and replaces the line breaks inside it with spaces.
func oneLine(msg string) string {
	return strings.Join(strings.FieldsFunc(strings.TrimSpace(msg), func(r rune) bool {
		return r == '\n' || r == '\r'
	}), " ")
}

// Engines lists all available engines.
var Engines = []Engine{Lua, Starlark}

// Lookup returns the engine called name.
func Lookup(name string) (Engine, error) {
	for _, e := range Engines {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
}

// EngineFor returns the engine that handles the file at path, judging by its
// extension.
func EngineFor(path string) (Engine, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Engines {
		if slices.Contains(e.Extensions(), ext) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w for %q", ErrUnknownEngine, path)
}

// Run acquires a runtime from e, installs the standard library, executes the
// script at path and releases the runtime before returning.
func Run(ctx context.Context, e Engine, path string, opts Options) (err error) {
	attrs := []slog.Attr{slog.String("engine", e.Name()), slog.String("path", path)}

	rt := e.New(opts)
	logger.Debug(ctx, "acquired runtime", attrs...)
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
		logger.Debug(ctx, "released runtime", attrs...)
	}()

	if err := rt.OpenLibs(); err != nil {
		return err
	}
	return rt.ExecFile(ctx, path)
}
