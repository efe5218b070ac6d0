// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// Starlark is the [Starlark] engine. Scripts get the json, math, time, struct
// and module builtins and the argv tuple, and may load other files from the
// directory of the main script.
//
// [Starlark]: https://starlark-lang.org
var Starlark Engine = starlarkEngine{}

type starlarkEngine struct{}

func (starlarkEngine) Name() string         { return "starlark" }
func (starlarkEngine) Extensions() []string { return []string{".star", ".sky"} }

func (starlarkEngine) New(opts Options) Runtime {
	return &starlarkRuntime{opts: opts}
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

type starlarkRuntime struct {
	opts        Options
	predeclared starlark.StringDict
	closed      bool
}

func (r *starlarkRuntime) OpenLibs() error {
	if r.closed {
		return ErrClosed
	}
	argv := make([]starlark.Value, 0, len(r.opts.Args))
	for _, a := range r.opts.Args {
		argv = append(argv, starlark.String(a))
	}
	r.predeclared = starlark.StringDict{
		"argv":   starlark.Tuple(argv),
		"json":   starlarkjson.Module,
		"math":   starlarkmath.Module,
		"module": starlark.NewBuiltin("module", starlarkstruct.MakeModule),
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"time":   starlarktime.Module,
	}
	return nil
}

func (r *starlarkRuntime) ExecFile(ctx context.Context, path string) error {
	if r.closed {
		return ErrClosed
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return &Error{Op: "load", Path: path, Err: err}
	}
	_, prog, err := starlark.SourceProgramOptions(fileOptions, path, src, r.predeclared.Has)
	if err != nil {
		return &Error{Op: "load", Path: path, Err: err}
	}

	l := &loader{
		ctx:   ctx,
		rt:    r,
		root:  filepath.Dir(path),
		cache: make(map[string]*loadResult),
	}
	thread, stop := l.thread(path)
	defer stop()

	if _, err := prog.Init(thread, r.predeclared); err != nil {
		return &Error{Op: "run", Path: path, Err: starlarkErr(err)}
	}
	return nil
}

func (r *starlarkRuntime) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	r.predeclared = nil
	return nil
}

// loader resolves load statements relative to the directory of the main
// script. Modules are executed once per run.
type loader struct {
	ctx   context.Context
	rt    *starlarkRuntime
	root  string
	cache map[string]*loadResult // nil value means "loading in progress"
}

type loadResult struct {
	globals starlark.StringDict
	err     error
}

func (l *loader) thread(name string) (*starlark.Thread, func() bool) {
	w := l.rt.opts.stdout()
	thread := &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, msg string) { fmt.Fprintln(w, msg) },
		Load:  l.load,
	}
	stop := context.AfterFunc(l.ctx, func() {
		thread.Cancel(context.Cause(l.ctx).Error())
	})
	return thread, stop
}

func (l *loader) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	abs := filepath.Join(l.root, filepath.FromSlash(module))
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("cannot load %q: outside the script directory", module)
	}

	res, ok := l.cache[rel]
	if ok {
		if res == nil {
			return nil, fmt.Errorf("cannot load %q: cycle in load graph", module)
		}
		return res.globals, res.err
	}
	l.cache[rel] = nil

	res = new(loadResult)
	src, err := os.ReadFile(abs)
	if err != nil {
		res.err = err
	} else {
		thread, stop := l.thread(module)
		res.globals, res.err = starlark.ExecFileOptions(fileOptions, thread, abs, src, l.rt.predeclared)
		stop()
	}
	l.cache[rel] = res
	return res.globals, res.err
}

// starlarkErr puts the position of the innermost Starlark frame in front of
// an evaluation error message.
func starlarkErr(err error) error {
	var evalErr *starlark.EvalError
	if !errors.As(err, &evalErr) {
		return err
	}
	for i := len(evalErr.CallStack) - 1; i >= 0; i-- {
		if pos := evalErr.CallStack[i].Pos; pos.IsValid() {
			return &positionedError{pos: pos, err: evalErr}
		}
	}
	return err
}

type positionedError struct {
	pos syntax.Position
	err *starlark.EvalError
}

func (e *positionedError) Error() string { return e.pos.String() + ": " + oneLine(e.err.Msg) }
func (e *positionedError) Unwrap() error { return e.err }
