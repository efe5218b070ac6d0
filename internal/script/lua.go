// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
)

// Lua is the [Lua 5.1] engine backed by gopher-lua. Scripts get the full
// gopher-lua standard library. print and io.write write to [Options.Stdout];
// io.stdout is still the process standard output.
//
// [Lua 5.1]: https://www.lua.org/manual/5.1/
var Lua Engine = luaEngine{}

type luaEngine struct{}

func (luaEngine) Name() string         { return "lua" }
func (luaEngine) Extensions() []string { return []string{".lua"} }

func (luaEngine) New(opts Options) Runtime {
	return &luaRuntime{
		L:    lua.NewState(lua.Options{SkipOpenLibs: true}),
		opts: opts,
	}
}

type luaRuntime struct {
	L      *lua.LState
	opts   Options
	closed bool
}

func (r *luaRuntime) OpenLibs() error {
	if r.closed {
		return ErrClosed
	}
	r.L.OpenLibs()
	r.L.SetGlobal("print", r.L.NewFunction(r.print))
	if io, ok := r.L.GetGlobal("io").(*lua.LTable); ok {
		r.L.SetField(io, "write", r.L.NewFunction(r.write))
	}
	return nil
}

func (r *luaRuntime) ExecFile(ctx context.Context, path string) error {
	if r.closed {
		return ErrClosed
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return &Error{Op: "load", Path: path, Err: err}
	}
	fn, err := r.L.Load(bytes.NewReader(src), path)
	if err != nil {
		return &Error{Op: "load", Path: path, Err: luaErr(err)}
	}

	r.L.SetGlobal("arg", r.argTable(path))

	if ctx.Done() != nil {
		r.L.SetContext(ctx)
		defer r.L.RemoveContext()
	}

	r.L.Push(fn)
	if err := r.L.PCall(0, lua.MultRet, nil); err != nil {
		return &Error{Op: "run", Path: path, Err: luaErr(err)}
	}
	return nil
}

func (r *luaRuntime) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	r.L.Close()
	return nil
}

// print mirrors the base library print, but writes to the configured output.
func (r *luaRuntime) print(L *lua.LState) int {
	w := r.opts.stdout()
	top := L.GetTop()
	for i := 1; i <= top; i++ {
		fmt.Fprint(w, L.ToStringMeta(L.Get(i)).String())
		if i != top {
			fmt.Fprint(w, "\t")
		}
	}
	fmt.Fprintln(w)
	return 0
}

// write mirrors io.write for the default output file.
func (r *luaRuntime) write(L *lua.LState) int {
	w := r.opts.stdout()
	for i := 1; i <= L.GetTop(); i++ {
		switch v := L.Get(i).(type) {
		case lua.LString, lua.LNumber:
			fmt.Fprint(w, v.String())
		default:
			L.ArgError(i, "string expected, got "+v.Type().String())
		}
	}
	return 0
}

// argTable builds the conventional arg table: script name at index 0,
// arguments from 1.
func (r *luaRuntime) argTable(path string) *lua.LTable {
	t := r.L.NewTable()
	t.RawSetInt(0, lua.LString(path))
	for i, a := range r.opts.Args {
		t.RawSetInt(i+1, lua.LString(a))
	}
	return t
}

// luaError drops the stack traceback from the message of a Lua error and
// folds it onto one line.
type luaError struct{ api *lua.ApiError }

func (e *luaError) Error() string { return oneLine(e.api.Object.String()) }
func (e *luaError) Unwrap() error { return e.api }

func luaErr(err error) error {
	var api *lua.ApiError
	if errors.As(err, &api) && api.Object != nil {
		return &luaError{api: api}
	}
	return err
}
