// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package script

import (
	"context"
	"errors"
	"testing"

	"go.astrophena.name/storyhost/internal/testutil"
)

// countingEngine wraps an engine and counts how many runtimes it created and
// how many times they were closed.
type countingEngine struct {
	Engine
	created, closed int
}

func (e *countingEngine) New(opts Options) Runtime {
	e.created++
	return &countingRuntime{Runtime: e.Engine.New(opts), e: e}
}

type countingRuntime struct {
	Runtime
	e *countingEngine
}

func (r *countingRuntime) Close() error {
	r.e.closed++
	return r.Runtime.Close()
}

// failingEngine returns runtimes that fail at a given step.
type failingEngine struct {
	openErr, execErr error
	closed           int
}

func (e *failingEngine) Name() string { return "failing" }

func (e *failingEngine) Extensions() []string { return nil }

func (e *failingEngine) New(Options) Runtime { return &failingRuntime{e: e} }

type failingRuntime struct{ e *failingEngine }

func (r *failingRuntime) OpenLibs() error { return r.e.openErr }

func (r *failingRuntime) ExecFile(context.Context, string) error { return r.e.execErr }

func (r *failingRuntime) Close() error {
	r.e.closed++
	return nil
}

func TestRunReleasesOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := testutil.WriteFile(t, dir, "good.lua", `local x = 1 + 1`)
	bad := testutil.WriteFile(t, dir, "bad.lua", `local = `)
	boom := testutil.WriteFile(t, dir, "boom.lua", `error("boom")`)

	cases := map[string]struct {
		path    string
		wantErr bool
	}{
		"success":       {path: good},
		"syntax error":  {path: bad, wantErr: true},
		"runtime error": {path: boom, wantErr: true},
		"missing file":  {path: dir + "/missing.lua", wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := &countingEngine{Engine: Lua}
			err := Run(context.Background(), e, tc.path, Options{})
			testutil.AssertEqual(t, err != nil, tc.wantErr)
			testutil.AssertEqual(t, e.created, 1)
			testutil.AssertEqual(t, e.closed, 1)
		})
	}
}

func TestRunFailingSteps(t *testing.T) {
	t.Parallel()

	errOpen := errors.New("open failed")
	errExec := errors.New("exec failed")

	cases := map[string]struct {
		e       *failingEngine
		wantErr error
	}{
		"open libs fails": {e: &failingEngine{openErr: errOpen}, wantErr: errOpen},
		"exec fails":      {e: &failingEngine{execErr: errExec}, wantErr: errExec},
		"nothing fails":   {e: &failingEngine{}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := Run(context.Background(), tc.e, "whatever", Options{})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want error %v, got %v", tc.wantErr, err)
			}
			testutil.AssertEqual(t, tc.e.closed, 1)
		})
	}
}

func TestRunNoResidualState(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		e    Engine
		name string
		src  string
	}{
		{Lua, "leak.lua", "assert(leaked == nil, 'state leaked')\nleaked = true\n"},
		{Starlark, "leak.star", "leaked = True\n"},
	} {
		path := testutil.WriteFile(t, t.TempDir(), tc.name, tc.src)
		for i := range 3 {
			if err := Run(context.Background(), tc.e, path, Options{}); err != nil {
				t.Fatalf("%s: run %d: %v", tc.e.Name(), i, err)
			}
		}
	}
}

func TestCloseTwice(t *testing.T) {
	t.Parallel()

	for _, e := range Engines {
		rt := e.New(Options{})
		if err := rt.Close(); err != nil {
			t.Fatalf("%s: first Close: %v", e.Name(), err)
		}
		if err := rt.Close(); !errors.Is(err, ErrClosed) {
			t.Fatalf("%s: second Close: want ErrClosed, got %v", e.Name(), err)
		}
		if err := rt.OpenLibs(); !errors.Is(err, ErrClosed) {
			t.Fatalf("%s: OpenLibs after Close: want ErrClosed, got %v", e.Name(), err)
		}
		if err := rt.ExecFile(context.Background(), "x"); !errors.Is(err, ErrClosed) {
			t.Fatalf("%s: ExecFile after Close: want ErrClosed, got %v", e.Name(), err)
		}
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, e := range Engines {
		got, err := Lookup(e.Name())
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, got.Name(), e.Name())
	}
	if _, err := Lookup("python"); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("want ErrUnknownEngine, got %v", err)
	}
}

func TestEngineFor(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"model.lua":         "lua",
		"stories/MODEL.LUA": "lua",
		"model.star":        "starlark",
		"model.sky":         "starlark",
		"model.py":          "",
		"model":             "",
	}
	for path, want := range cases {
		e, err := EngineFor(path)
		if want == "" {
			if !errors.Is(err, ErrUnknownEngine) {
				t.Errorf("EngineFor(%q): want ErrUnknownEngine, got %v", path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("EngineFor(%q): %v", path, err)
			continue
		}
		testutil.AssertEqual(t, e.Name(), want)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  *Error
		want string
	}{
		"position carries the path": {
			err:  &Error{Op: "run", Path: "model.lua", Err: errors.New("model.lua:1: boom")},
			want: "run model.lua:1: boom",
		},
		"message without the path": {
			err:  &Error{Op: "load", Path: "model.lua", Err: errors.New("file does not exist")},
			want: "load model.lua: file does not exist",
		},
		"path is only a prefix of another file": {
			err:  &Error{Op: "run", Path: "model", Err: errors.New("model.lua:1: boom")},
			want: "run model: model.lua:1: boom",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutil.AssertEqual(t, tc.err.Error(), tc.want)
		})
	}
}

func TestOneLine(t *testing.T) {
	t.Parallel()

	testutil.AssertEqual(t, oneLine("  first line\nsecond line\r\n\nthird\n"), "first line second line third")
	testutil.AssertEqual(t, oneLine("single"), "single")
}
