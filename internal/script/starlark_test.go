// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package script

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"go.astrophena.name/storyhost/internal/testutil"
)

func TestStarlark(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		files      map[string]string // model.star is the entry point
		args       []string
		wantStdout string
		wantOp     string
		wantInErr  string
	}{
		"print": {
			files:      map[string]string{"model.star": `print("West of House")`},
			wantStdout: "West of House\n",
		},
		"standard modules": {
			files: map[string]string{"model.star": `
room = struct(name = "Kitchen", exits = ["west", "up"])
print(json.encode({"room": room.name, "exits": room.exits}))
print(math.sqrt(16))
print(type(time.now()))
m = module("lamp", lit = False)
print(m.lit)
`},
			wantStdout: "{\"exits\":[\"west\",\"up\"],\"room\":\"Kitchen\"}\n4.0\ntime.time\nFalse\n",
		},
		"top level control": {
			files: map[string]string{"model.star": `
n = 0
while n < 3:
    n += 1
for i in range(1):
    print(n)
`},
			wantStdout: "3\n",
		},
		"arguments": {
			files:      map[string]string{"model.star": `print(len(argv), argv[0])`},
			args:       []string{"north"},
			wantStdout: "1 north\n",
		},
		"load from script directory": {
			files: map[string]string{
				"model.star":         `load("rooms/kitchen.star", "describe")` + "\nprint(describe())",
				"rooms/kitchen.star": "def describe():\n    return \"You are in the kitchen.\"\n",
			},
			wantStdout: "You are in the kitchen.\n",
		},
		"load outside script directory": {
			files: map[string]string{
				"model.star": `load("../secret.star", "x")`,
			},
			wantOp:    "run",
			wantInErr: "outside the script directory",
		},
		"load cycle": {
			files: map[string]string{
				"model.star": `load("a.star", "a")`,
				"a.star":     `load("b.star", "b")` + "\na = 1",
				"b.star":     `load("a.star", "a")` + "\nb = 1",
			},
			wantOp:    "run",
			wantInErr: "cycle in load graph",
		},
		"syntax error": {
			files:     map[string]string{"model.star": `def (`},
			wantOp:    "load",
			wantInErr: "model.star:1",
		},
		"undefined name": {
			files:     map[string]string{"model.star": `print(grue)`},
			wantOp:    "load",
			wantInErr: "undefined: grue",
		},
		"runtime error": {
			files: map[string]string{"model.star": `print("before")
x = {}["missing"]`},
			wantStdout: "before\n",
			wantOp:     "run",
			wantInErr:  "model.star:2",
		},
		"multi-line error message": {
			files:     map[string]string{"model.star": `fail("first line\nsecond line")`},
			wantOp:    "run",
			wantInErr: "first line second line",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			for name, src := range tc.files {
				testutil.WriteFile(t, dir, name, src)
			}
			path := filepath.Join(dir, "model.star")

			var stdout bytes.Buffer
			err := Run(context.Background(), Starlark, path, Options{Stdout: &stdout, Args: tc.args})

			testutil.AssertEqual(t, stdout.String(), tc.wantStdout)
			if tc.wantOp == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var serr *Error
			if !errors.As(err, &serr) {
				t.Fatalf("want *Error, got %T (%v)", err, err)
			}
			testutil.AssertEqual(t, serr.Op, tc.wantOp)
			if !strings.Contains(err.Error(), tc.wantInErr) {
				t.Fatalf("error %q must contain %q", err, tc.wantInErr)
			}
			if strings.Contains(err.Error(), "\n") {
				t.Fatalf("error %q must fit on one line", err)
			}
		})
	}
}

func TestStarlarkEvalErrorIsWrapped(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, t.TempDir(), "fail.star", `fail("eaten by a grue")`)
	err := Run(context.Background(), Starlark, path, Options{})
	var evalErr *starlark.EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("want *starlark.EvalError, got %v", err)
	}
	if !strings.Contains(err.Error(), "eaten by a grue") {
		t.Fatalf("error %q must contain the failure message", err)
	}
}

func TestStarlarkMissingFile(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), Starlark, filepath.Join(t.TempDir(), "model.star"), Options{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want fs.ErrNotExist, got %v", err)
	}
}

func TestStarlarkCancel(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, t.TempDir(), "loop.star", "while True:\n    pass\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, Starlark, path, Options{})
	if err == nil || !strings.Contains(err.Error(), "cancel") {
		t.Fatalf("want cancellation error, got %v", err)
	}
}
