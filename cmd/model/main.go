// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.astrophena.name/storyhost/internal/cli"
	"go.astrophena.name/storyhost/internal/host"
	"go.astrophena.name/storyhost/internal/logger"
	"go.astrophena.name/storyhost/internal/script"
)

// scriptFile is resolved against the working directory.
const scriptFile = "model.lua"

func main() { cli.Main(newProgram("")) }

// newProgram registers model with the host framework. The script is looked
// up in dir, which is the working directory when empty.
func newProgram(dir string) *host.Program {
	return &host.Program{
		Arguments: arguments,
		Startup:   startup,
		Main: func(ctx context.Context) {
			runModel(ctx, filepath.Join(dir, scriptFile))
		},
	}
}

// arguments is empty: model accepts no options.
var arguments = []host.Argument{}

func startup(context.Context, *host.StartupData) bool { return true }

func runModel(ctx context.Context, path string) {
	env := cli.GetEnv(ctx)
	err := script.Run(ctx, script.Lua, path, script.Options{
		Stdout: env.Stdout,
	})
	if err != nil {
		logger.Debug(ctx, "script failed", slog.String("path", path), slog.Any("err", err))
		fmt.Fprintf(env.Stdout, "Could not load file: %v\n", err)
	}
}
