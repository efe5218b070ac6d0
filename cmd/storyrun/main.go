// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"

	"go.astrophena.name/storyhost/internal/cli"
	"go.astrophena.name/storyhost/internal/logger"
	"go.astrophena.name/storyhost/internal/script"
)

func main() { cli.Main(new(app)) }

type app struct {
	engine string
}

const autoEngine = "auto"

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.engine, "engine", "", "Script `engine`: auto, lua or starlark. Overrides STORYRUN_ENGINE.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) == 0 {
		return fmt.Errorf("%w: missing required argument 'script'", cli.ErrInvalidArgs)
	}
	path, args := env.Args[0], env.Args[1:]

	e, err := pickEngine(cmp.Or(a.engine, env.Getenv("STORYRUN_ENGINE"), autoEngine), path)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "running script", slog.String("engine", e.Name()), slog.String("path", path))

	return script.Run(ctx, e, path, script.Options{
		Stdout: env.Stdout,
		Args:   args,
	})
}

func pickEngine(name, path string) (script.Engine, error) {
	if name == autoEngine {
		return script.EngineFor(path)
	}
	return script.Lookup(name)
}
