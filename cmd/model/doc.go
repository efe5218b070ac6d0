// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Model runs a story model written in Lua.

# Usage

	$ model

Model takes no arguments of its own. It loads model.lua from the current
directory into a fresh Lua runtime with the standard libraries and runs it.
Whatever the script prints goes to standard output.

If the script can't be loaded or fails while running, model prints

	Could not load file: <error>

to standard output and exits normally. The runtime is released in either case.

Pass -v to log runtime setup and teardown to standard error.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/storyhost/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
