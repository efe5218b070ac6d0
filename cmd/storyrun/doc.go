// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Storyrun runs a story script in Lua or Starlark.

# Usage

	$ storyrun [-engine name] <script> [args...]

The engine is picked by the script's extension: .lua runs in Lua, .star and
.sky run in Starlark. Pass -engine lua or -engine starlark to override it, or
set STORYRUN_ENGINE.

Remaining arguments are passed to the script: in Lua as the arg table, with
the script path at index 0, and in Starlark as the argv tuple.

Unlike model, storyrun exits with a non-zero status when the script fails.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/storyhost/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
