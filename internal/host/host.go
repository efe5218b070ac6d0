// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package host adapts programs written against a classic text-adventure host
// framework to [cli.App].
//
// Such a framework owns the process lifecycle and calls into the program at
// fixed points: it parses the command line against the program's argument
// table, calls a startup hook that can veto the run, and then calls the main
// hook. A [Program] is the explicit registration of those three pieces.
package host

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.astrophena.name/storyhost/internal/cli"
	"go.astrophena.name/storyhost/internal/logger"
)

// ArgType describes what follows an option from the argument table.
type ArgType int

const (
	// ArgNoValue is a switch: "-name".
	ArgNoValue ArgType = iota
	// ArgValueFollows takes a string: "-name value".
	ArgValueFollows
	// ArgNumberValue takes an integer: "-name 42".
	ArgNumberValue
)

func (t ArgType) String() string {
	switch t {
	case ArgNoValue:
		return "switch"
	case ArgValueFollows:
		return "value"
	case ArgNumberValue:
		return "number"
	default:
		return fmt.Sprintf("ArgType(%d)", int(t))
	}
}

// Argument is an entry of the argument table.
type Argument struct {
	Name string
	Type ArgType
	Desc string
}

// StartupData is passed to the startup hook.
type StartupData struct {
	// Args are the positional arguments left after option parsing.
	Args []string
	// Values holds the options from the argument table that were set on the
	// command line, keyed by name. Switches have the value "true".
	Values map[string]string
}

// ErrStartupFailed is returned when the startup hook rejects the run.
var ErrStartupFailed = errors.New("startup failed")

// Program registers a program with the host framework.
type Program struct {
	// Arguments is the table of options the program accepts. An empty table
	// means the program accepts no options and no positional arguments.
	Arguments []Argument
	// Startup is called before Main and may veto the run by returning false.
	// A nil Startup always succeeds.
	Startup func(context.Context, *StartupData) bool
	// Main is the program body. Its outcome is not inspected.
	Main func(context.Context)

	flags *flag.FlagSet
}

var (
	_ cli.HasFlags = (*Program)(nil)
	_ cli.HasUsage = (*Program)(nil)
)

// Flags registers the argument table on fs.
func (p *Program) Flags(fs *flag.FlagSet) {
	p.flags = fs
	for _, a := range p.Arguments {
		switch a.Type {
		case ArgNoValue:
			fs.Bool(a.Name, false, a.Desc)
		case ArgNumberValue:
			fs.Int(a.Name, 0, a.Desc)
		default:
			fs.String(a.Name, "", a.Desc)
		}
	}
}

// Usage lists the argument table.
func (p *Program) Usage(w io.Writer) {
	if len(p.Arguments) == 0 {
		return
	}
	fmt.Fprint(w, "Program options:\n\n")
	for _, a := range p.Arguments {
		fmt.Fprintf(w, "  -%s (%s)\n    \t%s\n", a.Name, a.Type, a.Desc)
	}
	fmt.Fprintln(w)
}

// Run runs the startup hook and, if it succeeds, the main hook.
func (p *Program) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(p.Arguments) == 0 && len(env.Args) > 0 {
		return fmt.Errorf("%w: unexpected arguments: %s", cli.ErrInvalidArgs, strings.Join(env.Args, " "))
	}

	data := &StartupData{
		Args:   env.Args,
		Values: p.values(),
	}
	if p.Startup != nil && !p.Startup(ctx, data) {
		logger.Debug(ctx, "startup hook vetoed the run")
		return ErrStartupFailed
	}

	if p.Main != nil {
		logger.Debug(ctx, "entering main", slog.Int("args", len(data.Args)))
		p.Main(ctx)
	}
	return nil
}

func (p *Program) values() map[string]string {
	values := make(map[string]string)
	if p.flags == nil {
		return values
	}
	known := make(map[string]bool, len(p.Arguments))
	for _, a := range p.Arguments {
		known[a.Name] = true
	}
	p.flags.Visit(func(f *flag.Flag) {
		if known[f.Name] {
			values[f.Name] = f.Value.String()
		}
	})
	return values
}
