// Package cli provides the command-line interface for cdt.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cdt/pkg/command"
	"github.com/devicelab-dev/cdt/pkg/core"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (cdt.yaml or cdt.toml)",
		EnvVars: []string{"CDT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "host",
		Usage:   "DevTools host",
		EnvVars: []string{"CDT_HOST"},
	},
	&cli.IntFlag{
		Name:    "port",
		Usage:   "DevTools port",
		EnvVars: []string{"CDT_PORT"},
	},
	&cli.StringFlag{
		Name:    "origin",
		Usage:   "Origin header sent on connect (empty to omit)",
		EnvVars: []string{"CDT_ORIGIN"},
	},
	&cli.StringFlag{
		Name:    "output-dir",
		Aliases: []string{"o"},
		Usage:   "Directory for screenshots and screencast frames",
		EnvVars: []string{"CDT_OUTPUT_DIR"},
	},
	&cli.StringFlag{
		Name:    "report",
		Usage:   "Write a JSON run report to this file",
		EnvVars: []string{"CDT_REPORT"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// streams are the process's standard files, swapped out in tests.
type streams struct {
	in       io.Reader
	out, err io.Writer
}

// Execute runs the CLI and exits.
func Execute() {
	os.Exit(Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Run runs the CLI with the given arguments and returns the exit code.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	s := streams{in: stdin, out: stdout, err: stderr}
	app := newApp(s)

	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "%sError:%s %v\n", color(stderr, colorRed), color(stderr, colorReset), err)
		if core.CategoryOf(err) == core.ErrCategoryUsage {
			fmt.Fprintln(stderr, "Run 'cdt help' for usage.")
		}
		return core.ExitCode(err)
	}
	return 0
}

func newApp(s streams) *cli.App {
	return &cli.App{
		Name:    "cdt",
		Usage:   "Drive a Chrome page over the DevTools protocol",
		Version: Version,
		Description: `cdt connects to a page target of a browser started with
--remote-debugging-port and runs one command against it.

DISPLAY is the target's websocket path (/devtools/page/<id>) or just <id>.

Examples:
  cdt tap 6A1F 120 340
  cdt --port 9223 screenshot /devtools/page/6A1F jpeg
  cdt run-log --raw -e DONE 6A1F 'console.log("DONE")'`,
		// the help command suppresses urfave's own --help flag; add it back
		Flags:           cloneFlags(append(append([]cli.Flag{}, GlobalFlags...), cli.HelpFlag)),
		Commands:        commands(s),
		HideHelpCommand: true,
		Reader:          s.in,
		Writer:          s.out,
		ErrWriter:       s.err,
		Action:          unknownCommand,
		ExitErrHandler:  func(*cli.Context, error) {},
	}
}

// unknownCommand runs when the first argument names no command.
func unknownCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		_ = cli.ShowAppHelp(c)
		return core.ErrBadArguments.WithMessage("no command given")
	}
	name := c.Args().First()
	fmt.Fprintf(c.App.ErrWriter, "Unknown command: %s\n\n", name)
	_ = cli.ShowAppHelp(c)
	return core.ErrUnknownCommand.WithMessagef("unknown command %q", name)
}

func commands(s streams) []*cli.Command {
	entries := command.Entries()
	out := make([]*cli.Command, 0, len(entries))
	for _, e := range entries {
		out = append(out, &cli.Command{
			Name:            e.Name,
			Usage:           e.Usage,
			ArgsUsage:       e.ArgsUsage,
			Description:     e.Description,
			Flags:           cloneFlags(e.Flags),
			HideHelpCommand: true,
			Action:          action(e, s),
		})
	}
	return out
}

// cloneFlags copies flag definitions so one app run cannot leak parsed
// environment values into the next.
func cloneFlags(flags []cli.Flag) []cli.Flag {
	out := make([]cli.Flag, len(flags))
	for i, f := range flags {
		switch f := f.(type) {
		case *cli.StringFlag:
			cp := *f
			out[i] = &cp
		case *cli.IntFlag:
			cp := *f
			out[i] = &cp
		case *cli.BoolFlag:
			cp := *f
			out[i] = &cp
		default:
			out[i] = f
		}
	}
	return out
}
