package command

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cdt/pkg/core"
	"github.com/devicelab-dev/cdt/pkg/jsengine"
	"github.com/devicelab-dev/cdt/pkg/transport"
)

// Entry describes one command for the CLI.
type Entry struct {
	Name        string
	Usage       string
	ArgsUsage   string
	Description string
	Flags       []cli.Flag

	// Offline commands take no DISPLAY and never connect.
	Offline bool

	Build func(c *cli.Context, env *Env) (Command, error)
}

// LogFlags are accepted by every command that connects.
var LogFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "log-level",
		Aliases: []string{"l"},
		Usage:   "Log level (error, warning, notice, info, debug)",
		EnvVars: []string{"CDT_LOG_LEVEL"},
	},
	&cli.StringFlag{
		Name:    "log-target",
		Aliases: []string{"t"},
		Usage:   "Logging target (stdout, stderr, syslog)",
		EnvVars: []string{"CDT_LOG_TARGET"},
	},
}

var scriptFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "raw",
		Usage: "SCRIPT is plain JavaScript; escape it before sending",
	},
	&cli.BoolFlag{
		Name:  "check",
		Usage: "Syntax-check SCRIPT locally before sending",
	},
}

func withLogFlags(flags ...cli.Flag) []cli.Flag {
	out := append([]cli.Flag{}, flags...)
	return append(out, LogFlags...)
}

var registry = []Entry{
	{
		Name:      "tap",
		Usage:     "Tap a point on the page",
		ArgsUsage: "DISPLAY X Y",
		Flags:     withLogFlags(),
		Build:     buildTap,
	},
	{
		Name:        "swipe",
		Usage:       "Scroll with a synthesized swipe gesture",
		ArgsUsage:   "DISPLAY X Y X_DIST Y_DIST [SPEED]",
		Description: "X_DIST and Y_DIST are scroll distances; positive values scroll left and up.",
		Flags:       withLogFlags(),
		Build:       buildSwipe,
	},
	{
		Name:      "drag",
		Usage:     "Drag a touch point between two positions",
		ArgsUsage: "DISPLAY START_X START_Y END_X END_Y",
		Flags: withLogFlags(
			&cli.IntFlag{
				Name:    "steps",
				Aliases: []string{"s"},
				Usage:   "Number of intermediate moves",
				Value:   10,
			},
			&cli.IntFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "Drag duration in milliseconds",
				Value:   500,
			},
		),
		Build: buildDrag,
	},
	{
		Name:        "run",
		Usage:       "Evaluate JavaScript in the page",
		ArgsUsage:   "DISPLAY SCRIPT",
		Description: "SCRIPT is JSON-escaped JavaScript unless --raw is given.",
		Flags:       withLogFlags(scriptFlags...),
		Build:       buildRun,
	},
	{
		Name:        "run-log",
		Usage:       "Evaluate JavaScript and stream its console.log output",
		ArgsUsage:   "DISPLAY SCRIPT",
		Description: "Prints the first argument of each console.log call to stdout until an entry contains --end-marker.",
		Flags: withLogFlags(append([]cli.Flag{
			&cli.StringFlag{
				Name:    "end-marker",
				Aliases: []string{"e"},
				Usage:   "String indicating end of log",
			},
		}, scriptFlags...)...),
		Build: buildRunLog,
	},
	{
		Name:      "screenshot",
		Usage:     "Capture the page to screenshot-<target>.<format>",
		ArgsUsage: "DISPLAY [FORMAT]",
		Flags:     withLogFlags(),
		Build:     buildScreenshot,
	},
	{
		Name:      "screencast",
		Usage:     "Save every screencast frame until interrupted",
		ArgsUsage: "DISPLAY",
		Flags: withLogFlags(
			&cli.IntFlag{
				Name:    "max-size",
				Aliases: []string{"s"},
				Usage:   "Maximum x/y dimension in px",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Frame format (jpeg, png)",
			},
		),
		Build: buildScreencast,
	},
	{
		Name:      "tap-id",
		Usage:     "Tap the centre of the element with a DOM id",
		ArgsUsage: "DISPLAY ID",
		Flags:     withLogFlags(),
		Build:     buildTapID,
	},
	{
		Name:        "sdl",
		Usage:       "Mirror the page and forward pointer input",
		ArgsUsage:   "DISPLAY",
		Description: "Writes the latest frame to --frame-file and reads input lines from stdin:\n  down X Y, move X Y, up X Y, resize W H, quit",
		Flags: withLogFlags(
			&cli.StringFlag{
				Name:  "frame-file",
				Usage: "Where to keep the latest frame (default <output-dir>/sdl-<target>.jpeg)",
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Viewer width in px",
				Value: 800,
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "Viewer height in px",
				Value: 600,
			},
		),
		Build: buildSdl,
	},
	{
		Name:      "help",
		Usage:     "Show help for a command",
		ArgsUsage: "[COMMAND]",
		Offline:   true,
		Build:     buildHelp,
	},
}

// Entries returns the registry in display order.
func Entries() []Entry {
	return registry
}

// Lookup finds an entry by exact name.
func Lookup(name string) (Entry, bool) {
	for _, e := range registry {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Names returns every command name in registry order.
func Names() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.Name
	}
	return names
}

func maxArgs(args []string, n int) error {
	if len(args) > n {
		return core.ErrBadArguments.WithMessagef("unexpected arguments: %v", args[n:])
	}
	return nil
}

func buildTap(_ *cli.Context, env *Env) (Command, error) {
	v, err := intArgs(env.Args, "X", "Y")
	if err != nil {
		return nil, err
	}
	if err := maxArgs(env.Args, 2); err != nil {
		return nil, err
	}
	return &Tap{X: v[0], Y: v[1]}, nil
}

func buildSwipe(_ *cli.Context, env *Env) (Command, error) {
	v, err := intArgs(env.Args, "X", "Y", "X_DIST", "Y_DIST")
	if err != nil {
		return nil, err
	}
	if err := maxArgs(env.Args, 5); err != nil {
		return nil, err
	}
	speed := env.Config.Swipe.Speed
	if len(env.Args) == 5 {
		s, err := intArgs(env.Args[4:], "SPEED")
		if err != nil {
			return nil, err
		}
		speed = s[0]
	}
	return &Swipe{X: v[0], Y: v[1], XDistance: v[2], YDistance: v[3], Speed: speed}, nil
}

func buildDrag(c *cli.Context, env *Env) (Command, error) {
	v, err := intArgs(env.Args, "START_X", "START_Y", "END_X", "END_Y")
	if err != nil {
		return nil, err
	}
	if err := maxArgs(env.Args, 4); err != nil {
		return nil, err
	}

	steps := env.Config.Drag.Steps
	if c.IsSet("steps") {
		steps = c.Int("steps")
	}
	durationMs := env.Config.Drag.DurationMs
	if c.IsSet("duration") {
		durationMs = c.Int("duration")
	}
	if steps < 0 || durationMs < 0 {
		return nil, core.ErrBadArguments.WithMessage("steps and duration must not be negative")
	}

	return &Drag{
		X0: v[0], Y0: v[1],
		X1: v[2], Y1: v[3],
		Steps:    steps,
		Duration: time.Duration(durationMs) * time.Millisecond,
		Clock:    env.clock(),
	}, nil
}

// scriptExpression returns SCRIPT in the JSON-escaped form Runtime.evaluate
// embeds, checking its syntax first when asked.
func scriptExpression(c *cli.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", core.ErrBadArguments.WithMessage("expected exactly one SCRIPT argument")
	}
	src := args[0]

	if c.Bool("raw") {
		if c.Bool("check") {
			if err := jsengine.Check(src); err != nil {
				return "", core.ErrBadArguments.WithCause(err)
			}
		}
		return jsengine.Escape(src), nil
	}

	if c.Bool("check") {
		plain, err := jsengine.Unescape([]byte(src))
		if err != nil {
			return "", core.ErrBadArguments.WithMessage("SCRIPT is not JSON-escaped").WithCause(err)
		}
		if err := jsengine.Check(plain); err != nil {
			return "", core.ErrBadArguments.WithCause(err)
		}
	}
	return src, nil
}

func buildRun(c *cli.Context, env *Env) (Command, error) {
	expr, err := scriptExpression(c, env.Args)
	if err != nil {
		return nil, err
	}
	return &Run{Expression: expr}, nil
}

func buildRunLog(c *cli.Context, env *Env) (Command, error) {
	expr, err := scriptExpression(c, env.Args)
	if err != nil {
		return nil, err
	}
	return &RunLog{
		Expression: expr,
		EndMarker:  c.String("end-marker"),
		Out:        env.stdout(),
		Clock:      env.clock(),
	}, nil
}

func buildScreenshot(_ *cli.Context, env *Env) (Command, error) {
	if err := maxArgs(env.Args, 1); err != nil {
		return nil, err
	}
	format := env.Config.Screenshot.Format
	if len(env.Args) == 1 {
		format = env.Args[0]
	}
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	return &Screenshot{
		Format:    format,
		Leaf:      transport.Leaf(env.Path),
		OutputDir: env.Config.OutputDir,
		Artifacts: env.Artifacts,
	}, nil
}

func buildScreencast(c *cli.Context, env *Env) (Command, error) {
	if err := maxArgs(env.Args, 0); err != nil {
		return nil, err
	}
	format := env.Config.Screencast.Format
	if c.IsSet("format") {
		format = c.String("format")
	}
	if format != "jpeg" && format != "png" {
		return nil, core.ErrBadArguments.WithMessagef("unsupported screencast format %q (want jpeg or png)", format)
	}
	maxSize := env.Config.Screencast.MaxSize
	if c.IsSet("max-size") {
		maxSize = c.Int("max-size")
	}
	if maxSize < 0 {
		return nil, core.ErrBadArguments.WithMessage("max-size must not be negative")
	}
	return &Screencast{
		Format:    format,
		MaxSize:   maxSize,
		Leaf:      transport.Leaf(env.Path),
		OutputDir: env.Config.OutputDir,
		Clock:     env.clock(),
		Artifacts: env.Artifacts,
	}, nil
}

func buildTapID(_ *cli.Context, env *Env) (Command, error) {
	if len(env.Args) != 1 || env.Args[0] == "" {
		return nil, core.ErrBadArguments.WithMessage("expected exactly one element ID")
	}
	return &TapID{ElementID: env.Args[0]}, nil
}

func buildSdl(c *cli.Context, env *Env) (Command, error) {
	if err := maxArgs(env.Args, 0); err != nil {
		return nil, err
	}
	path := c.String("frame-file")
	if path == "" {
		path = filepath.Join(env.Config.OutputDir, fmt.Sprintf("sdl-%s.jpeg", transport.Leaf(env.Path)))
	}
	return &Sdl{
		Viewer:  NewFileViewer(path, env.Stdin),
		WindowW: c.Int("width"),
		WindowH: c.Int("height"),
	}, nil
}

func buildHelp(c *cli.Context, env *Env) (Command, error) {
	if err := maxArgs(env.Args, 1); err != nil {
		return nil, err
	}
	h := &Help{Ctx: c}
	if len(env.Args) == 1 {
		h.Topic = env.Args[0]
	}
	return h, nil
}
