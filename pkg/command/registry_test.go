package command

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cdt/pkg/config"
	"github.com/devicelab-dev/cdt/pkg/core"
	"github.com/devicelab-dev/cdt/pkg/jsengine"
)

// build runs argv through a one-command app and returns what the entry's
// builder produced. argv starts with DISPLAY, as on the command line.
func build(t *testing.T, name string, cfg *config.Config, argv ...string) (Command, error) {
	t.Helper()
	entry, ok := Lookup(name)
	require.True(t, ok, name)

	if cfg == nil {
		cfg = config.Default()
	}

	var (
		cmd      Command
		buildErr error
	)
	app := &cli.App{
		Name:           "cdt",
		Writer:         &bytes.Buffer{},
		ErrWriter:      &bytes.Buffer{},
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{{
			Name:  entry.Name,
			Flags: entry.Flags,
			Action: func(c *cli.Context) error {
				env := &Env{Config: cfg, Clock: newFakeClock(), Stdout: &bytes.Buffer{}}
				args := c.Args().Slice()
				if !entry.Offline && len(args) > 0 {
					env.Path = "/devtools/page/" + args[0]
					args = args[1:]
				}
				env.Args = args
				cmd, buildErr = entry.Build(c, env)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"cdt", name}, argv...)))
	return cmd, buildErr
}

func TestRegistryNames(t *testing.T) {
	assert.Equal(t, []string{
		"tap", "swipe", "drag", "run", "run-log",
		"screenshot", "screencast", "tap-id", "sdl", "help",
	}, Names())

	for _, e := range Entries() {
		assert.NotEmpty(t, e.Usage, e.Name)
		assert.NotNil(t, e.Build, e.Name)
	}

	_, ok := Lookup("tapp")
	assert.False(t, ok)
}

func TestBuildTap(t *testing.T) {
	cmd, err := build(t, "tap", nil, "ABC", "10", "-20")
	require.NoError(t, err)
	assert.Equal(t, &Tap{X: 10, Y: -20}, cmd)

	_, err = build(t, "tap", nil, "ABC", "10")
	assert.ErrorIs(t, err, core.ErrBadArguments)

	_, err = build(t, "tap", nil, "ABC", "10", "20", "30")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}

func TestBuildSwipe(t *testing.T) {
	cmd, err := build(t, "swipe", nil, "ABC", "1", "2", "3", "-4")
	require.NoError(t, err)
	assert.Equal(t, &Swipe{X: 1, Y: 2, XDistance: 3, YDistance: -4, Speed: 800}, cmd)

	cmd, err = build(t, "swipe", nil, "ABC", "1", "2", "3", "4", "1200")
	require.NoError(t, err)
	assert.Equal(t, 1200, cmd.(*Swipe).Speed)

	_, err = build(t, "swipe", nil, "ABC", "1", "2", "3", "4", "fast")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}

func TestBuildDrag(t *testing.T) {
	cmd, err := build(t, "drag", nil, "ABC", "0", "0", "100", "200")
	require.NoError(t, err)
	d := cmd.(*Drag)
	assert.Equal(t, 10, d.Steps)
	assert.Equal(t, 500*time.Millisecond, d.Duration)
	assert.Equal(t, 200, d.Y1)

	cfg := config.Default()
	cfg.Drag.Steps = 3
	cmd, err = build(t, "drag", cfg, "ABC", "0", "0", "1", "1")
	require.NoError(t, err)
	assert.Equal(t, 3, cmd.(*Drag).Steps, "config supplies the default")

	cmd, err = build(t, "drag", cfg, "-s", "5", "-d", "50", "ABC", "0", "0", "1", "1")
	require.NoError(t, err)
	assert.Equal(t, 5, cmd.(*Drag).Steps, "flags win over config")
	assert.Equal(t, 50*time.Millisecond, cmd.(*Drag).Duration)

	_, err = build(t, "drag", nil, "--steps", "-1", "ABC", "0", "0", "1", "1")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}

func TestBuildRun(t *testing.T) {
	cmd, err := build(t, "run", nil, "ABC", `alert(\"hi\")`)
	require.NoError(t, err)
	assert.Equal(t, `alert(\"hi\")`, cmd.(*Run).Expression)

	cmd, err = build(t, "run", nil, "--raw", "ABC", `alert("hi")`)
	require.NoError(t, err)
	assert.Equal(t, jsengine.Escape(`alert("hi")`), cmd.(*Run).Expression)

	_, err = build(t, "run", nil, "--raw", "--check", "ABC", `alert(`)
	assert.ErrorIs(t, err, core.ErrBadArguments)

	_, err = build(t, "run", nil, "--check", "ABC", `if (\"`)
	assert.ErrorIs(t, err, core.ErrBadArguments)

	_, err = build(t, "run", nil, "ABC")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}

func TestBuildRunLog(t *testing.T) {
	cmd, err := build(t, "run-log", nil, "-e", "DONE", "--raw", "ABC", `console.log("DONE")`)
	require.NoError(t, err)
	r := cmd.(*RunLog)
	assert.Equal(t, "DONE", r.EndMarker)
	assert.Equal(t, `console.log(\"DONE\")`, r.Expression)
	assert.NotNil(t, r.Out)
}

func TestBuildScreenshot(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "shots"

	cmd, err := build(t, "screenshot", cfg, "ABC")
	require.NoError(t, err)
	assert.Equal(t, &Screenshot{Format: "png", Leaf: "ABC", OutputDir: "shots"}, cmd)

	cmd, err = build(t, "screenshot", cfg, "ABC", "webp")
	require.NoError(t, err)
	assert.Equal(t, "webp", cmd.(*Screenshot).Format)

	_, err = build(t, "screenshot", cfg, "ABC", "bmp")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}

func TestBuildScreencast(t *testing.T) {
	cmd, err := build(t, "screencast", nil, "ABC")
	require.NoError(t, err)
	sc := cmd.(*Screencast)
	assert.Equal(t, "jpeg", sc.Format)
	assert.Zero(t, sc.MaxSize)
	assert.Equal(t, "ABC", sc.Leaf)

	cmd, err = build(t, "screencast", nil, "-s", "320", "--format", "png", "ABC")
	require.NoError(t, err)
	assert.Equal(t, 320, cmd.(*Screencast).MaxSize)
	assert.Equal(t, "png", cmd.(*Screencast).Format)

	_, err = build(t, "screencast", nil, "--format", "webp", "ABC")
	assert.ErrorIs(t, err, core.ErrBadArguments)

	_, err = build(t, "screencast", nil, "ABC", "extra")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}

func TestBuildTapID(t *testing.T) {
	cmd, err := build(t, "tap-id", nil, "ABC", "login")
	require.NoError(t, err)
	assert.Equal(t, &TapID{ElementID: "login"}, cmd)

	_, err = build(t, "tap-id", nil, "ABC")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}

func TestBuildSdl(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	cmd, err := build(t, "sdl", cfg, "--width", "640", "ABC")
	require.NoError(t, err)
	s := cmd.(*Sdl)
	assert.Equal(t, 640, s.WindowW)
	assert.Equal(t, 600, s.WindowH)

	fv, ok := s.Viewer.(*FileViewer)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "sdl-ABC.jpeg"), fv.path)
	fv.Close()
}

func TestBuildHelp(t *testing.T) {
	cmd, err := build(t, "help", nil, "tap")
	require.NoError(t, err)
	assert.Equal(t, "tap", cmd.(*Help).Topic)

	_, err = build(t, "help", nil, "tap", "drag")
	assert.ErrorIs(t, err, core.ErrBadArguments)
}
