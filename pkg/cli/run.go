package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cdt/pkg/command"
	"github.com/devicelab-dev/cdt/pkg/config"
	"github.com/devicelab-dev/cdt/pkg/core"
	"github.com/devicelab-dev/cdt/pkg/logger"
	"github.com/devicelab-dev/cdt/pkg/report"
	"github.com/devicelab-dev/cdt/pkg/session"
	"github.com/devicelab-dev/cdt/pkg/transport"
)

// resolveConfig loads the config file and applies flag and environment
// overrides on top of it.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Resolve(c.String("config"))
	if err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("origin") {
		cfg.Origin = c.String("origin")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("report") {
		cfg.Report = c.String("report")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-target") {
		cfg.LogTarget = c.String("log-target")
	}

	if err := cfg.Validate(); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config, s streams, noColor bool) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return core.ErrBadArguments.WithCause(err)
	}
	target, err := logger.ParseTarget(cfg.LogTarget)
	if err != nil {
		return core.ErrBadArguments.WithCause(err)
	}

	out := s.err
	if target == logger.TargetStdout {
		out = s.out
	}
	if err := logger.Init(logger.Options{Level: level, Target: target, NoColor: noColor, Out: out}); err != nil {
		return core.ErrInitFailed.WithCause(err)
	}
	return nil
}

// action builds the cli action for one registry entry: set up logging,
// build the command, connect, and run the session until it ends.
func action(e command.Entry, s streams) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := resolveConfig(c)
		if err != nil {
			return err
		}
		if err := initLogger(cfg, s, c.Bool("no-ansi")); err != nil {
			return err
		}
		defer logger.Close()

		env := &command.Env{
			Config: cfg,
			Args:   c.Args().Slice(),
			Stdout: s.out,
			Stdin:  s.in,
		}

		if e.Offline {
			cmd, err := e.Build(c, env)
			if err != nil {
				return err
			}
			sess := session.New(cmd, session.Options{})
			defer sess.Shutdown()
			return sess.Init()
		}

		if len(env.Args) == 0 {
			_ = cli.ShowCommandHelp(c, e.Name)
			return core.ErrBadArguments.WithMessage("DISPLAY is required")
		}
		path, err := transport.ResolvePath(env.Args[0])
		if err != nil {
			return core.ErrInvalidDisplay.WithCause(err)
		}
		env.Path = path
		env.Args = env.Args[1:]

		rep := report.NewWriter(cfg.Report, e.Name, env.Args)
		if rep != nil {
			env.Artifacts = rep
		}

		cmd, err := e.Build(c, env)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSession(ctx, cfg, path, cmd, rep)
	}
}

// runSession connects cmd to the target at path and drives it to completion.
func runSession(ctx context.Context, cfg *config.Config, path string, cmd command.Command, rep *report.Writer) (err error) {
	sess := session.New(cmd, session.Options{PollInterval: cfg.PollInterval()})

	ep := transport.Endpoint{
		Host:   cfg.Host,
		Port:   cfg.Port,
		Path:   path,
		Origin: cfg.Origin,
	}

	if werr := rep.Start(logger.RunID(), ep.URL()); werr != nil {
		logger.Warn("Failed to write report: %v", werr)
	}
	defer func() {
		// finalize first so artifacts written on shutdown are recorded
		sess.Shutdown()
		st := sess.Stats()
		msgs := report.Messages{
			Sent:      st.Sent,
			Replies:   st.Replies,
			Events:    st.Events,
			Anomalies: st.Anomalies,
			Malformed: st.Malformed,
		}
		// a lost connection exits cleanly but still fails the report
		failure := err
		if failure == nil {
			failure = sess.Err()
		}
		if werr := rep.End(msgs, failure, ctx.Err() != nil); werr != nil {
			logger.Warn("Failed to write report: %v", werr)
		}
	}()

	if err := sess.Init(); err != nil {
		logger.Error("Failed to initialize command: %v", err)
		return err
	}

	logger.Info("Connecting to %s", ep.URL())

	ws, err := transport.Dial(ctx, transport.Options{Endpoint: ep, ChunkSize: cfg.ReadChunkSize}, sess)
	if err != nil {
		logger.Error("Failed to connect: %v", err)
		return core.ErrDialFailed.WithCause(err)
	}
	defer ws.Close()

	err = sess.Run(ctx, ws)
	st := sess.Stats()
	l := logger.L()
	l.Debug().
		Int("sent", st.Sent).
		Int("replies", st.Replies).
		Int("events", st.Events).
		Int("anomalies", st.Anomalies).
		Int("malformed", st.Malformed).
		Msg("Session finished")
	return err
}
