package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	extensionhost "github.com/spirefy/go-extension-host"
	"github.com/spirefy/go-extension-host/agent"
	"github.com/spirefy/go-extension-host/internal/ctxlog"
	"github.com/spirefy/go-extension-host/types"
	"github.com/urfave/cli/v3"
)

const (
	extensionsDirFlag = "extensions-dir"
	logFormatFlag     = "log-format"
)

func newRootCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "extensionhost",
		Usage:     "Host extensions and run the commands they contribute",
		UsageText: "extensionhost [--extensions-dir DIR] run vscode-agent.helloWorld",
		Description: `Hosts editor-style extensions. Extensions register commands when they are activated and are
activated lazily, the first time one of their activation events fires. The vscode-agent extension is built in;
WASM extensions are loaded from every extension.yaml found below --extensions-dir.`,
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      extensionsDirFlag,
				Aliases:   []string{"d"},
				Usage:     "Directory searched for extension manifests",
				TakesFile: true,
				Sources:   cli.EnvVars("EXTHOST_EXTENSIONS_DIR"),
			},
			&cli.StringFlag{
				Name:    logFormatFlag,
				Usage:   "Log output format, text or json",
				Value:   ctxlog.FormatText,
				Sources: cli.EnvVars("EXTHOST_LOG_FORMAT"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			format := cmd.String(logFormatFlag)
			if format != ctxlog.FormatText && format != ctxlog.FormatJSON {
				return ctx, fmt.Errorf("unknown log format %q", format)
			}
			return ctxlog.New(ctx, ctxlog.NewLogger(os.Stderr, format)), nil
		},
		Commands: []*cli.Command{
			runCmd(),
			listCmd(),
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Activate startup extensions and execute the given commands in order",
		ArgsUsage: "[command-id ...]",
		Action: func(ctx context.Context, cmd *cli.Command) (err error) {
			engine, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() {
				if serr := engine.Shutdown(ctx); serr != nil && err == nil {
					err = serr
				}
			}()

			if err := engine.FireEvent(ctx, types.Event{Id: types.EventStartupFinished, Source: "extensionhost"}); err != nil {
				return err
			}

			for _, id := range cmd.Args().Slice() {
				res, err := engine.ExecuteCommand(ctx, id)
				if err != nil {
					return err
				}
				if res != nil {
					fmt.Fprintln(cmd.Root().Writer, res)
				}
			}
			return nil
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List registered extensions and the commands they contribute",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			engine, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			for _, info := range engine.Extensions() {
				m := info.Manifest
				fmt.Fprintf(w, "%s@%s\t%s\n", m.Id, m.Version, m.Description)
				for _, c := range m.Contributes.Commands {
					title := c.Title
					if c.Category != "" {
						title = c.Category + ": " + title
					}
					fmt.Fprintf(w, "  %s\t%s\n", c.Id, title)
				}
				if len(m.ActivationEvents) > 0 {
					fmt.Fprintf(w, "  activation: %s\n", strings.Join(m.ActivationEvents, ", "))
				}
			}
			return engine.Shutdown(ctx)
		},
	}
}

// newEngine registers the built-in extension and loads the extensions directory, when one is given.
func newEngine(ctx context.Context, cmd *cli.Command) (*extensionhost.Engine, error) {
	engine := extensionhost.NewEngine(
		extensionhost.WithWindow(extensionhost.NewWriterWindow(cmd.Root().Writer)),
	)

	builtin := agent.New()
	if err := engine.Register(builtin, builtin.Manifest()); err != nil {
		return nil, err
	}

	if dir := cmd.String(extensionsDirFlag); dir != "" {
		if err := engine.Load(ctx, dir); err != nil {
			return nil, err
		}
	}

	return engine, nil
}
