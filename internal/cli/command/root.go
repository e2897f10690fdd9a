package command

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/app/config"
	"github.com/yndnr/snapkeep/internal/cli/output"
	"github.com/yndnr/snapkeep/internal/infra/buildinfo"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
)

const stateKey = "snapkeep.state"

// appState is built once in Before and shared by every command.
type appState struct {
	cfg        *config.Config
	configFile string
	dotEnv     []string
	log        logger.Logger
	format     output.Format
	formatter  output.Formatter
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "snapkeep",
		Usage:   "periodic autosave and crash recovery for project files",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			WatchCommand(),
			BackupCommand(),
			RecoveryCommand(),
			StatusCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: before,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"SNAPKEEP_CONFIG"},
		},
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: ".env file to load before reading SNAPKEEP_* variables (repeatable)",
			Value: cli.NewStringSlice(".env"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override log.level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "Omit table headers",
		},
	}
}

// baseDirFlag is shared by every command that works on a project.
func baseDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "base-dir",
		Aliases: []string{"d"},
		Usage:   "directory holding .autosave and .recovery",
		Value:   ".",
	}
}

func before(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	dotEnv := c.StringSlice("env-file")
	cfg, err := config.Load(c.String("config"), dotEnv...)
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
		if err := config.Verify(cfg); err != nil {
			return err
		}
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	formatter := output.NewFormatter(format, c.Bool("wide"))
	if tf, ok := formatter.(*output.TableFormatter); ok {
		tf.NoHeaders = c.Bool("no-headers")
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[stateKey] = &appState{
		cfg:        cfg,
		configFile: c.String("config"),
		dotEnv:     dotEnv,
		log:        log,
		format:     format,
		formatter:  formatter,
	}
	return nil
}

// state returns the shared state set up by Before.
func state(c *cli.Context) *appState {
	if st, ok := c.App.Metadata[stateKey].(*appState); ok {
		return st
	}
	return &appState{
		cfg:       config.Default(),
		log:       logger.Nop(),
		format:    output.FormatTable,
		formatter: output.NewFormatter(output.FormatTable, false),
	}
}

// render renders data with the selected formatter.
func render(c *cli.Context, data any) error {
	return state(c).formatter.Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// baseDir resolves --base-dir to an absolute path.
func baseDir(c *cli.Context) (string, error) {
	dir, err := filepath.Abs(c.String("base-dir"))
	if err != nil {
		return "", fmt.Errorf("resolve base dir: %w", err)
	}
	return dir, nil
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			return render(c, buildinfo.Get())
		},
	}
}
