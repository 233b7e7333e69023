// Package cmd implements the joinery command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/joinery/internal/version"
	"github.com/chazu/joinery/pkg/app"
	"github.com/chazu/joinery/pkg/config"
	"github.com/chazu/joinery/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flagKeys maps config keys to the flags that override them. A command
// binds only the flags it defines.
var flagKeys = map[string]string{
	"log.level":                      "log-level",
	"log.format":                     "log-format",
	"assembly.tolerance":             "tolerance",
	"assembly.max_match_attempts":    "max-attempts",
	"assembly.require_exact_contact": "exact-contact",
	"assembly.min_score":             "min-score",
	"kernel.mesh_cells":              "mesh-cells",
	"kernel.volume_cells":            "volume-cells",
	"script.timeout":                 "timeout",
}

// session is the state shared by every command of one invocation.
type session struct {
	configPath string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:   "joinery",
		Short: "Automatic assembly of solid parts",
		Long: `joinery - automatic part assembly

Reads a scene script that defines solid parts and the order they are joined,
finds the connectable features of each pair, aligns the moving part onto the
fixed one and verifies the result is free of interference.

Configuration is read from joinery.yaml (or --config), then JOINERY_*
environment variables, then command-line flags.`,
		Version:           version.Version,
		PersistentPreRunE: s.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if s.log != nil {
				_ = s.log.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&s.configPath, "config", "c", "", "config file (default ./joinery.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")

	root.AddCommand(
		newAssembleCommand(s),
		newCheckCommand(s),
		newWatchCommand(s),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger before any command runs.
func (s *session) setup(cmd *cobra.Command, _ []string) error {
	bindings := map[string]string{}
	for key, name := range flagKeys {
		if cmd.Flags().Lookup(name) != nil {
			bindings[key] = name
		}
	}
	loader := config.NewLoader()
	if err := loader.BindFlags(cmd.Flags(), bindings); err != nil {
		return err
	}
	cfg, warnings, err := loader.Load(s.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	if f := loader.File(); f != "" {
		log.Debug("loaded config", zap.String("file", f))
	}
	for _, w := range warnings {
		log.Warn("config warning", zap.String("warning", w))
	}
	s.cfg, s.log = cfg, log
	return nil
}

// newApp builds the pipeline, enabling metrics when a textfile path is set.
func (s *session) newApp(metricsPath string) (*app.App, error) {
	cfg := *s.cfg
	if metricsPath != "" {
		cfg.Metrics.Enabled, cfg.Metrics.Path = true, metricsPath
	}
	return app.New(cfg, app.WithLogger(s.log))
}

// addAssemblyFlags registers the flags that override assembly settings.
func addAssemblyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("tolerance", 0, "geometric tolerance in mm")
	f.Int("max-attempts", 0, "candidate alignments tried per step")
	f.Bool("exact-contact", false, "require actual contact between assembled parts")
	f.Float64("min-score", 0, "minimum connection score in [0, 1]")
	f.Int("mesh-cells", 0, "kernel meshing resolution")
	f.Int("volume-cells", 0, "kernel overlap sampling resolution")
	f.Duration("timeout", 0, "scene script evaluation limit")
}
