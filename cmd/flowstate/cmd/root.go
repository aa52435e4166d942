// Package cmd implements the flowstate CLI commands.
//
// The root command loads flowstate.yaml and dispatches to the store
// commands (keys, get, set, rm) and to simulate, which drives a lifecycle
// registry through a trajectory while a gated cell follows a persisted
// counter.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-drift/flowstate/pkg/config"
	"github.com/go-drift/flowstate/pkg/logging"
	"github.com/go-drift/flowstate/pkg/saved"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

type globalOptions struct {
	configPath string
	storePath  string
	logLevel   string
}

// env is what every command needs after configuration is loaded.
type env struct {
	cfg      *config.Config
	resolved *config.Resolved
	logger   zerolog.Logger
}

// Execute runs the CLI with os.Args.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "flowstate",
		Short: "Inspect persisted state and simulate lifecycle-gated cells",
		Long: `flowstate works with the snapshot file behind a saved.FileStore and
can simulate a lifecycle trajectory driving a gated, persisted counter.

Settings come from flowstate.yaml in the working directory, or from --config.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ./flowstate.yaml)")
	root.PersistentFlags().StringVar(&opts.storePath, "store", "", "snapshot file, overrides store.path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides log.level")

	root.AddCommand(
		newKeysCommand(opts),
		newGetCommand(opts),
		newSetCommand(opts),
		newRemoveCommand(opts),
		newSimulateCommand(opts),
	)
	return root
}

func (o *globalOptions) load() (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err == nil {
			cfg, err = config.LoadOptional(wd)
		}
	}
	if err != nil {
		return nil, err
	}
	if o.storePath != "" {
		cfg.Store.Path = o.storePath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, resolved: resolved, logger: logger}, nil
}

func (e *env) openHandle(opts ...saved.HandleOption) (*saved.Handle, error) {
	path, err := filepath.Abs(e.resolved.StorePath)
	if err != nil {
		return nil, err
	}
	store, err := saved.OpenFileStore(path, saved.WithFileLogger(&e.logger))
	if err != nil {
		return nil, err
	}
	if e.resolved.Namespace != "" {
		opts = append(opts, saved.WithNamespace(e.resolved.Namespace))
	}
	return saved.NewHandle(store, opts...), nil
}
