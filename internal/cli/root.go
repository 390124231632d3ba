// Package cli implements the korpus command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/korpus/pkg/korpus/config"
	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/loader"
	"github.com/cognicore/korpus/pkg/korpus/snapshot"
)

var version = "dev"

// app carries the global flags and the state derived from them.
type app struct {
	configPath string
	envFile    string
	verbose    bool

	logger *slog.Logger
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "korpus",
		Short: "Prepare parliamentary document corpora for topic modeling",
		Long: `korpus loads document exports, runs the normalization pipeline,
filters documents and computes corpus statistics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "configuration file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "environment file loaded before the configuration")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newLoadCmd(a),
		newPrepareCmd(a),
		newFilterCmd(a),
		newAnalyzeCmd(a),
		newRunsCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) setup(stderr io.Writer) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return config.LoadEnv(a.envFile)
}

func (a *app) config() (*config.Config, error) {
	return config.Load(a.configPath)
}

// corpusName derives a corpus name from a file path.
func corpusName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (a *app) loadSnapshot(path, name string) (*document.Corpus, error) {
	if name == "" {
		name = corpusName(path)
	}
	c, err := loader.FromSnapshot(name, path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("snapshot loaded", "path", path, "documents", c.Len())
	return c, nil
}

func (a *app) saveSnapshot(c *document.Corpus, path string) error {
	if err := snapshot.Save(c, path); err != nil {
		return err
	}
	a.logger.Info("snapshot saved", "path", path, "documents", c.Len())
	return nil
}

// writeOutput writes to path, or to the command's output when path is empty
// or "-".
func writeOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("korpus version %s\n", version)
		},
	}
}
