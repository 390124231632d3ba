package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/korpus/pkg/korpus/config"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/loader"
	"github.com/cognicore/korpus/pkg/korpus/store"
	"github.com/cognicore/korpus/pkg/korpus/store/sqlite"
)

func newLoadCmd(a *app) *cobra.Command {
	var (
		name        string
		stripMarkup bool
		archive     bool
	)
	cmd := &cobra.Command{
		Use:   "load <export.xml> <snapshot.json>",
		Short: "Build a corpus snapshot from an XML export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = corpusName(args[1])
			}
			c, err := loader.FromXMLFile(name, args[0], loader.Options{
				StripMarkup: stripMarkup,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}
			if err := a.saveSnapshot(c, args[1]); err != nil {
				return err
			}
			if archive {
				err := a.withArchive(cmd, func(ar store.Archive) error {
					return ar.SaveCorpus(cmd.Context(), c)
				})
				if err != nil {
					return err
				}
			}
			cmd.Printf("Loaded %d documents into %s\n", c.Len(), args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "corpus name (default: snapshot file name)")
	cmd.Flags().BoolVar(&stripMarkup, "strip-markup", false, "extract plain text from HTML in fulltext")
	cmd.Flags().BoolVar(&archive, "archive", false, "also store the corpus in the configured archive")
	return cmd
}

// withArchive opens the configured archive for the duration of fn.
func (a *app) withArchive(cmd *cobra.Command, fn func(store.Archive) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if cfg.Archive.SQLitePath == "" {
		return fmt.Errorf("no archive configured (set archive.sqlite_path or %s): %w", config.EnvSQLitePath, internalerr.ErrInvalidConfig)
	}
	ar, err := sqlite.OpenSQLite(cmd.Context(), cfg.Archive.SQLitePath)
	if err != nil {
		return err
	}
	defer ar.Close()
	return fn(ar)
}
