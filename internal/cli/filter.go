package cli

import (
	"github.com/spf13/cobra"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/filter"
)

func newFilterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Remove documents from a snapshot",
	}

	var (
		keywords      []string
		caseSensitive bool
	)
	title := &cobra.Command{
		Use:   "title <in.json> <out.json>",
		Short: "Keep documents whose title contains a keyword",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFilter(cmd, "title", args, func(c *document.Corpus) (int, error) {
				return filter.ByTitle(c, keywords, caseSensitive)
			})
		},
	}
	title.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "keyword to match (repeatable)")
	title.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "match keywords case-sensitively")

	var (
		term      string
		threshold float64
	)
	relevance := &cobra.Command{
		Use:   "relevance <in.json> <out.json>",
		Short: "Keep documents whose relevance score reaches a threshold",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFilter(cmd, "relevance", args, func(c *document.Corpus) (int, error) {
				return filter.ByRelevance(c, threshold, term)
			})
		},
	}
	relevance.Flags().StringVar(&term, "term", "", "term whose relevance score is compared")
	relevance.Flags().Float64Var(&threshold, "threshold", 0, "minimum relevance score")
	_ = relevance.MarkFlagRequired("term")

	var minTokens int
	length := &cobra.Command{
		Use:   "length <in.json> <out.json>",
		Short: "Keep documents with at least a number of tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFilter(cmd, "length", args, func(c *document.Corpus) (int, error) {
				return filter.ByLength(c, minTokens)
			})
		},
	}
	length.Flags().IntVar(&minTokens, "threshold", 0, "minimum token count")

	cmd.AddCommand(title, relevance, length)
	return cmd
}

func (a *app) runFilter(cmd *cobra.Command, kind string, args []string, fn func(*document.Corpus) (int, error)) error {
	c, err := a.loadSnapshot(args[0], "")
	if err != nil {
		return err
	}
	before := c.Len()
	removed, err := fn(c)
	if err != nil {
		return err
	}
	a.logger.Info("documents filtered", "filter", kind, "removed", removed, "kept", c.Len())
	if err := a.saveSnapshot(c, args[1]); err != nil {
		return err
	}
	cmd.Printf("Removed %d of %d documents\n", removed, before)
	return nil
}
