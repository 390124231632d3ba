package cli

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cognicore/korpus/pkg/korpus/analytics"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute statistics over a prepared snapshot",
	}
	cmd.AddCommand(
		newAnalyzeTFCmd(a),
		newAnalyzeRelevanceCmd(a),
		newAnalyzeTemporalCmd(a),
		newAnalyzeBOWCmd(a),
		newAnalyzePairsCmd(a),
		newAnalyzeStopwordsCmd(a),
	)
	return cmd
}

func newAnalyzeTFCmd(a *app) *cobra.Command {
	var (
		out   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "tf <snapshot.json>",
		Short: "Write term frequencies as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadSnapshot(args[0], "")
			if err != nil {
				return err
			}
			counts, err := analytics.TermFrequency(c)
			if err != nil {
				return err
			}
			if limit > 0 && len(counts) > limit {
				counts = counts[:limit]
			}
			return writeOutput(cmd, out, func(w io.Writer) error {
				return analytics.WriteTermFrequencyCSV(w, counts)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().IntVar(&limit, "limit", 0, "write only the most frequent terms")
	return cmd
}

func newAnalyzeRelevanceCmd(a *app) *cobra.Command {
	var term string
	cmd := &cobra.Command{
		Use:   "relevance <in.json> <out.json>",
		Short: "Attach TF-IDF relevance scores for a term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadSnapshot(args[0], "")
			if err != nil {
				return err
			}
			if err := analytics.ComputeRelevance(c, term); err != nil {
				return err
			}
			return a.saveSnapshot(c, args[1])
		},
	}
	cmd.Flags().StringVar(&term, "term", "", "term to score")
	_ = cmd.MarkFlagRequired("term")
	return cmd
}

func newAnalyzeTemporalCmd(a *app) *cobra.Command {
	var (
		terms []string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "temporal <snapshot.json>",
		Short: "Count term occurrences per quarter as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadSnapshot(args[0], "")
			if err != nil {
				return err
			}
			t, err := analytics.TemporalOccurrence(c, terms)
			if err != nil {
				return err
			}
			if t.Undated > 0 {
				a.logger.Warn("undated documents skipped", "count", t.Undated)
			}
			return writeOutput(cmd, out, func(w io.Writer) error {
				return analytics.WriteTemporalJSON(w, t)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&terms, "term", "t", nil, "term to count (repeatable; default: all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func newAnalyzeBOWCmd(a *app) *cobra.Command {
	var matrix, dict string
	cmd := &cobra.Command{
		Use:   "bow <snapshot.json>",
		Short: "Export the bag-of-words matrix and dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadSnapshot(args[0], "")
			if err != nil {
				return err
			}
			b, err := analytics.BagOfWords(c)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, matrix, b.WriteMatrixMarket); err != nil {
				return err
			}
			if err := writeOutput(cmd, dict, b.WriteDictionary); err != nil {
				return err
			}
			a.logger.Info("bag of words written", "documents", len(b.Vectors), "terms", len(b.Terms), "nonzero", b.NonZero())
			return nil
		},
	}
	cmd.Flags().StringVar(&matrix, "matrix", "corpus.mm", "MatrixMarket output file")
	cmd.Flags().StringVar(&dict, "dict", "corpus.dict", "dictionary output file")
	return cmd
}

func newAnalyzePairsCmd(a *app) *cobra.Command {
	var (
		limit           int
		minPMI          float64
		sep             string
		dictOut, revOut string
	)
	cmd := &cobra.Command{
		Use:   "pairs <snapshot.json>",
		Short: "Rank adjacent token pairs as multiword candidates",
		Long: `Ranks adjacent token pairs by adjacency count weighted with
document-level PMI. With --mwe-dict and --mwe-reversed the pairs are written
as multiword-expression files usable as lexicon input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadSnapshot(args[0], "")
			if err != nil {
				return err
			}
			co, err := analytics.CoOccurrenceOf(c)
			if err != nil {
				return err
			}
			pairs := co.TopPairs(limit, minPMI)
			for i, p := range pairs {
				cmd.Printf("%3d  %s %s  freq=%d docs=%d pmi=%s\n",
					i+1, p.A, p.B, p.BigramFreq, p.Support, strconv.FormatFloat(p.PMI, 'f', 3, 64))
			}

			if dictOut == "" && revOut == "" {
				return nil
			}
			dict, reversed := analytics.MWEFiles(pairs, sep)
			if err := writeOutput(cmd, dictOut, jsonWriter(dict)); err != nil {
				return err
			}
			return writeOutput(cmd, revOut, jsonWriter(reversed))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of pairs (0 for all)")
	cmd.Flags().Float64Var(&minPMI, "min-pmi", 0, "minimum document PMI")
	cmd.Flags().StringVar(&sep, "sep", "_", "separator of fused tokens")
	cmd.Flags().StringVar(&dictOut, "mwe-dict", "", "write the pair dictionary as JSON")
	cmd.Flags().StringVar(&revOut, "mwe-reversed", "", "write the reverse map as JSON")
	cmd.MarkFlagsRequiredTogether("mwe-dict", "mwe-reversed")
	return cmd
}

func jsonWriter(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
}

func newAnalyzeStopwordsCmd(a *app) *cobra.Command {
	var (
		out string
		th  = analytics.DefaultStopwordThresholds()
	)
	cmd := &cobra.Command{
		Use:   "stopwords <snapshot.json>",
		Short: "Suggest custom stopwords",
		Long: `Suggests tokens that occur in most documents, associate weakly with
every other token and spread evenly over document types. With --out the
tokens are written as a custom stopword list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadSnapshot(args[0], "")
			if err != nil {
				return err
			}
			cands, err := analytics.StopwordCandidates(c, nil, th)
			if err != nil {
				return err
			}
			for _, cand := range cands {
				cmd.Printf("%-24s df=%5.1f%% pmi_max=%6.3f entropy=%4.2f score=%4.2f\n",
					cand.Token, cand.DFPercent, cand.PMIMax, cand.TypeEntropy, cand.Score)
			}
			if out == "" {
				return nil
			}
			return writeOutput(cmd, out, func(w io.Writer) error {
				for _, cand := range cands {
					if _, err := io.WriteString(w, cand.Token+"\n"); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the suggested tokens to a stopword file")
	cmd.Flags().Float64Var(&th.DFPercent, "min-df", th.DFPercent, "minimum document frequency in percent")
	cmd.Flags().Float64Var(&th.PMIMax, "max-pmi", th.PMIMax, "maximum association with any token")
	cmd.Flags().Float64Var(&th.TypeEntropy, "min-entropy", th.TypeEntropy, "minimum normalized entropy across document types")
	return cmd
}
