package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/cognicore/korpus/pkg/korpus/config"
)

func newPrepareCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "prepare <in.json> <out.json>",
		Short: "Run the normalization pipeline over a snapshot",
		Long: `Runs sentence repair, lemmatization, lowercasing, tokenization,
multiword fusion and token cleaning, then writes the prepared snapshot.
With an archive configured the corpus and the run are recorded there too.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.config()
			if err != nil {
				return err
			}
			comp, err := (&config.Loader{Config: cfg, Logger: a.logger}).Load(ctx)
			if err != nil {
				return err
			}
			defer comp.Close()

			c, err := a.loadSnapshot(args[0], name)
			if err != nil {
				return err
			}

			rep, runErr := comp.Pipeline.Prepare(ctx, c)
			if comp.Archive != nil && rep != nil {
				// Failed and cancelled runs are recorded too.
				if err := comp.Archive.RecordRun(context.WithoutCancel(ctx), rep.Run(runErr)); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}
			if runErr != nil {
				return runErr
			}

			if err := a.saveSnapshot(c, args[1]); err != nil {
				return err
			}
			if comp.Archive != nil {
				if err := comp.Archive.SaveCorpus(ctx, c); err != nil {
					return err
				}
			}

			cmd.Printf("Run %s: %d documents, %d tokens\n", rep.RunID, rep.Documents, rep.Tokens)
			for _, st := range rep.Stages {
				cmd.Printf("  %-24s %s\n", st.Stage, st.Duration)
			}
			if len(rep.Chunked) > 0 {
				cmd.Printf("Lemmatized in chunks: %d documents\n", len(rep.Chunked))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "corpus name (default: input file name)")
	return cmd
}
