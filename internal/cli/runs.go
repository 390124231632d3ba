package cli

import (
	"github.com/spf13/cobra"

	"github.com/cognicore/korpus/pkg/korpus/store"
)

func newRunsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [corpus]",
		Short: "List archived corpora or the pipeline runs of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(cmd, func(ar store.Archive) error {
				ctx := cmd.Context()
				if len(args) == 0 {
					names, err := ar.Corpora(ctx)
					if err != nil {
						return err
					}
					for _, n := range names {
						cmd.Println(n)
					}
					return nil
				}
				runs, err := ar.Runs(ctx, args[0])
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					cmd.Println("No runs recorded.")
					return nil
				}
				for _, r := range runs {
					status := "ok"
					if r.Err != "" {
						status = "failed: " + r.Err
					}
					cmd.Printf("%s  %s  docs=%d tokens=%d  %s\n",
						r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Documents, r.Tokens, status)
				}
				return nil
			})
		},
	}
}
