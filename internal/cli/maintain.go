package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkdump/internal/app"
	"github.com/MrSnakeDoc/linkdump/internal/importer"
	"github.com/MrSnakeDoc/linkdump/internal/pipeline"
)

func newRebuildCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild [pattern]",
		Short: "Run extraction again on cached bodies",
		Long: `Clear the processed marker of every link matching pattern (a shell
wildcard over the URL, default "*") and extract title, date, image,
meta tags and text again from the cached body. Nothing is fetched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			results, err := a.Importer().Rebuild(cmd.Context(), patternArg(args))
			printResults(cmd.OutOrStdout(), results)
			return err
		}),
	}
}

func newRefetchCommand(r *runner) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "refetch [pattern]",
		Short: "Download links again and re-run every extraction step",
		Long: `Clear both the fetched and processed markers of links matching pattern
and run the full enrichment chain again. Links whose body is already
cached are skipped unless --all is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			outcomes, err := a.Importer().Refetch(cmd.Context(), patternArg(args), all)
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				fmt.Fprintf(out, "%s... %s\n", o.URL, o.Status)
			}
			return err
		}),
	}

	cmd.Flags().BoolVar(&all, "all", false, "refetch links whose body is already cached")
	return cmd
}

func printResults(out io.Writer, results []pipeline.Result) {
	for _, res := range results {
		status := importer.StatusDone
		if res.Err != nil {
			status = importer.StatusFailed
		}
		fmt.Fprintf(out, "%s... %s\n", res.URL, status)
	}
}

func patternArg(args []string) string {
	if len(args) == 0 {
		return "*"
	}
	return args[0]
}
