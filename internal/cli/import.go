package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkdump/internal/app"
	"github.com/MrSnakeDoc/linkdump/internal/pipeline"
)

func newImportCommand(r *runner) *cobra.Command {
	var displayLinks bool

	cmd := &cobra.Command{
		Use:   "import <file|dir>...",
		Short: "Import links from markdown link dumps",
		Long: `Import links from a set of files. Files named explicitly are always read;
directories are searched recursively for *.md files. Each list item must
start with a markdown link or "text: url"; nested lists named tags, via
and notes add metadata.`,
		Args: cobra.MinimumNArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			out := cmd.OutOrStdout()

			reports, err := a.Importer().ImportFiles(cmd.Context(), args...)
			for _, report := range reports {
				if report.Err != nil {
					fmt.Fprintf(out, "skipped %q: %v\n", report.File, report.Err)
					continue
				}
				fmt.Fprintf(out, "processed %q\n", report.File)
				if failed := report.Failed(); failed > 0 {
					fmt.Fprintf(out, "  %d of %d links failed\n", failed, len(report.Links))
				}
				if displayLinks {
					for i, link := range report.Links {
						fmt.Fprintf(out, "  %s %s%s\n", link.URL, link.TitleOrURL(), failure(report.Results, i))
					}
				}
			}
			return err
		}),
	}

	cmd.Flags().BoolVar(&displayLinks, "display-links", false, "print every imported link")
	return cmd
}

func failure(results []pipeline.Result, i int) string {
	if i < len(results) && results[i].Err != nil {
		return " (error: " + results[i].Err.Error() + ")"
	}
	return ""
}
