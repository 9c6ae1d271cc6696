package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkdump/internal/app"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

func newTagsCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Print every tag in use, sorted",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			tags, err := a.Store().AllTags(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		}),
	}
}

func newListCommand(r *runner) *cobra.Command {
	var (
		params store.ListParams
		hidden bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored links as a table, newest first",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			params.Hidden = &hidden

			links, err := a.Store().List(cmd.Context(), params)
			if err != nil {
				return err
			}
			total, err := a.Store().Count(cmd.Context(), params)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Found", "Title", "URL", "Tags", "Read"})

			for _, link := range links {
				found := ""
				if link.FoundAt != nil {
					found = link.FoundAt.Local().Format("2006-01-02")
				}
				read := ""
				if link.ReadAt != nil {
					read = "✓"
				}
				t.AppendRow(table.Row{
					found,
					truncate(link.TitleOrURL(), 60),
					link.URL,
					strings.Join(link.Tags.Sorted(), ", "),
					read,
				})
			}

			t.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d", len(links), total)})
			t.Render()
			return nil
		}),
	}

	cmd.Flags().StringVarP(&params.Query, "query", "q", "", "substring of the url or title")
	cmd.Flags().StringVar(&params.Tag, "tag", "", "substring of a tag")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "list hidden links instead of visible ones")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "skip this many links")
	cmd.Flags().IntVar(&params.Limit, "limit", 50, "show at most this many links (0 for all)")
	return cmd
}

func newHideCommand(r *runner, hide bool) *cobra.Command {
	use, short := "hide <url>", "Hide a link from list and serve mode"
	if !hide {
		use, short = "unhide <url>", "Make a hidden link visible again"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			ok, err := a.Store().SetHidden(cmd.Context(), args[0], hide)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no link stored under %s", args[0])
			}
			return nil
		}),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
