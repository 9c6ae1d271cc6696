package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/linkdump/internal/app"
	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

type showMode string

const (
	modeList         showMode = "list"
	modeText         showMode = "text"
	modeRaw          showMode = "raw"
	modeAttributions showMode = "attributions"
	modeMetadata     showMode = "metadata"
)

var showModes = []showMode{modeList, modeText, modeRaw, modeAttributions, modeMetadata}

const timelineLayout = "2006-01-02 3:04pm"

func newShowCommand(r *runner) *cobra.Command {
	var (
		mode string
		tag  string
	)

	cmd := &cobra.Command{
		Use:   "show [pattern]",
		Short: "Show stored links matching a shell wildcard (quote it!)",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			m := showMode(mode)
			if !slices.Contains(showModes, m) {
				return fmt.Errorf("unknown mode %q (want one of %v)", mode, showModes)
			}

			var tagFilter glob.Glob
			if tag != "" {
				g, err := glob.Compile(tag)
				if err != nil {
					return fmt.Errorf("invalid tag pattern %q: %w", tag, err)
				}
				tagFilter = g
			}

			links, err := a.Importer().Reader().Glob(cmd.Context(), patternArg(args))
			if err != nil {
				return err
			}
			slices.SortFunc(links, func(x, y *domain.Link) int { return strings.Compare(x.URL, y.URL) })

			return renderLinks(cmd.OutOrStdout(), m, filterByTag(links, tagFilter))
		}),
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(modeList), "list, text, raw, attributions or metadata")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only links with a tag matching this wildcard")
	return cmd
}

func filterByTag(links []*domain.Link, g glob.Glob) []*domain.Link {
	if g == nil {
		return links
	}
	out := links[:0]
	for _, link := range links {
		for _, t := range link.Tags.Sorted() {
			if g.Match(t) {
				out = append(out, link)
				break
			}
		}
	}
	return out
}

func renderLinks(out io.Writer, mode showMode, links []*domain.Link) error {
	if mode == modeMetadata {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		for _, link := range links {
			if err := enc.Encode(metadataNode(link)); err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
		}
		return enc.Close()
	}

	for _, link := range links {
		switch mode {
		case modeAttributions:
			fmt.Fprintf(out, "[%s]: %s\n", link.Slug(), link.URL)
		case modeText:
			if link.ExtractedText != nil {
				fmt.Fprintln(out, *link.ExtractedText)
			}
		case modeRaw:
			if link.Src != nil {
				if _, err := out.Write(link.Src); err != nil {
					return err
				}
			}
		default:
			fmt.Fprintln(out, link.URL)
		}
	}
	return nil
}

// ───── metadata view ─────

func metadataNode(link *domain.Link) *yaml.Node {
	doc := mapping()
	appendPair(doc, "url", scalar(link.URL))

	if link.FromFilename != nil {
		appendPair(doc, "from", scalar(homeRelative(*link.FromFilename)))
	}

	if timeline := timelineNode(link); len(timeline.Content) > 0 {
		appendPair(doc, "timeline", timeline)
	}

	if link.Via != nil {
		appendPair(doc, "via", scalar(link.Via.String()))
	}

	if len(link.Tags) > 0 {
		tags := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, t := range link.Tags.Sorted() {
			tags.Content = append(tags.Content, scalar(t))
		}
		appendPair(doc, "tags", tags)
	}

	for _, section := range []struct {
		name   string
		values map[string][]string
	}{
		{"meta", link.Meta},
		{"headers", link.HTTPHeaders},
	} {
		if len(section.values) == 0 {
			continue
		}
		m := mapping()
		keys := make([]string, 0, len(section.values))
		for k := range section.values {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			appendPair(m, k, scalar(strings.Join(section.values[k], ", ")))
		}
		appendPair(doc, section.name, m)
	}

	return doc
}

// timelineNode groups the four timestamps by their rendered minute, e.g.
// "found;read: 2024-01-02 9:30am".
func timelineNode(link *domain.Link) *yaml.Node {
	events := []struct {
		name string
		at   *time.Time
	}{
		{"found", link.FoundAt},
		{"read", link.ReadAt},
		{"fetched", link.LastFetched},
		{"processed", link.LastProcessed},
	}

	var order []string
	actions := make(map[string][]string)
	for _, e := range events {
		if e.at == nil {
			continue
		}
		when := e.at.Local().Format(timelineLayout)
		if _, seen := actions[when]; !seen {
			order = append(order, when)
		}
		actions[when] = append(actions[when], e.name)
	}
	slices.Sort(order)

	m := mapping()
	for _, when := range order {
		appendPair(m, strings.Join(actions[when], ";"), scalar(when))
	}
	return m
}

func homeRelative(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return strings.Replace(path, home, "~", 1)
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalar(key), value)
}
