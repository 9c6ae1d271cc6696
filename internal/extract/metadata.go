package extract

import (
	"strings"

	"github.com/yuin/goldmark/ast"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

const (
	keyTags  = "tags"
	keyVia   = "via"
	keyNotes = "notes"
)

// applyMetadata folds one nested metadata list into draft. Unknown keys are
// ignored so newer dumps stay readable.
func applyMetadata(draft *domain.Link, list *ast.List, source []byte) {
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		para := item.FirstChild()
		if para == nil || !isParagraph(para) {
			continue
		}

		flat := inlineText(para, source)
		key, rest, found := strings.Cut(flat, ":")
		if !found {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(key)) {
		case keyTags:
			if draft.Tags == nil {
				draft.Tags = domain.NewTagSet()
			}
			draft.Tags.Add(splitTags(rest)...)
			for child := para.NextSibling(); child != nil; child = child.NextSibling() {
				if sub, ok := child.(*ast.List); ok {
					collectTags(draft.Tags, sub, source)
				}
			}

		case keyVia:
			if anchor := firstLink(para); anchor != nil {
				if via := domain.ParseVia(string(anchor.Destination)); via.Kind == domain.ViaLink {
					draft.Via = &via
					continue
				}
			}
			if strings.TrimSpace(rest) == "" {
				continue
			}
			via := domain.ParseVia(rest)
			draft.Via = &via

		case keyNotes:
			appendNotes(draft, item, source)
		}
	}
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func collectTags(tags domain.TagSet, list *ast.List, source []byte) {
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *ast.List:
				collectTags(tags, v, source)
			default:
				if isParagraph(c) {
					tags.Add(splitTags(inlineText(c, source))...)
				}
			}
		}
	}
}

// appendNotes renders every child item of the notes block and appends the
// result to the draft's existing notes, newline separated.
func appendNotes(draft *domain.Link, notesItem ast.Node, source []byte) {
	var parts []string
	if draft.Notes != nil && *draft.Notes != "" {
		parts = append(parts, *draft.Notes)
	}

	for child := notesItem.FirstChild(); child != nil; child = child.NextSibling() {
		sub, ok := child.(*ast.List)
		if !ok {
			continue
		}
		for item := sub.FirstChild(); item != nil; item = item.NextSibling() {
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if s := strings.TrimSpace(blockMarkdown(c, source)); s != "" {
					parts = append(parts, s)
				}
			}
		}
	}

	notes := strings.TrimSpace(strings.Join(parts, "\n"))
	if notes == "" {
		draft.Notes = nil
		return
	}
	draft.Notes = &notes
}
