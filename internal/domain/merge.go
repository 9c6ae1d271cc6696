package domain

import (
	"slices"
	"time"
)

// Merge reconciles a freshly extracted draft with the stored record of the
// same URL, if any, and returns the link to hand to the enrichment pipeline.
//
// Authored fields (notes, tags, via) always come from the draft. Everything
// the pipeline learned (src, text, meta, headers, image, publish date and
// both gates) is carried over from stored untouched. Neither argument is
// modified.
func Merge(draft, stored *Link, src LinkSource, now time.Time) *Link {
	out := draft.Clone()
	if out.Tags == nil {
		out.Tags = NewTagSet()
	}

	if stored == nil {
		out.FoundAt = clonePtr(src.Timestamp())
		out.FromFilename = clonePtr(src.Filename)
		out.ReadAt = nil
		if out.HasNotes() {
			out.ReadAt = clonePtr(out.FoundAt)
		}
		return out
	}

	out.FoundAt = firstTime(stored.FoundAt, draft.FoundAt, src.Timestamp())
	out.FromFilename = firstString(stored.FromFilename, draft.FromFilename, src.Filename)

	// Notes are the read marker: without them a re-import un-marks the link.
	switch {
	case stored.ReadAt != nil:
		out.ReadAt = clonePtr(stored.ReadAt)
	case out.HasNotes():
		out.ReadAt = Ptr(now)
	default:
		out.ReadAt = nil
	}

	if out.Title == nil || *out.Title == "" {
		out.Title = clonePtr(stored.Title)
	}

	out.Src = slices.Clone(stored.Src)
	out.ExtractedText = clonePtr(stored.ExtractedText)
	out.Meta = cloneMulti(stored.Meta)
	out.HTTPHeaders = cloneMulti(stored.HTTPHeaders)
	out.LastFetched = clonePtr(stored.LastFetched)
	out.LastProcessed = clonePtr(stored.LastProcessed)
	out.Image = clonePtr(stored.Image)
	out.PublishedAt = clonePtr(stored.PublishedAt)
	out.Hidden = stored.Hidden

	return out
}

func firstTime(candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			return clonePtr(c)
		}
	}
	return nil
}

func firstString(candidates ...*string) *string {
	for _, c := range candidates {
		if c != nil {
			return clonePtr(c)
		}
	}
	return nil
}
