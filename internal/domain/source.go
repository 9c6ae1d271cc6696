package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// filenameDateLayout is the date prefix convention of link dump files,
// e.g. "20220115-link-dump.md".
const filenameDateLayout = "20060102"

// LinkSource is one parsed input document and its provenance.
// It is built once per document and never persisted.
type LinkSource struct {
	Content  string
	Filename *string

	// Created comes from the filename date prefix, Modified from file metadata.
	Created  *time.Time
	Modified *time.Time
}

// FromPath reads the document at path.
func FromPath(path string) (LinkSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LinkSource{}, fmt.Errorf("failed to read link dump: %w", err)
	}

	src := LinkSource{
		Content:  string(data),
		Filename: Ptr(path),
		Created:  DateFromFilename(filepath.Base(path)),
	}

	if info, err := os.Stat(path); err == nil {
		src.Modified = Ptr(info.ModTime().UTC())
	}

	return src, nil
}

// FromString builds an anonymous source created now.
func FromString(content string) LinkSource {
	return LinkSource{
		Content: content,
		Created: Ptr(time.Now().UTC()),
	}
}

// DateFromFilename parses a leading YYYYMMDD before the first "-" as local midnight.
func DateFromFilename(name string) *time.Time {
	prefix, _, _ := strings.Cut(name, "-")
	if len(prefix) != len(filenameDateLayout) {
		return nil
	}
	t, err := time.ParseInLocation(filenameDateLayout, prefix, time.Local)
	if err != nil {
		return nil
	}
	return Ptr(t.UTC())
}

// Timestamp is the best known time for the document: modified, else created.
func (s LinkSource) Timestamp() *time.Time {
	if s.Modified != nil {
		return s.Modified
	}
	return s.Created
}
