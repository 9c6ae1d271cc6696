package importer

import (
	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/pipeline"
)

// Report is the outcome of importing one link dump.
type Report struct {
	File    string
	Links   []*domain.Link
	Skipped int
	Results []pipeline.Result

	// Err is set when the file could not be read.
	Err error
}

// Failed counts links whose enrichment or persistence failed.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Status is the per-link outcome of a refetch.
type Status int

const (
	StatusDone Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done!"
	case StatusFailed:
		return "error!"
	default:
		return "skip!"
	}
}

// Outcome pairs a refetched URL with its status.
type Outcome struct {
	URL    string
	Status Status
	Err    error
}
