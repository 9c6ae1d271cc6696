package domain

import (
	"mime"
	"strings"
)

// ContentClass is the coarse kind of a fetched document.
type ContentClass int

const (
	ClassUnknown ContentClass = iota
	ClassHTML
	ClassPDF
	ClassText
	ClassOther
)

func (c ContentClass) String() string {
	switch c {
	case ClassHTML:
		return "html"
	case ClassPDF:
		return "pdf"
	case ClassText:
		return "text"
	case ClassOther:
		return "other"
	default:
		return "unknown"
	}
}

// KeepsBody reports whether a response of this class is stored in Src.
func (c ContentClass) KeepsBody() bool {
	return c == ClassHTML || c == ClassPDF || c == ClassText
}

// ClassifyContentType maps a Content-Type header value to a ContentClass.
// Parameters such as charset are ignored.
func ClassifyContentType(contentType string) ContentClass {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}

	switch mediaType {
	case "":
		return ClassUnknown
	case "text/html", "application/xhtml+xml":
		return ClassHTML
	case "application/pdf", "application/x-pdf":
		return ClassPDF
	case "text/plain":
		return ClassText
	default:
		return ClassOther
	}
}
