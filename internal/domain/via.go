package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ViaKind says where a link was discovered.
type ViaKind string

const (
	ViaFriend   ViaKind = "Friend"
	ViaLink     ViaKind = "Link"
	ViaFreeform ViaKind = "Freeform"
)

// Via is the provenance tag of a link.
//
// It is stored as an externally tagged JSON object, e.g. {"Friend":"@someone"},
// so existing databases keep decoding.
type Via struct {
	Kind  ViaKind
	Value string
}

// ParseVia interprets the text following "via:" in a link dump.
// A leading "@" is a friend handle, an http(s) URL is a link, anything else
// is kept verbatim as free-form text.
func ParseVia(text string) Via {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "@") {
		return Via{Kind: ViaFriend, Value: trimmed}
	}

	scheme, _, _ := strings.Cut(trimmed, ":")
	if scheme == "http" || scheme == "https" {
		return Via{Kind: ViaLink, Value: trimmed}
	}

	return Via{Kind: ViaFreeform, Value: trimmed}
}

// String renders the via the way the metadata view prints it.
func (v Via) String() string {
	switch v.Kind {
	case ViaFriend:
		return "friend, " + v.Value
	case ViaLink:
		return "link, " + v.Value
	default:
		return "text, " + v.Value
	}
}

func (v Via) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[ViaKind]string{v.Kind: v.Value})
}

func (v *Via) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode via: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("via must have exactly one variant, got %d", len(raw))
	}

	for kind, value := range raw {
		switch ViaKind(kind) {
		case ViaFriend, ViaLink, ViaFreeform:
			v.Kind = ViaKind(kind)
			v.Value = value
		default:
			return fmt.Errorf("unknown via variant %q", kind)
		}
	}
	return nil
}
