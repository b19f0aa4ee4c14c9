package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
)

// Marker identifies one reserved destination region in the mutated document.
type Marker struct {
	Kind        Kind
	Index       int
	PageInGroup int // 0 for the original cell, 1.. for replicated cells
}

// MarkerPattern matches any marker written by the mutator.
var MarkerPattern = regexp.MustCompile(`%%(OVERLAY|MERGE)_START_(\d+)(?:_PAGE_(\d+))?%%`)

// MarkerPrefixes are the fragments that must never survive into a delivered PDF.
var MarkerPrefixes = []string{"%%OVERLAY_START_", "%%MERGE_START_"}

func (m Marker) String() string {
	if m.Kind == KindMerge {
		return fmt.Sprintf("%%%%MERGE_START_%02d%%%%", m.Index)
	}
	if m.PageInGroup > 0 {
		return fmt.Sprintf("%%%%OVERLAY_START_%02d_PAGE_%02d%%%%", m.Index, m.PageInGroup)
	}
	return fmt.Sprintf("%%%%OVERLAY_START_%02d%%%%", m.Index)
}

// ParseMarker parses the first marker found in s.
func ParseMarker(s string) (Marker, bool) {
	sm := MarkerPattern.FindStringSubmatch(s)
	if sm == nil {
		return Marker{}, false
	}
	m := Marker{Kind: KindOverlay}
	if sm[1] == "MERGE" {
		m.Kind = KindMerge
	}
	m.Index, _ = strconv.Atoi(sm[2])
	if sm[3] != "" {
		if m.Kind == KindMerge {
			return Marker{}, false
		}
		m.PageInGroup, _ = strconv.Atoi(sm[3])
	}
	return m, true
}
