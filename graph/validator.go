// ABOUTME: IsValidEdge decides whether a raw edge is a sequential track-to-track transition.
// ABOUTME: Closed-world filter: anything not affirmatively sequential is rejected.
package graph

import "strings"

// sequentialTags are the normalized relation tags that denote play order.
var sequentialTags = map[string]bool{
	"next":              true,
	"previous":          true,
	"adjacent":          true,
	"adjacent_to":       true,
	"next_track":        true,
	"previous_track":    true,
	"playlist_sequence": true,
	"mix_transition":    true,
	"followed_by":       true,
	"preceded_by":       true,
	"played_next":       true,
	"played_before":     true,
	"played_after":      true,
}

// structuralTags are relations that never denote play order. Only consulted
// by the ReplaceEdges fallback.
var structuralTags = map[string]bool{
	"performed_by": true,
	"played_at":    true,
	"part_of":      true,
	"belongs_to":   true,
	"contains":     true,
	"located_at":   true,
	"features":     true,
}

// NormalizeTag lower-cases a relation tag and folds spaces and hyphens to '_'.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(tag)
}

// IsValidEdge reports whether raw connects two tracks present in nodes by a
// sequential relation. It is a pure function of raw and the lookup.
func IsValidEdge(raw RawEdge, nodes NodeLookup) bool {
	source, target, ok := raw.Endpoints()
	if !ok || nodes == nil {
		return false
	}
	if !isTrack(nodes, source) || !isTrack(nodes, target) {
		return false
	}
	if sequentialTags[NormalizeTag(raw.Type)] {
		return true
	}
	return metadataMarksSequential(raw.Metadata)
}

func isTrack(nodes NodeLookup, id string) bool {
	kind, ok := nodes.NodeKind(id)
	return ok && kind == KindTrack
}

// metadataMarksSequential is the fallback for edges whose tag is absent or
// unrecognized: an explicit adjacent relation or a next/previous hint.
func metadataMarksSequential(md map[string]any) bool {
	for _, k := range []string{"relation", "relationship"} {
		if s, ok := md[k].(string); ok && NormalizeTag(s) == "adjacent" {
			return true
		}
	}
	if b, ok := md["adjacent"].(bool); ok && b {
		return true
	}
	for _, k := range []string{"sequence", "direction", "position"} {
		if s, ok := md[k].(string); ok {
			switch NormalizeTag(s) {
			case "next", "previous":
				return true
			}
		}
	}
	return false
}

// isStructural reports whether the relation tag is on the fallback blocklist.
func isStructural(tag string) bool {
	return structuralTags[NormalizeTag(tag)]
}
