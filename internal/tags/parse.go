// Package tags normalizes free-text feature tags and indexes tag membership.
package tags

import (
	"strings"
)

func isSeparator(r rune) bool {
	return r == ',' || r == ' ' || r == ';' || r == '\t' || r == '\n' || r == '\r'
}

// Parse splits raw input on spaces, commas and semicolons, trims each piece
// and strips one leading '#'. Case is preserved. Exact duplicates are dropped,
// keeping the first occurrence.
func Parse(raw string) []string {
	fields := strings.FieldsFunc(raw, isSeparator)
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tag := normalize(f)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	return strings.TrimSpace(s)
}

// Merge unions existing and added tags. Existing tags keep their order and
// new ones follow in first-seen order.
func Merge(existing, added []string) []string {
	out := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, t := range list {
			tag := normalize(t)
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// Without returns tags with every exact occurrence of tag removed.
func Without(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}

// Join renders tags in the canonical comma-separated form sent to the remote.
func Join(tags []string) string {
	return strings.Join(tags, ",")
}
