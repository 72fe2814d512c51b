// Package invoice turns raw invoice text into structured line items using a
// cascade of extraction strategies of decreasing reliability.
package invoice

import "strings"

// Lines splits raw text into trimmed lines, preserving empty lines so
// consumers that depend on position (header followed by item rows) see the
// original structure.
func Lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

// NonEmptyLines splits raw text into trimmed lines with empties removed.
func NonEmptyLines(text string) []string {
	var out []string
	for _, l := range Lines(text) {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
