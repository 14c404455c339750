package vectordb

import (
	"fmt"
	"sort"
	"strings"
)

// FormatResults renders search results as human-readable text.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("--- Result %d (similarity: %.4f) ---\n", i+1, r.Similarity))

		if src := r.Record.Source(); src != "" {
			sb.WriteString(fmt.Sprintf("Source: %s\n", src))
		}

		keys := make([]string, 0, len(r.Record.Metadata))
		for k := range r.Record.Metadata {
			if k != "source" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("%s: %v\n", k, r.Record.Metadata[k]))
		}

		sb.WriteString("\n")
		sb.WriteString(r.Record.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
