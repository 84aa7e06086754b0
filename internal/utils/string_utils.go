package utils

import (
	"strings"
)

// SplitList splits a comma separated list, trimming items and dropping empty and repeated ones.
func SplitList(value string) []string {
	items := make([]string, 0)
	seen := make(map[string]struct{})

	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		items = append(items, item)
	}

	return items
}
