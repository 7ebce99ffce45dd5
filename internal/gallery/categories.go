package gallery

import "strings"

// DeriveCategories builds the filter facet: "All", the defaults, then every
// category seen in entries in first-seen order. Duplicates are dropped.
func DeriveCategories(entries []Entry) []string {
	seen := make(map[string]struct{}, len(DefaultCategories)+len(entries)+1)
	out := make([]string, 0, len(DefaultCategories)+1)

	add := func(category string) {
		category = strings.TrimSpace(category)
		if category == "" {
			return
		}
		if _, ok := seen[category]; ok {
			return
		}
		seen[category] = struct{}{}
		out = append(out, category)
	}

	add(AllCategory)
	for _, category := range DefaultCategories {
		add(category)
	}
	for _, entry := range entries {
		add(entry.Category)
	}
	return out
}

// Filter returns the entries matching category, or all of them for "All".
// Relative order is preserved and the input is never modified.
func Filter(entries []Entry, category string) []Entry {
	if category == AllCategory {
		out := make([]Entry, len(entries))
		copy(out, entries)
		return out
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Category == category {
			out = append(out, entry)
		}
	}
	return out
}
