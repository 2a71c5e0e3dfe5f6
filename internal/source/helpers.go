package source

import (
	"strings"
)

// normalizeSpace collapses runs of whitespace into one space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// mergeUniqueFold appends items to dst, lower-cased, skipping blanks and
// case-insensitive duplicates.
func mergeUniqueFold(dst []string, items []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		k := strings.ToLower(strings.TrimSpace(v))
		if k != "" {
			seen[k] = struct{}{}
		}
	}

	for _, v := range items {
		k := strings.ToLower(normalizeSpace(v))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		dst = append(dst, k)
		seen[k] = struct{}{}
	}

	return dst
}

// splitList splits a comma or newline separated block, dropping bullets.
func splitList(block string) []string {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(block, "\n") {
		for _, raw := range strings.Split(line, ",") {
			s := strings.TrimLeft(strings.TrimSpace(raw), " \t-*•")
			s = normalizeSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// flattenList expands entries that pack several values into one string,
// e.g. "education, youth".
func flattenList(items []string) []string {
	var out []string
	for _, it := range items {
		out = append(out, splitList(it)...)
	}
	return out
}
