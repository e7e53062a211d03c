package detector

import (
	"sort"
	"strings"
)

// ExtensionSeparator separates the extensions of an extension list.
const ExtensionSeparator = "|"

// ParseExtensions returns the canonical extension set of list: lower case,
// without leading dots and empty items, sorted and deduplicated.
func ParseExtensions(list string) []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, ext := range strings.Split(list, ExtensionSeparator) {
		ext = strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FormatExtensions joins exts in canonical form.
func FormatExtensions(exts []string) string {
	return strings.Join(ParseExtensions(strings.Join(exts, ExtensionSeparator)), ExtensionSeparator)
}

// CanonicalExtensions normalizes list, e.g. ".ZIP|Jar||zip" to "jar|zip".
func CanonicalExtensions(list string) string {
	return strings.Join(ParseExtensions(list), ExtensionSeparator)
}
