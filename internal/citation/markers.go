package citation

import (
	"regexp"
	"sort"
	"strconv"
)

// markerPattern matches the in-text citation marker syntax [N].
// Adjacent markers like [3][7] match independently.
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// ExtractMarkers returns the distinct citation numbers appearing in text,
// ascending.
func ExtractMarkers(text string) []int {
	seen := make(map[int]bool)
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		seen[n] = true
	}

	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// MarkerSet returns the citation numbers in text as a set.
func MarkerSet(text string) map[int]bool {
	set := make(map[int]bool)
	for _, n := range ExtractMarkers(text) {
		set[n] = true
	}
	return set
}

// IsMarkerSuperset reports whether every marker in before also appears in
// after. New markers in after are allowed; losing one is not.
func IsMarkerSuperset(after, before string) bool {
	afterSet := MarkerSet(after)
	for n := range MarkerSet(before) {
		if !afterSet[n] {
			return false
		}
	}
	return true
}
