package ned

import "strings"

func splitWords(s string) []string {
	return strings.Fields(s)
}

// containsRun reports whether needle occurs as a contiguous run in words.
func containsRun(words, needle []string) bool {
	return IndexRun(words, needle) >= 0
}

// IndexRun returns the first index at which needle occurs as a contiguous
// run in words, or -1.
func IndexRun(words, needle []string) int {
	if len(needle) == 0 || len(needle) > len(words) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(words); i++ {
		for j, w := range needle {
			if words[i+j] != w {
				continue outer
			}
		}
		return i
	}
	return -1
}
