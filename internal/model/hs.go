package model

import "strings"

// NormalizeHS strips dot delimiters from a hierarchical HS code, leaving the
// bare digit string. "7208.10.00.00" becomes "7208100000".
func NormalizeHS(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), ".", "")
}

// HSPrefixMatch reports whether prefix matches code and, if so, how many
// digits the match spans. Both arguments are normalized before comparison.
// More specified digits means a higher-priority match; specificity is always
// compared numerically on this length, never via string equality alone.
func HSPrefixMatch(code, prefix string) (int, bool) {
	c := NormalizeHS(code)
	p := NormalizeHS(prefix)
	if p == "" {
		return 0, true
	}
	if strings.HasPrefix(c, p) {
		return len(p), true
	}
	return 0, false
}
