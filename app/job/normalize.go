package job

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var companySuffixes = []string{
	", inc.", " inc.", " inc",
	", llc", " llc",
	", ltd.", " ltd.", " ltd",
	", corp.", " corp.", " corp",
	", corporation", " corporation",
	" limited",
	", co.", " co.",
}

var lowerCaser = cases.Lower(language.Und)

// NormalizeCompany folds a company name for fuzzy matching: Unicode
// lowercasing plus stripping of common legal suffixes (Inc, LLC, Ltd, Corp).
func NormalizeCompany(name string) string {
	normalized := lowerCaser.String(strings.TrimSpace(name))

	for _, suffix := range companySuffixes {
		if strings.HasSuffix(normalized, suffix) {
			normalized = normalized[:len(normalized)-len(suffix)]
			break
		}
	}

	return strings.TrimSpace(normalized)
}
