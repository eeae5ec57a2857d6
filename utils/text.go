package utils

import (
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// Slugify folds compatibility forms (full-width chars, ligatures from
// partner-supplied titles) before slugging so equivalent titles collide on
// the unique slug index instead of producing near-duplicates.
func Slugify(title string) string {
	folded := norm.NFKC.String(strings.TrimSpace(title))
	return slug.Make(folded)
}
