package progress

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CourseKey canonicalizes a course display name so that names differing only
// in Unicode composition, letter case or spacing compare equal.
func CourseKey(name string) string {
	s := norm.NFC.String(name)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
