package storage

import "strings"

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	"%", `\%`,
	"_", `\_`,
)

// sanitizeSearchTerm escapes the LIKE wildcards % and _ (and the escape
// character itself) so that a prefix matches literally. Queries using it must
// declare ESCAPE '\'.
func sanitizeSearchTerm(term string) string {
	return likeEscaper.Replace(term)
}
