package usage

import "regexp"

// AccessPatterns are the retrieval conventions recognized on a usage
// line, in priority order.
var AccessPatterns = []string{
	"useQuery",
	"useMutation",
	"useAction",
	"usePaginatedQuery",
	"useQueries",
	"usePreloadedQuery",
	"runQuery",
	"runMutation",
	"runAction",
	"runAfter",
	"runAt",
	"fetchQuery",
	"fetchMutation",
	"fetchAction",
	"preloadQuery",
}

var accessRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(AccessPatterns))
	for i, p := range AccessPatterns {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
	}
	return res
}()

// ClassifyAccess returns the first access pattern appearing as a whole word
// in line, or "" when none does.
func ClassifyAccess(line string) string {
	for i, re := range accessRes {
		if re.MatchString(line) {
			return AccessPatterns[i]
		}
	}
	return ""
}
