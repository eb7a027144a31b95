package definition

import (
	"context"
	"regexp"

	"github.com/jward/fnref/internal/textpos"
)

// exportRe matches a top-level export const bound to a call. Groups: name,
// wrapper. An optional type annotation and generic argument list are
// tolerated; whitespace may span lines.
var exportRe = regexp.MustCompile(
	`(?m)^export\s+const\s+([A-Za-z_$][\w$]*)\s*(?::[^=\n]+)?=\s*([A-Za-z_$][\w$]*)\s*(?:<[^()\n]*>)?\s*\(`,
)

// PatternScanner is the regex implementation of Scanner.
type PatternScanner struct{}

// NewPatternScanner returns a regex-based Scanner.
func NewPatternScanner() *PatternScanner {
	return &PatternScanner{}
}

// Scan implements Scanner.
func (PatternScanner) Scan(ctx context.Context, _ string, src []byte) []Match {
	if len(src) == 0 || ctx.Err() != nil {
		return nil
	}
	lines := textpos.New(src)

	var matches []Match
	for _, loc := range exportRe.FindAllSubmatchIndex(src, -1) {
		line, _ := lines.Position(loc[0])
		_, col := lines.Position(loc[2])
		matches = append(matches, Match{
			Name:    string(src[loc[2]:loc[3]]),
			Wrapper: string(src[loc[4]:loc[5]]),
			Line:    line,
			Column:  col,
		})
	}
	return matches
}
