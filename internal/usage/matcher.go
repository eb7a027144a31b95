package usage

import (
	"context"
	"errors"
)

// ErrToolNotFound reports that the external line matcher could not be
// spawned. Callers fall back to an in-process Matcher.
var ErrToolNotFound = errors.New("usage: search tool not found")

// SourceExtensions are the file types searched for usages.
var SourceExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// Request describes one literal-pattern search over a scope directory.
type Request struct {
	Pattern      string // regular expression, identifier separators escaped
	Dir          string
	ExcludeGlobs []string
	Extensions   []string
}

// LineMatch is one match reported by a Matcher. Line and Column are
// 0-based; Column is a byte offset into Text.
type LineMatch struct {
	FilePath string
	Line     int
	Column   int
	Text     string
}

// Matcher finds pattern matches in the files of a scope directory.
type Matcher interface {
	Match(ctx context.Context, req Request) ([]LineMatch, error)
}

// FallbackMatcher tries primary and switches to fallback when primary
// reports ErrToolNotFound. The choice is made per call, so a tool that
// appears later is picked up.
type FallbackMatcher struct {
	Primary  Matcher
	Fallback Matcher
}

// Match implements Matcher.
func (m FallbackMatcher) Match(ctx context.Context, req Request) ([]LineMatch, error) {
	matches, err := m.Primary.Match(ctx, req)
	if errors.Is(err, ErrToolNotFound) {
		return m.Fallback.Match(ctx, req)
	}
	return matches, err
}
