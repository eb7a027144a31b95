// Package usage finds the places client code references a backend function
// identifier and classifies how each reference is used.
package usage

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/fnref/internal/pathcodec"
	"github.com/jward/fnref/internal/project"
)

// Usage is one textual occurrence of an identifier.
type Usage struct {
	Identifier    string `json:"identifier"`
	FilePath      string `json:"file_path"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	Text          string `json:"text"`
	AccessPattern string `json:"access_pattern,omitempty"`
}

// Result is the outcome of one Search call.
type Result struct {
	Identifier   string        `json:"identifier"`
	FunctionName string        `json:"function_name"`
	Usages       []Usage       `json:"usages"`
	Elapsed      time.Duration `json:"elapsed"`
}

// ProjectSource supplies the current project. *project.Cache implements it.
type ProjectSource interface {
	Get(ctx context.Context) (project.Info, error)
}

// Searcher runs usage searches across the configured scopes.
type Searcher struct {
	projects      ProjectSource
	matcher       Matcher
	frontendPaths []string
	excludeGlobs  []string
	jobs          int
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithMatcher replaces the default ripgrep-with-fallback Matcher.
func WithMatcher(m Matcher) Option {
	return func(s *Searcher) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithFrontendPaths sets the search scopes. Relative paths are resolved
// against the workspace root. Empty means the whole workspace.
func WithFrontendPaths(paths ...string) Option {
	return func(s *Searcher) {
		s.frontendPaths = paths
	}
}

// WithExcludeGlobs sets gitignore-style globs excluded from every scope.
func WithExcludeGlobs(globs ...string) Option {
	return func(s *Searcher) {
		s.excludeGlobs = globs
	}
}

// WithJobs bounds how many scopes are searched concurrently. Result order
// does not depend on it.
func WithJobs(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.jobs = n
		}
	}
}

// WithLogger sets the logger for per-scope failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a Searcher. Without WithMatcher it uses ripgrep and
// falls back to an in-process scan when ripgrep cannot be spawned.
func NewSearcher(projects ProjectSource, opts ...Option) *Searcher {
	s := &Searcher{
		projects: projects,
		jobs:     1,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.matcher == nil {
		s.matcher = FallbackMatcher{
			Primary:  NewRipgrepMatcher("rg", s.logger),
			Fallback: NewScanMatcher(DefaultMaxFiles, s.logger),
		}
	}
	return s
}

// Pattern builds the regular expression matching references to
// identifier in client code, e.g. api.domains.contacts.createContact for
// public.domains.contacts.createContact.
func Pattern(identifier string) (string, error) {
	ref, err := pathcodec.ReferencePath(identifier)
	if err != nil {
		return "", err
	}
	return `\b` + regexp.QuoteMeta(ref) + `\b`, nil
}

// Scopes returns the directories searched for info, in search order.
func (s *Searcher) Scopes(info project.Info) []string {
	if len(s.frontendPaths) == 0 {
		return []string{info.WorkspaceRoot}
	}
	scopes := make([]string, 0, len(s.frontendPaths))
	for _, p := range s.frontendPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(info.WorkspaceRoot, p)
		}
		scopes = append(scopes, p)
	}
	return scopes
}

// Search finds usages of identifier. A missing project or an undecodable
// identifier yields an empty Result. Failing scopes are logged and
// skipped. The only error is ctx's, after which the Result is void.
func (s *Searcher) Search(ctx context.Context, identifier, functionName string) (Result, error) {
	start := time.Now()
	result := Result{Identifier: identifier, FunctionName: functionName}

	if result.FunctionName == "" {
		if d, err := pathcodec.Decode(identifier); err == nil {
			result.FunctionName = d.FunctionName
		}
	}

	info, err := s.projects.Get(ctx)
	if err != nil {
		s.logger.Debug("search without project", slog.Any("error", err))
		result.Elapsed = time.Since(start)
		return result, nil
	}
	pattern, err := Pattern(identifier)
	if err != nil {
		s.logger.Debug("search pattern", slog.String("identifier", identifier), slog.Any("error", err))
		result.Elapsed = time.Since(start)
		return result, nil
	}

	scopes := s.Scopes(info)
	perScope := make([][]Usage, len(scopes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)
	for i, dir := range scopes {
		g.Go(func() error {
			matches, err := s.matcher.Match(gctx, Request{
				Pattern:      pattern,
				Dir:          dir,
				ExcludeGlobs: s.excludeGlobs,
				Extensions:   SourceExtensions,
			})
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn("scope search failed", slog.String("dir", dir), slog.Any("error", err))
				return nil
			}
			usages := make([]Usage, 0, len(matches))
			for _, m := range matches {
				usages = append(usages, Usage{
					Identifier:    identifier,
					FilePath:      m.FilePath,
					Line:          m.Line,
					Column:        m.Column,
					Text:          m.Text,
					AccessPattern: ClassifyAccess(m.Text),
				})
			}
			perScope[i] = usages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for _, u := range perScope {
		result.Usages = append(result.Usages, u...)
	}
	result.Elapsed = time.Since(start)
	return result, nil
}
