package fnref

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/jward/fnref/internal/config"
	"github.com/jward/fnref/internal/definition"
	"github.com/jward/fnref/internal/pathcodec"
	"github.com/jward/fnref/internal/project"
	"github.com/jward/fnref/internal/runtime"
	"github.com/jward/fnref/internal/store"
	"github.com/jward/fnref/internal/usage"
)

const defaultReportJobs = 4

// Resolver orchestrates project location, the path codec, definition
// scanning and usage search for one workspace.
type Resolver struct {
	workspace  string
	cfg        config.Config
	hasConfig  bool
	logger     *slog.Logger
	clock      func() time.Time
	scanner    definition.Scanner
	matcher    usage.Matcher
	storePath  string
	reportJobs int

	cache    *project.Cache
	runtime  *runtime.Runtime
	rules    definition.KindRules // nil without a kind script
	searcher *usage.Searcher

	storeMu sync.Mutex
	store   *store.Store
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConfig uses cfg instead of loading .fnref.yaml from the workspace.
func WithConfig(cfg Config) Option {
	return func(r *Resolver) {
		r.cfg = cfg
		r.hasConfig = true
	}
}

// WithLogger sets the logger shared by all components. The default
// discards.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock replaces time.Now for the project cache.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.clock = now
	}
}

// WithScanner replaces the regex definition scanner, e.g. with
// definition.NewTreeScanner.
func WithScanner(s definition.Scanner) Option {
	return func(r *Resolver) {
		r.scanner = s
	}
}

// WithMatcher replaces the ripgrep-with-fallback line matcher.
func WithMatcher(m usage.Matcher) Option {
	return func(r *Resolver) {
		r.matcher = m
	}
}

// WithStorePath sets the report database path. Relative paths are
// resolved against the workspace. The default is .fnref.db in the
// workspace root.
func WithStorePath(path string) Option {
	return func(r *Resolver) {
		r.storePath = path
	}
}

// WithReportJobs bounds how many usage searches Report runs at once.
func WithReportJobs(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.reportJobs = n
		}
	}
}

// New creates a Resolver for the workspace directory. Configuration is
// loaded from the workspace unless WithConfig is given. The report
// database is opened on first use.
func New(workspace string, opts ...Option) (*Resolver, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("fnref: workspace %s: %w", workspace, err)
	}
	r := &Resolver{
		workspace:  abs,
		logger:     slog.New(slog.DiscardHandler),
		reportJobs: defaultReportJobs,
	}
	for _, opt := range opts {
		opt(r)
	}

	if !r.hasConfig {
		if r.cfg, err = config.Load(abs); err != nil {
			return nil, fmt.Errorf("fnref: %w", err)
		}
	} else if err := r.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fnref: config: %w", err)
	}

	locator := project.NewLocator(abs,
		project.WithOverride(r.cfg.DefinitionsRoot),
		project.WithMarkerFile(r.cfg.MarkerFile),
		project.WithLogger(r.logger))
	cacheOpts := []project.CacheOption{project.WithTTL(r.cfg.TTL())}
	if r.clock != nil {
		cacheOpts = append(cacheOpts, project.WithClock(r.clock))
	}
	r.cache = project.NewCache(locator, cacheOpts...)

	r.runtime = runtime.NewRuntime(abs, runtime.WithLogger(r.logger))
	if r.cfg.KindScript != "" {
		rules, err := r.runtime.KindRules(r.cfg.KindScript)
		if err != nil {
			return nil, fmt.Errorf("fnref: kind script: %w", err)
		}
		r.rules = rules
	}

	if r.matcher == nil {
		r.matcher = usage.FallbackMatcher{
			Primary:  usage.NewRipgrepMatcher(r.cfg.SearchTool, r.logger),
			Fallback: usage.NewScanMatcher(usage.DefaultMaxFiles, r.logger),
		}
	}
	r.searcher = usage.NewSearcher(r.cache,
		usage.WithMatcher(r.matcher),
		usage.WithFrontendPaths(r.cfg.FrontendPaths...),
		usage.WithExcludeGlobs(r.cfg.ExcludeGlobs...),
		usage.WithJobs(r.cfg.SearchJobs),
		usage.WithLogger(r.logger))

	if r.storePath == "" {
		r.storePath = store.DefaultFileName
	}
	if !filepath.IsAbs(r.storePath) {
		r.storePath = filepath.Join(abs, r.storePath)
	}
	return r, nil
}

// Close releases the report database if it was opened.
func (r *Resolver) Close() error {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// Workspace returns the absolute workspace root.
func (r *Resolver) Workspace() string {
	return r.workspace
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Project returns the current project, re-locating it when the cached
// value is older than the TTL. ErrNotFound when none is discoverable.
func (r *Resolver) Project(ctx context.Context) (ProjectInfo, error) {
	return r.cache.Get(ctx)
}

// Refresh re-locates the project regardless of the TTL.
func (r *Resolver) Refresh(ctx context.Context) (ProjectInfo, error) {
	return r.cache.Refresh(ctx)
}

// Invalidate clears the cached project.
func (r *Resolver) Invalidate() {
	r.cache.Invalidate()
}

// Watch invalidates the project cache on structural changes under the
// workspace (and the definitions root, when it lies outside) until ctx is
// done. onInvalidate may be nil.
func (r *Resolver) Watch(ctx context.Context, onInvalidate func(path string)) error {
	dirs := []string{r.workspace}
	if info, err := r.cache.Get(ctx); err == nil && !project.Contains(r.workspace, info.DefinitionsRoot) {
		dirs = append(dirs, info.DefinitionsRoot)
	}
	w, err := project.NewWatcher(r.cache, dirs,
		project.OnInvalidate(onInvalidate),
		project.WithWatchLogger(r.logger))
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Encode returns the public identifier for functionName in filePath.
func (r *Resolver) Encode(ctx context.Context, filePath, functionName string) (string, error) {
	return r.EncodeIn(ctx, pathcodec.Public, filePath, functionName)
}

// EncodeIn is Encode with an explicit namespace.
func (r *Resolver) EncodeIn(ctx context.Context, ns Namespace, filePath, functionName string) (string, error) {
	info, err := r.cache.Get(ctx)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("fnref: %s: %w", filePath, err)
	}
	return pathcodec.EncodeIn(ns, abs, functionName, info.DefinitionsRoot)
}

// Decode splits an identifier into namespace, module path and function
// name. It does not touch the filesystem.
func (r *Resolver) Decode(identifier string) (Decoded, error) {
	return pathcodec.Decode(identifier)
}

// index binds a definition.Index to the current definitions root.
func (r *Resolver) index(ctx context.Context) (*definition.Index, error) {
	info, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	opts := []definition.Option{
		definition.WithCustomWrappers(r.cfg.CustomWrappers...),
		definition.WithLogger(r.logger),
	}
	if r.scanner != nil {
		opts = append(opts, definition.WithScanner(r.scanner))
	}
	if r.rules != nil {
		opts = append(opts, definition.WithKindRules(r.rules))
	}
	return definition.NewIndex(info.DefinitionsRoot, opts...), nil
}

// ScanFile returns the definitions in path. Files outside the definitions
// root, under _generated, or unreadable contribute nothing.
func (r *Resolver) ScanFile(ctx context.Context, path string) ([]Definition, error) {
	ix, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("fnref: %s: %w", path, err)
	}
	return ix.ScanFile(ctx, abs), nil
}

// Definitions returns every definition under the definitions root in
// lexical file order.
func (r *Resolver) Definitions(ctx context.Context) ([]Definition, error) {
	ix, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	return ix.ScanRoot(ctx)
}

// FindAt returns the definition under pos in doc. ok is false when there
// is none.
func (r *Resolver) FindAt(ctx context.Context, doc Document, pos Position) (def Definition, ok bool, err error) {
	ix, err := r.index(ctx)
	if err != nil {
		return Definition{}, false, err
	}
	if doc.Path, err = filepath.Abs(doc.Path); err != nil {
		return Definition{}, false, fmt.Errorf("fnref: %s: %w", doc.Path, err)
	}
	def, ok = ix.FindAt(ctx, doc, pos)
	return def, ok, nil
}

// Goto resolves identifier to the definition it names.
func (r *Resolver) Goto(ctx context.Context, identifier string) (Definition, error) {
	ix, err := r.index(ctx)
	if err != nil {
		return Definition{}, err
	}
	return ix.Lookup(ctx, identifier)
}

// Search finds usages of identifier in client code. A missing project or
// malformed identifier yields an empty result; the only error is ctx's.
func (r *Resolver) Search(ctx context.Context, identifier string) (SearchResult, error) {
	return r.searcher.Search(ctx, identifier, "")
}

// UsagesAt finds the definition under pos and searches its usages. ok is
// false when no definition is under the cursor.
func (r *Resolver) UsagesAt(ctx context.Context, doc Document, pos Position) (SearchResult, bool, error) {
	def, ok, err := r.FindAt(ctx, doc, pos)
	if err != nil || !ok {
		return SearchResult{}, false, err
	}
	res, err := r.searcher.Search(ctx, def.Identifier, def.Name)
	if err != nil {
		return SearchResult{}, false, err
	}
	return res, true, nil
}

// Scopes returns the directories Search would visit for the current
// project.
func (r *Resolver) Scopes(ctx context.Context) ([]string, error) {
	info, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return r.searcher.Scopes(info), nil
}

// openStore opens and migrates the report database once.
func (r *Resolver) openStore() (*store.Store, error) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.store != nil {
		return r.store, nil
	}
	s, err := store.NewStore(r.storePath)
	if err != nil {
		return nil, fmt.Errorf("fnref: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("fnref: migrate: %w", err)
	}
	r.store = s
	return s, nil
}

// SaveSearch records res in the report database under the canonical
// spelling of its identifier, so "api.x.y" and "public.x.y" share counts.
func (r *Resolver) SaveSearch(res SearchResult) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	if d, err := pathcodec.Decode(res.Identifier); err == nil {
		res.Identifier = d.String()
	}
	if _, err := s.InsertSearch(toStoreSearch(res)); err != nil {
		return fmt.Errorf("fnref: save search: %w", err)
	}
	return nil
}
