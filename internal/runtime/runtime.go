// Package runtime embeds a Risor VM for user-defined kind rules.
//
// A kind script defines a function kind(wrapper) that returns one of the
// kind names ("query", "internal-mutation", ...) or nil when it has no
// opinion, in which case the built-in substring classification applies:
//
//	func kind(w) {
//		if strings.has_prefix(w, "authed") { return "mutation" }
//	}
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
)

// classifyCall is appended to a kind script to produce its result.
const classifyCall = "\nkind(wrapper)\n"

// Runtime loads and evaluates Risor scripts.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts, and resolves their import statements, from
// fsys instead of disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRuntime creates a Runtime resolving relative script paths against
// scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSource evaluates source with the standard globals plus extraGlobals
// and returns the value of its last expression.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (object.Object, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (object.Object, error) {
	globals := r.buildGlobals(extraGlobals)

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter returns nil when neither an fs.FS nor a scripts directory
// is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file. With an fs.FS configured the path is
// taken relative to its root.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{logger: r.logger}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

// KindRules classifies wrappers with a loaded kind script. Results are
// memoized per wrapper name; errors are not.
type KindRules struct {
	rt     *Runtime
	source string
	label  string

	mu    sync.Mutex
	cache map[string]kindResult
}

type kindResult struct {
	kind string
	ok   bool
}

// KindRules loads the kind script at path.
func (r *Runtime) KindRules(path string) (*KindRules, error) {
	src, err := r.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return r.KindRulesSource(src, path), nil
}

// KindRulesSource wraps inline script source; label names it in errors.
func (r *Runtime) KindRulesSource(source, label string) *KindRules {
	return &KindRules{
		rt:     r,
		source: source,
		label:  label,
		cache:  make(map[string]kindResult),
	}
}

// Classify runs kind(wrapper). ok is false when the script returns nil.
func (k *KindRules) Classify(ctx context.Context, wrapper string) (string, bool, error) {
	k.mu.Lock()
	res, hit := k.cache[wrapper]
	k.mu.Unlock()
	if hit {
		return res.kind, res.ok, nil
	}

	out, err := k.rt.eval(ctx, k.source+classifyCall, k.label, map[string]any{
		"wrapper": wrapper,
	})
	if err != nil {
		return "", false, err
	}
	switch v := out.(type) {
	case *object.String:
		res = kindResult{kind: v.Value(), ok: true}
	case *object.NilType, nil:
		res = kindResult{}
	default:
		return "", false, fmt.Errorf("runtime: script %s: kind(%q) returned %s, want string or nil",
			k.label, wrapper, out.Type())
	}

	k.mu.Lock()
	k.cache[wrapper] = res
	k.mu.Unlock()
	return res.kind, res.ok, nil
}

// logObject backs the log global (log.Info, log.Warn, log.Error).
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, slog.String("source", "kind_script"))
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, slog.String("source", "kind_script"))
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, slog.String("source", "kind_script"))
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
