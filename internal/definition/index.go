package definition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jward/fnref/internal/pathcodec"
	"github.com/jward/fnref/internal/project"
	"github.com/jward/fnref/internal/textpos"
)

// ErrNotDefined is returned by Lookup when the module exists but does not
// export the function.
var ErrNotDefined = errors.New("definition: function not defined in module")

// Document is a source file, optionally with in-memory text that takes
// precedence over the file on disk (an unsaved editor buffer).
type Document struct {
	Path string
	Text []byte
}

// Position is a 0-based cursor position. Column is a byte offset.
type Position struct {
	Line   int
	Column int
}

// Index scans files under a definitions root.
type Index struct {
	root     string
	scanner  Scanner
	wrappers map[string]struct{}
	rules    KindRules
	logger   *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithScanner replaces the default PatternScanner.
func WithScanner(s Scanner) Option {
	return func(ix *Index) {
		if s != nil {
			ix.scanner = s
		}
	}
}

// WithCustomWrappers adds wrapper names to DefaultWrappers.
func WithCustomWrappers(names ...string) Option {
	return func(ix *Index) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				ix.wrappers[n] = struct{}{}
			}
		}
	}
}

// WithKindRules consults rules before substring classification.
func WithKindRules(rules KindRules) Option {
	return func(ix *Index) {
		ix.rules = rules
	}
}

// WithLogger sets the logger for read failures and dropped records.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// NewIndex creates an Index over the definitions root.
func NewIndex(root string, opts ...Option) *Index {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	ix := &Index{
		root:     filepath.Clean(root),
		scanner:  NewPatternScanner(),
		wrappers: make(map[string]struct{}, len(DefaultWrappers)),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, w := range DefaultWrappers {
		ix.wrappers[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Root returns the definitions root.
func (ix *Index) Root() string {
	return ix.root
}

// IsWrapper reports whether name is in the configured wrapper set.
func (ix *Index) IsWrapper(name string) bool {
	_, ok := ix.wrappers[name]
	return ok
}

// Kind classifies a wrapper, consulting the kind rules first.
func (ix *Index) Kind(ctx context.Context, wrapper string) Kind {
	if ix.rules != nil {
		kind, ok, err := ix.rules.Classify(ctx, wrapper)
		if err != nil {
			ix.logger.Warn("kind rules failed", slog.String("wrapper", wrapper), slog.Any("error", err))
		} else if ok {
			return ParseKind(kind)
		}
	}
	return Classify(wrapper)
}

// eligible reports whether path may contain definitions: it must lie under
// the root and outside any _generated directory.
func (ix *Index) eligible(path string) bool {
	if !project.Contains(ix.root, path) {
		return false
	}
	rel, err := filepath.Rel(ix.root, path)
	if err != nil {
		return false
	}
	return !project.InGeneratedDir(rel)
}

// ScanFile reads path and returns its definitions. Unreadable files yield
// nil and are logged.
func (ix *Index) ScanFile(ctx context.Context, path string) []Definition {
	return ix.scanDocument(ctx, Document{Path: path})
}

// ScanSource returns the definitions in src as if it were the content of
// path.
func (ix *Index) ScanSource(ctx context.Context, path string, src []byte) []Definition {
	return ix.scanDocument(ctx, Document{Path: path, Text: src})
}

func (ix *Index) scanDocument(ctx context.Context, doc Document) []Definition {
	path, err := filepath.Abs(doc.Path)
	if err != nil {
		path = doc.Path
	}
	if !ix.eligible(path) {
		return nil
	}
	src := doc.Text
	if src == nil {
		src, err = os.ReadFile(path)
		if err != nil {
			ix.logger.Warn("read failed", slog.String("file", path), slog.Any("error", err))
			return nil
		}
	}

	var defs []Definition
	for _, m := range ix.scanner.Scan(ctx, path, src) {
		if !ix.IsWrapper(m.Wrapper) {
			continue
		}
		kind := ix.Kind(ctx, m.Wrapper)
		ns := pathcodec.Public
		if kind.IsInternal() {
			ns = pathcodec.Internal
		}
		id, err := pathcodec.EncodeIn(ns, path, m.Name, ix.root)
		if err != nil {
			ix.logger.Debug("definition dropped", slog.String("name", m.Name), slog.Any("error", err))
			continue
		}
		defs = append(defs, Definition{
			Name:       m.Name,
			Kind:       kind,
			FilePath:   path,
			Line:       m.Line,
			Column:     m.Column,
			Identifier: id,
			Wrapper:    m.Wrapper,
		})
	}
	return defs
}

// FindAt returns the definition owning pos in doc. It tries, in order: the
// export line itself, the identifier word under the cursor, and the body
// range from one definition to the line before the next.
func (ix *Index) FindAt(ctx context.Context, doc Document, pos Position) (Definition, bool) {
	src := doc.Text
	if src == nil {
		var err error
		src, err = os.ReadFile(doc.Path)
		if err != nil {
			ix.logger.Warn("read failed", slog.String("file", doc.Path), slog.Any("error", err))
			return Definition{}, false
		}
	}
	defs := ix.scanDocument(ctx, Document{Path: doc.Path, Text: src})
	if len(defs) == 0 || ctx.Err() != nil {
		return Definition{}, false
	}

	for _, d := range defs {
		if d.Line == pos.Line {
			return d, true
		}
	}

	if word := wordAt(textpos.New(src).Text(pos.Line), pos.Column); word != "" {
		for _, d := range defs {
			if d.Name == word {
				return d, true
			}
		}
	}

	for i, d := range defs {
		end := -1 // open: through end of file
		if i+1 < len(defs) {
			end = defs[i+1].Line - 1
		}
		if pos.Line >= d.Line && (end < 0 || pos.Line <= end) {
			return d, true
		}
	}
	return Definition{}, false
}

// wordAt returns the identifier word containing col, or touching it from
// the left, in line.
func wordAt(line string, col int) string {
	if col < 0 || col > len(line) {
		return ""
	}
	start := col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordByte(line[end]) {
		end++
	}
	return line[start:end]
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// skipDirs are not descended into by ScanRoot.
var skipDirs = map[string]struct{}{
	"node_modules":       {},
	project.GeneratedDir: {},
}

// ScanRoot returns every definition under the root in lexical file order.
func (ix *Index) ScanRoot(ctx context.Context) ([]Definition, error) {
	var defs []Definition
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path == ix.root {
				return nil
			}
			if _, skip := skipDirs[d.Name()]; skip || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !pathcodec.HasSourceExtension(path) || strings.HasSuffix(path, ".d.ts") {
			return nil
		}
		defs = append(defs, ix.ScanFile(ctx, path)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("definition: scan %s: %w", ix.root, err)
	}
	return defs, nil
}

// Lookup resolves an identifier to its definition.
func (ix *Index) Lookup(ctx context.Context, identifier string) (Definition, error) {
	d, err := pathcodec.Decode(identifier)
	if err != nil {
		return Definition{}, err
	}
	file, err := pathcodec.Resolve(d, ix.root)
	if err != nil {
		return Definition{}, err
	}
	for _, def := range ix.ScanFile(ctx, file) {
		if def.Name == d.FunctionName {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("%s in %s: %w", d.FunctionName, file, ErrNotDefined)
}
