package usage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/fnref/internal/textpos"
)

// DefaultMaxFiles caps how many files ScanMatcher reads per scope.
const DefaultMaxFiles = 1000

// ScanMatcher is the in-process Matcher used when ripgrep is unavailable.
// It mirrors ripgrep's observable behavior for the options fnref uses:
// hidden entries are skipped, exclude globs use gitignore syntax, files
// are visited in path order.
type ScanMatcher struct {
	maxFiles int
	logger   *slog.Logger
}

// NewScanMatcher returns an in-process Matcher reading at most maxFiles
// files per call (DefaultMaxFiles when maxFiles <= 0). A nil logger
// discards.
func NewScanMatcher(maxFiles int, logger *slog.Logger) *ScanMatcher {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ScanMatcher{maxFiles: maxFiles, logger: logger}
}

// Match implements Matcher.
func (m *ScanMatcher) Match(ctx context.Context, req Request) ([]LineMatch, error) {
	re, err := regexp.Compile(req.Pattern)
	if err != nil {
		return nil, fmt.Errorf("usage: pattern %q: %w", req.Pattern, err)
	}
	files, err := m.files(ctx, req)
	if err != nil {
		return nil, err
	}

	var matches []LineMatch
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("read failed", slog.String("file", path), slog.Any("error", err))
			continue
		}
		locs := re.FindAllIndex(src, -1)
		if len(locs) == 0 {
			continue
		}
		lines := textpos.New(src)
		for _, loc := range locs {
			line, col := lines.Position(loc[0])
			matches = append(matches, LineMatch{
				FilePath: path,
				Line:     line,
				Column:   col,
				Text:     lines.Text(line),
			})
		}
	}
	return matches, nil
}

// files enumerates candidate files under req.Dir in path order.
func (m *ScanMatcher) files(ctx context.Context, req Request) ([]string, error) {
	excludes := ignore.CompileIgnoreLines(req.ExcludeGlobs...)
	exts := make(map[string]struct{}, len(req.Extensions))
	for _, e := range req.Extensions {
		exts[e] = struct{}{}
	}

	root, err := filepath.Abs(req.Dir)
	if err != nil {
		return nil, fmt.Errorf("usage: scope %s: %w", req.Dir, err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("usage: scope %s: %w", req.Dir, err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || excludes.MatchesPath(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if _, ok := exts[filepath.Ext(path)]; !ok {
			return nil
		}
		files = append(files, path)
		if len(files) >= m.maxFiles {
			m.logger.Warn("file cap reached", slog.String("dir", root), slog.Int("max_files", m.maxFiles))
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
