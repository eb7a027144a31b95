// Package project locates the definitions root inside a workspace.
package project

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when no definitions root can be discovered.
var ErrNotFound = errors.New("project: definitions root not found")

const (
	// GeneratedDir is the directory holding generated client bindings.
	GeneratedDir = "_generated"

	// maxMatches bounds how many marker candidates a search collects.
	maxMatches = 5
)

// skipDirs are never descended into while searching for markers.
var skipDirs = map[string]struct{}{
	"node_modules": {},
}

// Info describes a located project. It is immutable once returned.
type Info struct {
	DefinitionsRoot    string `json:"definitions_root"`
	WorkspaceRoot      string `json:"workspace_root"`
	ConfigFilePath     string `json:"config_file_path,omitempty"`
	GeneratedIndexPath string `json:"generated_index_path,omitempty"`
}

// Locator finds the definitions root of a workspace.
type Locator struct {
	workspace  string
	override   string
	markerFile string
	logger     *slog.Logger
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithOverride sets a definitions-root override. Relative paths are joined
// to the workspace root.
func WithOverride(path string) LocatorOption {
	return func(l *Locator) {
		l.override = path
	}
}

// WithMarkerFile sets the marker config file name searched for.
func WithMarkerFile(name string) LocatorOption {
	return func(l *Locator) {
		if name != "" {
			l.markerFile = name
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) LocatorOption {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocator creates a Locator for the given workspace root.
func NewLocator(workspace string, opts ...LocatorOption) *Locator {
	l := &Locator{
		workspace:  filepath.Clean(workspace),
		markerFile: "convex.config.ts",
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Workspace returns the workspace root the Locator searches.
func (l *Locator) Workspace() string {
	return l.workspace
}

// Locate resolves the project. The first strategy that succeeds wins:
// override, marker file, generated index. Returns ErrNotFound otherwise.
func (l *Locator) Locate(ctx context.Context) (Info, error) {
	if l.override != "" {
		root := l.override
		if !filepath.IsAbs(root) {
			root = filepath.Join(l.workspace, root)
		}
		if isDir(root) {
			l.logger.Debug("definitions root from override", slog.String("root", root))
			return Info{DefinitionsRoot: root, WorkspaceRoot: l.workspace}, nil
		}
		l.logger.Warn("definitions root override does not exist", slog.String("root", root))
	}

	markers, err := l.find(ctx, func(rel string, d fs.DirEntry) bool {
		return !d.IsDir() && d.Name() == l.markerFile
	})
	if err != nil {
		return Info{}, err
	}
	if len(markers) > 0 {
		marker := markers[0]
		l.logger.Debug("definitions root from marker", slog.String("marker", marker))
		return Info{
			DefinitionsRoot: filepath.Dir(marker),
			WorkspaceRoot:   l.workspace,
			ConfigFilePath:  marker,
		}, nil
	}

	indexes, err := l.find(ctx, func(rel string, d fs.DirEntry) bool {
		return !d.IsDir() &&
			strings.HasPrefix(d.Name(), "api.") &&
			filepath.Base(filepath.Dir(rel)) == GeneratedDir
	})
	if err != nil {
		return Info{}, err
	}
	if len(indexes) > 0 {
		index := indexes[0]
		l.logger.Debug("definitions root from generated index", slog.String("index", index))
		return Info{
			DefinitionsRoot:    filepath.Dir(filepath.Dir(index)),
			WorkspaceRoot:      l.workspace,
			GeneratedIndexPath: index,
		}, nil
	}

	return Info{}, ErrNotFound
}

// find walks the workspace and returns up to maxMatches absolute paths
// accepted by match, shallowest first.
func (l *Locator) find(ctx context.Context, match func(rel string, d fs.DirEntry) bool) ([]string, error) {
	var found []string
	err := filepath.WalkDir(l.workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() && path != l.workspace {
			name := d.Name()
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
		}
		rel, err := filepath.Rel(l.workspace, path)
		if err != nil {
			return nil
		}
		if match(rel, d) {
			found = append(found, path)
			if len(found) >= maxMatches {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool {
		return depth(found[i]) < depth(found[j])
	})
	return found, nil
}

func depth(path string) int {
	return strings.Count(path, string(filepath.Separator))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// InGeneratedDir reports whether path has a _generated component.
func InGeneratedDir(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == GeneratedDir {
			return true
		}
	}
	return false
}

// Contains reports whether path lies inside root.
func Contains(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
