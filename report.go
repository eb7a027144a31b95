package fnref

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/fnref/internal/store"
)

// keepSearches is how many searches per identifier the report database
// retains.
const keepSearches = 5

// Report is the outcome of searching usages for every definition.
type Report struct {
	DefinitionsRoot string             `json:"definitions_root"`
	Definitions     []*DefinitionUsage `json:"definitions"`
	Elapsed         time.Duration      `json:"elapsed"`
}

// Unused returns the definitions with no usages.
func (rep *Report) Unused() []*DefinitionUsage {
	var out []*DefinitionUsage
	for _, du := range rep.Definitions {
		if du.Searched && du.UsageCount == 0 {
			out = append(out, du)
		}
	}
	return out
}

// Report scans every definition under the root, searches usages for each,
// and records definitions and searches in the report database. Searches
// run through a bounded worker group; the first ctx error aborts.
func (r *Resolver) Report(ctx context.Context) (*Report, error) {
	start := time.Now()
	info, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	ix, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	scanned, err := ix.ScanRoot(ctx)
	if err != nil {
		return nil, err
	}

	// foo.ts and foo.tsx encode to the same identifier; the first wins.
	seen := make(map[string]bool, len(scanned))
	defs := make([]Definition, 0, len(scanned))
	for _, d := range scanned {
		if seen[d.Identifier] {
			r.logger.Warn("duplicate identifier", slog.String("identifier", d.Identifier), slog.String("file", d.FilePath))
			continue
		}
		seen[d.Identifier] = true
		defs = append(defs, d)
	}

	results := make([]SearchResult, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.reportJobs)
	for i, d := range defs {
		g.Go(func() error {
			res, err := r.searcher.Search(gctx, d.Identifier, d.Name)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s, err := r.openStore()
	if err != nil {
		return nil, err
	}
	stored := make([]*store.Definition, len(defs))
	for i, d := range defs {
		stored[i] = toStoreDefinition(d)
	}
	if err := s.ReplaceDefinitions(stored); err != nil {
		return nil, fmt.Errorf("fnref: record definitions: %w", err)
	}
	for _, res := range results {
		if _, err := s.InsertSearch(toStoreSearch(res)); err != nil {
			return nil, fmt.Errorf("fnref: record search: %w", err)
		}
	}
	if _, err := s.PruneSearches(keepSearches); err != nil {
		r.logger.Warn("prune searches", slog.Any("error", err))
	}

	counts, err := s.UsageCounts()
	if err != nil {
		return nil, fmt.Errorf("fnref: usage counts: %w", err)
	}
	return &Report{
		DefinitionsRoot: info.DefinitionsRoot,
		Definitions:     counts,
		Elapsed:         time.Since(start),
	}, nil
}

// StoredReport returns the counts recorded by the last Report without
// searching again.
func (r *Resolver) StoredReport() (*Report, error) {
	s, err := r.openStore()
	if err != nil {
		return nil, err
	}
	counts, err := s.UsageCounts()
	if err != nil {
		return nil, fmt.Errorf("fnref: usage counts: %w", err)
	}
	return &Report{Definitions: counts}, nil
}

func toStoreDefinition(d Definition) *store.Definition {
	return &store.Definition{
		Identifier: d.Identifier,
		Name:       d.Name,
		Kind:       string(d.Kind),
		FilePath:   d.FilePath,
		Line:       d.Line,
		Col:        d.Column,
		Wrapper:    d.Wrapper,
	}
}

func toStoreSearch(res SearchResult) *store.Search {
	s := &store.Search{
		Identifier:   res.Identifier,
		FunctionName: res.FunctionName,
		Elapsed:      res.Elapsed,
		Usages:       make([]store.Usage, len(res.Usages)),
	}
	for i, u := range res.Usages {
		s.Usages[i] = store.Usage{
			FilePath:      u.FilePath,
			Line:          u.Line,
			Col:           u.Column,
			Text:          u.Text,
			AccessPattern: u.AccessPattern,
		}
	}
	return s
}
