package store

import "time"

// Definition is a scanned backend function as last recorded by a report.
type Definition struct {
	ID         int64
	Identifier string
	Name       string
	Kind       string
	FilePath   string
	Line       int
	Col        int
	Wrapper    string
	ScannedAt  time.Time
}

// Search is one recorded usage search.
type Search struct {
	ID           int64
	Identifier   string
	FunctionName string
	Elapsed      time.Duration
	SearchedAt   time.Time
	Usages       []Usage
}

type Usage struct {
	ID            int64
	SearchID      int64
	FilePath      string
	Line          int
	Col           int
	Text          string
	AccessPattern string
}

// DefinitionUsage pairs a definition with the usage count of its most
// recent search. Searched is false when no search has been recorded.
type DefinitionUsage struct {
	Definition
	Searched   bool
	UsageCount int
}
