package main

import "github.com/jward/fnref"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CLIProject is a JSON-friendly project description.
type CLIProject struct {
	DefinitionsRoot    string `json:"definitions_root"`
	WorkspaceRoot      string `json:"workspace_root"`
	ConfigFilePath     string `json:"config_file,omitempty"`
	GeneratedIndexPath string `json:"generated_index,omitempty"`
}

// CLIIdentifier is the result of encode.
type CLIIdentifier struct {
	Identifier string `json:"identifier"`
}

// CLIDecoded is the result of decode. File is set when the module was
// resolved to a source file.
type CLIDecoded struct {
	Namespace    string `json:"namespace"`
	ModulePath   string `json:"module_path"`
	FunctionName string `json:"function_name"`
	File         string `json:"file,omitempty"`
}

// CLIDefinition is a JSON-friendly definition.
type CLIDefinition struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
	Wrapper    string `json:"wrapper"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
}

// CLIUsage is one usage of an identifier.
type CLIUsage struct {
	File          string `json:"file"`
	Line          int    `json:"line"`
	Col           int    `json:"col"`
	Text          string `json:"text"`
	AccessPattern string `json:"access_pattern,omitempty"`
}

// CLISearch is the result of a usage search.
type CLISearch struct {
	Identifier   string     `json:"identifier"`
	FunctionName string     `json:"function_name"`
	ElapsedMS    int64      `json:"elapsed_ms"`
	Usages       []CLIUsage `json:"usages"`
}

// CLIReportEntry is one definition row of a report.
type CLIReportEntry struct {
	CLIDefinition
	Searched   bool `json:"searched"`
	UsageCount int  `json:"usage_count"`
}

func definitionToCLI(d fnref.Definition) CLIDefinition {
	return CLIDefinition{
		Name:       d.Name,
		Kind:       string(d.Kind),
		Identifier: d.Identifier,
		Wrapper:    d.Wrapper,
		File:       d.FilePath,
		Line:       d.Line,
		Col:        d.Column,
	}
}

func definitionsToCLI(defs []fnref.Definition) []CLIDefinition {
	out := make([]CLIDefinition, len(defs))
	for i, d := range defs {
		out[i] = definitionToCLI(d)
	}
	return out
}

func searchToCLI(res fnref.SearchResult) CLISearch {
	out := CLISearch{
		Identifier:   res.Identifier,
		FunctionName: res.FunctionName,
		ElapsedMS:    res.Elapsed.Milliseconds(),
		Usages:       make([]CLIUsage, len(res.Usages)),
	}
	for i, u := range res.Usages {
		out.Usages[i] = CLIUsage{
			File:          u.FilePath,
			Line:          u.Line,
			Col:           u.Column,
			Text:          u.Text,
			AccessPattern: u.AccessPattern,
		}
	}
	return out
}

func reportToCLI(entries []*fnref.DefinitionUsage) []CLIReportEntry {
	out := make([]CLIReportEntry, len(entries))
	for i, du := range entries {
		out[i] = CLIReportEntry{
			CLIDefinition: CLIDefinition{
				Name:       du.Name,
				Kind:       du.Kind,
				Identifier: du.Identifier,
				Wrapper:    du.Wrapper,
				File:       du.FilePath,
				Line:       du.Line,
				Col:        du.Col,
			},
			Searched:   du.Searched,
			UsageCount: du.UsageCount,
		}
	}
	return out
}
