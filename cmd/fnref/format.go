package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatProjectText formats a CLIProject as key/value lines.
func formatProjectText(w io.Writer, p CLIProject) {
	fmt.Fprintf(w, "Definitions root: %s\n", p.DefinitionsRoot)
	fmt.Fprintf(w, "Workspace root:   %s\n", p.WorkspaceRoot)
	if p.ConfigFilePath != "" {
		fmt.Fprintf(w, "Config file:      %s\n", p.ConfigFilePath)
	}
	if p.GeneratedIndexPath != "" {
		fmt.Fprintf(w, "Generated index:  %s\n", p.GeneratedIndexPath)
	}
}

// formatDecodedText formats a CLIDecoded as key/value lines.
func formatDecodedText(w io.Writer, d CLIDecoded) {
	fmt.Fprintf(w, "Namespace: %s\n", d.Namespace)
	fmt.Fprintf(w, "Module:    %s\n", d.ModulePath)
	fmt.Fprintf(w, "Function:  %s\n", d.FunctionName)
	if d.File != "" {
		fmt.Fprintf(w, "File:      %s\n", d.File)
	}
}

// formatDefinitionsText formats CLIDefinition results as aligned columns.
func formatDefinitionsText(w io.Writer, defs []CLIDefinition) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tIDENTIFIER\tFILE\tLINE\tCOL")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			d.Name, d.Kind, d.Identifier, d.File, d.Line, d.Col)
	}
	tw.Flush()
}

// formatSearchText formats usages as "file:line:col: text" lines followed
// by a count.
func formatSearchText(w io.Writer, s CLISearch) {
	for _, u := range s.Usages {
		line := fmt.Sprintf("%s:%d:%d: %s", u.File, u.Line, u.Col, strings.TrimSpace(u.Text))
		if u.AccessPattern != "" {
			line += " [" + u.AccessPattern + "]"
		}
		fmt.Fprintln(w, line)
	}
	noun := "usages"
	if len(s.Usages) == 1 {
		noun = "usage"
	}
	fmt.Fprintf(w, "\n%d %s of %s (%dms)\n", len(s.Usages), noun, s.Identifier, s.ElapsedMS)
}

// formatReportText formats CLIReportEntry results as aligned columns.
func formatReportText(w io.Writer, entries []CLIReportEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tKIND\tUSAGES\tFILE\tLINE")
	for _, e := range entries {
		count := fmt.Sprintf("%d", e.UsageCount)
		if !e.Searched {
			count = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.Identifier, e.Kind, count, e.File, e.Line)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIProject:
		formatProjectText(w, v)
	case CLIIdentifier:
		fmt.Fprintln(w, v.Identifier)
	case CLIDecoded:
		formatDecodedText(w, v)
	case []CLIDefinition:
		formatDefinitionsText(w, v)
	case CLIDefinition:
		formatDefinitionsText(w, []CLIDefinition{v})
	case CLISearch:
		formatSearchText(w, v)
	case []CLIReportEntry:
		formatReportText(w, v)
	case nil:
		// Neutral outcomes carry only a message.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	if result.Message != "" {
		fmt.Fprintln(stderr, result.Message)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
