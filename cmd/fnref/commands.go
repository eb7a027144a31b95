package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jward/fnref"
	"github.com/jward/fnref/internal/pathcodec"
	"github.com/spf13/cobra"
)

// --- Helpers ---

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(stdout, result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// outputNeutral reports an expected empty outcome with exit status 0.
func outputNeutral(command, message string) error {
	return outputResult(CLIResult{Command: command, Message: message})
}

// noProject reports ErrNotFound neutrally. It returns true when err was
// handled that way.
func noProject(command string, err error) (bool, error) {
	if errors.Is(err, fnref.ErrNotFound) {
		return true, outputNeutral(command, "no project found")
	}
	return false, nil
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// --- locate ---

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show the detected definitions root",
	Args:  cobra.NoArgs,
	RunE:  runLocate,
}

func runLocate(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("locate", err)
	}
	defer r.Close()

	info, err := r.Project(cmd.Context())
	if handled, err2 := noProject("locate", err); handled {
		return err2
	}
	if err != nil {
		return outputError("locate", err)
	}
	return outputResult(CLIResult{
		Command: "locate",
		Results: CLIProject{
			DefinitionsRoot:    info.DefinitionsRoot,
			WorkspaceRoot:      info.WorkspaceRoot,
			ConfigFilePath:     info.ConfigFilePath,
			GeneratedIndexPath: info.GeneratedIndexPath,
		},
	})
}

// --- encode ---

var flagInternal bool

var encodeCmd = &cobra.Command{
	Use:   "encode <file> <function>",
	Short: "Derive the identifier of a function in a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runEncode,
}

func init() {
	encodeCmd.Flags().BoolVar(&flagInternal, "internal", false, "encode in the internal namespace")
}

func runEncode(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("encode", err)
	}
	defer r.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("encode", err)
	}
	ns := pathcodec.Public
	if flagInternal {
		ns = pathcodec.Internal
	}
	id, err := r.EncodeIn(cmd.Context(), ns, file, args[1])
	if handled, err2 := noProject("encode", err); handled {
		return err2
	}
	if err != nil {
		return outputError("encode", err)
	}
	return outputResult(CLIResult{Command: "encode", Results: CLIIdentifier{Identifier: id}})
}

// --- decode ---

var flagResolve bool

var decodeCmd = &cobra.Command{
	Use:   "decode <identifier>",
	Short: "Split an identifier into namespace, module and function",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&flagResolve, "resolve", false, "also resolve the module to a source file")
}

func runDecode(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("decode", err)
	}
	defer r.Close()

	d, err := r.Decode(args[0])
	if err != nil {
		return outputError("decode", err)
	}
	out := CLIDecoded{
		Namespace:    string(d.Namespace),
		ModulePath:   filepath.ToSlash(d.ModulePath),
		FunctionName: d.FunctionName,
	}
	if flagResolve {
		info, err := r.Project(cmd.Context())
		if handled, err2 := noProject("decode", err); handled {
			return err2
		}
		if err != nil {
			return outputError("decode", err)
		}
		file, err := pathcodec.Resolve(d, info.DefinitionsRoot)
		if errors.Is(err, fnref.ErrNoSuchModule) {
			return outputResult(CLIResult{Command: "decode", Results: out, Message: "no source file for module"})
		}
		if err != nil {
			return outputError("decode", err)
		}
		out.File = file
	}
	return outputResult(CLIResult{Command: "decode", Results: out})
}

// --- scan ---

var scanCmd = &cobra.Command{
	Use:   "scan [file...]",
	Short: "List definitions in files, or under the definitions root",
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("scan", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	var defs []fnref.Definition
	if len(args) == 0 {
		defs, err = r.Definitions(ctx)
	} else {
		for _, arg := range args {
			var file string
			if file, err = resolveFilePath(arg); err != nil {
				break
			}
			var found []fnref.Definition
			if found, err = r.ScanFile(ctx, file); err != nil {
				break
			}
			defs = append(defs, found...)
		}
	}
	if handled, err2 := noProject("scan", err); handled {
		return err2
	}
	if err != nil {
		return outputError("scan", err)
	}
	return outputResult(CLIResult{Command: "scan", Results: definitionsToCLI(defs)})
}

// --- at ---

var (
	flagStdin    bool
	flagAtUsages bool
	stdinReader  io.Reader = os.Stdin
)

var atCmd = &cobra.Command{
	Use:     "at <file> <line> <col>",
	Aliases: []string{"find-at"},
	Short:   "Find the definition under a cursor position",
	Args:    cobra.ExactArgs(3),
	RunE:    runAt,
}

func init() {
	atCmd.Flags().BoolVar(&flagStdin, "stdin", false, "read the file's current (unsaved) text from stdin")
	atCmd.Flags().BoolVar(&flagAtUsages, "usages", false, "also search usages of the definition found")
}

func runAt(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("at", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("at", err)
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("at", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("at", err)
	}
	doc := fnref.Document{Path: file}
	if flagStdin {
		if doc.Text, err = io.ReadAll(stdinReader); err != nil {
			return outputError("at", fmt.Errorf("reading stdin: %w", err))
		}
	}
	pos := fnref.Position{Line: line, Column: col}

	if flagAtUsages {
		res, ok, err := r.UsagesAt(ctx, doc, pos)
		if handled, err2 := noProject("at", err); handled {
			return err2
		}
		if err != nil {
			return outputError("at", err)
		}
		if !ok {
			return outputNeutral("at", "no definition at cursor")
		}
		return outputResult(CLIResult{Command: "at", Results: searchToCLI(res)})
	}

	def, ok, err := r.FindAt(ctx, doc, pos)
	if handled, err2 := noProject("at", err); handled {
		return err2
	}
	if err != nil {
		return outputError("at", err)
	}
	if !ok {
		return outputNeutral("at", "no definition at cursor")
	}
	return outputResult(CLIResult{Command: "at", Results: definitionToCLI(def)})
}

// --- usages ---

var flagSave bool

var usagesCmd = &cobra.Command{
	Use:   "usages <identifier>",
	Short: "Find client code referencing an identifier",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsages,
}

func init() {
	usagesCmd.Flags().BoolVar(&flagSave, "save", false, "record the result in the report database")
}

func runUsages(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("usages", err)
	}
	defer r.Close()

	res, err := r.Search(cmd.Context(), args[0])
	if err != nil {
		return outputError("usages", err)
	}
	if flagSave {
		if err := r.SaveSearch(res); err != nil {
			return outputError("usages", err)
		}
	}
	return outputResult(CLIResult{Command: "usages", Results: searchToCLI(res)})
}

// --- goto ---

var gotoCmd = &cobra.Command{
	Use:   "goto <identifier>",
	Short: "Locate the definition an identifier names",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoto,
}

func runGoto(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("goto", err)
	}
	defer r.Close()

	def, err := r.Goto(cmd.Context(), args[0])
	if handled, err2 := noProject("goto", err); handled {
		return err2
	}
	if errors.Is(err, fnref.ErrNoSuchModule) || errors.Is(err, fnref.ErrNotDefined) {
		return outputNeutral("goto", "no definition for "+args[0])
	}
	if err != nil {
		return outputError("goto", err)
	}
	return outputResult(CLIResult{Command: "goto", Results: definitionToCLI(def)})
}

// --- report ---

var (
	flagUnused bool
	flagCached bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Count usages of every definition",
	Long:  "Searches usages for every definition under the root and records the results in the report database.",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&flagUnused, "unused", false, "list only definitions with no usages")
	reportCmd.Flags().BoolVar(&flagCached, "cached", false, "print the last recorded report without searching")
}

func runReport(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("report", err)
	}
	defer r.Close()

	var rep *fnref.Report
	if flagCached {
		rep, err = r.StoredReport()
	} else {
		rep, err = r.Report(cmd.Context())
	}
	if handled, err2 := noProject("report", err); handled {
		return err2
	}
	if err != nil {
		return outputError("report", err)
	}

	entries := rep.Definitions
	if flagUnused {
		entries = rep.Unused()
	}
	return outputResult(CLIResult{Command: "report", Results: reportToCLI(entries)})
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and re-locate the project on changes",
	Long:  "Runs until interrupted, logging each project cache invalidation and the re-located definitions root.",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return outputError("watch", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if info, err := r.Project(ctx); err == nil {
		fmt.Fprintf(stderr, "Watching %s (definitions root: %s)\n", r.Workspace(), info.DefinitionsRoot)
	} else {
		fmt.Fprintf(stderr, "Watching %s (no project yet)\n", r.Workspace())
	}

	err = r.Watch(ctx, func(path string) {
		root := "none"
		if info, err := r.Project(ctx); err == nil {
			root = info.DefinitionsRoot
		}
		fmt.Fprintf(stderr, "changed %s; definitions root: %s\n", path, root)
	})
	if err != nil {
		return outputError("watch", err)
	}
	return nil
}
