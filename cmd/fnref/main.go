package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jward/fnref"
	"github.com/jward/fnref/internal/config"
	"github.com/jward/fnref/internal/definition"
	"github.com/spf13/cobra"
)

var (
	flagWorkspace       string
	flagConfig          string
	flagFormat          string
	flagVerbose         bool
	flagDB              string
	flagDefinitionsRoot string
	flagFrontend        string
	flagSearchTool      string
	flagJobs            int
	flagTreeSitter      bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// stdout and stderr are swapped by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fnref",
	Short: "Resolve between backend functions and their client references",
	Long: "fnref maps exported backend functions to the dot-path identifiers client code uses " +
		"(api.domains.contacts.createContact) and back, and finds where each is used. " +
		"All line and column numbers are 0-based.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagWorkspace, "workspace", "w", ".", "workspace root")
	pf.StringVar(&flagConfig, "config", "", "config file (default: .fnref.yaml in the workspace)")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")
	pf.StringVar(&flagDB, "db", "", "report database path (default: .fnref.db in the workspace)")
	pf.StringVar(&flagDefinitionsRoot, "definitions-root", "", "override definitions root detection")
	pf.StringVar(&flagFrontend, "frontend", "", "comma-separated usage search scopes")
	pf.StringVar(&flagSearchTool, "search-tool", "", "ripgrep executable")
	pf.IntVar(&flagJobs, "jobs", 0, "scopes searched concurrently")
	pf.BoolVar(&flagTreeSitter, "tree-sitter", false, "detect definitions with tree-sitter instead of the line scanner")

	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(atCmd)
	rootCmd.AddCommand(usagesCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)
}

// newLogger writes text logs to stderr; --verbose lowers the level to
// Debug.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(workspace string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load(workspace)
	}
	if err != nil {
		return cfg, err
	}

	if flagDefinitionsRoot != "" {
		cfg.DefinitionsRoot = flagDefinitionsRoot
	}
	if flagFrontend != "" {
		cfg.FrontendPaths = splitList(flagFrontend)
	}
	if flagSearchTool != "" {
		cfg.SearchTool = flagSearchTool
	}
	if flagJobs > 0 {
		cfg.SearchJobs = flagJobs
	}
	return cfg, nil
}

// newResolver builds a Resolver from the persistent flags.
func newResolver() (*fnref.Resolver, error) {
	workspace, err := filepath.Abs(flagWorkspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %q: %w", flagWorkspace, err)
	}
	if info, err := os.Stat(workspace); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("workspace not found: %s", workspace)
	}
	cfg, err := loadConfig(workspace)
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	opts := []fnref.Option{
		fnref.WithConfig(cfg),
		fnref.WithLogger(logger),
	}
	if flagDB != "" {
		opts = append(opts, fnref.WithStorePath(flagDB))
	}
	if flagTreeSitter {
		opts = append(opts, fnref.WithScanner(definition.NewTreeScanner(logger)))
	}
	return fnref.New(workspace, opts...)
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
