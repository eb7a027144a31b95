package usage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RipgrepMatcher runs ripgrep as a child process, one per Match call.
type RipgrepMatcher struct {
	tool   string
	logger *slog.Logger
}

// NewRipgrepMatcher returns a Matcher backed by the ripgrep executable
// tool ("rg" when empty). A nil logger discards.
func NewRipgrepMatcher(tool string, logger *slog.Logger) *RipgrepMatcher {
	if tool == "" {
		tool = "rg"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RipgrepMatcher{tool: tool, logger: logger}
}

// rgMessage is one line of `rg --json` output. Only match messages are
// decoded beyond their type.
type rgMessage struct {
	Type string `json:"type"`
	Data struct {
		Path       rgText `json:"path"`
		Lines      rgText `json:"lines"`
		LineNumber int    `json:"line_number"`
		Submatches []struct {
			Start int `json:"start"`
			End   int `json:"end"`
		} `json:"submatches"`
	} `json:"data"`
}

type rgText struct {
	Text string `json:"text"`
}

// args builds the ripgrep command line. Ignore files are disabled so the
// exclude globs are the only filter, as in ScanMatcher; results are sorted
// by path so discovery order is deterministic. rg matches globs relative
// to its working directory, so Match runs it inside req.Dir and searches
// ".".
func (m *RipgrepMatcher) args(req Request) []string {
	args := []string{"--json", "--no-config", "--no-ignore", "--sort", "path"}
	for _, ext := range req.Extensions {
		args = append(args, "--glob", "*"+ext)
	}
	for _, g := range req.ExcludeGlobs {
		args = append(args, "--glob", "!"+g)
	}
	args = append(args, "--regexp", req.Pattern, "--", ".")
	return args
}

// Match implements Matcher. It returns ErrToolNotFound when the executable
// cannot be spawned. Once ctx is done, remaining output is drained but
// discarded and ctx.Err() is returned.
func (m *RipgrepMatcher) Match(ctx context.Context, req Request) ([]LineMatch, error) {
	// A missing scope would fail the chdir and read as a missing tool.
	if info, err := os.Stat(req.Dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("usage: scope %s is not a directory", req.Dir)
	}
	cmd := exec.Command(m.tool, m.args(req)...)
	cmd.Dir = req.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("usage: rg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, m.tool)
		}
		return nil, fmt.Errorf("usage: start %s: %w", m.tool, err)
	}

	var matches []LineMatch
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if ctx.Err() != nil {
			continue
		}
		var msg rgMessage
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			m.logger.Debug("rg: undecodable line", slog.Any("error", err))
			continue
		}
		if msg.Type != "match" || msg.Data.Path.Text == "" {
			continue
		}
		path := msg.Data.Path.Text
		if !filepath.IsAbs(path) {
			path = filepath.Join(req.Dir, path)
		}
		text := strings.TrimRight(msg.Data.Lines.Text, "\r\n")
		for _, sm := range msg.Data.Submatches {
			matches = append(matches, LineMatch{
				FilePath: path,
				Line:     msg.Data.LineNumber - 1,
				Column:   sm.Start,
				Text:     text,
			})
		}
	}
	scanErr := sc.Err()
	// The child may still be writing if the scanner stopped early.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, fmt.Errorf("usage: read rg output: %w", scanErr)
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		switch exitErr.ExitCode() {
		case 1:
			// No matches.
			return nil, nil
		case 2:
			// Some files failed; keep what was found.
			m.logger.Warn("rg reported errors",
				slog.String("dir", req.Dir),
				slog.String("stderr", strings.TrimSpace(stderr.String())))
			if len(matches) > 0 {
				return matches, nil
			}
		}
		return nil, fmt.Errorf("usage: rg in %s: %w: %s", req.Dir, waitErr, strings.TrimSpace(stderr.String()))
	}
	if waitErr != nil {
		return nil, fmt.Errorf("usage: rg in %s: %w", req.Dir, waitErr)
	}
	return matches, nil
}
