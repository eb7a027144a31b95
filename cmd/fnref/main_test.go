package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive rootCmd in-process and share package-level flag state,
// so none of them run in parallel.

const missingTool = "fnref-test-no-such-search-tool"

const contactsSource = `import { mutation, query } from "../_generated/server";
import { v } from "convex/values";

export const createContact = mutation({
  args: { name: v.string() },
  handler: async (ctx, args) => {
    return await ctx.db.insert("contacts", args);
  },
});

export const listContacts = query({
  handler: async (ctx) => ctx.db.query("contacts").collect(),
});
`

const contactFormSource = `import { useMutation } from "convex/react";
import { api } from "../convex/_generated/api";

export function ContactForm() {
  const createContact = useMutation(api.domains.contacts.createContact);
  return null;
}
`

type envelope struct {
	Command string          `json:"command"`
	Results json.RawMessage `json:"results"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	writeFile(t, ws, "convex/convex.config.ts", "export default defineApp();\n")
	writeFile(t, ws, "convex/domains/contacts.ts", contactsSource)
	writeFile(t, ws, "convex/_generated/api.d.ts", "export declare const api: any;\n")
	writeFile(t, ws, "web/ContactForm.tsx", contactFormSource)
	return ws
}

// resetFlags restores every flag to its default between runs.
func resetFlags() {
	errorHandled = false
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
}

// runCLI executes the root command with args and returns what it wrote to
// stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	stdout, stderr = &out, &errOut
	t.Cleanup(func() {
		stdout, stderr = os.Stdout, os.Stderr
		stdinReader = os.Stdin
	})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// runJSON runs a command against ws and decodes the JSON envelope.
func runJSON(t *testing.T, ws string, args ...string) (envelope, error) {
	t.Helper()
	full := append([]string{"-w", ws, "--search-tool", missingTool}, args...)
	out, _, err := runCLI(t, full...)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), "stdout: %s", out)
	return env, err
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"web", "mobile"}, splitList(" web, ,mobile,"))
	assert.Nil(t, splitList(""))
}

func TestParseIntArg(t *testing.T) {
	n, err := parseIntArg("12", "line")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parseIntArg("-1", "line")
	assert.Error(t, err)
	_, err = parseIntArg("x", "col")
	assert.ErrorContains(t, err, "invalid col")
}

func TestLocate(t *testing.T) {
	ws := newWorkspace(t)
	env, err := runJSON(t, ws, "locate")
	require.NoError(t, err)
	assert.Equal(t, "locate", env.Command)

	var p CLIProject
	require.NoError(t, json.Unmarshal(env.Results, &p))
	assert.Equal(t, "convex", filepath.Base(p.DefinitionsRoot))
	assert.Equal(t, "convex.config.ts", filepath.Base(p.ConfigFilePath))
}

func TestLocate_NoProjectIsNeutral(t *testing.T) {
	ws := t.TempDir()
	env, err := runJSON(t, ws, "locate")
	require.NoError(t, err)
	assert.Equal(t, "no project found", env.Message)
	assert.Empty(t, env.Error)
}

func TestEncodeDecode(t *testing.T) {
	ws := newWorkspace(t)
	file := filepath.Join(ws, "convex", "domains", "contacts.ts")

	env, err := runJSON(t, ws, "encode", file, "createContact")
	require.NoError(t, err)
	var id CLIIdentifier
	require.NoError(t, json.Unmarshal(env.Results, &id))
	assert.Equal(t, "public.domains.contacts.createContact", id.Identifier)

	env, err = runJSON(t, ws, "encode", "--internal", file, "purge")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(env.Results, &id))
	assert.Equal(t, "internal.domains.contacts.purge", id.Identifier)

	env, err = runJSON(t, ws, "decode", "--resolve", "api.domains.contacts.createContact")
	require.NoError(t, err)
	var d CLIDecoded
	require.NoError(t, json.Unmarshal(env.Results, &d))
	assert.Equal(t, "public", d.Namespace)
	assert.Equal(t, "domains/contacts", d.ModulePath)
	assert.Equal(t, "createContact", d.FunctionName)
	assert.Equal(t, file, d.File)
}

func TestDecode_InvalidIdentifier(t *testing.T) {
	ws := newWorkspace(t)
	env, err := runJSON(t, ws, "decode", "createContact")
	require.Error(t, err)
	assert.True(t, errorHandled)
	assert.Contains(t, env.Error, "invalid identifier")
}

func TestScan(t *testing.T) {
	ws := newWorkspace(t)
	env, err := runJSON(t, ws, "scan")
	require.NoError(t, err)

	var defs []CLIDefinition
	require.NoError(t, json.Unmarshal(env.Results, &defs))
	require.Len(t, defs, 2)
	assert.Equal(t, "createContact", defs[0].Name)
	assert.Equal(t, "mutation", defs[0].Kind)
	assert.Equal(t, 3, defs[0].Line)
	assert.Equal(t, "listContacts", defs[1].Name)
}

func TestAt(t *testing.T) {
	ws := newWorkspace(t)
	file := filepath.Join(ws, "convex", "domains", "contacts.ts")

	env, err := runJSON(t, ws, "at", file, "3", "15")
	require.NoError(t, err)
	var def CLIDefinition
	require.NoError(t, json.Unmarshal(env.Results, &def))
	assert.Equal(t, "public.domains.contacts.createContact", def.Identifier)

	env, err = runJSON(t, ws, "at", file, "1", "0")
	require.NoError(t, err)
	assert.Equal(t, "no definition at cursor", env.Message)
}

func TestAt_Usages(t *testing.T) {
	ws := newWorkspace(t)
	file := filepath.Join(ws, "convex", "domains", "contacts.ts")

	env, err := runJSON(t, ws, "at", "--usages", file, "3", "15")
	require.NoError(t, err)
	var s CLISearch
	require.NoError(t, json.Unmarshal(env.Results, &s))
	require.Len(t, s.Usages, 1)
	assert.Equal(t, 4, s.Usages[0].Line)
	assert.Equal(t, 36, s.Usages[0].Col)
	assert.Equal(t, "useMutation", s.Usages[0].AccessPattern)
}

func TestAt_Stdin(t *testing.T) {
	ws := newWorkspace(t)
	file := filepath.Join(ws, "convex", "domains", "contacts.ts")
	// The buffer has an unsaved rename that the file on disk lacks.
	edited := strings.Replace(contactsSource, "createContact", "addContact", 1)

	resetFlags()
	stdinReader = strings.NewReader(edited)
	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() {
		stdout = os.Stdout
		stdinReader = os.Stdin
	})
	rootCmd.SetArgs([]string{"-w", ws, "--search-tool", missingTool, "at", "--stdin", file, "3", "15"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var env envelope
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	var def CLIDefinition
	require.NoError(t, json.Unmarshal(env.Results, &def))
	assert.Equal(t, "addContact", def.Name)
}

func TestUsages_Save(t *testing.T) {
	ws := newWorkspace(t)
	env, err := runJSON(t, ws, "usages", "--save", "api.domains.contacts.createContact")
	require.NoError(t, err)

	var s CLISearch
	require.NoError(t, json.Unmarshal(env.Results, &s))
	assert.Equal(t, "createContact", s.FunctionName)
	require.Len(t, s.Usages, 1)
	assert.Equal(t, "web/ContactForm.tsx", filepath.ToSlash(relTo(t, ws, s.Usages[0].File)))
	assert.FileExists(t, filepath.Join(ws, ".fnref.db"))
}

func TestGoto(t *testing.T) {
	ws := newWorkspace(t)
	env, err := runJSON(t, ws, "goto", "api.domains.contacts.listContacts")
	require.NoError(t, err)
	var def CLIDefinition
	require.NoError(t, json.Unmarshal(env.Results, &def))
	assert.Equal(t, "listContacts", def.Name)
	assert.Equal(t, 10, def.Line)

	env, err = runJSON(t, ws, "goto", "api.domains.contacts.missing")
	require.NoError(t, err)
	assert.Equal(t, "no definition for api.domains.contacts.missing", env.Message)
}

func TestReport(t *testing.T) {
	ws := newWorkspace(t)
	db := filepath.Join(t.TempDir(), "report.db")

	env, err := runJSON(t, ws, "--db", db, "report", "--unused")
	require.NoError(t, err)
	var entries []CLIReportEntry
	require.NoError(t, json.Unmarshal(env.Results, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "public.domains.contacts.listContacts", entries[0].Identifier)
	assert.True(t, entries[0].Searched)

	env, err = runJSON(t, ws, "--db", db, "report", "--cached")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(env.Results, &entries))
	require.Len(t, entries, 2)
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Name] = e.UsageCount
	}
	assert.Equal(t, map[string]int{"createContact": 1, "listContacts": 0}, counts)
}

func TestTextFormat(t *testing.T) {
	ws := newWorkspace(t)

	out, _, err := runCLI(t, "-w", ws, "--format", "text", "locate")
	require.NoError(t, err)
	assert.Contains(t, out, "Definitions root:")

	out, _, err = runCLI(t, "-w", ws, "--format", "text", "--search-tool", missingTool,
		"usages", "api.domains.contacts.createContact")
	require.NoError(t, err)
	assert.Contains(t, out, "1 usage of api.domains.contacts.createContact")
	assert.Contains(t, out, "[useMutation]")

	_, errOut, err := runCLI(t, "-w", ws, "--format", "text", "decode", "nope")
	require.Error(t, err)
	assert.Contains(t, errOut, "Error:")
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := runCLI(t, "--format", "xml", "locate")
	assert.ErrorContains(t, err, "invalid format")
}

func TestMissingWorkspace(t *testing.T) {
	env, err := runJSON(t, filepath.Join(t.TempDir(), "absent"), "locate")
	require.Error(t, err)
	assert.Contains(t, env.Error, "workspace not found")
}

func relTo(t *testing.T, base, path string) string {
	t.Helper()
	rel, err := filepath.Rel(base, path)
	require.NoError(t, err)
	return rel
}
