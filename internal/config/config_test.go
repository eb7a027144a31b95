package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	c := Default()

	assert.Empty(t, c.DefinitionsRoot)
	assert.Empty(t, c.FrontendPaths)
	assert.Contains(t, c.ExcludeGlobs, "**/node_modules/**")
	assert.Equal(t, "convex.config.ts", c.MarkerFile)
	assert.Equal(t, 30*time.Second, c.TTL())
	assert.Equal(t, "rg", c.SearchTool)
	assert.Equal(t, 1, c.SearchJobs)
	require.NoError(t, c.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_Overlay(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yml := `
definitions_root: backend/convex
frontend_paths: [apps/web, apps/mobile]
custom_wrappers: [authedZodMutation]
cache_ttl: 5s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0o644))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "backend/convex", c.DefinitionsRoot)
	assert.Equal(t, []string{"apps/web", "apps/mobile"}, c.FrontendPaths)
	assert.Equal(t, []string{"authedZodMutation"}, c.CustomWrappers)
	assert.Equal(t, 5*time.Second, c.TTL())
	// Untouched keys keep their defaults.
	assert.Equal(t, "convex.config.ts", c.MarkerFile)
	assert.Contains(t, c.ExcludeGlobs, "**/_generated/**")
}

func TestLoad_BadDuration(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("cache_ttl: soon\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("marker_file: \"\"\n"), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "marker_file")
}
