package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func testDefinitions() []*Definition {
	return []*Definition{
		{Identifier: "public.domains.contacts.createContact", Name: "createContact", Kind: "mutation",
			FilePath: "/ws/convex/domains/contacts.ts", Line: 3, Col: 13, Wrapper: "mutation"},
		{Identifier: "public.domains.contacts.list", Name: "list", Kind: "query",
			FilePath: "/ws/convex/domains/contacts.ts", Line: 12, Col: 13, Wrapper: "query"},
		{Identifier: "internal.jobs.sweep", Name: "sweep", Kind: "internal-action",
			FilePath: "/ws/convex/jobs.ts", Line: 0, Col: 13, Wrapper: "internalAction"},
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())

	for _, table := range []string{"definitions", "searches", "usages"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestReplaceDefinitions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	defs := testDefinitions()
	require.NoError(t, s.ReplaceDefinitions(defs))
	for _, d := range defs {
		assert.Positive(t, d.ID)
		assert.False(t, d.ScannedAt.IsZero())
	}

	got, err := s.Definitions()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "public.domains.contacts.createContact", got[0].Identifier)
	assert.Equal(t, "public.domains.contacts.list", got[1].Identifier)
	assert.Equal(t, "internal.jobs.sweep", got[2].Identifier)
	assert.Equal(t, 13, got[0].Col)

	// A second report replaces rather than appends.
	require.NoError(t, s.ReplaceDefinitions(defs[:1]))
	got, err = s.Definitions()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReplaceDefinitions_DuplicateIdentifierRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.ReplaceDefinitions(testDefinitions()))

	dup := testDefinitions()
	dup[1].Identifier = dup[0].Identifier
	require.Error(t, s.ReplaceDefinitions(dup))

	got, err := s.Definitions()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestInsertSearch_LatestSearch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	search := &Search{
		Identifier:   "public.domains.contacts.createContact",
		FunctionName: "createContact",
		Elapsed:      42 * time.Millisecond,
		Usages: []Usage{
			{FilePath: "/ws/web/Form.tsx", Line: 3, Col: 36, Text: "useMutation(api.domains.contacts.createContact)", AccessPattern: "useMutation"},
			{FilePath: "/ws/web/util.ts", Line: 0, Col: 3, Text: "// api.domains.contacts.createContact"},
		},
	}
	id, err := s.InsertSearch(search)
	require.NoError(t, err)
	assert.Equal(t, id, search.ID)
	assert.Equal(t, id, search.Usages[1].SearchID)

	got, err := s.LatestSearch("public.domains.contacts.createContact")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42*time.Millisecond, got.Elapsed)
	require.Len(t, got.Usages, 2)
	assert.Equal(t, "useMutation", got.Usages[0].AccessPattern)
	assert.Equal(t, "", got.Usages[1].AccessPattern)
	assert.Equal(t, 36, got.Usages[0].Col)
}

func TestLatestSearch_None(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.LatestSearch("public.a.b")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUsageCounts_UsesLatestSearch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.ReplaceDefinitions(testDefinitions()))

	_, err := s.InsertSearch(&Search{Identifier: "public.domains.contacts.createContact", FunctionName: "createContact",
		Usages: []Usage{{FilePath: "a.ts", Text: "x"}, {FilePath: "b.ts", Text: "y"}}})
	require.NoError(t, err)
	_, err = s.InsertSearch(&Search{Identifier: "public.domains.contacts.createContact", FunctionName: "createContact",
		Usages: []Usage{{FilePath: "a.ts", Text: "x"}}})
	require.NoError(t, err)
	_, err = s.InsertSearch(&Search{Identifier: "public.domains.contacts.list", FunctionName: "list"})
	require.NoError(t, err)

	counts, err := s.UsageCounts()
	require.NoError(t, err)
	require.Len(t, counts, 3)

	byID := map[string]*DefinitionUsage{}
	for _, c := range counts {
		byID[c.Identifier] = c
	}
	assert.True(t, byID["public.domains.contacts.createContact"].Searched)
	assert.Equal(t, 1, byID["public.domains.contacts.createContact"].UsageCount)
	assert.True(t, byID["public.domains.contacts.list"].Searched)
	assert.Equal(t, 0, byID["public.domains.contacts.list"].UsageCount)
	assert.False(t, byID["internal.jobs.sweep"].Searched)

	unused, err := s.Unused()
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, "public.domains.contacts.list", unused[0].Identifier)
}

func TestPruneSearches(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.InsertSearch(&Search{Identifier: "public.a.b", FunctionName: "b",
			Usages: []Usage{{FilePath: "a.ts", Line: i, Text: "api.a.b"}}})
		require.NoError(t, err)
	}
	_, err := s.InsertSearch(&Search{Identifier: "public.a.c", FunctionName: "c"})
	require.NoError(t, err)

	n, err := s.PruneSearches(1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	latest, err := s.LatestSearch("public.a.b")
	require.NoError(t, err)
	require.Len(t, latest.Usages, 1)
	assert.Equal(t, 2, latest.Usages[0].Line)

	var usageRows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM usages").Scan(&usageRows))
	assert.Equal(t, 1, usageRows)
}
