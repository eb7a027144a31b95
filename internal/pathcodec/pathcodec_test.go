package pathcodec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_NestedModule(t *testing.T) {
	t.Parallel()
	root := filepath.Join("/", "app", "convex")
	file := filepath.Join(root, "domains", "contacts.ts")

	id, err := Encode(file, "createContact", root)
	require.NoError(t, err)
	assert.Equal(t, "public.domains.contacts.createContact", id)
}

func TestEncodeIn_Internal(t *testing.T) {
	t.Parallel()
	root := filepath.Join("/", "app", "convex")
	file := filepath.Join(root, "jobs.tsx")

	id, err := EncodeIn(Internal, file, "sweep", root)
	require.NoError(t, err)
	assert.Equal(t, "internal.jobs.sweep", id)
}

func TestEncode_OutsideRoot(t *testing.T) {
	t.Parallel()
	root := filepath.Join("/", "app", "convex")

	for _, file := range []string{
		filepath.Join("/", "app", "src", "page.ts"),
		filepath.Join("/", "other", "x.ts"),
		root,
	} {
		_, err := Encode(file, "fn", root)
		assert.ErrorIs(t, err, ErrOutsideRoot, file)
	}
}

func TestEncode_DottedSegmentRejected(t *testing.T) {
	t.Parallel()
	root := filepath.Join("/", "app", "convex")

	_, err := Encode(filepath.Join(root, "v1.routes.ts"), "list", root)
	assert.ErrorIs(t, err, ErrDottedSegment)

	_, err = Encode(filepath.Join(root, "v1.2", "routes.ts"), "list", root)
	assert.ErrorIs(t, err, ErrDottedSegment)
}

func TestEncode_NonWordSegmentRejected(t *testing.T) {
	t.Parallel()
	root := filepath.Join("/", "r")

	for _, file := range []string{
		filepath.Join(root, "my module.ts"),
		filepath.Join(root, "a+b", "c.ts"),
		filepath.Join(root, "é", "x.ts"),
	} {
		_, err := Encode(file, "fn", root)
		assert.ErrorIs(t, err, ErrInvalidSegment, file)
	}
}

func TestEncode_InvalidFunctionName(t *testing.T) {
	t.Parallel()
	root := filepath.Join("/", "app", "convex")
	file := filepath.Join(root, "a.ts")

	for _, name := range []string{"", "a.b", "1abc", "has space", "get$", "$store"} {
		_, err := Encode(file, name, root)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in     string
		ns     Namespace
		module string
		fn     string
	}{
		{"public.domains.contacts.createContact", Public, filepath.Join("domains", "contacts"), "createContact"},
		{"internal.jobs.sweep", Internal, "jobs", "sweep"},
		{"api.messages.list", Public, "messages", "list"},
		{"messages.list", Public, "messages", "list"},
		{"public.user-profile.get", Public, "user-profile", "get"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			d, err := Decode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.ns, d.Namespace)
			assert.Equal(t, tc.module, d.ModulePath)
			assert.Equal(t, tc.fn, d.FunctionName)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "public", "public.onlyOne", "internal.", "api..x", "public.a.b c", "public.a.b-c"} {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, in)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	files := []string{
		filepath.Join(root, "messages.ts"),
		filepath.Join(root, "domains", "contacts.tsx"),
		filepath.Join(root, "lib", "deep", "util.js"),
		filepath.Join(root, "legacy.jsx"),
		filepath.Join(root, "user-profile", "v2_routes.ts"),
	}
	for _, f := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(f), 0o755))
		require.NoError(t, os.WriteFile(f, []byte("// test\n"), 0o644))
	}

	for _, f := range files {
		id, err := Encode(f, "handler", root)
		require.NoError(t, err)

		d, err := Decode(id)
		require.NoError(t, err, id)
		assert.Equal(t, "handler", d.FunctionName)
		assert.Equal(t, id, d.String())

		resolved, err := Resolve(d, root)
		require.NoError(t, err)
		assert.Equal(t, filepath.Clean(f), resolved)
	}
}

func TestResolve_ExtensionOrder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "dup.js"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dup.ts"), nil, 0o644))

	got, err := Resolve(Decoded{ModulePath: "dup", FunctionName: "f"}, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dup.ts"), got)
}

func TestResolve_Missing(t *testing.T) {
	t.Parallel()
	_, err := Resolve(Decoded{ModulePath: "nope", FunctionName: "f"}, t.TempDir())
	assert.ErrorIs(t, err, ErrNoSuchModule)
}

func TestReferencePath(t *testing.T) {
	t.Parallel()
	got, err := ReferencePath("public.domains.contacts.createContact")
	require.NoError(t, err)
	assert.Equal(t, "api.domains.contacts.createContact", got)

	got, err = ReferencePath("internal.jobs.sweep")
	require.NoError(t, err)
	assert.Equal(t, "internal.jobs.sweep", got)
}

func TestDecoded_String(t *testing.T) {
	t.Parallel()
	for _, id := range []string{"api.domains.contacts.createContact", "domains.contacts.createContact"} {
		d, err := Decode(id)
		require.NoError(t, err)
		assert.Equal(t, "public.domains.contacts.createContact", d.String())
	}

	d, err := Decode("internal.jobs.purge")
	require.NoError(t, err)
	assert.Equal(t, "internal.jobs.purge", d.String())
}
