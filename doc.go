// Package fnref resolves between backend functions and the dot-path
// references client code uses to call them.
//
// A definition such as
//
//	// convex/domains/contacts.ts
//	export const createContact = mutation({ ... })
//
// is addressed as public.domains.contacts.createContact and called from the
// client as api.domains.contacts.createContact.
//
// # Usage
//
// Create a Resolver for a workspace and query it:
//
//	r, err := fnref.New("path/to/workspace")
//	if err != nil { ... }
//	defer r.Close()
//
//	ctx := context.Background()
//	def, ok, err := r.FindAt(ctx, fnref.Document{Path: file}, fnref.Position{Line: 20})
//	res, err := r.Search(ctx, def.Identifier)
//
// # Operations
//
//   - [Resolver.Project] locates the definitions root, cached for the
//     configured TTL.
//   - [Resolver.Encode] and [Resolver.Decode] convert between file
//     locations and identifiers.
//   - [Resolver.ScanFile] and [Resolver.FindAt] detect definitions in a
//     file or under a cursor.
//   - [Resolver.Goto] resolves an identifier to its definition.
//   - [Resolver.Search] finds usages of an identifier in client code.
//   - [Resolver.Report] searches every definition and records the counts
//     in SQLite.
//
// # Configuration
//
// Settings come from .fnref.yaml in the workspace root, overlaid on the
// embedded defaults. See the internal/config package for the keys. An
// optional Risor script (kind_script) can classify custom wrappers before
// the built-in substring rules apply.
//
// Lines and columns are 0-based everywhere; columns are byte offsets.
package fnref
