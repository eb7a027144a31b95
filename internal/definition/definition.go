// Package definition recognizes exported backend function definitions in
// source text and answers which definition owns a cursor position.
//
// Recognition is a best-effort lexical heuristic: a definition is a
// top-level
//
//	export const <name> = <wrapper>(...)
//
// binding, optionally with a generic argument list on the wrapper, where
// <wrapper> is one of a configured set of callables. Scanners implementing
// the heuristic sit behind the Scanner interface so an AST-based scanner
// can replace the regex one without touching callers.
package definition

import (
	"context"
	"strings"
)

// Kind is the declared kind of a definition, derived from its wrapper.
type Kind string

const (
	Query            Kind = "query"
	Mutation         Kind = "mutation"
	Action           Kind = "action"
	InternalQuery    Kind = "internal-query"
	InternalMutation Kind = "internal-mutation"
	InternalAction   Kind = "internal-action"
	Unknown          Kind = "unknown"
)

// IsInternal reports whether k belongs to the internal namespace.
func (k Kind) IsInternal() bool {
	return k == InternalQuery || k == InternalMutation || k == InternalAction
}

// ParseKind maps a kind name to a Kind. Unrecognized names map to Unknown.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Query, Mutation, Action, InternalQuery, InternalMutation, InternalAction:
		return k
	}
	return Unknown
}

// Definition is one recognized exported function. Line and Column are
// 0-based; Line is the line of the export statement and Column the byte
// offset of the name on that line.
type Definition struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	FilePath   string `json:"file_path"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Identifier string `json:"identifier"`
	Wrapper    string `json:"wrapper"`
}

// Match is a raw export binding found by a Scanner, before wrapper
// filtering and identifier encoding.
type Match struct {
	Name    string
	Wrapper string
	Line    int
	Column  int
}

// Scanner finds export bindings whose value is a call on a bare
// identifier. Matches are returned in file order.
type Scanner interface {
	Scan(ctx context.Context, path string, src []byte) []Match
}

// DefaultWrappers are the wrapper callables recognized without
// configuration.
var DefaultWrappers = []string{
	"query",
	"mutation",
	"action",
	"internalQuery",
	"internalMutation",
	"internalAction",
}

// kindOrder lists substrings in match priority. The internal forms come
// first because they contain the plain forms.
var kindOrder = []struct {
	substr string
	kind   Kind
}{
	{"internalquery", InternalQuery},
	{"internalmutation", InternalMutation},
	{"internalaction", InternalAction},
	{"query", Query},
	{"mutation", Mutation},
	{"action", Action},
}

// KindRules supplies user-defined kind classification. ok is false when
// the rules have no opinion on wrapper.
type KindRules interface {
	Classify(ctx context.Context, wrapper string) (kind string, ok bool, err error)
}

// Classify derives a Kind from a wrapper name by case-insensitive
// substring match.
func Classify(wrapper string) Kind {
	lower := strings.ToLower(wrapper)
	for _, k := range kindOrder {
		if strings.Contains(lower, k.substr) {
			return k.kind
		}
	}
	return Unknown
}
