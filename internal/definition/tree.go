package definition

import (
	"context"
	"log/slog"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TreeScanner is a tree-sitter implementation of Scanner. It only visits
// top-level export statements, so nested or commented-out bindings that
// fool the regex scanner are ignored.
type TreeScanner struct {
	logger *slog.Logger
}

// NewTreeScanner returns a tree-sitter Scanner. A nil logger discards.
func NewTreeScanner(logger *slog.Logger) *TreeScanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TreeScanner{logger: logger}
}

// languageFor picks a grammar by file extension.
func languageFor(path string) *sitter.Language {
	switch filepath.Ext(path) {
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	}
	return nil
}

// Scan implements Scanner. Each call uses its own parser, so a TreeScanner
// is safe for concurrent use.
func (s *TreeScanner) Scan(ctx context.Context, path string, src []byte) []Match {
	lang := languageFor(path)
	if lang == nil || len(src) == 0 {
		return nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		s.logger.Warn("parse failed", slog.String("file", path), slog.Any("error", err))
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	var matches []Match
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "export_statement" {
			continue
		}
		decl := stmt.ChildByFieldName("declaration")
		if decl == nil || decl.Type() != "lexical_declaration" || !isConst(decl, src) {
			continue
		}
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			m, ok := exportedCall(decl.NamedChild(j), src)
			if !ok {
				continue
			}
			m.Line = int(stmt.StartPoint().Row)
			matches = append(matches, m)
		}
	}
	return matches
}

// isConst reports whether a lexical_declaration uses const.
func isConst(decl *sitter.Node, src []byte) bool {
	if decl.ChildCount() == 0 {
		return false
	}
	return decl.Child(0).Content(src) == "const"
}

// exportedCall extracts name and wrapper from a variable_declarator whose
// value is a call on a bare identifier.
func exportedCall(declarator *sitter.Node, src []byte) (Match, bool) {
	if declarator.Type() != "variable_declarator" {
		return Match{}, false
	}
	name := declarator.ChildByFieldName("name")
	value := declarator.ChildByFieldName("value")
	if name == nil || value == nil || name.Type() != "identifier" || value.Type() != "call_expression" {
		return Match{}, false
	}
	fn := value.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return Match{}, false
	}
	return Match{
		Name:    name.Content(src),
		Wrapper: fn.Content(src),
		Column:  int(name.StartPoint().Column),
	}, true
}
