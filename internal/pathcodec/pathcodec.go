// Package pathcodec maps between a function's location under the definitions
// root and the dot-delimited identifier client code uses to reference it.
//
// An identifier has the form
//
//	<namespace>(.<segment>)+.<functionName>
//
// where each segment is one path component below the definitions root, with
// the source extension stripped from the last one. Because "." is the segment
// separator, path components that themselves contain a dot cannot be encoded
// and are rejected with ErrDottedSegment.
package pathcodec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Namespace is the leading token of an identifier.
type Namespace string

const (
	Public   Namespace = "public"
	Internal Namespace = "internal"
)

// Separator joins namespace, segments and function name.
const Separator = "."

// Extensions lists recognized source extensions in resolution order.
var Extensions = []string{".ts", ".tsx", ".js", ".jsx"}

var (
	ErrOutsideRoot       = errors.New("file is not under the definitions root")
	ErrDottedSegment     = errors.New("path component contains a dot")
	ErrInvalidSegment    = errors.New("path component is not identifier-safe")
	ErrInvalidName       = errors.New("invalid function name")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNoSuchModule      = errors.New("no source file for module")
)

// namespaceTokens maps every recognized leading token to its namespace.
// "api" is the client-side spelling of the public namespace.
var namespaceTokens = map[string]Namespace{
	"public":   Public,
	"api":      Public,
	"internal": Internal,
}

// wordRe matches function names. Word characters only, so the trailing
// \b of a usage pattern always has a boundary to match.
var wordRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// Decoded is the result of decoding an identifier.
type Decoded struct {
	Namespace    Namespace
	ModulePath   string // platform separators, no extension
	FunctionName string
}

// Encode builds an identifier in the public namespace.
func Encode(filePath, functionName, root string) (string, error) {
	return EncodeIn(Public, filePath, functionName, root)
}

// EncodeIn builds an identifier for functionName defined in filePath,
// relative to the definitions root, in namespace ns.
func EncodeIn(ns Namespace, filePath, functionName, root string) (string, error) {
	if !wordRe.MatchString(functionName) {
		return "", fmt.Errorf("encode %q: %w", functionName, ErrInvalidName)
	}
	segments, err := moduleSegments(filePath, root)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", filePath, err)
	}
	parts := make([]string, 0, len(segments)+2)
	parts = append(parts, string(ns))
	parts = append(parts, segments...)
	parts = append(parts, functionName)
	return strings.Join(parts, Separator), nil
}

// moduleSegments returns the path components of filePath below root with
// the source extension removed from the last component.
func moduleSegments(filePath, root string) ([]string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(filePath))
	if err != nil {
		return nil, ErrOutsideRoot
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, ErrOutsideRoot
	}
	rel = StripExtension(rel)

	segments := strings.Split(rel, string(filepath.Separator))
	for _, seg := range segments {
		if seg == "" {
			return nil, ErrOutsideRoot
		}
		if strings.Contains(seg, Separator) {
			return nil, fmt.Errorf("%q: %w", seg, ErrDottedSegment)
		}
		if !isPathSegment(seg) {
			return nil, fmt.Errorf("%q: %w", seg, ErrInvalidSegment)
		}
	}
	return segments, nil
}

// StripExtension removes a recognized source extension from path. Paths
// with any other extension are returned unchanged.
func StripExtension(path string) string {
	ext := filepath.Ext(path)
	for _, known := range Extensions {
		if ext == known {
			return strings.TrimSuffix(path, ext)
		}
	}
	return path
}

// HasSourceExtension reports whether path ends in a recognized extension.
func HasSourceExtension(path string) bool {
	return StripExtension(path) != path
}

// Decode splits an identifier into namespace, module path and function
// name. A leading namespace token is optional; when absent the namespace is
// Public. At least two segments must remain after the token.
func Decode(identifier string) (Decoded, error) {
	parts := strings.Split(strings.TrimSpace(identifier), Separator)

	ns := Public
	if len(parts) > 0 {
		if tokenNS, ok := namespaceTokens[parts[0]]; ok {
			ns = tokenNS
			parts = parts[1:]
		}
	}
	if len(parts) < 2 {
		return Decoded{}, fmt.Errorf("decode %q: %w", identifier, ErrInvalidIdentifier)
	}
	for _, p := range parts {
		if !isPathSegment(p) {
			return Decoded{}, fmt.Errorf("decode %q: segment %q: %w", identifier, p, ErrInvalidIdentifier)
		}
	}
	if !wordRe.MatchString(parts[len(parts)-1]) {
		return Decoded{}, fmt.Errorf("decode %q: %w", identifier, ErrInvalidIdentifier)
	}

	return Decoded{
		Namespace:    ns,
		ModulePath:   filepath.Join(parts[:len(parts)-1]...),
		FunctionName: parts[len(parts)-1],
	}, nil
}

var segmentRe = regexp.MustCompile(`^[\w$-]+$`)

// isPathSegment accepts file-name characters that are not identifier-safe
// but still appear in module paths, such as hyphens.
func isPathSegment(s string) bool {
	return segmentRe.MatchString(s)
}

// String formats d as an identifier with its canonical namespace token.
func (d Decoded) String() string {
	parts := []string{string(d.Namespace)}
	parts = append(parts, strings.Split(d.ModulePath, string(filepath.Separator))...)
	parts = append(parts, d.FunctionName)
	return strings.Join(parts, Separator)
}

// Resolve returns the first existing file for d's module path under root,
// trying each of Extensions in order.
func Resolve(d Decoded, root string) (string, error) {
	base := filepath.Join(root, d.ModulePath)
	for _, ext := range Extensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("resolve %s: %w", d.ModulePath, ErrNoSuchModule)
}

// ReferenceToken returns the token client code uses for ns in generated
// references, e.g. "api" for the public namespace.
func ReferenceToken(ns Namespace) string {
	if ns == Internal {
		return "internal"
	}
	return "api"
}

// ReferencePath rewrites an identifier into the text client code contains
// when referencing it, replacing the namespace with its reference token.
func ReferencePath(identifier string) (string, error) {
	d, err := Decode(identifier)
	if err != nil {
		return "", err
	}
	parts := []string{ReferenceToken(d.Namespace)}
	parts = append(parts, strings.Split(d.ModulePath, string(filepath.Separator))...)
	parts = append(parts, d.FunctionName)
	return strings.Join(parts, Separator), nil
}
