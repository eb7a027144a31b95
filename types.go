package fnref

import (
	"github.com/jward/fnref/internal/config"
	"github.com/jward/fnref/internal/definition"
	"github.com/jward/fnref/internal/pathcodec"
	"github.com/jward/fnref/internal/project"
	"github.com/jward/fnref/internal/store"
	"github.com/jward/fnref/internal/usage"
)

// Public type aliases for the internal types used in the Resolver API.
// External consumers use these names; no conversion is needed.

type Config = config.Config
type ProjectInfo = project.Info
type Decoded = pathcodec.Decoded
type Namespace = pathcodec.Namespace
type Definition = definition.Definition
type Kind = definition.Kind
type Document = definition.Document
type Position = definition.Position
type Usage = usage.Usage
type SearchResult = usage.Result
type DefinitionUsage = store.DefinitionUsage

// Sentinel errors callers test with errors.Is.
var (
	ErrNotFound          = project.ErrNotFound
	ErrInvalidIdentifier = pathcodec.ErrInvalidIdentifier
	ErrOutsideRoot       = pathcodec.ErrOutsideRoot
	ErrDottedSegment     = pathcodec.ErrDottedSegment
	ErrInvalidSegment    = pathcodec.ErrInvalidSegment
	ErrNoSuchModule      = pathcodec.ErrNoSuchModule
	ErrNotDefined        = definition.ErrNotDefined
)
