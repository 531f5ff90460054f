package i5validator

import (
	"io/fs"

	"github.com/jacoelho/i5validator/internal/source"
)

// ResolveKind identifies what an external resource is needed for.
type ResolveKind = source.ResolveKind

const (
	ResolveDTD             ResolveKind = source.ResolveDTD
	ResolveParameterEntity ResolveKind = source.ResolveParameterEntity
	ResolveGeneralEntity   ResolveKind = source.ResolveGeneralEntity
	ResolveInclude         ResolveKind = source.ResolveInclude
)

// ResolveRequest describes a request for an external resource.
type ResolveRequest = source.ResolveRequest

// Resolver opens external resources and returns their canonical system IDs.
type Resolver = source.Resolver

// NewFSResolver returns a resolver that reads system identifiers from fsys.
func NewFSResolver(fsys fs.FS) Resolver {
	return source.NewFSResolver(fsys)
}

// NewOSResolver returns a resolver for local paths, file: URIs and http(s) URLs.
func NewOSResolver() Resolver {
	return source.NewOSResolver()
}
