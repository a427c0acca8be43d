// Package frontend defines the callback contract a C semantic analyzer
// drives during `add` (spec.md §6.4), and provides a tree-sitter-backed
// implementation of it.
package frontend

import "sindex/internal/modebits"

// Position names a point in one of the driver's input streams.
type Position struct {
	Stream int
	Line   int
	Column int
}

// Symbol carries everything the sink needs to normalize one occurrence.
type Symbol struct {
	Ident   string
	Kind    byte // 's', 'f', 'v', 'm' — see the Kind* constants below and spec.md glossary
	Pos     Position
	IsLocal bool
}

// Reporter is the capability set a driver calls back into while walking
// one translation unit. It is the Go analogue of the original's
// function-pointer table, modeled as an interface per spec.md §9's design
// note against function-pointer tables in the public contract.
//
// Each method takes the enclosing lexical context explicitly. The
// original tracks this as a global "current definition" pointer the
// reporter reads at call time; passing it as a parameter here avoids
// that shared mutable state while preserving the same information.
type Reporter interface {
	// SymDef reports a definition of sym.
	SymDef(ctxIdent string, sym Symbol)
	// Symbol reports a use of sym with the given access mode.
	Symbol(ctxIdent string, mode int, pos Position, sym Symbol)
	// MemDef reports a definition of a struct/union member. tag may be
	// the empty string when the aggregate itself has no identifier.
	MemDef(ctxIdent string, tag string, member Symbol)
	// Member reports a use of a struct/union member. A nil member means
	// the whole aggregate was accessed.
	Member(ctxIdent string, mode int, pos Position, tag string, member *Symbol)
}

// Context is the reporter's view of the enclosing definition at the
// point of an occurrence: the identifier of the enclosing function
// definition, or the empty string outside any function body. Uses inside
// the initializer of a file-scope variable carry no context.
type Context struct {
	Ident string
}

// Stream names one input to the driver: its backing path and an opaque
// frontend-assigned stream number threaded through every Position it
// reports for that file.
type Stream struct {
	Number int
	Path   string
}

// Driver walks a set of streams, invoking r for every definition and use
// it discovers and passing the current lexical context as each
// callback's ctxIdent argument.
type Driver interface {
	// Streams resolves the CLI tail (file and directory arguments plus
	// any frontend-specific options) into the concrete input list.
	Streams(args []string) ([]Stream, error)

	// Run drives r (and tracks lexical context internally) over every
	// stream. includeLocal controls whether the sink ever sees locally
	// scoped symbols — the driver still reports them with IsLocal set,
	// and it is the sink's job to filter (spec.md §4.C rule 1), but a
	// driver MAY use this to skip frontend-side work for symbols no
	// sink will keep.
	Run(streams []Stream, includeLocal bool, r Reporter) error
}

// CurrentContext returns ctx.Ident, or "" if ctx is nil, matching the
// sink's expectation of an empty string at file scope.
func CurrentContext(ctx *Context) string {
	if ctx == nil {
		return ""
	}
	return ctx.Ident
}

// Kind codes, named for readability at call sites; the stored value is
// always the single ASCII byte (spec.md glossary).
const (
	KindStructTag byte = 's'
	KindFunction  byte = 'f'
	KindVariable  byte = 'v'
	KindMember    byte = 'm'
)

// Blank reference to modebits.DEF, kept as a reminder that DEF is never
// OR'd with an R/W triple in one record (spec.md §3.1).
var _ = modebits.DEF
