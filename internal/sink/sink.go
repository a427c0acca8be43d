// Package sink implements the reporter sink (spec.md §4.C): it consumes
// the four frontend callbacks and normalizes them into staged index
// records, applying the locality filter, the ignored-stream drop, the
// empty-identifier drop, and the composite member-name convention.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"sindex/internal/frontend"
	"sindex/internal/modebits"
	"sindex/internal/registry"
	"sindex/internal/stage"
)

// Sink adapts frontend.Reporter callbacks onto a Stage, resolving each
// callback's stream number to a file-id through a Registry.
type Sink struct {
	ctx          context.Context
	reg          *registry.Registry
	stage        *stage.Stage
	paths        map[int]string
	includeLocal bool
	logger       *slog.Logger

	// err latches the first hard failure (registry/store errors); the
	// frontend.Reporter interface has no error return, so callers read
	// it through Err after driving the frontend to completion.
	err error
}

// New returns a Sink that resolves stream numbers against streams and
// stages normalized records into stg. includeLocal mirrors
// `add --include-local-syms`.
func New(ctx context.Context, reg *registry.Registry, stg *stage.Stage, streams []frontend.Stream, includeLocal bool, logger *slog.Logger) *Sink {
	paths := make(map[int]string, len(streams))
	for _, s := range streams {
		paths[s.Number] = s.Path
	}
	return &Sink{ctx: ctx, reg: reg, stage: stg, paths: paths, includeLocal: includeLocal, logger: logger}
}

// Err returns the first registry/store error encountered while handling
// callbacks, or nil if none occurred.
func (s *Sink) Err() error { return s.err }

// SymDef implements frontend.Reporter.
func (s *Sink) SymDef(ctxIdent string, sym frontend.Symbol) {
	s.record(ctxIdent, sym, modebits.DEF, sym.Ident)
}

// Symbol implements frontend.Reporter.
func (s *Sink) Symbol(ctxIdent string, mode int, pos frontend.Position, sym frontend.Symbol) {
	sym.Pos = pos
	s.record(ctxIdent, sym, mode, sym.Ident)
}

// MemDef implements frontend.Reporter.
func (s *Sink) MemDef(ctxIdent string, tag string, member frontend.Symbol) {
	name := memberName(tag, &member)
	member.Kind = frontend.KindMember // rule 6: member records force kind 'm'.
	s.record(ctxIdent, member, modebits.DEF, name)
}

// Member implements frontend.Reporter.
func (s *Sink) Member(ctxIdent string, mode int, pos frontend.Position, tag string, member *frontend.Symbol) {
	name := memberName(tag, member)
	anchor := frontend.Symbol{Kind: frontend.KindMember, Pos: pos}
	if member != nil {
		anchor.IsLocal = member.IsLocal
	}
	s.record(ctxIdent, anchor, mode, name)
}

// memberName builds the composite "<tag>.<member>" symbol text (spec.md
// §4.C rule 5): tag defaults to "?" when the aggregate has no identifier,
// member defaults to "?" when named-but-missing and "*" when the whole
// aggregate is the target.
func memberName(tag string, member *frontend.Symbol) string {
	if tag == "" {
		tag = "?"
	}
	name := "*"
	if member != nil {
		name = member.Ident
		if name == "" {
			name = "?"
		}
	}
	return tag + "." + name
}

// record applies the normalization rules common to all four callbacks
// and, if the record survives, stages it.
func (s *Sink) record(ctxIdent string, sym frontend.Symbol, mode int, symbolText string) {
	if s.err != nil {
		return
	}

	// rule 1: locality filter.
	if sym.IsLocal && !s.includeLocal {
		return
	}

	// rule 3: empty identifier is a frontend anomaly.
	if symbolText == "" {
		s.logger.Warn("dropping record with empty identifier", "stream", sym.Pos.Stream, "line", sym.Pos.Line)
		return
	}

	path, known := s.paths[sym.Pos.Stream]
	if !known {
		s.err = fmt.Errorf("sink: unknown stream %d", sym.Pos.Stream)
		return
	}

	fileID, ok, err := s.reg.Ensure(s.ctx, sym.Pos.Stream, path)
	if err != nil {
		s.err = err
		return
	}
	if !ok {
		// rule 2: ignored stream (outside project root, or not a real file).
		return
	}

	// rule 6: member records force kind 'm'; variables/functions/tags
	// carry the frontend's kind verbatim.
	kind := int(sym.Kind)

	rec := stage.Record{
		File:    fileID,
		Line:    sym.Pos.Line,
		Column:  sym.Pos.Column,
		Symbol:  symbolText,
		Kind:    kind,
		Context: ctxIdent,
		Mode:    mode,
	}

	if err := s.stage.Insert(s.ctx, rec); err != nil {
		s.err = err
	}
}
