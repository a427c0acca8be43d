package frontend

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"sindex/internal/modebits"
)

// CFrontend is a tree-sitter-backed Driver for C source. It is the
// concrete implementation behind the frontend callback contract
// (spec.md §6.4) — this module treats that contract as an external
// collaborator's interface, but a runnable CLI needs a real analyzer
// behind it.
type CFrontend struct{}

// NewC returns a ready-to-use CFrontend.
func NewC() *CFrontend { return &CFrontend{} }

// Streams assigns one stream number per file argument, in order. args is
// expected to already be a flat file list (directory expansion happens
// in internal/walk before the frontend ever sees an argument).
func (f *CFrontend) Streams(args []string) ([]Stream, error) {
	streams := make([]Stream, 0, len(args))
	for i, path := range args {
		streams = append(streams, Stream{Number: i, Path: path})
	}
	return streams, nil
}

// Run parses each stream with the tree-sitter C grammar and walks it,
// driving r with the definitions and uses it finds.
func (f *CFrontend) Run(streams []Stream, includeLocal bool, r Reporter) error {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())

	for _, st := range streams {
		src, err := os.ReadFile(st.Path)
		if err != nil {
			return fmt.Errorf("read %s: %w", st.Path, err)
		}
		tree, err := parser.ParseCtx(context.Background(), nil, src)
		if err != nil {
			return fmt.Errorf("parse %s: %w", st.Path, err)
		}
		w := &walker{
			stream:       st.Number,
			src:          src,
			r:            r,
			includeLocal: includeLocal,
		}
		w.walk(tree.RootNode(), nil)
		tree.Close()
	}
	return nil
}

// walker holds per-stream state while traversing one translation unit.
// Top-level declarations have no enclosing context; once walk descends
// into a function_definition body, ctx names that function.
type walker struct {
	stream       int
	src          []byte
	r            Reporter
	includeLocal bool
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *walker) pos(n *sitter.Node) Position {
	p := n.StartPoint()
	return Position{Stream: w.stream, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// walk descends node, tracking ctx (nil at file scope, set to the
// enclosing function's identifier inside a function_definition body).
func (w *walker) walk(node *sitter.Node, ctx *Context) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_definition":
		declarator := node.ChildByFieldName("declarator")
		identNode := w.declaratorIdentNode(declarator)
		name := w.text(identNode)
		if name != "" {
			w.r.SymDef(CurrentContext(ctx), Symbol{Ident: name, Kind: KindFunction, Pos: w.pos(identNode), IsLocal: false})
		}
		body := node.ChildByFieldName("body")
		fnCtx := &Context{Ident: name}
		w.walk(body, fnCtx)
		return

	case "struct_specifier", "union_specifier":
		nameNode := node.ChildByFieldName("name")
		if nameNode != nil {
			w.r.SymDef(CurrentContext(ctx), Symbol{Ident: w.text(nameNode), Kind: KindStructTag, Pos: w.pos(node), IsLocal: false})
		}

	case "declaration":
		w.walkDeclaration(node, ctx)
		return

	case "assignment_expression":
		w.walkAssignment(node, ctx)
		return

	case "field_expression":
		w.walkFieldExpression(node, ctx, modebits.RVAL)
		return

	case "pointer_expression":
		if node.ChildByFieldName("operator") != nil && w.text(node.ChildByFieldName("operator")) == "&" {
			if arg := node.ChildByFieldName("argument"); arg != nil && arg.Type() == "identifier" {
				w.emitUse(arg, ctx, modebits.RAOF)
				return
			}
		}

	case "identifier":
		w.emitUse(node, ctx, modebits.RVAL)
		return
	}

	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		w.walk(node.Child(i), ctx)
	}
}

// walkDeclaration handles both top-level and local variable declarations:
// each declarator's identifier is a SymDef, and any initializer expression
// is walked as an ordinary read.
func (w *walker) walkDeclaration(node *sitter.Node, ctx *Context) {
	isLocal := ctx != nil

	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "init_declarator":
			declarator := child.ChildByFieldName("declarator")
			name := w.declaratorName(declarator)
			if name != "" {
				w.r.SymDef(CurrentContext(ctx), Symbol{Ident: name, Kind: KindVariable, Pos: w.pos(child), IsLocal: isLocal})
			}
			if value := child.ChildByFieldName("value"); value != nil {
				w.walk(value, ctx)
			}
		case "identifier", "pointer_declarator", "array_declarator":
			name := w.declaratorName(child)
			if name != "" {
				w.r.SymDef(CurrentContext(ctx), Symbol{Ident: name, Kind: KindVariable, Pos: w.pos(child), IsLocal: isLocal})
			}
		}
	}
}

// walkAssignment attributes a write to the left-hand side and an
// ordinary read to the right-hand side.
func (w *walker) walkAssignment(node *sitter.Node, ctx *Context) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")

	switch {
	case left == nil:
	case left.Type() == "identifier":
		w.emitUse(left, ctx, modebits.WVAL)
	case left.Type() == "pointer_expression":
		if arg := left.ChildByFieldName("argument"); arg != nil && arg.Type() == "identifier" {
			w.emitUse(arg, ctx, modebits.WPTR)
		} else {
			w.walk(left, ctx)
		}
	case left.Type() == "field_expression":
		w.walkFieldExpression(left, ctx, modebits.WVAL)
	default:
		w.walk(left, ctx)
	}

	if right != nil {
		w.walk(right, ctx)
	}
}

// walkFieldExpression reports a member use: `a.b` or `a->b`. When `a` is
// a plain identifier its name becomes the tag and no separate use of `a`
// is reported; any other `a` expression is walked normally. Locality
// filtering happens at the sink (spec.md §4.C rule 1); the frontend
// always reports IsLocal accurately regardless of includeLocal.
func (w *walker) walkFieldExpression(node *sitter.Node, ctx *Context, mode int) {
	arg := node.ChildByFieldName("argument")
	field := node.ChildByFieldName("field")

	tag := ""
	if arg != nil && arg.Type() == "identifier" {
		tag = w.text(arg)
	} else if arg != nil {
		w.walk(arg, ctx)
	}

	var member *Symbol
	if field != nil {
		member = &Symbol{
			Ident:   w.text(field),
			Kind:    KindMember,
			Pos:     w.pos(field),
			IsLocal: ctx != nil,
		}
	}

	w.r.Member(CurrentContext(ctx), mode, w.pos(node), tag, member)
}

func (w *walker) emitUse(node *sitter.Node, ctx *Context, mode int) {
	ident := w.text(node)
	if ident == "" {
		return
	}
	sym := Symbol{Ident: ident, Kind: KindVariable, Pos: w.pos(node), IsLocal: ctx != nil}
	w.r.Symbol(CurrentContext(ctx), mode, sym.Pos, sym)
}

// declaratorName extracts the declared identifier from a (possibly
// pointer-wrapped, possibly parenthesized) declarator.
func (w *walker) declaratorName(declarator *sitter.Node) string {
	return w.text(w.declaratorIdentNode(declarator))
}

// declaratorIdentNode resolves a (possibly pointer-wrapped, possibly
// parenthesized, possibly function-) declarator down to the identifier
// node it declares, so callers can report the identifier's own position
// rather than the enclosing declarator's.
func (w *walker) declaratorIdentNode(declarator *sitter.Node) *sitter.Node {
	for declarator != nil {
		switch declarator.Type() {
		case "identifier", "field_identifier":
			return declarator
		case "pointer_declarator", "parenthesized_declarator", "array_declarator":
			declarator = declarator.ChildByFieldName("declarator")
		case "function_declarator":
			declarator = declarator.ChildByFieldName("declarator")
		default:
			return nil
		}
	}
	return nil
}
