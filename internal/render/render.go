// Package render implements the result renderer (spec.md §4.G): a format
// template with `%` directives and backslash escapes, plus a lazy
// source-line cursor for `%s` that never rewinds.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"sindex/internal/modebits"
	"sindex/internal/query"
)

// state is the format-string scanner's state, per spec.md §9's design
// note calling for an explicit three-state machine.
type state int

const (
	literal state = iota
	afterPercent
	afterBackslash
)

// Renderer formats query.Row values against a compiled template,
// maintaining the single open source file and line cursor used by %s.
type Renderer struct {
	template string

	cursorFile string
	cursorLine int
	cursorText string
	handle     *os.File
	reader     *bufio.Reader
}

// New validates template (spec.md §4.G: unknown directives and an
// unterminated trailing `%` are fatal errors, checked eagerly rather than
// at first use) and returns a ready Renderer.
func New(template string) (*Renderer, error) {
	if err := validate(template); err != nil {
		return nil, err
	}
	return &Renderer{template: template}, nil
}

// validate scans template once to catch unknown directives and dangling
// escapes before any row is ever rendered.
func validate(template string) error {
	st := literal
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch st {
		case literal:
			switch c {
			case '%':
				st = afterPercent
			case '\\':
				st = afterBackslash
			}
		case afterPercent:
			switch c {
			case 'f', 'l', 'c', 'C', 'n', 'm', 'k', 's':
				st = literal
			default:
				return fmt.Errorf("unknown format directive %%%c", c)
			}
		case afterBackslash:
			switch c {
			case 't', 'r', 'n', '\\':
				st = literal
			default:
				return fmt.Errorf("unknown escape \\%c", c)
			}
		}
	}
	switch st {
	case afterPercent:
		return fmt.Errorf("unterminated %% at end of format string")
	case afterBackslash:
		return fmt.Errorf("unterminated \\ at end of format string")
	}
	return nil
}

// Render writes one formatted row to w, advancing the %s source-line
// cursor as needed.
func (r *Renderer) Render(w io.Writer, row query.Row) error {
	var out strings.Builder
	st := literal

	for i := 0; i < len(r.template); i++ {
		c := r.template[i]
		switch st {
		case literal:
			switch c {
			case '%':
				st = afterPercent
			case '\\':
				st = afterBackslash
			default:
				out.WriteByte(c)
			}

		case afterPercent:
			switch c {
			case 'f':
				out.WriteString(row.File)
			case 'l':
				fmt.Fprintf(&out, "%d", row.Line)
			case 'c':
				fmt.Fprintf(&out, "%d", row.Column)
			case 'C':
				out.WriteString(row.Context)
			case 'n':
				out.WriteString(row.Symbol)
			case 'm':
				out.WriteString(modebits.Pretty(row.Mode))
			case 'k':
				out.WriteByte(byte(row.Kind))
			case 's':
				line, err := r.sourceLine(row.File, row.Line)
				if err != nil {
					return err
				}
				out.WriteString(line)
			}
			st = literal

		case afterBackslash:
			switch c {
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			case 'n':
				out.WriteByte('\n')
			case '\\':
				out.WriteByte('\\')
			}
			st = literal
		}
	}

	_, err := io.WriteString(w, out.String())
	return err
}

// sourceLine returns the text of line `line` in file, without its
// trailing newline. Per spec.md §4.G, rows arrive ordered by
// (file, line, column); the cursor advances monotonically and a line
// strictly before the cursor cannot be revisited.
func (r *Renderer) sourceLine(file string, line int) (string, error) {
	if file != r.cursorFile {
		r.closeHandle()
		h, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("open %s for source line: %w", file, err)
		}
		r.handle = h
		r.reader = bufio.NewReader(h)
		r.cursorFile = file
		r.cursorLine = 0
		r.cursorText = ""
	}

	if line < r.cursorLine {
		return "", fmt.Errorf("source line %d of %s requested after cursor advanced past it (at line %d)", line, file, r.cursorLine)
	}

	text := r.cursorText
	for r.cursorLine < line {
		s, err := r.reader.ReadString('\n')
		if err != nil && s == "" {
			return "", fmt.Errorf("read line %d of %s: %w", line, file, err)
		}
		text = strings.TrimRight(s, "\r\n")
		r.cursorLine++
	}
	r.cursorText = text
	return text, nil
}

func (r *Renderer) closeHandle() {
	if r.handle != nil {
		r.handle.Close()
		r.handle = nil
		r.reader = nil
	}
}

// Close releases the currently open source file, if any.
func (r *Renderer) Close() error {
	r.closeHandle()
	return nil
}

// DefaultFormat is `search`'s default template (spec.md §6.1).
const DefaultFormat = "(%m) %f\t%l\t%c\t%C\t%s"
