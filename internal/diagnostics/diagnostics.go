// Package diagnostics renders a compiler/VM error with source context: a
// line:column header, the offending source line, and a caret pointing at
// the exact column — the same shape go-dws's internal/errors package
// renders its CompilerError as.
package diagnostics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kerbonaut11/muna/internal/compiler"
	"github.com/kerbonaut11/muna/internal/lexer"
	"github.com/kerbonaut11/muna/internal/parser"
	"github.com/mattn/go-isatty"
)

// located is the line/column/byte-offset a renderable error points at,
// normalized out of whichever of lexer.Error/parser.Error/
// compiler.Error was actually returned — each carries the same
// information under a different field path. offsetOK is separate from
// ok because compiler.Error tracks a line but no byte offset at all.
type located struct {
	line, col, offset int
	ok, offsetOK      bool
}

// locate extracts a source position from err, unwrapping the
// github.com/pkg/errors stack trace parser/compiler wrap their errors
// in. A vm.Error carries no source position at all (bytecode has no
// line table), so locate reports ok=false for it and any other error
// type — Render then falls back to printing the bare message.
func locate(err error) located {
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		return located{line: lexErr.Line, col: lexErr.Col, ok: true, offset: lexErr.Offset, offsetOK: true}
	}
	var parseErr *parser.Error
	if errors.As(err, &parseErr) {
		return located{line: parseErr.Got.Line, col: parseErr.Got.Col, ok: true, offset: parseErr.Got.Offset, offsetOK: true}
	}
	var compErr *compiler.Error
	if errors.As(err, &compErr) {
		// compiler.Error only tracks the statement's line, neither a
		// column nor a byte offset; point the caret at the start of the
		// line.
		return located{line: compErr.Line, col: 1, ok: true}
	}
	return located{}
}

// sourceLine returns line n (1-indexed) of src, or "" if out of range.
func sourceLine(src string, n int) string {
	lines := strings.Split(src, "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// Render formats err against src (the original source text) and file
// (a display name, or "" for stdin/inline input). ANSI color is
// emitted exactly when color is true; Render does no terminal
// detection of its own (see StderrIsTerminal).
func Render(err error, src, file string, color bool) string {
	loc := locate(err)

	var sb strings.Builder
	switch {
	case loc.ok && file != "":
		fmt.Fprintf(&sb, "error in %s:%d:%d", file, loc.line, loc.col)
	case loc.ok:
		fmt.Fprintf(&sb, "error at line %d:%d", loc.line, loc.col)
	case file != "":
		fmt.Fprintf(&sb, "error in %s", file)
	default:
		sb.WriteString("error")
	}
	if loc.offsetOK {
		fmt.Fprintf(&sb, " (byte %d)", loc.offset)
	}
	sb.WriteString("\n")

	if loc.ok {
		if line := sourceLine(src, loc.line); line != "" {
			lineNum := fmt.Sprintf("%4d | ", loc.line)
			sb.WriteString(lineNum)
			sb.WriteString(line)
			sb.WriteString("\n")
			sb.WriteString(strings.Repeat(" ", len(lineNum)+loc.col-1))
			if color {
				sb.WriteString("\033[1;31m")
			}
			sb.WriteString("^")
			if color {
				sb.WriteString("\033[0m")
			}
			sb.WriteString("\n")
		}
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(err.Error())
	if color {
		sb.WriteString("\033[0m")
	}
	return sb.String()
}

// StderrIsTerminal reports whether fd is a real terminal; cmd/muna
// passes stderr's descriptor and uses the answer to decide Render's default color argument absent an
// explicit --color flag.
func StderrIsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd)
}
