package latex

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrTooManyExpansions is wrapped by the ParseError returned when macro
// expansion exceeds Options.MaxExpand.
var ErrTooManyExpansions = errors.New("too many expansions: infinite loop or need to increase maxExpand setting")

// ParseError reports a malformed expression.
//
// Position is the 1-based byte offset in the input, or 0 when the error came
// from macro-expanded text that has no position in the input.
type ParseError struct {
	Message  string
	Position int
	Input    string

	err error
}

func newParseError(msg string, tok token) *ParseError {
	pos := 0
	if tok.pos >= 0 {
		pos = tok.pos + 1
	}
	return &ParseError{Message: msg, Position: pos}
}

func (e *ParseError) Error() string {
	if e.Position <= 0 || e.Input == "" {
		return "parse error: " + e.Message
	}
	return fmt.Sprintf("parse error: %s at position %d: %s", e.Message, e.Position, e.context())
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// context returns up to 15 bytes of input on each side of the error.
func (e *ParseError) context() string {
	start := e.Position - 1
	if start > len(e.Input) {
		start = len(e.Input)
	}

	from := max(start-15, 0)
	for from > 0 && !utf8.RuneStart(e.Input[from]) {
		from--
	}
	to := min(start+15, len(e.Input))
	for to < len(e.Input) && !utf8.RuneStart(e.Input[to]) {
		to++
	}

	prefix := ""
	if from > 0 {
		prefix = "…"
	}
	suffix := ""
	if to < len(e.Input) {
		suffix = "…"
	}
	return prefix + e.Input[from:start] + "⟨here⟩" + e.Input[start:to] + suffix
}
