package latex

import (
	"unicode"
	"unicode/utf8"
)

// token is one lexical unit: a control sequence ("\frac", "\,"), a macro
// parameter ("#1"), a run of whitespace (" ") or a single character.
//
// pos is the byte offset in the input, or -1 for tokens that came from a
// macro definition.
type token struct {
	text string
	pos  int
}

const eofText = ""

func (t token) isEOF() bool {
	return t.text == eofText
}

func (t token) isControl() bool {
	return len(t.text) > 1 && t.text[0] == '\\'
}

func (t token) isSpace() bool {
	return t.text == " "
}

func (t token) isParam() bool {
	return len(t.text) == 2 && t.text[0] == '#' && t.text[1] >= '1' && t.text[1] <= '9'
}

// lex splits input into tokens. Comments ("%" to end of line) are dropped and
// whitespace runs collapse to one space token.
//
// When params is true, "#1".."#9" are recognized as parameter tokens (macro
// bodies); otherwise a bare "#" is an error.
func lex(input string, basePos int, params bool) ([]token, error) {
	var tokens []token

	pos := func(i int) int {
		if basePos < 0 {
			return -1
		}
		return basePos + i
	}

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])

		switch {
		case r == utf8.RuneError && size == 1:
			return nil, newParseError("Invalid UTF-8 input", token{pos: pos(i)})

		case r == '%':
			for i < len(input) && input[i] != '\n' {
				i++
			}

		case unicode.IsSpace(r):
			start := i
			for i < len(input) {
				r, size := utf8.DecodeRuneInString(input[i:])
				if !unicode.IsSpace(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, token{text: " ", pos: pos(start)})

		case r == '\\':
			start := i
			i++
			if i >= len(input) {
				return nil, newParseError("Unexpected end of input after '\\'", token{pos: pos(start)})
			}
			if isASCIILetter(input[i]) {
				for i < len(input) && isASCIILetter(input[i]) {
					i++
				}
				tokens = append(tokens, token{text: input[start:i], pos: pos(start)})
				// Spaces after a control word are not significant.
				for i < len(input) && (input[i] == ' ' || input[i] == '\t' || input[i] == '\n' || input[i] == '\r') {
					i++
				}
			} else {
				_, size := utf8.DecodeRuneInString(input[i:])
				i += size
				tokens = append(tokens, token{text: input[start:i], pos: pos(start)})
			}

		case r == '#':
			if !params {
				return nil, newParseError("Unexpected character: '#'", token{pos: pos(i)})
			}
			if i+1 >= len(input) || input[i+1] < '1' || input[i+1] > '9' {
				return nil, newParseError("Invalid macro parameter", token{pos: pos(i)})
			}
			tokens = append(tokens, token{text: input[i : i+2], pos: pos(i)})
			i += 2

		default:
			tokens = append(tokens, token{text: input[i : i+size], pos: pos(i)})
			i += size
		}
	}

	return tokens, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
