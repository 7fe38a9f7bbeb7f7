package latex

import (
	"context"
	"fmt"
)

// builtinMacros are expanded like user macros. User macros with the same name win.
var builtinMacros = map[string]Macro{
	`\R`:       {Definition: `\mathbb{R}`},
	`\N`:       {Definition: `\mathbb{N}`},
	`\Z`:       {Definition: `\mathbb{Z}`},
	`\Q`:       {Definition: `\mathbb{Q}`},
	`\C`:       {Definition: `\mathbb{C}`},
	`\dots`:    {Definition: `\ldots`},
	`\dfrac`:   {Definition: `{\displaystyle\frac{#1}{#2}}`, NumArgs: 2},
	`\tfrac`:   {Definition: `{\textstyle\frac{#1}{#2}}`, NumArgs: 2},
	`\iff`:     {Definition: `\;\Longleftrightarrow\;`},
	`\implies`: {Definition: `\;\Longrightarrow\;`},
	`\land`:    {Definition: `\wedge`},
	`\lor`:     {Definition: `\vee`},
	`\lnot`:    {Definition: `\neg`},
}

// maxExpandedTokens bounds the tokens all expansions of one render may push,
// so a short macro with a long body cannot grow the stack without limit.
const maxExpandedTokens = 1 << 20

// expander feeds the parser with tokens, expanding macros on the way.
//
// Tokens are kept on a stack whose top is the next token to read, so a macro
// expansion is a pop of its arguments followed by a push of its body.
type expander struct {
	ctx        context.Context
	stack      []token
	macros     map[string]Macro
	bodies     map[string][]token
	maxExpand  int
	expansions int
	pushed     int
	end        int
}

func newExpander(ctx context.Context, tokens []token, inputLen int, userMacros map[string]Macro, maxExpand int) *expander {
	macros := make(map[string]Macro, len(builtinMacros)+len(userMacros))
	for name, m := range builtinMacros {
		macros[name] = m
	}
	for name, m := range userMacros {
		macros[name] = m
	}

	stack := make([]token, len(tokens))
	for i, tok := range tokens {
		stack[len(tokens)-1-i] = tok
	}

	return &expander{
		ctx:       ctx,
		stack:     stack,
		macros:    macros,
		bodies:    make(map[string][]token),
		maxExpand: maxExpand,
		end:       inputLen,
	}
}

// popToken removes the next raw token without expanding it.
func (e *expander) popToken() token {
	if len(e.stack) == 0 {
		return token{text: eofText, pos: e.end}
	}
	tok := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return tok
}

func (e *expander) pushToken(tok token) {
	e.stack = append(e.stack, tok)
}

func (e *expander) pushTokens(tokens []token) {
	for i := len(tokens) - 1; i >= 0; i-- {
		e.stack = append(e.stack, tokens[i])
	}
}

// next returns the next fully expanded token.
func (e *expander) next() (token, error) {
	for {
		tok := e.popToken()
		macro, ok := e.macros[tok.text]
		if !ok || !tok.isControl() {
			return tok, nil
		}
		if err := e.expand(tok, macro); err != nil {
			return token{}, err
		}
	}
}

// peek returns the next expanded token without consuming it.
func (e *expander) peek() (token, error) {
	tok, err := e.next()
	if err != nil {
		return token{}, err
	}
	e.pushToken(tok)
	return tok, nil
}

func (e *expander) expand(name token, macro Macro) error {
	e.expansions++
	if e.maxExpand >= 0 && e.expansions > e.maxExpand {
		return tooManyExpansions(name)
	}
	if e.expansions%64 == 0 {
		if err := e.ctx.Err(); err != nil {
			return err
		}
	}

	body, err := e.body(name.text, macro)
	if err != nil {
		return err
	}

	if macro.NumArgs == 0 {
		return e.pushExpansion(name, body)
	}

	args := make([][]token, macro.NumArgs)
	for i := range args {
		arg, err := e.readArgument(name)
		if err != nil {
			return err
		}
		args[i] = arg
	}

	expanded := make([]token, 0, len(body))
	for _, tok := range body {
		if tok.isParam() {
			n := int(tok.text[1] - '1')
			if n >= len(args) {
				return newParseError(fmt.Sprintf("Macro %s has no argument %s", name.text, tok.text), name)
			}
			expanded = append(expanded, args[n]...)
			continue
		}
		expanded = append(expanded, tok)
		if len(expanded) > maxExpandedTokens {
			return tooManyExpansions(name)
		}
	}
	return e.pushExpansion(name, expanded)
}

func (e *expander) pushExpansion(name token, tokens []token) error {
	e.pushed += len(tokens)
	if e.pushed > maxExpandedTokens {
		return tooManyExpansions(name)
	}
	e.pushTokens(tokens)
	return nil
}

func tooManyExpansions(name token) *ParseError {
	perr := newParseError("Too many expansions: infinite loop or need to increase maxExpand setting", name)
	perr.err = ErrTooManyExpansions
	return perr
}

func (e *expander) body(name string, macro Macro) ([]token, error) {
	if body, ok := e.bodies[name]; ok {
		return body, nil
	}
	if macro.NumArgs < 0 || macro.NumArgs > 9 {
		return nil, &ParseError{Message: fmt.Sprintf("Macro %s has invalid numArgs %d", name, macro.NumArgs)}
	}

	body, err := lex(macro.Definition, -1, true)
	if err != nil {
		return nil, err
	}
	e.bodies[name] = body
	return body, nil
}

// readArgument reads one undelimited macro argument: a braced group (without
// its braces) or a single non-space token.
func (e *expander) readArgument(name token) ([]token, error) {
	tok := e.popToken()
	for tok.isSpace() {
		tok = e.popToken()
	}

	switch {
	case tok.isEOF():
		return nil, newParseError("Unexpected end of input in a macro argument, expected '}'", tok)
	case tok.text == "}":
		return nil, newParseError(fmt.Sprintf("Unexpected '}' in argument to %s", name.text), tok)
	case tok.text != "{":
		return []token{tok}, nil
	}

	var arg []token
	depth := 1
	for {
		tok = e.popToken()
		switch tok.text {
		case eofText:
			return nil, newParseError("Unexpected end of input in a macro argument, expected '}'", tok)
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				return arg, nil
			}
		}
		arg = append(arg, tok)
	}
}
