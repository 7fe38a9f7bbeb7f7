package latex

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxGroupDepth bounds parser recursion: braces, command arguments, \left
// bodies and nested text groups all count. Running out of goroutine stack is
// fatal, so this has to trip long before the stack limit.
const maxGroupDepth = 500

var (
	baseStops    = map[string]bool{"}": true, `\right`: true, `\end`: true}
	bracketStops = map[string]bool{"}": true, `\right`: true, `\end`: true, "]": true}
	cellStops    = map[string]bool{"}": true, `\right`: true, `\end`: true, "&": true, `\\`: true, `\cr`: true}

	colorPattern = regexp.MustCompile(`^(#[a-fA-F0-9]{3,4}|#[a-fA-F0-9]{6}|#[a-fA-F0-9]{8}|[a-fA-F0-9]{6}|[a-zA-Z]+)$`)
	hexPattern   = regexp.MustCompile(`^[a-fA-F0-9]{6}$`)
	sizePattern  = regexp.MustCompile(`^\s*([-+]?)\s*(\d+(?:\.\d*)?|\.\d+)\s*([a-z]{2})\s*$`)
)

type parser struct {
	exp   *expander
	opts  Options
	stops map[string]bool
	depth int
}

// parse turns input into a list of nodes, expanding macros as it goes.
func parse(ctx context.Context, input string, opts Options) ([]node, error) {
	tokens, err := lex(input, 0, false)
	if err != nil {
		return nil, err
	}

	p := &parser{
		exp:  newExpander(ctx, tokens, len(input), opts.Macros, opts.MaxExpand),
		opts: opts,
	}

	body, err := p.parseExpression(baseStops)
	if err != nil {
		return nil, err
	}
	if err := p.expect("EOF"); err != nil {
		return nil, err
	}
	return body, nil
}

// parseExpression reads atoms until EOF or a token in stops, which is left unread.
func (p *parser) parseExpression(stops map[string]bool) ([]node, error) {
	saved := p.stops
	p.stops = stops
	defer func() { p.stops = saved }()

	var body []node
	for {
		tok, err := p.exp.peek()
		if err != nil {
			return nil, err
		}
		if tok.isEOF() || stops[tok.text] {
			return body, nil
		}
		if tok.isSpace() {
			p.exp.popToken()
			continue
		}

		n, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
}

// parseAtom reads a base and its scripts: x, x^2, x_i^2, x', \sum\limits_0^n.
func (p *parser) parseAtom() (node, error) {
	tok, err := p.exp.peek()
	if err != nil {
		return nil, err
	}

	var base node
	if tok.text != "^" && tok.text != "_" && tok.text != "'" {
		if base, err = p.parseGroup(false); err != nil {
			return nil, err
		}
	}

	var sup, sub node
	var limits *bool
	for {
		tok, err := p.peekNonSpace()
		if err != nil {
			return nil, err
		}

		switch tok.text {
		case `\limits`, `\nolimits`:
			if _, ok := base.(opNode); !ok {
				return nil, newParseError("Limit controls must follow a math operator", tok)
			}
			p.exp.popToken()
			v := tok.text == `\limits`
			limits = &v

		case "^":
			p.exp.popToken()
			if sup != nil {
				return nil, newParseError("Double superscript", tok)
			}
			if sup, err = p.parseScript(tok); err != nil {
				return nil, err
			}

		case "_":
			p.exp.popToken()
			if sub != nil {
				return nil, newParseError("Double subscript", tok)
			}
			if sub, err = p.parseScript(tok); err != nil {
				return nil, err
			}

		case "'":
			if sup != nil {
				return nil, newParseError("Double superscript", tok)
			}
			if sup, err = p.parsePrimes(); err != nil {
				return nil, err
			}

		default:
			if sup == nil && sub == nil {
				if op, ok := base.(opNode); ok && limits != nil {
					op.limits = *limits
					return op, nil
				}
				return base, nil
			}
			if base == nil {
				base = groupNode{}
			}
			return supSubNode{base: base, sup: sup, sub: sub, limits: limits}, nil
		}
	}
}

// parsePrimes reads x''' and an optional following superscript (x'^2).
func (p *parser) parsePrimes() (node, error) {
	count := 0
	for {
		tok, err := p.exp.peek()
		if err != nil {
			return nil, err
		}
		if tok.text != "'" {
			break
		}
		p.exp.popToken()
		count++
	}

	primes := symbolNode{text: strings.Repeat("′", count), atom: atomOrd, elem: elemOperator}

	tok, err := p.peekNonSpace()
	if err != nil {
		return nil, err
	}
	if tok.text != "^" {
		return primes, nil
	}
	p.exp.popToken()

	arg, err := p.parseScript(tok)
	if err != nil {
		return nil, err
	}
	return groupNode{body: []node{primes, arg}}, nil
}

func (p *parser) parseScript(op token) (node, error) {
	tok, err := p.peekNonSpace()
	if err != nil {
		return nil, err
	}
	if p.endsArgument(tok) || tok.text == "^" || tok.text == "_" {
		return nil, newParseError(fmt.Sprintf("Expected group after '%s'", op.text), op)
	}
	return p.parseGroup(true)
}

// parseArg reads a required argument of cmd: a braced group or a single item.
func (p *parser) parseArg(cmd token) (node, error) {
	tok, err := p.peekNonSpace()
	if err != nil {
		return nil, err
	}
	if p.endsArgument(tok) || tok.text == "^" || tok.text == "_" {
		return nil, newParseError(fmt.Sprintf("Expected group as argument to '%s'", cmd.text), cmd)
	}
	return p.parseGroup(true)
}

func (p *parser) endsArgument(tok token) bool {
	return tok.isEOF() || p.stops[tok.text] || tok.text == "&" || tok.text == `\\`
}

// parseGroup reads one item. single limits a digit run to its first digit, as
// TeX does for script and macro arguments (x^12 is x^{1}2).
func (p *parser) parseGroup(single bool) (node, error) {
	tok, err := p.exp.next()
	if err != nil {
		return nil, err
	}

	if err := p.enter(tok); err != nil {
		return nil, err
	}
	defer p.leave()

	switch {
	case tok.text == "{":
		body, err := p.parseExpression(baseStops)
		if err != nil {
			return nil, err
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		return groupNode{body: body}, nil

	case tok.isEOF():
		return nil, newParseError("Unexpected end of input", tok)
	case tok.isControl():
		return p.parseCommand(tok)
	case tok.text == "&":
		return nil, newParseError("Misplaced alignment tab character '&'", tok)
	case tok.text == "~":
		return spaceNode{width: spaces["~"]}, nil
	case tok.text == "$":
		return nil, newParseError("Can't use '$' in math mode", tok)
	}

	return p.parseChar(tok, single)
}

// enter counts one level of recursion. Callers defer leave once enter has run,
// whether or not it failed.
func (p *parser) enter(tok token) error {
	p.depth++
	if p.depth > maxGroupDepth {
		return newParseError("Too deeply nested", tok)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseChar(tok token, single bool) (node, error) {
	r, _ := utf8.DecodeRuneInString(tok.text)

	switch {
	case r >= '0' && r <= '9':
		text := tok.text
		for !single {
			next := p.exp.popToken()
			if len(next.text) != 1 || !(next.text[0] >= '0' && next.text[0] <= '9' || next.text[0] == '.') {
				p.exp.pushToken(next)
				break
			}
			text += next.text
		}
		return symbolNode{text: text, atom: atomOrd, elem: elemNumber}, nil

	case r < utf8.RuneSelf && isASCIILetter(byte(r)):
		return symbolNode{text: tok.text, atom: atomOrd, elem: elemIdentifier}, nil
	}

	if sym, ok := mathChars[r]; ok {
		return symbolFor(sym), nil
	}

	if r >= utf8.RuneSelf {
		if unicode.IsLetter(r) {
			msg := fmt.Sprintf("Unicode text character %q used in math mode", tok.text)
			if err := p.nonStrict("unicodeTextInMathMode", msg, tok); err != nil {
				return nil, err
			}
		}
		return symbolNode{text: tok.text, atom: atomOrd, elem: elemIdentifier, upright: !unicode.IsLetter(r)}, nil
	}

	return nil, newParseError(fmt.Sprintf("Unexpected character: '%s'", tok.text), tok)
}

func symbolFor(sym symbol) symbolNode {
	elem := elemOperator
	if sym.atom == atomOrd {
		elem = elemIdentifier
	}
	return symbolNode{text: sym.text, atom: sym.atom, elem: elem, upright: sym.upright}
}

// nonStrict applies the strict setting to input LaTeX itself would reject.
func (p *parser) nonStrict(code, msg string, tok token) error {
	switch p.opts.Strict {
	case StrictError:
		return newParseError(fmt.Sprintf("LaTeX-incompatible input and strict mode is set to 'error': %s [%s]", msg, code), tok)
	case StrictWarn:
		if p.opts.OnWarning != nil {
			p.opts.OnWarning(fmt.Sprintf("LaTeX-incompatible input and strict mode is set to 'warn': %s [%s]", msg, code))
		}
	}
	return nil
}

func (p *parser) parseCommand(tok token) (node, error) {
	name := tok.text

	if sym, ok := symbols[name]; ok {
		return symbolFor(sym), nil
	}
	if op, ok := largeOps[name]; ok {
		return opNode{text: op.text, symbol: true, limits: op.limits}, nil
	}
	if limits, ok := namedFunctions[name]; ok {
		return opNode{text: name[1:], limits: limits}, nil
	}
	if f, ok := mathFonts[name]; ok {
		body, err := p.parseArg(tok)
		if err != nil {
			return nil, err
		}
		return fontNode{font: f, body: body}, nil
	}
	if f, ok := textFonts[name]; ok {
		return p.parseText(tok, f)
	}
	if a, ok := accents[name]; ok {
		base, err := p.parseArg(tok)
		if err != nil {
			return nil, err
		}
		return accentNode{accent: a, base: base}, nil
	}
	if w, ok := spaces[name]; ok {
		return spaceNode{width: w}, nil
	}
	if d, ok := delimSizes[name]; ok {
		delim, err := p.readDelimiter(tok)
		if err != nil {
			return nil, err
		}
		return symbolNode{text: delim, atom: d.atom, elem: elemOperator, size: d.size}, nil
	}

	switch name {
	case `\frac`, `\cfrac`:
		num, den, err := p.parseTwoArgs(tok)
		if err != nil {
			return nil, err
		}
		frac := fracNode{num: num, den: den, hasLine: true}
		if name == `\cfrac` {
			frac.style = "display"
		}
		return frac, nil

	case `\binom`, `\dbinom`, `\tbinom`:
		num, den, err := p.parseTwoArgs(tok)
		if err != nil {
			return nil, err
		}
		frac := fracNode{num: num, den: den, left: "(", right: ")"}
		switch name {
		case `\dbinom`:
			frac.style = "display"
		case `\tbinom`:
			frac.style = "text"
		}
		return frac, nil

	case `\sqrt`:
		return p.parseSqrt(tok)

	case `\left`:
		return p.parseLeftRight(tok)

	case `\operatorname`:
		return p.parseOperatorName(tok)

	case `\color`:
		color, err := p.readColor(tok)
		if err != nil {
			return nil, err
		}
		if p.opts.ColorIsTextColor {
			arg, err := p.parseArg(tok)
			if err != nil {
				return nil, err
			}
			return colorNode{color: color, body: []node{arg}}, nil
		}
		// \color switches the color for the rest of the enclosing group.
		body, err := p.parseExpression(p.stops)
		if err != nil {
			return nil, err
		}
		return colorNode{color: color, body: body}, nil

	case `\textcolor`:
		color, err := p.readColor(tok)
		if err != nil {
			return nil, err
		}
		arg, err := p.parseArg(tok)
		if err != nil {
			return nil, err
		}
		return colorNode{color: color, body: []node{arg}}, nil

	case `\href`:
		href, err := p.readRawArg(tok)
		if err != nil {
			return nil, err
		}
		arg, err := p.parseArg(tok)
		if err != nil {
			return nil, err
		}
		if !p.opts.Trust {
			return unsupportedNode{name: name, color: p.opts.ErrorColor}, nil
		}
		return hrefNode{href: href, body: []node{arg}}, nil

	case `\url`:
		href, err := p.readRawArg(tok)
		if err != nil {
			return nil, err
		}
		if !p.opts.Trust {
			return unsupportedNode{name: name, color: p.opts.ErrorColor}, nil
		}
		text := textNode{font: textFonts[`\texttt`], body: []node{textLeaf{text: href}}}
		return hrefNode{href: href, body: []node{text}}, nil

	case `\displaystyle`, `\textstyle`:
		body, err := p.parseExpression(p.stops)
		if err != nil {
			return nil, err
		}
		return styleNode{display: name == `\displaystyle`, body: body}, nil

	case `\begin`:
		return p.parseEnvironment(tok)

	case `\\`, `\newline`, `\cr`:
		return newlineNode{}, nil

	case `\overset`, `\stackrel`, `\underset`:
		script, base, err := p.parseTwoArgs(tok)
		if err != nil {
			return nil, err
		}
		limits := true
		if name == `\underset` {
			return supSubNode{base: base, sub: script, limits: &limits}, nil
		}
		return supSubNode{base: base, sup: script, limits: &limits}, nil

	case `\hspace`, `\kern`:
		raw, err := p.readRawArg(tok)
		if err != nil {
			return nil, err
		}
		width, err := p.parseSize(raw, tok)
		if err != nil {
			return nil, err
		}
		return spaceNode{width: width}, nil

	case `\not`:
		n, err := p.parseArg(tok)
		if err != nil {
			return nil, err
		}
		sym, ok := n.(symbolNode)
		if !ok {
			return nil, newParseError(`\not must be followed by a symbol`, tok)
		}
		sym.text += "\u0338"
		return sym, nil

	case `\limits`, `\nolimits`:
		return nil, newParseError("Limit controls must follow a math operator", tok)
	}

	return nil, newParseError("Undefined control sequence: "+name, tok)
}

func (p *parser) parseTwoArgs(cmd token) (node, node, error) {
	first, err := p.parseArg(cmd)
	if err != nil {
		return nil, nil, err
	}
	second, err := p.parseArg(cmd)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func (p *parser) parseSqrt(cmd token) (node, error) {
	var index node

	tok, err := p.peekNonSpace()
	if err != nil {
		return nil, err
	}
	if tok.text == "[" {
		p.exp.popToken()
		body, err := p.parseExpression(bracketStops)
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		index = groupNode{body: body}
	}

	body, err := p.parseArg(cmd)
	if err != nil {
		return nil, err
	}
	return sqrtNode{body: body, index: index}, nil
}

func (p *parser) parseLeftRight(cmd token) (node, error) {
	left, err := p.readDelimiter(cmd)
	if err != nil {
		return nil, err
	}

	body, err := p.parseExpression(baseStops)
	if err != nil {
		return nil, err
	}

	right, err := p.exp.next()
	if err != nil {
		return nil, err
	}
	if right.text != `\right` {
		return nil, newParseError(fmt.Sprintf(`Expected '\right', got '%s'`, describe(right)), right)
	}

	rightDelim, err := p.readDelimiter(right)
	if err != nil {
		return nil, err
	}
	return leftRightNode{left: left, right: rightDelim, body: body}, nil
}

func (p *parser) parseOperatorName(cmd token) (node, error) {
	limits := false
	tok, err := p.exp.peek()
	if err != nil {
		return nil, err
	}
	if tok.text == "*" {
		p.exp.popToken()
		limits = true
	}

	arg, err := p.parseArg(cmd)
	if err != nil {
		return nil, err
	}
	text, ok := plainText(arg)
	if !ok || text == "" {
		return nil, newParseError(`\operatorname expects plain text`, cmd)
	}
	return opNode{text: text, limits: limits}, nil
}

// plainText flattens a group of single characters back into a string.
func plainText(n node) (string, bool) {
	switch n := n.(type) {
	case symbolNode:
		return n.text, true
	case groupNode:
		var b strings.Builder
		for _, child := range n.body {
			text, ok := plainText(child)
			if !ok {
				return "", false
			}
			b.WriteString(text)
		}
		return b.String(), true
	}
	return "", false
}

func (p *parser) parseEnvironment(begin token) (node, error) {
	name, err := p.readRawArg(begin)
	if err != nil {
		return nil, err
	}
	fences, ok := environments[name]
	if !ok {
		return nil, newParseError(fmt.Sprintf("No such environment: %s", name), begin)
	}

	var rows [][]node
	var row []node
	for {
		cell, err := p.parseExpression(cellStops)
		if err != nil {
			return nil, err
		}
		row = append(row, groupNode{body: cell})

		tok, err := p.exp.next()
		if err != nil {
			return nil, err
		}

		switch tok.text {
		case "&":
			continue
		case `\\`, `\cr`:
			rows = append(rows, row)
			row = nil
			continue
		case `\end`:
			rows = append(rows, row)
		default:
			return nil, newParseError(fmt.Sprintf(`Expected & or \\ or \end, got '%s'`, describe(tok)), tok)
		}

		end, err := p.readRawArg(tok)
		if err != nil {
			return nil, err
		}
		if end != name {
			return nil, newParseError(fmt.Sprintf(`Mismatch: \begin{%s} matched by \end{%s}`, name, end), tok)
		}
		break
	}

	// A trailing \\ leaves one empty row behind.
	if last := rows[len(rows)-1]; len(rows) > 1 && len(last) == 1 {
		if g, ok := last[0].(groupNode); ok && len(g.body) == 0 {
			rows = rows[:len(rows)-1]
		}
	}

	return arrayNode{env: name, fences: fences, rows: rows}, nil
}

func (p *parser) parseText(cmd token, f font) (node, error) {
	tok, err := p.peekNonSpace()
	if err != nil {
		return nil, err
	}
	if tok.text != "{" {
		return nil, newParseError(fmt.Sprintf("Expected group as argument to '%s'", cmd.text), cmd)
	}
	p.exp.popToken()

	body, err := p.parseTextBody(tok)
	if err != nil {
		return nil, err
	}
	return textNode{font: f, body: body}, nil
}

// parseTextBody reads text-mode content up to the brace matching open. Spaces
// are significant here.
func (p *parser) parseTextBody(open token) ([]node, error) {
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	var body []node
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			body = append(body, textLeaf{text: b.String()})
			b.Reset()
		}
	}

	for {
		tok, err := p.exp.next()
		if err != nil {
			return nil, err
		}

		switch {
		case tok.isEOF():
			return nil, newParseError("Expected '}', got 'EOF'", tok)
		case tok.text == "}":
			flush()
			return body, nil
		case tok.text == "{":
			inner, err := p.parseTextBody(tok)
			if err != nil {
				return nil, err
			}
			flush()
			body = append(body, inner...)
		case tok.isSpace(), tok.text == "~", tok.text == `\ `:
			b.WriteByte(' ')
		case tok.text == "$":
			return nil, newParseError(`Math inside \text is not supported`, tok)
		case tok.isControl():
			if f, ok := textFonts[tok.text]; ok {
				flush()
				n, err := p.parseText(tok, f)
				if err != nil {
					return nil, err
				}
				body = append(body, n)
				continue
			}
			if lit, ok := textSymbols[tok.text]; ok {
				b.WriteString(lit)
				continue
			}
			if w, ok := spaces[tok.text]; ok {
				flush()
				body = append(body, spaceNode{width: w})
				continue
			}
			return nil, newParseError("Undefined control sequence: "+tok.text, tok)
		default:
			b.WriteString(tok.text)
		}
	}
}

// readDelimiter reads the fence after \left, \right or a \big command.
func (p *parser) readDelimiter(cmd token) (string, error) {
	tok, err := p.peekNonSpace()
	if err != nil {
		return "", err
	}
	p.exp.popToken()

	delim, ok := delimiters[tok.text]
	if !ok {
		return "", newParseError(fmt.Sprintf("Invalid delimiter '%s' after '%s'", describe(tok), cmd.text), tok)
	}
	return delim, nil
}

func (p *parser) readColor(cmd token) (string, error) {
	raw, err := p.readRawArg(cmd)
	if err != nil {
		return "", err
	}
	color := strings.TrimSpace(raw)
	if !colorPattern.MatchString(color) {
		return "", newParseError(fmt.Sprintf("Invalid color: '%s'", color), cmd)
	}
	if hexPattern.MatchString(color) {
		color = "#" + color
	}
	return color, nil
}

// readRawArg reads a braced argument as unparsed text (colors, URLs,
// environment names, sizes).
func (p *parser) readRawArg(cmd token) (string, error) {
	tok, err := p.peekNonSpace()
	if err != nil {
		return "", err
	}
	if tok.text != "{" {
		return "", newParseError(fmt.Sprintf("Expected group as argument to '%s'", cmd.text), cmd)
	}
	p.exp.popToken()

	var b strings.Builder
	depth := 1
	for {
		tok := p.exp.popToken()
		switch tok.text {
		case eofText:
			return "", newParseError("Expected '}', got 'EOF'", tok)
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				return b.String(), nil
			}
		}
		b.WriteString(tok.text)
	}
}

// parseSize converts a TeX length like "1.5em" or "-3mu" to em, capped by MaxSize.
func (p *parser) parseSize(raw string, cmd token) (float64, error) {
	m := sizePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, newParseError(fmt.Sprintf("Invalid size: '%s'", raw), cmd)
	}

	factor, ok := units[m[3]]
	if !ok {
		return 0, newParseError(fmt.Sprintf("Invalid unit: '%s'", m[3]), cmd)
	}

	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, newParseError(fmt.Sprintf("Invalid size: '%s'", raw), cmd)
	}

	em := value * factor
	if p.opts.MaxSize > 0 && em > p.opts.MaxSize {
		em = p.opts.MaxSize
	}
	if m[1] == "-" {
		em = -em
	}
	return em, nil
}

func (p *parser) peekNonSpace() (token, error) {
	for {
		tok, err := p.exp.peek()
		if err != nil {
			return token{}, err
		}
		if !tok.isSpace() {
			return tok, nil
		}
		p.exp.popToken()
	}
}

func (p *parser) expect(text string) error {
	tok, err := p.exp.next()
	if err != nil {
		return err
	}
	if text == "EOF" && tok.isEOF() || tok.text == text {
		return nil
	}
	return newParseError(fmt.Sprintf("Expected '%s', got '%s'", text, describe(tok)), tok)
}

func describe(tok token) string {
	if tok.isEOF() {
		return "EOF"
	}
	return tok.text
}
