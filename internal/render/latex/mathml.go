package latex

import (
	"html"
	"strconv"
	"strings"
)

const mathMLNamespace = "http://www.w3.org/1998/Math/MathML"

// mathMLBuilder writes the MathML tree. display tracks the current style for
// operator limits; variant is the mathvariant set by an enclosing font command.
type mathMLBuilder struct {
	b       strings.Builder
	display bool
	variant string
}

func buildMathML(expr string, body []node, opts Options) string {
	mb := &mathMLBuilder{display: opts.DisplayMode}

	mb.b.WriteString(`<math xmlns="` + mathMLNamespace + `"`)
	if opts.DisplayMode {
		mb.b.WriteString(` display="block"`)
	}
	mb.b.WriteString(`><semantics><mrow>`)
	mb.nodes(body)
	mb.b.WriteString(`</mrow><annotation encoding="application/x-tex">`)
	mb.b.WriteString(html.EscapeString(expr))
	mb.b.WriteString(`</annotation></semantics></math>`)

	return mb.b.String()
}

func (mb *mathMLBuilder) nodes(body []node) {
	for _, n := range body {
		mb.node(n)
	}
}

// row writes body as a single MathML child, wrapping it in <mrow> unless it
// already is one element.
func (mb *mathMLBuilder) row(body []node) {
	if len(body) == 1 {
		mb.node(body[0])
		return
	}
	mb.b.WriteString("<mrow>")
	mb.nodes(body)
	mb.b.WriteString("</mrow>")
}

func (mb *mathMLBuilder) child(n node) {
	if g, ok := n.(groupNode); ok {
		mb.row(g.body)
		return
	}
	mb.node(n)
}

func (mb *mathMLBuilder) node(n node) {
	switch n := n.(type) {
	case symbolNode:
		mb.symbol(n)

	case groupNode:
		mb.row(n.body)

	case supSubNode:
		mb.supSub(n)

	case fracNode:
		mb.frac(n)

	case sqrtNode:
		if n.index == nil {
			mb.b.WriteString("<msqrt>")
			mb.child(n.body)
			mb.b.WriteString("</msqrt>")
			return
		}
		mb.b.WriteString("<mroot>")
		mb.child(n.body)
		mb.child(n.index)
		mb.b.WriteString("</mroot>")

	case leftRightNode:
		mb.b.WriteString("<mrow>")
		mb.fence(n.left)
		mb.nodes(n.body)
		mb.fence(n.right)
		mb.b.WriteString("</mrow>")

	case fontNode:
		saved := mb.variant
		mb.variant = n.font.variant
		mb.child(n.body)
		mb.variant = saved

	case textNode:
		mb.text(n)

	case textLeaf:
		mb.element("mtext", "", strings.ReplaceAll(n.text, " ", "\u00a0"))

	case accentNode:
		if n.accent.under {
			mb.b.WriteString(`<munder accentunder="true">`)
			mb.child(n.base)
			mb.element("mo", ` stretchy="true"`, n.accent.text)
			mb.b.WriteString("</munder>")
			return
		}
		mb.b.WriteString(`<mover accent="true">`)
		mb.child(n.base)
		mb.element("mo", "", n.accent.text)
		mb.b.WriteString("</mover>")

	case spaceNode:
		mb.b.WriteString(`<mspace width="` + formatEm(n.width) + `"></mspace>`)

	case colorNode:
		mb.b.WriteString(`<mstyle mathcolor="` + html.EscapeString(n.color) + `">`)
		mb.nodes(n.body)
		mb.b.WriteString("</mstyle>")

	case hrefNode:
		mb.b.WriteString(`<mrow href="` + html.EscapeString(n.href) + `">`)
		mb.nodes(n.body)
		mb.b.WriteString("</mrow>")

	case styleNode:
		saved := mb.display
		mb.display = n.display
		mb.b.WriteString(`<mstyle ` + styleAttrs(n.display) + `>`)
		mb.nodes(n.body)
		mb.b.WriteString("</mstyle>")
		mb.display = saved

	case opNode:
		mb.op(n)

	case arrayNode:
		mb.array(n)

	case newlineNode:
		mb.b.WriteString(`<mspace linebreak="newline"></mspace>`)

	case unsupportedNode:
		mb.b.WriteString(`<mstyle mathcolor="` + html.EscapeString(n.color) + `">`)
		mb.element("mtext", "", n.name)
		mb.b.WriteString("</mstyle>")
	}
}

func (mb *mathMLBuilder) symbol(n symbolNode) {
	attrs := ""
	switch {
	case n.size > 0:
		size := formatEm(n.size)
		attrs = ` fence="false" stretchy="true" minsize="` + size + `" maxsize="` + size + `"`
	case n.elem == elemOperator && (n.atom == atomOpen || n.atom == atomClose):
		attrs = ` stretchy="false"`
	case n.elem != elemOperator && mb.variant != "":
		attrs = ` mathvariant="` + mb.variant + `"`
	case n.elem == elemIdentifier && n.upright:
		attrs = ` mathvariant="normal"`
	}
	mb.element(string(n.elem), attrs, n.text)
}

func (mb *mathMLBuilder) supSub(n supSubNode) {
	limits := false
	if n.limits != nil {
		limits = *n.limits
	} else if op, ok := n.base.(opNode); ok {
		limits = op.limits && mb.display
	}

	var tag string
	switch {
	case n.sup != nil && n.sub != nil && limits:
		tag = "munderover"
	case n.sup != nil && n.sub != nil:
		tag = "msubsup"
	case n.sup != nil && limits:
		tag = "mover"
	case n.sup != nil:
		tag = "msup"
	case limits:
		tag = "munder"
	default:
		tag = "msub"
	}

	mb.b.WriteString("<" + tag + ">")
	mb.child(n.base)
	if n.sub != nil {
		mb.child(n.sub)
	}
	if n.sup != nil {
		mb.child(n.sup)
	}
	mb.b.WriteString("</" + tag + ">")
}

func (mb *mathMLBuilder) frac(n fracNode) {
	saved := mb.display
	if n.style != "" {
		mb.display = n.style == "display"
		mb.b.WriteString(`<mstyle ` + styleAttrs(mb.display) + `>`)
	}
	if n.left != "" || n.right != "" {
		mb.b.WriteString("<mrow>")
		mb.fence(n.left)
	}

	if n.hasLine {
		mb.b.WriteString("<mfrac>")
	} else {
		mb.b.WriteString(`<mfrac linethickness="0px">`)
	}

	// Numerator and denominator are set one style smaller.
	inner := mb.display
	mb.display = false
	mb.child(n.num)
	mb.child(n.den)
	mb.display = inner
	mb.b.WriteString("</mfrac>")

	if n.left != "" || n.right != "" {
		mb.fence(n.right)
		mb.b.WriteString("</mrow>")
	}
	if n.style != "" {
		mb.b.WriteString("</mstyle>")
	}
	mb.display = saved
}

func (mb *mathMLBuilder) fence(delim string) {
	if delim == "" {
		return
	}
	mb.element("mo", ` fence="true"`, delim)
}

func (mb *mathMLBuilder) text(n textNode) {
	saved := mb.variant
	mb.variant = n.font.variant
	for _, child := range n.body {
		switch child := child.(type) {
		case textLeaf:
			attrs := ""
			if mb.variant != "" && mb.variant != "normal" {
				attrs = ` mathvariant="` + mb.variant + `"`
			}
			mb.element("mtext", attrs, strings.ReplaceAll(child.text, " ", "\u00a0"))
		default:
			mb.node(child)
		}
	}
	mb.variant = saved
}

func (mb *mathMLBuilder) op(n opNode) {
	if n.symbol {
		mb.element("mo", "", n.text)
		return
	}
	// Named functions are identifiers followed by an invisible function application.
	mb.element("mi", "", n.text)
	mb.element("mo", "", "\u2061")
}

func (mb *mathMLBuilder) array(n arrayNode) {
	hasFences := n.fences[0] != "" || n.fences[1] != ""
	if hasFences {
		mb.b.WriteString("<mrow>")
		mb.fence(n.fences[0])
	}

	mb.b.WriteString(`<mtable rowspacing="0.16em" columnspacing="1em"`)
	switch n.env {
	case "cases":
		mb.b.WriteString(` columnalign="left left"`)
	case "aligned":
		mb.b.WriteString(` columnalign="right left"`)
	}
	mb.b.WriteString(">")

	saved := mb.display
	mb.display = false
	for _, row := range n.rows {
		mb.b.WriteString("<mtr>")
		for _, cell := range row {
			mb.b.WriteString(`<mtd><mstyle scriptlevel="0" displaystyle="false">`)
			mb.child(cell)
			mb.b.WriteString("</mstyle></mtd>")
		}
		mb.b.WriteString("</mtr>")
	}
	mb.display = saved

	mb.b.WriteString("</mtable>")
	if hasFences {
		mb.fence(n.fences[1])
		mb.b.WriteString("</mrow>")
	}
}

func (mb *mathMLBuilder) element(tag, attrs, text string) {
	mb.b.WriteString("<" + tag + attrs + ">")
	mb.b.WriteString(html.EscapeString(text))
	mb.b.WriteString("</" + tag + ">")
}

func styleAttrs(display bool) string {
	if display {
		return `displaystyle="true" scriptlevel="0"`
	}
	return `displaystyle="false" scriptlevel="0"`
}

func formatEm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "em"
}
