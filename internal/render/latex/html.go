package latex

import (
	"html"
	"strings"
)

// htmlBuilder writes the visual HTML tree, styled by the KaTeX stylesheet class names.
type htmlBuilder struct {
	b             strings.Builder
	display       bool
	fontClass     string
	ruleThickness string
}

func buildHTML(body []node, opts Options, ariaHidden bool) string {
	hb := &htmlBuilder{
		display:       opts.DisplayMode,
		ruleThickness: formatEm(opts.ruleThickness()),
	}

	hb.b.WriteString(`<span class="katex-html"`)
	if ariaHidden {
		hb.b.WriteString(` aria-hidden="true"`)
	}
	hb.b.WriteString(`><span class="base">`)
	hb.nodes(body)
	hb.b.WriteString(`</span></span>`)

	return hb.b.String()
}

// nodes writes siblings, applying TeX's rule that a binary operator with
// nothing to bind on one side is spaced as an ordinary symbol.
func (hb *htmlBuilder) nodes(body []node) {
	classes := make([]atom, len(body))
	for i, n := range body {
		classes[i] = atomOf(n)
	}
	for i := range classes {
		if classes[i] != atomBin {
			continue
		}
		prevBlocks := i == 0 || isBinBlocker(classes[i-1], true)
		nextBlocks := i == len(classes)-1 || isBinBlocker(classes[i+1], false)
		if prevBlocks || nextBlocks {
			classes[i] = atomOrd
		}
	}

	for i, n := range body {
		if sym, ok := n.(symbolNode); ok {
			hb.symbol(sym, classes[i])
			continue
		}
		hb.node(n)
	}
}

func isBinBlocker(a atom, before bool) bool {
	if before {
		return a == atomBin || a == atomOp || a == atomRel || a == atomOpen || a == atomPunct
	}
	return a == atomRel || a == atomClose || a == atomPunct
}

func atomOf(n node) atom {
	switch n := n.(type) {
	case symbolNode:
		return n.atom
	case opNode:
		return atomOp
	case supSubNode:
		return atomOf(n.base)
	case leftRightNode:
		return atomInner
	}
	return atomOrd
}

func (hb *htmlBuilder) node(n node) {
	switch n := n.(type) {
	case symbolNode:
		hb.symbol(n, n.atom)

	case groupNode:
		hb.open("mord")
		hb.nodes(n.body)
		hb.close()

	case supSubNode:
		hb.supSub(n)

	case fracNode:
		hb.frac(n)

	case sqrtNode:
		hb.open("mord sqrt")
		if n.index != nil {
			hb.open("root")
			hb.node(n.index)
			hb.close()
		}
		hb.span("sqrt-sign", "√")
		hb.b.WriteString(`<span class="sqrt-body" style="border-top-width:` + hb.ruleThickness + `;">`)
		hb.node(n.body)
		hb.close()
		hb.close()

	case leftRightNode:
		hb.open("minner")
		hb.delim("mopen", n.left)
		hb.nodes(n.body)
		hb.delim("mclose", n.right)
		hb.close()

	case fontNode:
		saved := hb.fontClass
		hb.fontClass = n.font.class
		hb.node(n.body)
		hb.fontClass = saved

	case textNode:
		hb.open("mord text")
		hb.open("mord " + n.font.class)
		for _, child := range n.body {
			hb.node(child)
		}
		hb.close()
		hb.close()

	case textLeaf:
		hb.b.WriteString(html.EscapeString(n.text))

	case accentNode:
		if n.accent.under {
			hb.open("mord underline")
			hb.node(n.base)
			hb.span("underline-line", n.accent.text)
			hb.close()
			return
		}
		hb.open("mord accent")
		hb.span("accent-body", n.accent.text)
		hb.node(n.base)
		hb.close()

	case spaceNode:
		hb.b.WriteString(`<span class="mspace" style="margin-right:` + formatEm(n.width) + `;"></span>`)

	case colorNode:
		hb.b.WriteString(`<span class="mord" style="color:` + html.EscapeString(n.color) + `;">`)
		hb.nodes(n.body)
		hb.close()

	case hrefNode:
		hb.b.WriteString(`<a href="` + html.EscapeString(n.href) + `">`)
		hb.nodes(n.body)
		hb.b.WriteString("</a>")

	case styleNode:
		saved := hb.display
		hb.display = n.display
		hb.nodes(n.body)
		hb.display = saved

	case opNode:
		hb.op(n)

	case arrayNode:
		hb.array(n)

	case newlineNode:
		hb.b.WriteString(`<span class="newline"></span>`)

	case unsupportedNode:
		hb.b.WriteString(`<span class="mord text" style="color:` + html.EscapeString(n.color) + `;">`)
		hb.b.WriteString(html.EscapeString(n.name))
		hb.close()
	}
}

func (hb *htmlBuilder) symbol(n symbolNode, class atom) {
	classes := class.htmlClass()
	switch {
	case n.size > 0:
		classes += " delimsizing size" + sizeIndex(n.size)
	case hb.fontClass != "" && n.elem != elemOperator:
		classes += " " + hb.fontClass
	case n.elem == elemIdentifier && !n.upright:
		classes += " mathnormal"
	}
	hb.span(classes, n.text)
}

func sizeIndex(size float64) string {
	switch {
	case size <= 1.2:
		return "1"
	case size <= 1.8:
		return "2"
	case size <= 2.4:
		return "3"
	}
	return "4"
}

func (hb *htmlBuilder) supSub(n supSubNode) {
	limits := false
	if n.limits != nil {
		limits = *n.limits
	} else if op, ok := n.base.(opNode); ok {
		limits = op.limits && hb.display
	}

	if limits {
		hb.open("mop op-limits")
		if n.sup != nil {
			hb.open("op-over")
			hb.script(n.sup)
			hb.close()
		}
		hb.open("op-base")
		hb.node(n.base)
		hb.close()
		if n.sub != nil {
			hb.open("op-under")
			hb.script(n.sub)
			hb.close()
		}
		hb.close()
		return
	}

	hb.open(atomOf(n.base).htmlClass())
	hb.node(n.base)
	hb.open("msupsub")
	if n.sup != nil {
		hb.open("msup")
		hb.script(n.sup)
		hb.close()
	}
	if n.sub != nil {
		hb.open("msub")
		hb.script(n.sub)
		hb.close()
	}
	hb.close()
	hb.close()
}

// script writes a sub- or superscript, which is never in display style.
func (hb *htmlBuilder) script(n node) {
	saved := hb.display
	hb.display = false
	hb.node(n)
	hb.display = saved
}

func (hb *htmlBuilder) frac(n fracNode) {
	saved := hb.display
	if n.style != "" {
		hb.display = n.style == "display"
	}

	hb.open("mord")
	hb.delim("mopen", n.left)

	class := "mfrac"
	if hb.display {
		class += " display"
	}
	hb.open(class)
	hb.display = false

	hb.open("mfrac-num")
	hb.node(n.num)
	hb.close()
	if n.hasLine {
		hb.b.WriteString(`<span class="frac-line" style="border-bottom-width:` + hb.ruleThickness + `;"></span>`)
	}
	hb.open("mfrac-den")
	hb.node(n.den)
	hb.close()

	hb.close()
	hb.delim("mclose", n.right)
	hb.close()

	hb.display = saved
}

// delim writes a fence; an empty fence keeps its slot as a null delimiter.
func (hb *htmlBuilder) delim(class, text string) {
	if text == "" {
		hb.span(class+" nulldelimiter", "")
		return
	}
	hb.span(class+" delimcenter", text)
}

func (hb *htmlBuilder) op(n opNode) {
	if !n.symbol {
		hb.span("mop", n.text)
		return
	}
	size := "small-op"
	if hb.display {
		size = "large-op"
	}
	hb.span("mop op-symbol "+size, n.text)
}

func (hb *htmlBuilder) array(n arrayNode) {
	hb.open("mord")
	if n.fences[0] != "" || n.fences[1] != "" {
		hb.delim("mopen", n.fences[0])
	}

	saved := hb.display
	hb.display = false

	hb.open("mtable")
	for _, row := range n.rows {
		hb.open("mtr")
		for col, cell := range row {
			hb.open("mtd col-align-" + columnAlign(n.env, col))
			hb.node(cell)
			hb.close()
		}
		hb.close()
	}
	hb.close()

	hb.display = saved

	if n.fences[0] != "" || n.fences[1] != "" {
		hb.delim("mclose", n.fences[1])
	}
	hb.close()
}

func columnAlign(env string, col int) string {
	switch env {
	case "cases":
		return "l"
	case "aligned":
		if col%2 == 0 {
			return "r"
		}
		return "l"
	}
	return "c"
}

func (hb *htmlBuilder) open(class string) {
	hb.b.WriteString(`<span class="` + class + `">`)
}

func (hb *htmlBuilder) close() {
	hb.b.WriteString("</span>")
}

func (hb *htmlBuilder) span(class, text string) {
	hb.b.WriteString(`<span class="` + class + `">` + html.EscapeString(text) + "</span>")
}
