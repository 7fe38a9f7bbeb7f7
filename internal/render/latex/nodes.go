package latex

// node is one item of the parse tree. Builders switch on the concrete type.
type node interface {
	isNode()
}

// element is the MathML token element a symbol is written as.
type element string

const (
	elemIdentifier element = "mi"
	elemNumber     element = "mn"
	elemOperator   element = "mo"
)

type symbolNode struct {
	text    string
	atom    atom
	elem    element
	upright bool
	// size is the \big-family delimiter size in em; zero for normal size.
	size float64
}

type groupNode struct {
	body []node
}

type supSubNode struct {
	base node
	sup  node
	sub  node
	// limits forces scripts above/below (true) or beside (false) the base;
	// nil lets the operator and style decide.
	limits *bool
}

type fracNode struct {
	num, den node
	hasLine  bool
	// style is "display", "text" or "" to inherit.
	style       string
	left, right string
}

type sqrtNode struct {
	body  node
	index node
}

type leftRightNode struct {
	left, right string
	body        []node
}

type fontNode struct {
	font font
	body node
}

type textNode struct {
	font font
	body []node
}

type textLeaf struct {
	text string
}

type accentNode struct {
	accent accent
	base   node
}

type spaceNode struct {
	width float64
}

type colorNode struct {
	color string
	body  []node
}

type hrefNode struct {
	href string
	body []node
}

type styleNode struct {
	display bool
	body    []node
}

type opNode struct {
	text   string
	symbol bool
	limits bool
}

type arrayNode struct {
	env    string
	fences [2]string
	rows   [][]node
}

type newlineNode struct{}

// unsupportedNode renders a command that was parsed but refused, such as
// \href without trust.
type unsupportedNode struct {
	name  string
	color string
}

func (symbolNode) isNode() {}
func (groupNode) isNode() {}
func (supSubNode) isNode() {}
func (fracNode) isNode() {}
func (sqrtNode) isNode() {}
func (leftRightNode) isNode() {}
func (fontNode) isNode() {}
func (textNode) isNode() {}
func (textLeaf) isNode() {}
func (accentNode) isNode() {}
func (spaceNode) isNode() {}
func (colorNode) isNode() {}
func (hrefNode) isNode() {}
func (styleNode) isNode() {}
func (opNode) isNode() {}
func (arrayNode) isNode() {}
func (newlineNode) isNode() {}
func (unsupportedNode) isNode() {}
