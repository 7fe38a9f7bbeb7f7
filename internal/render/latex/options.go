package latex

// Output selects which markup trees RenderToString emits.
type Output string

const (
	OutputHTML          Output = "html"
	OutputMathML        Output = "mathml"
	OutputHTMLAndMathML Output = "htmlAndMathml"
)

// Strict controls how input that is valid here but not in LaTeX is treated.
type Strict string

const (
	StrictIgnore Strict = "ignore"
	StrictWarn   Strict = "warn"
	StrictError  Strict = "error"
)

const (
	// DefaultErrorColor colors rendered errors when ThrowOnError is false.
	DefaultErrorColor = "#cc0000"

	// DefaultMaxExpand bounds macro expansions per render.
	DefaultMaxExpand = 1000

	// defaultRuleThickness is the fraction bar and radical rule width, in em.
	defaultRuleThickness = 0.04
)

// Macro is a user macro. Definition may reference its arguments as #1..#9.
type Macro struct {
	Definition string
	NumArgs    int
}

// Options mirror the render settings accepted by the latex-html endpoint.
//
// The zero value is not the default configuration; use DefaultOptions and
// override fields from there.
type Options struct {
	DisplayMode  bool
	Output       Output
	Leqno        bool
	Fleqn        bool
	ThrowOnError bool
	ErrorColor   string
	Macros       map[string]Macro

	// MinRuleThickness raises the width of fraction bars and radical rules, in em.
	MinRuleThickness float64

	// ColorIsTextColor makes \color take its body as an argument, like \textcolor.
	ColorIsTextColor bool

	// MaxSize caps user-specified sizes, in em. Zero means unlimited.
	MaxSize float64

	// MaxExpand bounds macro expansions. Negative means unlimited.
	MaxExpand int

	Strict Strict
	Trust  bool

	// GlobalGroup is accepted for compatibility. Expressions here cannot
	// define macros, so it has no effect.
	GlobalGroup bool

	// OnWarning receives strict-mode warnings when Strict is StrictWarn.
	OnWarning func(msg string)
}

// DefaultOptions returns the settings used when a request gives none.
func DefaultOptions() Options {
	return Options{
		Output:       OutputHTMLAndMathML,
		ThrowOnError: true,
		ErrorColor:   DefaultErrorColor,
		MaxExpand:    DefaultMaxExpand,
		Strict:       StrictWarn,
	}
}

func (o Options) normalized() Options {
	if o.Output == "" {
		o.Output = OutputHTMLAndMathML
	}
	if o.ErrorColor == "" || !colorPattern.MatchString(o.ErrorColor) {
		o.ErrorColor = DefaultErrorColor
	}
	if o.Strict == "" {
		o.Strict = StrictWarn
	}
	return o
}

func (o Options) ruleThickness() float64 {
	if o.MinRuleThickness > defaultRuleThickness {
		return o.MinRuleThickness
	}
	return defaultRuleThickness
}
