package latex

// atom is the spacing class of a math item, as in TeX's mathord/mathbin/...
type atom int

const (
	atomOrd atom = iota
	atomOp
	atomBin
	atomRel
	atomOpen
	atomClose
	atomPunct
	atomInner
)

func (a atom) htmlClass() string {
	switch a {
	case atomOp:
		return "mop"
	case atomBin:
		return "mbin"
	case atomRel:
		return "mrel"
	case atomOpen:
		return "mopen"
	case atomClose:
		return "mclose"
	case atomPunct:
		return "mpunct"
	case atomInner:
		return "minner"
	default:
		return "mord"
	}
}

// symbol is a control sequence that stands for one character.
type symbol struct {
	text string
	atom atom
	// upright ord symbols are drawn in the normal font instead of math italic.
	upright bool
}

func ord(text string) symbol { return symbol{text: text, atom: atomOrd} }
func uprightOrd(text string) symbol { return symbol{text: text, atom: atomOrd, upright: true} }
func bin(text string) symbol { return symbol{text: text, atom: atomBin} }
func rel(text string) symbol { return symbol{text: text, atom: atomRel} }
func opening(text string) symbol { return symbol{text: text, atom: atomOpen} }
func closing(text string) symbol { return symbol{text: text, atom: atomClose} }
func punct(text string) symbol { return symbol{text: text, atom: atomPunct} }

var symbols = map[string]symbol{
	// Greek, lowercase
	`\alpha`: ord("α"), `\beta`: ord("β"), `\gamma`: ord("γ"), `\delta`: ord("δ"),
	`\epsilon`: ord("ϵ"), `\varepsilon`: ord("ε"), `\zeta`: ord("ζ"), `\eta`: ord("η"),
	`\theta`: ord("θ"), `\vartheta`: ord("ϑ"), `\iota`: ord("ι"), `\kappa`: ord("κ"),
	`\lambda`: ord("λ"), `\mu`: ord("μ"), `\nu`: ord("ν"), `\xi`: ord("ξ"),
	`\omicron`: ord("ο"), `\pi`: ord("π"), `\varpi`: ord("ϖ"), `\rho`: ord("ρ"),
	`\varrho`: ord("ϱ"), `\sigma`: ord("σ"), `\varsigma`: ord("ς"), `\tau`: ord("τ"),
	`\upsilon`: ord("υ"), `\phi`: ord("ϕ"), `\varphi`: ord("φ"), `\chi`: ord("χ"),
	`\psi`: ord("ψ"), `\omega`: ord("ω"),

	// Greek, uppercase
	`\Gamma`: uprightOrd("Γ"), `\Delta`: uprightOrd("Δ"), `\Theta`: uprightOrd("Θ"),
	`\Lambda`: uprightOrd("Λ"), `\Xi`: uprightOrd("Ξ"), `\Pi`: uprightOrd("Π"),
	`\Sigma`: uprightOrd("Σ"), `\Upsilon`: uprightOrd("Υ"), `\Phi`: uprightOrd("Φ"),
	`\Psi`: uprightOrd("Ψ"), `\Omega`: uprightOrd("Ω"),

	// Ordinary symbols
	`\infty`: uprightOrd("∞"), `\partial`: uprightOrd("∂"), `\nabla`: uprightOrd("∇"),
	`\forall`: uprightOrd("∀"), `\exists`: uprightOrd("∃"), `\nexists`: uprightOrd("∄"),
	`\emptyset`: uprightOrd("∅"), `\varnothing`: uprightOrd("∅"), `\hbar`: uprightOrd("ℏ"),
	`\ell`: ord("ℓ"), `\aleph`: uprightOrd("ℵ"), `\angle`: uprightOrd("∠"),
	`\prime`: uprightOrd("′"), `\neg`: uprightOrd("¬"), `\top`: uprightOrd("⊤"),
	`\bot`: uprightOrd("⊥"), `\ldots`: uprightOrd("…"), `\cdots`: {text: "⋯", atom: atomInner},
	`\vdots`: uprightOrd("⋮"), `\ddots`: {text: "⋱", atom: atomInner}, `\Re`: uprightOrd("ℜ"),
	`\Im`: uprightOrd("ℑ"), `\wp`: uprightOrd("℘"), `\degree`: uprightOrd("°"),
	`\$`: uprightOrd("$"), `\%`: uprightOrd("%"), `\#`: uprightOrd("#"),
	`\&`: uprightOrd("&"), `\_`: uprightOrd("_"),

	// Binary operators
	`\pm`: bin("±"), `\mp`: bin("∓"), `\times`: bin("×"), `\div`: bin("÷"),
	`\cdot`: bin("⋅"), `\ast`: bin("∗"), `\star`: bin("⋆"), `\circ`: bin("∘"),
	`\bullet`: bin("∙"), `\cup`: bin("∪"), `\cap`: bin("∩"), `\wedge`: bin("∧"),
	`\vee`: bin("∨"), `\oplus`: bin("⊕"), `\ominus`: bin("⊖"), `\otimes`: bin("⊗"),
	`\oslash`: bin("⊘"), `\odot`: bin("⊙"), `\setminus`: bin("∖"), `\dagger`: bin("†"),

	// Relations
	`\leq`: rel("≤"), `\le`: rel("≤"), `\geq`: rel("≥"), `\ge`: rel("≥"),
	`\neq`: rel("≠"), `\ne`: rel("≠"), `\approx`: rel("≈"), `\equiv`: rel("≡"),
	`\sim`: rel("∼"), `\simeq`: rel("≃"), `\cong`: rel("≅"), `\propto`: rel("∝"),
	`\in`: rel("∈"), `\notin`: rel("∉"), `\ni`: rel("∋"), `\subset`: rel("⊂"),
	`\supset`: rel("⊃"), `\subseteq`: rel("⊆"), `\supseteq`: rel("⊇"), `\ll`: rel("≪"),
	`\gg`: rel("≫"), `\perp`: rel("⊥"), `\parallel`: rel("∥"), `\mid`: rel("∣"),
	`\to`: rel("→"), `\rightarrow`: rel("→"), `\leftarrow`: rel("←"), `\gets`: rel("←"),
	`\leftrightarrow`: rel("↔"), `\Rightarrow`: rel("⇒"), `\Leftarrow`: rel("⇐"),
	`\Leftrightarrow`: rel("⇔"), `\Longrightarrow`: rel("⟹"), `\Longleftarrow`: rel("⟸"),
	`\Longleftrightarrow`: rel("⟺"), `\longrightarrow`: rel("⟶"), `\longleftarrow`: rel("⟵"),
	`\mapsto`: rel("↦"), `\uparrow`: rel("↑"), `\downarrow`: rel("↓"), `\vdash`: rel("⊢"),
	`\models`: rel("⊨"), `\prec`: rel("≺"), `\succ`: rel("≻"), `\preceq`: rel("⪯"),
	`\succeq`: rel("⪰"),

	// Delimiters used outside \left...\right
	`\{`: opening("{"), `\}`: closing("}"), `\lbrace`: opening("{"), `\rbrace`: closing("}"),
	`\langle`: opening("⟨"), `\rangle`: closing("⟩"), `\lfloor`: opening("⌊"), `\rfloor`: closing("⌋"),
	`\lceil`: opening("⌈"), `\rceil`: closing("⌉"), `\lvert`: opening("∣"), `\rvert`: closing("∣"),
	`\lVert`: opening("∥"), `\rVert`: closing("∥"), `\vert`: uprightOrd("∣"), `\|`: uprightOrd("∥"),
	`\Vert`: uprightOrd("∥"),

	// Punctuation
	`\colon`: punct(":"), `\ldotp`: punct("."), `\cdotp`: punct("⋅"),
}

// mathChars classifies single characters typed in math mode.
var mathChars = map[rune]symbol{
	'+': bin("+"), '-': bin("−"), '*': bin("∗"), '/': ord("/"),
	'=': rel("="), '<': rel("<"), '>': rel(">"), ':': rel(":"),
	'(': opening("("), '[': opening("["), ')': closing(")"), ']': closing("]"),
	',': punct(","), ';': punct(";"), '!': closing("!"), '?': closing("?"),
	'|': uprightOrd("∣"), '.': ord("."), '@': ord("@"), '"': ord("\""),
	'\'': uprightOrd("′"),
}

// largeOp is a big operator such as \sum. Operators with limits put their
// scripts above and below in display style.
type largeOp struct {
	text   string
	limits bool
}

var largeOps = map[string]largeOp{
	`\sum`: {"∑", true}, `\prod`: {"∏", true}, `\coprod`: {"∐", true},
	`\bigcup`: {"⋃", true}, `\bigcap`: {"⋂", true}, `\bigoplus`: {"⨁", true},
	`\bigotimes`: {"⨂", true}, `\bigvee`: {"⋁", true}, `\bigwedge`: {"⋀", true},
	`\int`: {"∫", false}, `\iint`: {"∬", false}, `\iiint`: {"∭", false}, `\oint`: {"∮", false},
}

// namedFunctions are operator names set in roman type; the value reports
// whether the name takes limits in display style.
var namedFunctions = map[string]bool{
	`\sin`: false, `\cos`: false, `\tan`: false, `\cot`: false, `\sec`: false, `\csc`: false,
	`\arcsin`: false, `\arccos`: false, `\arctan`: false, `\sinh`: false, `\cosh`: false,
	`\tanh`: false, `\coth`: false, `\log`: false, `\ln`: false, `\lg`: false, `\exp`: false,
	`\arg`: false, `\deg`: false, `\dim`: false, `\hom`: false, `\ker`: false,
	`\lim`: true, `\liminf`: true, `\limsup`: true, `\max`: true, `\min`: true,
	`\sup`: true, `\inf`: true, `\det`: true, `\gcd`: true, `\Pr`: true,
}

// delimiters are the fences allowed after \left, \right and \middle.
var delimiters = map[string]string{
	"(": "(", ")": ")", "[": "[", "]": "]", "|": "|", "/": "/", "<": "⟨", ">": "⟩",
	".": "",
	`\{`: "{", `\}`: "}", `\lbrace`: "{", `\rbrace`: "}",
	`\langle`: "⟨", `\rangle`: "⟩", `\lfloor`: "⌊", `\rfloor`: "⌋",
	`\lceil`: "⌈", `\rceil`: "⌉", `\vert`: "|", `\|`: "∥", `\Vert`: "∥",
	`\lvert`: "|", `\rvert`: "|", `\lVert`: "∥", `\rVert`: "∥",
	`\uparrow`: "↑", `\downarrow`: "↓", `\backslash`: "∖",
}

// accent describes \hat-like commands. under accents go below the base.
type accent struct {
	text  string
	under bool
}

var accents = map[string]accent{
	`\hat`: {text: "^"}, `\widehat`: {text: "^"}, `\check`: {text: "ˇ"},
	`\tilde`: {text: "~"}, `\widetilde`: {text: "~"}, `\bar`: {text: "ˉ"},
	`\overline`: {text: "‾"}, `\vec`: {text: "⃗"}, `\dot`: {text: "˙"},
	`\ddot`: {text: "¨"}, `\acute`: {text: "ˊ"}, `\grave`: {text: "ˋ"},
	`\breve`: {text: "˘"}, `\overrightarrow`: {text: "→"}, `\overleftarrow`: {text: "←"},
	`\underline`: {text: "‾", under: true}, `\underbrace`: {text: "⏟", under: true},
	`\overbrace`: {text: "⏞"},
}

// fonts maps font commands to their MathML mathvariant and HTML class.
type font struct {
	variant string
	class   string
}

var mathFonts = map[string]font{
	`\mathrm`: {"normal", "mathrm"}, `\mathbf`: {"bold", "mathbf"},
	`\mathit`: {"italic", "mathit"}, `\mathsf`: {"sans-serif", "mathsf"},
	`\mathtt`: {"monospace", "mathtt"}, `\mathcal`: {"script", "mathcal"},
	`\mathscr`: {"script", "mathscr"}, `\mathbb`: {"double-struck", "mathbb"},
	`\mathfrak`: {"fraktur", "mathfrak"}, `\boldsymbol`: {"bold-italic", "boldsymbol"},
	`\bm`: {"bold-italic", "boldsymbol"}, `\mathnormal`: {"", "mathnormal"},
}

var textFonts = map[string]font{
	`\text`: {"normal", "text"}, `\textrm`: {"normal", "textrm"},
	`\textbf`: {"bold", "textbf"}, `\textit`: {"italic", "textit"},
	`\textsf`: {"sans-serif", "textsf"}, `\texttt`: {"monospace", "texttt"},
	`\mbox`: {"normal", "text"}, `\textnormal`: {"normal", "textrm"},
}

// spaces maps spacing commands to their width in em.
var spaces = map[string]float64{
	`\,`: 0.1667, `\thinspace`: 0.1667,
	`\:`: 0.2222, `\>`: 0.2222, `\medspace`: 0.2222,
	`\;`: 0.2778, `\thickspace`: 0.2778,
	`\!`: -0.1667, `\negthinspace`: -0.1667,
	`\ `: 0.25, `~`: 0.25, `\quad`: 1, `\qquad`: 2, `\enspace`: 0.5,
}

// environments maps matrix-like environments to their fences.
var environments = map[string][2]string{
	"matrix":  {"", ""},
	"pmatrix": {"(", ")"},
	"bmatrix": {"[", "]"},
	"Bmatrix": {"{", "}"},
	"vmatrix": {"|", "|"},
	"Vmatrix": {"∥", "∥"},
	"cases":   {"{", ""},
	"aligned": {"", ""},
}

// sizedDelim is a \big-family command: its delimiter size in em and the atom
// its l/r/m suffix selects.
type sizedDelim struct {
	size float64
	atom atom
}

var delimSizes = func() map[string]sizedDelim {
	sizes := map[string]float64{`\big`: 1.2, `\Big`: 1.8, `\bigg`: 2.4, `\Bigg`: 3.0}
	out := make(map[string]sizedDelim, len(sizes)*4)
	for name, size := range sizes {
		out[name] = sizedDelim{size: size, atom: atomOrd}
		out[name+"l"] = sizedDelim{size: size, atom: atomOpen}
		out[name+"r"] = sizedDelim{size: size, atom: atomClose}
		out[name+"m"] = sizedDelim{size: size, atom: atomRel}
	}
	return out
}()

// textSymbols are control symbols that stand for a literal character in text mode.
var textSymbols = map[string]string{
	`\{`: "{", `\}`: "}", `\$`: "$", `\%`: "%", `\#`: "#", `\&`: "&", `\_`: "_",
	`\textbackslash`: `\`, `\ldots`: "…", `\S`: "§", `\P`: "¶", `\textendash`: "–",
	`\textemdash`: "\u2014",
}

// units converts TeX units to em at the default font size.
var units = map[string]float64{
	"em": 1,
	"ex": 0.431,
	"pt": 0.1,
	"pc": 1.2,
	"bp": 0.1004,
	"mm": 0.2845,
	"cm": 2.845,
	"in": 7.227,
	"mu": 1.0 / 18,
}
