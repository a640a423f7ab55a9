package keymapfile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes keymap scripts. Keywords are lowercase; key and scancode
// names are identifiers, plain numbers or quoted strings.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},

	{Name: "KwLayer", Pattern: `\blayer\b`},
	{Name: "KwMap", Pattern: `\bmap\b`},
	{Name: "KwColor", Pattern: `\bcolor\b`},
	{Name: "KwBrightness", Pattern: `\bbrightness\b`},
	{Name: "KwMode", Pattern: `\bmode\b`},
	{Name: "KwSpeed", Pattern: `\bspeed\b`},

	{Name: "Arrow", Pattern: `->`},
	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "Semicolon", Pattern: `;`},

	{Name: "Color", Pattern: `#[0-9A-Fa-f]+`},
	{Name: "String", Pattern: `"[^"\n]*"`},
	{Name: "Hex", Pattern: `0[xX][0-9A-Fa-f]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
})
