// Package keymapfile reads and writes keymap scripts: a small text format
// that describes the bindings and lighting of each layer of a board.
//
//	// swap caps lock and escape
//	layer 0 {
//	    map CAPS -> ESC
//	    map ESC -> CAPS
//	    color #ff8800
//	    brightness 128
//	    mode SOLID_COLOR speed 128
//	}
package keymapfile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// File is a parsed keymap script.
type File struct {
	Layers []*LayerBlock `@@*`
}

// LayerBlock holds the statements for one layer.
type LayerBlock struct {
	Pos lexer.Position

	Index      int          `KwLayer @Int LBrace`
	Statements []*Statement `( @@ Semicolon? )* RBrace`
}

// Statement is one line inside a layer block.
type Statement struct {
	Pos lexer.Position

	Map        *MapStmt        `  @@`
	Color      *ColorStmt      `| @@`
	Brightness *BrightnessStmt `| @@`
	Mode       *ModeStmt       `| @@`
}

// MapStmt binds a physical key to a scancode.
type MapStmt struct {
	Key   string `KwMap @( Ident | Int | String )`
	Value string `Arrow @( Ident | Hex | Int | String )`
}

// ColorStmt sets the layer color.
type ColorStmt struct {
	Value string `KwColor @Color`
}

// BrightnessStmt sets the layer brightness.
type BrightnessStmt struct {
	Value int `KwBrightness @Int`
}

// ModeStmt sets the lighting effect, by id or index, and optionally its
// speed.
type ModeStmt struct {
	Mode  string `KwMode @( Ident | Int )`
	Speed *int   `( KwSpeed @Int )?`
}
