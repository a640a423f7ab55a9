package keymapfile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/backend"
	"github.com/OpenTraceLab/OpenTraceKeyboard/pkg/layout"
)

var plainName = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_]*|[0-9]+|0[xX][0-9A-Fa-f]+)$`)

// Export writes a script that reproduces the cached state of board.
func Export(w io.Writer, board *backend.Board, km *layout.Keymap) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "// %s (%s), firmware %s\n", board.DisplayName(), board.Layout().Model, board.Version())
	for _, l := range board.Layers() {
		fmt.Fprintf(bw, "layer %d {\n", l.Index)
		for _, k := range board.Keys() {
			code, ok := k.Scancode(int(l.Index))
			if !ok {
				continue
			}
			fmt.Fprintf(bw, "    map %s -> %s\n", token(k.Name), token(km.Name(code)))
		}
		if c, ok := l.Color(); ok {
			fmt.Fprintf(bw, "    color #%s\n", c)
		}
		if v, ok := l.Brightness(); ok {
			fmt.Fprintf(bw, "    brightness %d\n", v)
		}
		if mode, speed, ok := l.Mode(); ok {
			name := strconv.Itoa(int(mode))
			if m, found := backend.ModeByIndex(mode); found {
				name = m.ID
			}
			fmt.Fprintf(bw, "    mode %s speed %d\n", name, speed)
		}
		fmt.Fprintln(bw, "}")
	}
	return bw.Flush()
}

// token quotes names that the lexer would not read back as one token.
func token(name string) string {
	if plainName.MatchString(name) && !isKeyword(name) {
		return name
	}
	return strconv.Quote(name)
}

func isKeyword(s string) bool {
	switch s {
	case "layer", "map", "color", "brightness", "mode", "speed":
		return true
	}
	return false
}
