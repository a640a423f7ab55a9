package keymapfile

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser reads keymap scripts.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser builds a keymap script parser.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(Lexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse reads a script from r.
func (p *Parser) Parse(r io.Reader) (*File, error) {
	return p.parse("", r)
}

func (p *Parser) parse(name string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return f, nil
}

// ParseString reads a script from a string.
func (p *Parser) ParseString(input string) (*File, error) {
	f, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return f, nil
}

// ParseFile reads a script from disk. Error positions carry the file name.
func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.parse(filename, file)
}

var defaultParser = func() *Parser {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}()

// Parse reads a script from r with the default parser.
func Parse(r io.Reader) (*File, error) {
	return defaultParser.Parse(r)
}

// ParseString reads a script from a string with the default parser.
func ParseString(input string) (*File, error) {
	return defaultParser.ParseString(input)
}

// ParseFile reads a script from disk with the default parser.
func ParseFile(filename string) (*File, error) {
	return defaultParser.ParseFile(filename)
}
