package environment

import (
	"github.com/tmpleaf/gojinja2/lexer"
	"github.com/tmpleaf/gojinja2/nodes"
	"github.com/tmpleaf/gojinja2/parser"
)

// defaultParseWithDelimiters bridges this package's plain-struct syntax
// config onto the teacher's parser.Environment/lexer.Delimiters types;
// syntax_config.go is the only other file in this package that imports
// lexer directly (for SyntaxConfig.Validate), everything else goes
// through the plain lexerDelimiters struct.
func defaultParseWithDelimiters(source, name string, delims lexerDelimiters, trimBlocks, lstripBlocks, keepTrailingNewline bool) (*nodes.Template, error) {
	ld := lexer.Delimiters(delims)
	if err := ld.Validate(); err != nil {
		return nil, err
	}
	penv := &parser.Environment{
		TrimBlocks:          trimBlocks,
		LstripBlocks:        lstripBlocks,
		KeepTrailingNewline: keepTrailingNewline,
	}
	p, err := parser.NewParser(penv, source, name, name, "")
	if err != nil {
		return nil, err
	}
	return p.Parse()
}
