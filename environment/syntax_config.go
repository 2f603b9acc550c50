package environment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tmpleaf/gojinja2/lexer"
)

// SyntaxConfig is the data-driven form of an Environment's lexer syntax
// (spec §6's "Syntax configuration" external interface: six delimiter
// strings, the line-statement/line-comment prefixes, and the trim/lstrip/
// keep-trailing-newline flags), letting an embedding application describe
// a non-default syntax as YAML instead of Go field assignments.
type SyntaxConfig struct {
	BlockStart    string `yaml:"block_start"`
	BlockEnd      string `yaml:"block_end"`
	VariableStart string `yaml:"variable_start"`
	VariableEnd   string `yaml:"variable_end"`
	CommentStart  string `yaml:"comment_start"`
	CommentEnd    string `yaml:"comment_end"`
	LineStatement string `yaml:"line_statement"`
	LineComment   string `yaml:"line_comment"`

	TrimBlocks          bool `yaml:"trim_blocks"`
	LstripBlocks        bool `yaml:"lstrip_blocks"`
	KeepTrailingNewline bool `yaml:"keep_trailing_newline"`
}

// DefaultSyntaxConfig mirrors New()'s built-in Jinja2 delimiters.
func DefaultSyntaxConfig() SyntaxConfig {
	return SyntaxConfig{
		BlockStart: "{%", BlockEnd: "%}",
		VariableStart: "{{", VariableEnd: "}}",
		CommentStart: "{#", CommentEnd: "#}",
	}
}

// Validate reports whether c's delimiters are usable, delegating to
// lexer.Delimiters.Validate (the three start markers must be pairwise
// distinct; the same end delimiter may be reused).
func (c SyntaxConfig) Validate() error {
	return c.delimiters().Validate()
}

func (c SyntaxConfig) delimiters() lexer.Delimiters {
	return lexer.Delimiters{
		BlockStart:    c.BlockStart,
		BlockEnd:      c.BlockEnd,
		VariableStart: c.VariableStart,
		VariableEnd:   c.VariableEnd,
		CommentStart:  c.CommentStart,
		CommentEnd:    c.CommentEnd,
		LineStatement: c.LineStatement,
		LineComment:   c.LineComment,
	}
}

// LoadSyntaxConfigYAML parses a SyntaxConfig from YAML bytes and validates
// it before returning, so a malformed custom syntax is rejected at load
// time rather than at the first template compile.
func LoadSyntaxConfigYAML(data []byte) (*SyntaxConfig, error) {
	cfg := DefaultSyntaxConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("environment: parsing syntax config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSyntaxConfigYAMLFile reads path and parses it as a SyntaxConfig.
func LoadSyntaxConfigYAMLFile(path string) (*SyntaxConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("environment: reading syntax config file: %w", err)
	}
	return LoadSyntaxConfigYAML(data)
}

// ApplySyntaxConfig validates cfg and rebinds e's delimiters and
// whitespace-control flags to it; every template compiled afterward
// (AddTemplate/GetTemplate) uses the new syntax.
func (e *Environment) ApplySyntaxConfig(cfg SyntaxConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Delimiters = lexerDelimiters{
		BlockStart:    cfg.BlockStart,
		BlockEnd:      cfg.BlockEnd,
		VariableStart: cfg.VariableStart,
		VariableEnd:   cfg.VariableEnd,
		CommentStart:  cfg.CommentStart,
		CommentEnd:    cfg.CommentEnd,
		LineStatement: cfg.LineStatement,
		LineComment:   cfg.LineComment,
	}
	e.TrimBlocks = cfg.TrimBlocks
	e.LstripBlocks = cfg.LstripBlocks
	e.KeepTrailingNewline = cfg.KeepTrailingNewline
	return nil
}
