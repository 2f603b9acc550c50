package lexer

import "fmt"

// Validate reports whether a Delimiters set is usable: every configured
// delimiter must be non-empty, and the three start markers must be
// pairwise distinct so the lexer's rule builder never compiles an
// ambiguous state-transition regex (spec §6: "the three start delimiters
// must be pairwise distinct; the same end delimiter may be reused").
func (d Delimiters) Validate() error {
	all := [][2]string{
		{"block", d.BlockStart}, {"block-end", d.BlockEnd},
		{"variable", d.VariableStart}, {"variable-end", d.VariableEnd},
		{"comment", d.CommentStart}, {"comment-end", d.CommentEnd},
	}
	for _, p := range all {
		if p[1] == "" {
			return fmt.Errorf("lexer: %s delimiter must not be empty", p[0])
		}
	}
	starts := [][2]string{
		{"block", d.BlockStart}, {"variable", d.VariableStart}, {"comment", d.CommentStart},
	}
	seen := map[string]string{}
	for _, p := range starts {
		if owner, dup := seen[p[1]]; dup {
			return fmt.Errorf("lexer: start delimiter %q used by both %s and %s", p[1], owner, p[0])
		}
		seen[p[1]] = p[0]
	}
	return nil
}
