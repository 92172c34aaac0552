package completion

import (
	"github.com/hybris-tools/tsls/internal/flexsearch"
	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
)

// ContextKind categorizes the position completion was requested at
type ContextKind int

const (
	// ContextUnknown offers nothing, e.g. while naming an alias
	ContextUnknown ContextKind = iota
	// ContextColumn follows `alias.`
	ContextColumn
	// ContextQualifier is an unqualified column position in a select list or condition
	ContextQualifier
	// ContextTable is a table position in a FROM clause
	ContextTable
	// ContextKeyword is any other position
	ContextKeyword
)

// Context describes a completion position in a query
type Context struct {
	Kind ContextKind
	// Alias is set for ContextColumn, markers removed
	Alias string
	// Prefix is the partial identifier left of the caret
	Prefix string
	// Node anchors the scope search for column contexts
	Node *psi.Node
}

var clauseKeywords = []string{"SELECT", "FROM", "JOIN", "ON", "WHERE", "GROUP", "ORDER", "HAVING"}

// QueryContext determines what can be completed at offset in the query rooted at root
func QueryContext(root *psi.Node, offset int) Context {
	content := root.Content()
	offset = max(0, min(offset, len(content)))

	start := offset
	for start > 0 && isIdentChar(content[start-1]) {
		start--
	}
	c := Context{
		Prefix: content[start:offset],
		Node:   psi.LeafAt(root, max(start-1, 0)),
	}

	tokens := significant(flexsearch.Scan(content[:start]))
	if len(tokens) == 0 {
		c.Kind = ContextKeyword
		return c
	}
	last := tokens[len(tokens)-1]

	if last.IsPunct(".") {
		if len(tokens) >= 2 && tokens[len(tokens)-2].Type == flexsearch.TokenIdentifier {
			c.Kind = ContextColumn
			c.Alias = resolve.StripMarkers(tokens[len(tokens)-2].Text)
		}
		return c
	}
	if last.Is("AS") {
		return c
	}

	switch clause(tokens) {
	case "FROM", "JOIN":
		if last.Is("FROM") || last.Is("JOIN") || last.IsPunct(",") || last.IsPunct("{") {
			c.Kind = ContextTable
		} else {
			c.Kind = ContextKeyword
		}
	case "":
		c.Kind = ContextKeyword
	default:
		if last.Type == flexsearch.TokenIdentifier || last.IsPunct("}") {
			c.Kind = ContextKeyword
		} else {
			c.Kind = ContextQualifier
		}
	}
	return c
}

// clause returns the clause keyword governing the end of tokens. Parenthesized groups and
// double brace subqueries that are already closed are skipped.
func clause(tokens []flexsearch.Token) string {
	depth := 0
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		switch {
		case tok.IsPunct(")"):
			depth++
		case tok.IsPunct("("):
			if depth > 0 {
				depth--
			}
		case tok.IsPunct("}") && i > 0 && tokens[i-1].IsPunct("}") && tokens[i-1].End == tok.Start:
			depth++
			i--
		case tok.IsPunct("{") && i > 0 && tokens[i-1].IsPunct("{") && tokens[i-1].End == tok.Start:
			if depth > 0 {
				depth--
			}
			i--
		case depth == 0 && tok.Type == flexsearch.TokenKeyword:
			for _, kw := range clauseKeywords {
				if tok.Is(kw) {
					return kw
				}
			}
		}
	}
	return ""
}

func significant(tokens []flexsearch.Token) []flexsearch.Token {
	result := tokens[:0]
	for _, tok := range tokens {
		if tok.Type != flexsearch.TokenComment {
			result = append(result, tok)
		}
	}
	return result
}

func isIdentChar(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}
