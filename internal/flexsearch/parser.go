// Package flexsearch parses FlexibleSearch queries into psi trees.
//
// The grammar covered is the subset the resolvers navigate: SELECT blocks, FROM lists with
// optional correlation names and joins, braced type and attribute references ({Product AS p},
// {p.name}), subqueries in {{ ... }} or parentheses, and the trailing WHERE / GROUP BY /
// ORDER BY clauses. Anything else is kept as leaves so offsets stay exact. Errors are
// collected and never stop the parse.
package flexsearch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hybris-tools/tsls/internal/psi"
)

var clauseStarts = []string{"FROM", "WHERE", "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET", "UNION", "SELECT"}

var joinKeywords = []string{"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "CROSS"}

var onStops = slices.Concat(clauseStarts, joinKeywords, []string{"ON"})

// Parse builds a query tree from content
func Parse(content string) (*psi.Node, []psi.ParseError) {
	p := New(content)
	return p.Parse()
}

// Parser transforms the token stream of one query document into a psi tree
type Parser struct {
	root    *psi.Node
	tokens  []Token
	current int
	errors  []psi.ParseError
}

// New creates a parser for content
func New(content string) *Parser {
	all := Scan(content)
	tokens := make([]Token, 0, len(all))
	for _, tok := range all {
		if tok.Type != TokenComment {
			tokens = append(tokens, tok)
		}
	}
	return &Parser{
		root:   psi.NewRoot(psi.KindQueryFile, content),
		tokens: tokens,
		errors: make([]psi.ParseError, 0),
	}
}

// Parse parses the whole document and returns the tree and any errors
func (p *Parser) Parse() (*psi.Node, []psi.ParseError) {
	p.parseQueries(p.root, "")
	return p.root, p.errors
}

// parseQueries parses a sequence of query blocks joined by UNION until closer or the end
func (p *Parser) parseQueries(parent *psi.Node, closer string) {
	for !p.isAtEnd() && !p.atCloser(closer) {
		tok := p.peek()
		switch {
		case tok.Is("SELECT"):
			p.parseQuery(parent)
		case tok.Is("UNION"), tok.Is("ALL"):
			p.leaf(parent, psi.KindKeyword)
		case p.isDoubleOpen():
			p.parseSubquery(parent, "{{")
		case tok.IsPunct("("):
			p.parseSubquery(parent, "(")
		case closer != "" && isClosing(tok):
			return
		default:
			p.error(tok, fmt.Sprintf("Unexpected %q, expected SELECT", tok.Text))
			p.leaf(parent, psi.KindError)
		}
	}
}

// parseQuery parses one SELECT block
func (p *Parser) parseQuery(parent *psi.Node) *psi.Node {
	query := p.open(parent, psi.KindQuerySpecification)
	p.leaf(query, psi.KindKeyword)
	if p.peek().Is("DISTINCT") || p.peek().Is("ALL") {
		p.leaf(query, psi.KindKeyword)
	}

	selectList := p.open(query, psi.KindSelectList)
	p.parseExpressions(selectList, clauseStarts)
	p.close(selectList)

	if p.peek().Is("FROM") {
		from := p.open(query, psi.KindFromClause)
		p.leaf(from, psi.KindKeyword)
		list := p.open(from, psi.KindTableReferenceList)
		p.parseTableReferences(list)
		if len(list.Children) == 0 {
			p.error(p.peek(), "Expected table reference after FROM")
		}
		p.close(list)
		p.close(from)
	}

	for !p.isAtEnd() {
		tok := p.peek()
		var clause *psi.Node
		switch {
		case tok.Is("WHERE"):
			clause = p.open(query, psi.KindWhereClause)
			p.leaf(clause, psi.KindKeyword)
		case tok.Is("GROUP"), tok.Is("ORDER"):
			clause = p.open(query, psi.KindClause)
			p.leaf(clause, psi.KindKeyword)
			if p.peek().Is("BY") {
				p.leaf(clause, psi.KindKeyword)
			} else {
				p.error(p.peek(), fmt.Sprintf("Expected BY after %s", strings.ToUpper(tok.Text)))
			}
		case tok.Is("HAVING"), tok.Is("LIMIT"), tok.Is("OFFSET"):
			clause = p.open(query, psi.KindClause)
			p.leaf(clause, psi.KindKeyword)
		}
		if clause == nil {
			break
		}
		p.parseExpressions(clause, clauseStarts)
		p.close(clause)
	}

	p.close(query)
	return query
}

// parseSubquery parses a nested query delimited by "{{ }}" or "( )"
func (p *Parser) parseSubquery(parent *psi.Node, opener string) *psi.Node {
	sub := p.open(parent, psi.KindSubquery)
	closer := ")"
	if opener == "{{" {
		closer = "}}"
		p.doubleLeaf(sub)
	} else {
		p.leaf(sub, psi.KindPunct)
	}

	p.parseQueries(sub, closer)

	switch {
	case closer == "}}" && p.isDoubleClose():
		p.doubleLeaf(sub)
	case closer == ")" && p.check(")"):
		p.leaf(sub, psi.KindPunct)
	default:
		p.error(p.peek(), fmt.Sprintf("Expected '%s' to close subquery", closer))
	}
	p.close(sub)
	return sub
}

// parseTableReferences parses the source list of a FROM clause, including braced groups
// and joins
func (p *Parser) parseTableReferences(list *psi.Node) {
	for !p.isAtEnd() {
		tok := p.peek()
		switch {
		case p.isKeyword(tok, clauseStarts) && !tok.Is("FROM"):
			return
		case tok.IsPunct(")"), tok.IsPunct("}"):
			return
		case p.isDoubleOpen(), tok.IsPunct("(") && p.peekNext().Is("SELECT"):
			ref := p.open(list, psi.KindTableReference)
			if tok.IsPunct("(") {
				p.parseSubquery(ref, "(")
			} else {
				p.parseSubquery(ref, "{{")
			}
			p.parseCorrelationName(ref)
			p.close(ref)
		case tok.IsPunct("{"), tok.IsPunct("("):
			closer := "}"
			if tok.IsPunct("(") {
				closer = ")"
			}
			p.leaf(list, psi.KindPunct)
			p.parseTableReferences(list)
			if !p.check(closer) {
				p.error(p.peek(), fmt.Sprintf("Expected '%s'", closer))
				continue
			}
			p.leaf(list, psi.KindPunct)
		case tok.Type == TokenIdentifier:
			p.parseTableReference(list)
		case p.isKeyword(tok, joinKeywords):
			p.leaf(list, psi.KindKeyword)
		case tok.Is("ON"):
			p.leaf(list, psi.KindKeyword)
			p.parseExpressions(list, onStops)
		case tok.IsPunct(","):
			p.leaf(list, psi.KindPunct)
		default:
			p.error(tok, fmt.Sprintf("Unexpected %q in FROM clause", tok.Text))
			p.leaf(list, psi.KindError)
		}
	}
}

// parseTableReference parses `Type [AS] [alias]`
func (p *Parser) parseTableReference(list *psi.Node) *psi.Node {
	ref := p.open(list, psi.KindTableReference)
	p.leaf(ref, psi.KindTableName)
	p.parseCorrelationName(ref)
	p.close(ref)
	return ref
}

func (p *Parser) parseCorrelationName(ref *psi.Node) {
	if p.peek().Is("AS") {
		p.leaf(ref, psi.KindKeyword)
		if p.peek().Type != TokenIdentifier {
			p.error(p.peek(), "Expected alias after AS")
			return
		}
	}
	if p.peek().Type == TokenIdentifier && !p.isAtEnd() {
		p.leaf(ref, psi.KindCorrelationName)
	}
}

// parseExpressions consumes expression tokens into parent until one of the stop keywords or
// an unmatched closing bracket
func (p *Parser) parseExpressions(parent *psi.Node, stops []string) {
	for !p.isAtEnd() {
		tok := p.peek()
		switch {
		case p.isKeyword(tok, stops):
			return
		case isClosing(tok):
			return
		case p.isDoubleOpen():
			p.parseSubquery(parent, "{{")
		case tok.IsPunct("(") && p.peekNext().Is("SELECT"):
			p.parseSubquery(parent, "(")
		case tok.IsPunct("("):
			p.leaf(parent, psi.KindPunct)
			p.parseExpressions(parent, nil)
			p.expect(parent, ")")
		case tok.IsPunct("{"):
			p.leaf(parent, psi.KindPunct)
			p.parseExpressions(parent, clauseStarts)
			p.expect(parent, "}")
		case tok.IsPunct("["):
			// localized attribute suffix, e.g. {p.name[en]}
			p.leaf(parent, psi.KindPunct)
			for !p.isAtEnd() && !p.check("]") && !isClosing(p.peek()) {
				p.leaf(parent, psi.KindIdentifier)
			}
			p.expect(parent, "]")
		case tok.Type == TokenIdentifier:
			prev := p.previous()
			switch {
			case p.peekNext().IsPunct("("):
				p.parseFunctionCall(parent)
			case prev.Is("AS"), prev.IsPunct(":"):
				p.leaf(parent, psi.KindIdentifier)
			default:
				p.parseColumnReference(parent)
			}
		case tok.Type == TokenParameter:
			p.leaf(parent, psi.KindParameter)
		case tok.Type == TokenString:
			p.leaf(parent, psi.KindStringLiteral)
		case tok.Type == TokenNumber:
			p.leaf(parent, psi.KindNumberLiteral)
		case tok.Type == TokenKeyword:
			p.leaf(parent, psi.KindKeyword)
		case tok.Type == TokenPunct:
			p.leaf(parent, psi.KindPunct)
		default:
			p.error(tok, fmt.Sprintf("Unexpected character %q", tok.Text))
			p.leaf(parent, psi.KindError)
		}
	}
}

// parseColumnReference parses `column` or `alias.column`. A trailing `alias.` without a
// column name still yields a reference node so completion can use it.
func (p *Parser) parseColumnReference(parent *psi.Node) *psi.Node {
	ref := p.open(parent, psi.KindColumnReference)
	if !p.peekNext().IsPunct(".") {
		p.leaf(ref, psi.KindColumnName)
		p.close(ref)
		return ref
	}

	p.leaf(ref, psi.KindTableNameIdentifier)
	p.leaf(ref, psi.KindPunct)
	switch next := p.peek(); {
	case next.Type == TokenIdentifier && !p.isAtEnd():
		p.leaf(ref, psi.KindColumnName)
	case next.IsPunct("*"):
		p.leaf(ref, psi.KindPunct)
	default:
		p.error(next, "Expected column name after '.'")
	}
	p.close(ref)
	return ref
}

func (p *Parser) parseFunctionCall(parent *psi.Node) *psi.Node {
	call := p.open(parent, psi.KindFunctionCall)
	p.leaf(call, psi.KindIdentifier)
	p.leaf(call, psi.KindPunct)
	p.parseExpressions(call, nil)
	p.expect(call, ")")
	p.close(call)
	return call
}

// open starts a node at the current token
func (p *Parser) open(parent *psi.Node, kind psi.Kind) *psi.Node {
	start := p.peek().Start
	return parent.Append(psi.NewNode(kind, psi.Range{Start: start, End: start}))
}

// close extends n to the end of the last consumed token
func (p *Parser) close(n *psi.Node) {
	if p.current == 0 {
		return
	}
	if end := p.previous().End; end > n.Range.Start {
		n.Range.End = end
	}
}

// leaf appends the current token as a node of the given kind and advances
func (p *Parser) leaf(parent *psi.Node, kind psi.Kind) *psi.Node {
	tok := p.advance()
	return parent.Append(psi.NewNode(kind, psi.Range{Start: tok.Start, End: tok.End}))
}

// doubleLeaf consumes two adjacent braces as one punctuation node
func (p *Parser) doubleLeaf(parent *psi.Node) *psi.Node {
	first := p.advance()
	second := p.advance()
	return parent.Append(psi.NewNode(psi.KindPunct, psi.Range{Start: first.Start, End: second.End}))
}

func (p *Parser) expect(parent *psi.Node, punct string) bool {
	if p.check(punct) {
		p.leaf(parent, psi.KindPunct)
		return true
	}
	p.error(p.peek(), fmt.Sprintf("Expected '%s'", punct))
	return false
}

func (p *Parser) atCloser(closer string) bool {
	switch closer {
	case "}}":
		return p.isDoubleClose()
	case "":
		return false
	default:
		return p.check(closer)
	}
}

func (p *Parser) isDoubleOpen() bool {
	return p.adjacentPair("{")
}

func (p *Parser) isDoubleClose() bool {
	return p.adjacentPair("}")
}

func (p *Parser) adjacentPair(brace string) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	first, second := p.tokens[p.current], p.tokens[p.current+1]
	return first.IsPunct(brace) && second.IsPunct(brace) && first.End == second.Start
}

func (p *Parser) isKeyword(tok Token, keywords []string) bool {
	if tok.Type != TokenKeyword {
		return false
	}
	return slices.ContainsFunc(keywords, func(kw string) bool {
		return strings.EqualFold(kw, tok.Text)
	})
}

func isClosing(tok Token) bool {
	return tok.IsPunct(")") || tok.IsPunct("}") || tok.IsPunct("]")
}

func (p *Parser) check(punct string) bool {
	return !p.isAtEnd() && p.peek().IsPunct(punct)
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens)
}

// peek returns the current token, or an empty token positioned at the end of input
func (p *Parser) peek() Token {
	if p.isAtEnd() {
		end := len(p.root.Content())
		return Token{Type: TokenIllegal, Start: end, End: end}
	}
	return p.tokens[p.current]
}

func (p *Parser) peekNext() Token {
	if p.current+1 >= len(p.tokens) {
		end := len(p.root.Content())
		return Token{Type: TokenIllegal, Start: end, End: end}
	}
	return p.tokens[p.current+1]
}

func (p *Parser) previous() Token {
	if p.current == 0 {
		return Token{Type: TokenIllegal}
	}
	return p.tokens[p.current-1]
}

func (p *Parser) error(tok Token, message string) {
	p.errors = append(p.errors, psi.ParseError{
		Range:   psi.Range{Start: tok.Start, End: tok.End},
		Message: message,
	})
}
