package flexsearch

import (
	"sort"
	"strings"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// TokenType categorizes query tokens
type TokenType int

const (
	whitespaceCode = iota
	lineCommentCode
	blockCommentCode
	stringCode
	numberCode
	parameterCode
	punctCode
	identifierCode
	anyCode
)

const (
	// TokenIdentifier is a name, possibly carrying trailing '!' or '*' markers
	TokenIdentifier TokenType = iota
	// TokenKeyword is a reserved word
	TokenKeyword
	// TokenString is a single quoted literal
	TokenString
	// TokenNumber is a numeric literal
	TokenNumber
	// TokenParameter is a ?name placeholder
	TokenParameter
	// TokenPunct is an operator or bracket
	TokenPunct
	// TokenComment is a line or block comment
	TokenComment
	// TokenIllegal is a character the lexer does not understand
	TokenIllegal
)

var whitespaceMatcher = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
var lineCommentMatcher = parsly.NewToken(lineCommentCode, "LineComment", &lineCommentMatch{})
var blockCommentMatcher = parsly.NewToken(blockCommentCode, "BlockComment", matcher.NewSeqBlock("/*", "*/"))
var stringMatcher = parsly.NewToken(stringCode, "String", &stringMatch{})
var numberMatcher = parsly.NewToken(numberCode, "Number", &numberMatch{})
var parameterMatcher = parsly.NewToken(parameterCode, "Parameter", &parameterMatch{})
var punctMatcher = parsly.NewToken(punctCode, "Punct", &punctMatch{})
var identifierMatcher = parsly.NewToken(identifierCode, "Identifier", &identifierMatch{})
var anyMatcher = parsly.NewToken(anyCode, "Any", &anyMatch{})

var keywords = map[string]bool{
	"SELECT": true, "DISTINCT": true, "FROM": true, "WHERE": true, "AS": true,
	"JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true, "CROSS": true,
	"ON": true, "AND": true, "OR": true, "NOT": true, "IN": true, "EXISTS": true,
	"IS": true, "NULL": true, "LIKE": true, "BETWEEN": true, "GROUP": true, "BY": true,
	"ORDER": true, "HAVING": true, "ASC": true, "DESC": true, "UNION": true, "ALL": true,
	"LIMIT": true, "OFFSET": true, "CASE": true, "WHEN": true, "THEN": true, "ELSE": true,
	"END": true, "TRUE": true, "FALSE": true,
}

// Keywords returns the reserved words in alphabetical order
func Keywords() []string {
	words := make([]string, 0, len(keywords))
	for w := range keywords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// IsKeyword reports whether word is reserved, ignoring case
func IsKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}

// Token is a lexeme with its byte range in the query text
type Token struct {
	Type  TokenType
	Text  string
	Start int
	End   int
}

// Is reports whether the token is the keyword kw (case-insensitive)
func (t Token) Is(kw string) bool {
	return t.Type == TokenKeyword && strings.EqualFold(t.Text, kw)
}

// IsPunct reports whether the token is the punctuation p
func (t Token) IsPunct(p string) bool {
	return t.Type == TokenPunct && t.Text == p
}

// Scan tokenizes a query. Braces are always single tokens: the parser pairs adjacent
// braces into subquery delimiters, so "}}}" can close both a table list and a subquery.
// Comments are returned so that callers can decide to keep them.
func Scan(input string) []Token {
	cursor := parsly.NewCursor("", []byte(input), 0)
	var tokens []Token
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAfterOptional(whitespaceMatcher,
			lineCommentMatcher,
			blockCommentMatcher,
			stringMatcher,
			numberMatcher,
			parameterMatcher,
			punctMatcher,
			identifierMatcher,
			anyMatcher,
		)
		if matched.Code == parsly.EOF || matched.Code == parsly.Invalid {
			break
		}
		text := matched.Text(cursor)
		tok := Token{Text: text, Start: matched.Offset, End: matched.Offset + len(text)}
		switch matched.Code {
		case lineCommentCode, blockCommentCode:
			tok.Type = TokenComment
		case stringCode:
			tok.Type = TokenString
		case numberCode:
			tok.Type = TokenNumber
		case parameterCode:
			tok.Type = TokenParameter
		case punctCode:
			tok.Type = TokenPunct
		case identifierCode:
			tok.Type = TokenIdentifier
			if IsKeyword(text) {
				tok.Type = TokenKeyword
			}
		default:
			tok.Type = TokenIllegal
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

type lineCommentMatch struct{}

func (m *lineCommentMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize || cursor.Input[pos] != '-' || cursor.Input[pos+1] != '-' {
		return 0
	}
	end := pos + 2
	for end < cursor.InputSize && cursor.Input[end] != '\n' {
		end++
	}
	return end - pos
}

// stringMatch matches '...' with '' as the escaped quote; unterminated strings run to EOF
type stringMatch struct{}

func (m *stringMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize || cursor.Input[pos] != '\'' {
		return 0
	}
	for i := pos + 1; i < cursor.InputSize; i++ {
		if cursor.Input[i] != '\'' {
			continue
		}
		if i+1 < cursor.InputSize && cursor.Input[i+1] == '\'' {
			i++
			continue
		}
		return i + 1 - pos
	}
	return cursor.InputSize - pos
}

type numberMatch struct{}

func (m *numberMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	end := pos
	for end < cursor.InputSize && isDigit(cursor.Input[end]) {
		end++
	}
	if end == pos {
		return 0
	}
	if end+1 < cursor.InputSize && cursor.Input[end] == '.' && isDigit(cursor.Input[end+1]) {
		end++
		for end < cursor.InputSize && isDigit(cursor.Input[end]) {
			end++
		}
	}
	return end - pos
}

// parameterMatch matches ?name and ?session.user style placeholders
type parameterMatch struct{}

func (m *parameterMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize || cursor.Input[pos] != '?' {
		return 0
	}
	end := pos + 1
	for end < cursor.InputSize && (isIdentPart(cursor.Input[end]) || cursor.Input[end] == '.') {
		end++
	}
	return end - pos
}

type punctMatch struct{}

func (m *punctMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize {
		return 0
	}
	if pos+1 < cursor.InputSize {
		switch string(cursor.Input[pos : pos+2]) {
		case "<=", ">=", "<>", "!=", "||":
			return 2
		}
	}
	switch cursor.Input[pos] {
	case '{', '}', '(', ')', '[', ']', ',', '.', ':', '=', '<', '>', '+', '-', '*', '/', '%', ';':
		return 1
	}
	return 0
}

// identifierMatch matches a name followed by any number of '!' or '*' markers. A marker
// directly followed by '=' belongs to the operator instead.
type identifierMatch struct{}

func (m *identifierMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize || !isIdentStart(cursor.Input[pos]) {
		return 0
	}
	end := pos + 1
	for end < cursor.InputSize && isIdentPart(cursor.Input[end]) {
		end++
	}
	for end < cursor.InputSize && (cursor.Input[end] == '!' || cursor.Input[end] == '*') {
		if end+1 < cursor.InputSize && cursor.Input[end+1] == '=' {
			break
		}
		end++
	}
	return end - pos
}

type anyMatch struct{}

func (m *anyMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos < cursor.InputSize {
		return 1
	}
	return 0
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}
