package xmlpsi

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceToken = iota
	commentToken
	cdataToken
	prologToken
	doctypeToken
	closeTagToken
	openTagToken
	textToken
	nameToken
	equalsToken
	quotedToken
	selfCloseToken
	tagEndToken
	anyToken
)

var whitespaceMatcher = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
var commentMatcher = parsly.NewToken(commentToken, "Comment", matcher.NewSeqBlock("<!--", "-->"))
var cdataMatcher = parsly.NewToken(cdataToken, "CDATA", matcher.NewSeqBlock("<![CDATA[", "]]>"))
var prologMatcher = parsly.NewToken(prologToken, "Prolog", matcher.NewSeqBlock("<?", "?>"))
var doctypeMatcher = parsly.NewToken(doctypeToken, "Doctype", &doctypeMatch{})
var closeTagMatcher = parsly.NewToken(closeTagToken, "CloseTag", &tagStartMatch{closing: true})
var openTagMatcher = parsly.NewToken(openTagToken, "OpenTag", &tagStartMatch{})
var textMatcher = parsly.NewToken(textToken, "Text", &textMatch{})
var nameMatcher = parsly.NewToken(nameToken, "Name", &nameMatch{})
var equalsMatcher = parsly.NewToken(equalsToken, "Equals", matcher.NewByte('='))
var quotedMatcher = parsly.NewToken(quotedToken, "Quoted", &quotedMatch{})
var selfCloseMatcher = parsly.NewToken(selfCloseToken, "SelfClose", matcher.NewFragment("/>"))
var tagEndMatcher = parsly.NewToken(tagEndToken, "TagEnd", matcher.NewByte('>'))
var anyMatcher = parsly.NewToken(anyToken, "Any", &anyMatch{})

// tagStartMatch matches "<name" or "</name"
type tagStartMatch struct {
	closing bool
}

func (m *tagStartMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize || cursor.Input[pos] != '<' {
		return 0
	}
	pos++
	if m.closing {
		if pos >= cursor.InputSize || cursor.Input[pos] != '/' {
			return 0
		}
		pos++
	}
	if pos >= cursor.InputSize || !isNameStart(cursor.Input[pos]) {
		return 0
	}
	pos++
	for pos < cursor.InputSize && isNamePart(cursor.Input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

// doctypeMatch matches <!DOCTYPE ...> without nested brackets support beyond one level
type doctypeMatch struct{}

func (m *doctypeMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize || cursor.Input[pos] != '<' || cursor.Input[pos+1] != '!' {
		return 0
	}
	depth := 0
	for i := pos + 2; i < cursor.InputSize; i++ {
		switch cursor.Input[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '>':
			if depth <= 0 {
				return i + 1 - pos
			}
		}
	}
	return 0
}

// textMatch consumes character data up to the next '<'
type textMatch struct{}

func (m *textMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	for pos < cursor.InputSize && cursor.Input[pos] != '<' {
		pos++
	}
	return pos - cursor.Pos
}

type nameMatch struct{}

func (m *nameMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize || !isNameStart(cursor.Input[pos]) {
		return 0
	}
	pos++
	for pos < cursor.InputSize && isNamePart(cursor.Input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

// quotedMatch matches a single or double quoted attribute value. An unterminated value
// runs to the end of the line so that a half-typed attribute still produces a node.
type quotedMatch struct{}

func (m *quotedMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize {
		return 0
	}
	quote := cursor.Input[pos]
	if quote != '"' && quote != '\'' {
		return 0
	}
	for i := pos + 1; i < cursor.InputSize; i++ {
		switch cursor.Input[i] {
		case quote:
			return i + 1 - pos
		case '\n', '<', '>':
			return i - pos
		}
	}
	return cursor.InputSize - pos
}

type anyMatch struct{}

func (m *anyMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos < cursor.InputSize {
		return 1
	}
	return 0
}

func isNameStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == ':'
}

func isNamePart(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9') || b == '-' || b == '.'
}
