// Package xmlpsi parses XML declaration documents into psi trees with exact byte offsets.
// The parser is tolerant: unclosed or mismatched tags and half-typed attributes produce
// errors but never abort the parse, so the editor keeps working while the user types.
package xmlpsi

import (
	"fmt"
	"strings"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/viant/parsly"
)

// Parse builds an XML element tree from content
func Parse(content string) (*psi.Node, []psi.ParseError) {
	p := &parser{
		root:   psi.NewRoot(psi.KindXMLFile, content),
		cursor: parsly.NewCursor("", []byte(content), 0),
	}
	p.parse()
	return p.root, p.errors
}

type parser struct {
	root   *psi.Node
	cursor *parsly.Cursor
	stack  []*psi.Node
	errors []psi.ParseError
}

func (p *parser) current() *psi.Node {
	if len(p.stack) == 0 {
		return p.root
	}
	return p.stack[len(p.stack)-1]
}

func (p *parser) errorf(r psi.Range, format string, args ...any) {
	p.errors = append(p.errors, psi.ParseError{Range: r, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) parse() {
	cursor := p.cursor
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(commentMatcher, cdataMatcher, prologMatcher, closeTagMatcher, openTagMatcher, doctypeMatcher, textMatcher, anyMatcher)
		text := matched.Text(cursor)
		r := psi.Range{Start: matched.Offset, End: matched.Offset + len(text)}
		switch matched.Code {
		case commentToken:
			p.current().Append(psi.NewNode(psi.KindXMLComment, r))
		case prologToken, doctypeToken:
			p.current().Append(psi.NewNode(psi.KindXMLProlog, r))
		case cdataToken:
			p.current().Append(psi.NewNode(psi.KindXMLText, r))
		case textToken:
			if strings.TrimSpace(text) != "" {
				p.current().Append(psi.NewNode(psi.KindXMLText, r))
			}
		case openTagToken:
			p.parseTag(text[1:], r.Start)
		case closeTagToken:
			p.parseCloseTag(text[2:], r)
		default:
			p.errorf(r, "unexpected character %q", text)
		}
	}
	p.finish()
}

// parseTag parses the attribute list of an element whose "<name" has been consumed
func (p *parser) parseTag(name string, start int) {
	cursor := p.cursor
	tag := p.current().Append(psi.NewNode(psi.KindXMLTag, psi.Range{Start: start, End: cursor.Pos}))
	tag.Name = name

	for {
		matched := cursor.MatchAfterOptional(whitespaceMatcher, selfCloseMatcher, tagEndMatcher, nameMatcher, anyMatcher)
		if matched.Code == parsly.EOF || matched.Code == parsly.Invalid {
			tag.Range.End = cursor.InputSize
			p.errorf(psi.Range{Start: start, End: cursor.InputSize}, "element <%s> is not terminated", name)
			return
		}
		text := matched.Text(cursor)
		switch matched.Code {
		case selfCloseToken:
			tag.Range.End = cursor.Pos
			return
		case tagEndToken:
			tag.Range.End = cursor.Pos
			p.stack = append(p.stack, tag)
			return
		case nameToken:
			p.parseAttribute(tag, text, matched.Offset)
		default:
			if text == "<" {
				// a new tag starts before this one was terminated
				cursor.Pos = matched.Offset
				tag.Range.End = matched.Offset
				p.errorf(psi.Range{Start: start, End: matched.Offset}, "element <%s> is not terminated", name)
				return
			}
			p.errorf(psi.Range{Start: matched.Offset, End: matched.Offset + len(text)}, "unexpected %q in element <%s>", text, name)
		}
		tag.Range.End = cursor.Pos
	}
}

func (p *parser) parseAttribute(tag *psi.Node, name string, start int) {
	cursor := p.cursor
	attr := tag.Append(psi.NewNode(psi.KindXMLAttribute, psi.Range{Start: start, End: start + len(name)}))
	attr.Name = name
	nameNode := attr.Append(psi.NewNode(psi.KindXMLAttributeName, attr.Range))
	nameNode.Name = name

	pos := cursor.Pos
	if eq := cursor.MatchAfterOptional(whitespaceMatcher, equalsMatcher); eq.Code != equalsToken {
		cursor.Pos = pos
		p.errorf(attr.Range, "attribute %q has no value", name)
		return
	}
	attr.Range.End = cursor.Pos

	pos = cursor.Pos
	value := cursor.MatchAfterOptional(whitespaceMatcher, quotedMatcher)
	if value.Code != quotedToken {
		cursor.Pos = pos
		p.errorf(attr.Range, "attribute %q value must be quoted", name)
		return
	}
	text := value.Text(cursor)
	valueNode := attr.Append(psi.NewNode(psi.KindXMLAttributeValue, psi.Range{Start: value.Offset, End: value.Offset + len(text)}))
	valueNode.Name = name
	attr.Range.End = valueNode.Range.End
	if len(text) < 2 || text[len(text)-1] != text[0] {
		p.errorf(valueNode.Range, "attribute %q value is not terminated", name)
	}
}

func (p *parser) parseCloseTag(name string, r psi.Range) {
	cursor := p.cursor
	if end := cursor.MatchAfterOptional(whitespaceMatcher, tagEndMatcher); end.Code == tagEndToken {
		r.End = cursor.Pos
	} else {
		p.errorf(r, "closing tag </%s> is not terminated", name)
	}

	idx := -1
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.errorf(r, "unexpected closing tag </%s>", name)
		return
	}
	for i := len(p.stack) - 1; i > idx; i-- {
		unclosed := p.stack[i]
		unclosed.Range.End = r.Start
		p.errorf(psi.Range{Start: unclosed.Range.Start, End: unclosed.Range.Start + len(unclosed.Name) + 1}, "element <%s> is not closed", unclosed.Name)
	}
	p.stack[idx].Range.End = r.End
	p.stack = p.stack[:idx]
}

func (p *parser) finish() {
	end := p.cursor.InputSize
	for i := len(p.stack) - 1; i >= 0; i-- {
		unclosed := p.stack[i]
		unclosed.Range.End = end
		p.errorf(psi.Range{Start: unclosed.Range.Start, End: unclosed.Range.Start + len(unclosed.Name) + 1}, "element <%s> is not closed", unclosed.Name)
	}
	p.stack = nil
}
