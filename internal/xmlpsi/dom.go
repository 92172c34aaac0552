package xmlpsi

import (
	"strings"

	"github.com/hybris-tools/tsls/internal/psi"
)

// QuoteLength is the width of the delimiter on each side of an attribute value
const QuoteLength = 1

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// Tags returns the child elements of parent with the given name
func Tags(parent *psi.Node, name string) []*psi.Node {
	var result []*psi.Node
	for _, c := range parent.Children {
		if c.Kind == psi.KindXMLTag && c.Name == name {
			result = append(result, c)
		}
	}
	return result
}

// Tag returns the first child element of parent with the given name
func Tag(parent *psi.Node, name string) *psi.Node {
	for _, c := range parent.Children {
		if c.Kind == psi.KindXMLTag && c.Name == name {
			return c
		}
	}
	return nil
}

// Path follows a chain of element names starting at parent and returns every element at
// the end of the chain
func Path(parent *psi.Node, names ...string) []*psi.Node {
	current := []*psi.Node{parent}
	for _, name := range names {
		var next []*psi.Node
		for _, n := range current {
			next = append(next, Tags(n, name)...)
		}
		current = next
	}
	return current
}

// AttrValueNode returns the quoted value node of attribute name on tag
func AttrValueNode(tag *psi.Node, name string) *psi.Node {
	if tag == nil {
		return nil
	}
	for _, c := range tag.Children {
		if c.Kind == psi.KindXMLAttribute && c.Name == name {
			for _, v := range c.Children {
				if v.Kind.IsAttributeValue() {
					return v
				}
			}
			return nil
		}
	}
	return nil
}

// Attr returns the unquoted, entity-decoded value of attribute name on tag
func Attr(tag *psi.Node, name string) (string, bool) {
	v := AttrValueNode(tag, name)
	if v == nil {
		return "", false
	}
	return Unquote(v.Text()), true
}

// AttrOr returns the attribute value or def when the attribute is missing
func AttrOr(tag *psi.Node, name, def string) string {
	if v, ok := Attr(tag, name); ok {
		return v
	}
	return def
}

// OwnerTag returns the element an attribute value belongs to
func OwnerTag(value *psi.Node) *psi.Node {
	if value == nil || value.Parent == nil {
		return nil
	}
	return value.Parent.Parent
}

// ValueRange returns the range of an attribute value without its quotes. An empty or
// unterminated value keeps the whole range.
func ValueRange(value *psi.Node) psi.Range {
	r := value.Range
	if r.Len() < 2*QuoteLength {
		return r
	}
	text := value.Text()
	if text[len(text)-1] != text[0] {
		return psi.Range{Start: r.Start + QuoteLength, End: r.End}
	}
	return psi.Range{Start: r.Start + QuoteLength, End: r.End - QuoteLength}
}

// Unquote strips surrounding quotes and decodes the predefined entities
func Unquote(text string) string {
	if len(text) >= 1 && (text[0] == '"' || text[0] == '\'') {
		text = text[1:]
		if len(text) >= 1 && (text[len(text)-1] == '"' || text[len(text)-1] == '\'') {
			text = text[:len(text)-1]
		}
	}
	return entityReplacer.Replace(text)
}
