// Package psi defines the element tree consumed by the resolvers.
// Every parsed document (queries and declaration files alike) is represented as a tree of
// Nodes whose Kind is drawn from a closed set. Resolvers treat the tree as read-only and
// navigate it with the helpers in traverse.go.
package psi

import (
	"fmt"
	"sync"
)

// Kind identifies the syntactic role of a node
type Kind int

const (
	// KindError marks a region the parser could not make sense of
	KindError Kind = iota

	// KindQueryFile is the root of a query document
	KindQueryFile
	// KindQuerySpecification is one SELECT block; nested subqueries open a new one
	KindQuerySpecification
	// KindSelectList holds the projected expressions
	KindSelectList
	// KindFromClause holds the FROM keyword and its table reference list
	KindFromClause
	// KindTableReferenceList is the source list of a FROM clause
	KindTableReferenceList
	// KindTableReference is a single source: table name plus optional correlation name
	KindTableReference
	// KindTableName is the type name of a table reference
	KindTableName
	// KindCorrelationName is the alias bound to a table reference
	KindCorrelationName
	// KindColumnReference is `column` or `alias.column`
	KindColumnReference
	// KindTableNameIdentifier is the alias prefix of a qualified column reference
	KindTableNameIdentifier
	// KindColumnName is the qualifier part of a column reference
	KindColumnName
	// KindSubquery wraps a nested query specification
	KindSubquery
	// KindWhereClause holds the WHERE condition
	KindWhereClause
	// KindClause holds GROUP BY, HAVING, ORDER BY and similar trailing clauses
	KindClause
	// KindFunctionCall is name(args)
	KindFunctionCall
	// KindParameter is a ?name placeholder
	KindParameter

	// KindXMLFile is the root of a declaration document
	KindXMLFile
	// KindXMLTag is an element including its children and closing tag
	KindXMLTag
	// KindXMLAttribute is name="value"
	KindXMLAttribute
	// KindXMLAttributeName is the name part of an attribute
	KindXMLAttributeName
	// KindXMLAttributeValue is the quoted value of an attribute, quotes included
	KindXMLAttributeValue
	// KindXMLText is character data between tags
	KindXMLText
	// KindXMLComment is <!-- ... -->
	KindXMLComment
	// KindXMLProlog is <?xml ... ?> or a doctype
	KindXMLProlog

	// KindItemAttributeQualifier is the qualifier value of an attribute declared in an itemtype
	KindItemAttributeQualifier
	// KindIndexKeyAttribute is the attribute value of an index key
	KindIndexKeyAttribute
	// KindTypeReferenceValue is an attribute value naming a classifier
	KindTypeReferenceValue

	// KindKeyword is a reserved word leaf
	KindKeyword
	// KindIdentifier is a name leaf
	KindIdentifier
	// KindPunct is an operator or punctuation leaf
	KindPunct
	// KindStringLiteral is a quoted string leaf
	KindStringLiteral
	// KindNumberLiteral is a numeric leaf
	KindNumberLiteral
	// KindComment is a comment leaf
	KindComment
)

var kindNames = map[Kind]string{
	KindError:                  "Error",
	KindQueryFile:              "QueryFile",
	KindQuerySpecification:     "QuerySpecification",
	KindSelectList:             "SelectList",
	KindFromClause:             "FromClause",
	KindTableReferenceList:     "TableReferenceList",
	KindTableReference:         "TableReference",
	KindTableName:              "TableName",
	KindCorrelationName:        "CorrelationName",
	KindColumnReference:        "ColumnReference",
	KindTableNameIdentifier:    "TableNameIdentifier",
	KindColumnName:             "ColumnName",
	KindSubquery:               "Subquery",
	KindWhereClause:            "WhereClause",
	KindClause:                 "Clause",
	KindFunctionCall:           "FunctionCall",
	KindParameter:              "Parameter",
	KindXMLFile:                "XMLFile",
	KindXMLTag:                 "XMLTag",
	KindXMLAttribute:           "XMLAttribute",
	KindXMLAttributeName:       "XMLAttributeName",
	KindXMLAttributeValue:      "XMLAttributeValue",
	KindXMLText:                "XMLText",
	KindXMLComment:             "XMLComment",
	KindXMLProlog:              "XMLProlog",
	KindItemAttributeQualifier: "ItemAttributeQualifier",
	KindIndexKeyAttribute:      "IndexKeyAttribute",
	KindTypeReferenceValue:     "TypeReferenceValue",
	KindKeyword:                "Keyword",
	KindIdentifier:             "Identifier",
	KindPunct:                  "Punct",
	KindStringLiteral:          "StringLiteral",
	KindNumberLiteral:          "NumberLiteral",
	KindComment:                "Comment",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsAttributeValue reports whether nodes of this kind are quoted XML attribute values
func (k Kind) IsAttributeValue() bool {
	switch k {
	case KindXMLAttributeValue, KindItemAttributeQualifier, KindIndexKeyAttribute, KindTypeReferenceValue:
		return true
	}
	return false
}

// Range is a half-open byte range [Start, End) in the document content
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the range
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether offset lies inside the range. The end offset is included so a
// caret placed right after a token still addresses it.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset <= r.End
}

// Shift returns the range moved by delta bytes
func (r Range) Shift(delta int) Range {
	return Range{Start: r.Start + delta, End: r.End + delta}
}

// Key identifies a user data slot on a node
type Key struct {
	name string
}

// NewKey creates a user data key. Keys compare by identity, not by name.
func NewKey(name string) *Key {
	return &Key{name: name}
}

func (k *Key) String() string {
	return k.name
}

// Node is an element of a parsed document
type Node struct {
	Kind Kind

	// Name carries the tag or attribute name for XML nodes; empty otherwise
	Name string

	Range    Range
	Parent   *Node
	Children []*Node

	// content is only set on the root node
	content string

	mu   sync.Mutex
	data map[*Key]any
}

// NewRoot creates the root node of a document
func NewRoot(kind Kind, content string) *Node {
	return &Node{
		Kind:    kind,
		Range:   Range{Start: 0, End: len(content)},
		content: content,
	}
}

// NewNode creates a detached node
func NewNode(kind Kind, r Range) *Node {
	return &Node{Kind: kind, Range: r}
}

// Append adds child as the last child of n and returns child
func (n *Node) Append(child *Node) *Node {
	child.Parent = n
	n.Children = append(n.Children, child)
	return child
}

// Root returns the topmost ancestor of n
func (n *Node) Root() *Node {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Content returns the full document text the node belongs to
func (n *Node) Content() string {
	return n.Root().content
}

// Text returns the source text covered by the node
func (n *Node) Text() string {
	content := n.Content()
	start, end := n.Range.Start, n.Range.End
	if start < 0 || end > len(content) || start > end {
		return ""
	}
	return content[start:end]
}

// FirstChild returns the first child or nil
func (n *Node) FirstChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// LastChild returns the last child or nil
func (n *Node) LastChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// IsLeaf reports whether n has no children
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// GetUserData returns the value stored under key
func (n *Node) GetUserData(key *Key) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	v, ok := n.data[key]
	return v, ok
}

// PutUserData stores value under key; a nil value removes the slot
func (n *Node) PutUserData(key *Key, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if value == nil {
		delete(n.data, key)
		return
	}
	if n.data == nil {
		n.data = make(map[*Key]any)
	}
	n.data[key] = value
}

// ComputeUserDataIfAbsent returns the value stored under key, creating it with create when
// the slot is empty. Concurrent callers observe the same value.
func (n *Node) ComputeUserDataIfAbsent(key *Key, create func() any) any {
	n.mu.Lock()
	defer n.mu.Unlock()

	if v, ok := n.data[key]; ok {
		return v
	}
	v := create()
	if n.data == nil {
		n.data = make(map[*Key]any)
	}
	n.data[key] = v
	return v
}

// Clone deep-copies the subtree rooted at n. User data (cached references and cached
// resolution results) is never carried over to the copy. The clone is a root: it keeps the
// original offsets and a copy of the document content.
func (n *Node) Clone() *Node {
	c := n.cloneInto(nil)
	c.content = n.Content()
	return c
}

func (n *Node) cloneInto(parent *Node) *Node {
	c := &Node{
		Kind:   n.Kind,
		Name:   n.Name,
		Range:  n.Range,
		Parent: parent,
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, 0, len(n.Children))
		for _, child := range n.Children {
			c.Children = append(c.Children, child.cloneInto(c))
		}
	}
	return c
}

// String renders a short description for debugging
func (n *Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s(%s)[%d,%d)", n.Kind, n.Name, n.Range.Start, n.Range.End)
	}
	return fmt.Sprintf("%s[%d,%d)", n.Kind, n.Range.Start, n.Range.End)
}

// ParseError describes a syntax problem found while building a tree. Parsers collect these
// instead of failing so that a partially typed document still yields a usable tree.
type ParseError struct {
	Range   Range
	Message string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Range.Start, e.Message)
}
