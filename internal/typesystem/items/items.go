// Package items extracts type declarations from items.xml documents.
//
// Parse returns the psi tree with attribute values refined to the kinds the resolvers
// dispatch on, plus the declarations (item types, enums, relations) found in the file.
// Extraction is tolerant: a half-typed declaration is recorded with whatever it has.
package items

import (
	"fmt"
	"strings"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

// Section identifies a foldable region of an items.xml document
type Section int

const (
	SectionAtomics Section = iota
	SectionCollections
	SectionMaps
	SectionRelations
	SectionEnums
	SectionItems
	SectionItemAttributes
	SectionItemIndexes
	SectionItemCustomProperties
)

var sectionTags = map[string]Section{
	"atomictypes":       SectionAtomics,
	"collectiontypes":   SectionCollections,
	"maptypes":          SectionMaps,
	"relations":         SectionRelations,
	"enumtypes":         SectionEnums,
	"itemtypes":         SectionItems,
	"attributes":        SectionItemAttributes,
	"indexes":           SectionItemIndexes,
	"custom-properties": SectionItemCustomProperties,
}

// Fold is a collapsible region
type Fold struct {
	Section Section
	Range   psi.Range
	// Label is a one-line summary shown when the region is collapsed
	Label string
}

// File is one parsed items.xml document
type File struct {
	URI    string
	Root   *psi.Node
	Errors []psi.ParseError

	Items       []*ItemType
	Enums       []*EnumType
	Relations   []*Relation
	Atomics     []*Simple
	Collections []*Simple
	Maps        []*Simple
	Folds       []Fold
}

// Value is a declaration attribute value with the range of its text inside the quotes
type Value struct {
	Text  string
	Range psi.Range
}

// ItemType is an <itemtype> declaration
type ItemType struct {
	Code       Value
	Extends    []string
	Abstract   bool
	Autocreate bool
	Attributes []*Attribute
	Indexes    []*Index
	Tag        *psi.Node
}

// Attribute is an <attribute> declared inside an item type
type Attribute struct {
	Qualifier Value
	Type      Value
	Redeclare bool
	Tag       *psi.Node
}

// Index is an <index> with its key attributes
type Index struct {
	Name string
	Keys []Value
	Tag  *psi.Node
}

// EnumType is an <enumtype> declaration
type EnumType struct {
	Code    Value
	Dynamic bool
	Values  []*EnumValue
	Tag     *psi.Node
}

// EnumValue is a <value> of an enum
type EnumValue struct {
	Code Value
	Name string
	Tag  *psi.Node
}

// Relation is a <relation> declaration
type Relation struct {
	Code      Value
	Localized bool
	Source    *RelationEnd
	Target    *RelationEnd
	Tag       *psi.Node
}

// RelationEnd is a <sourceElement> or <targetElement>
type RelationEnd struct {
	Qualifier   Value
	Type        Value
	Cardinality string
	Navigable   bool
	Ordered     bool
	Tag         *psi.Node
}

// Simple is an atomic, collection or map type declaration
type Simple struct {
	Code        Value
	ElementType string
	Tag         *psi.Node
}

// Parse parses and extracts an items.xml document
func Parse(uri, content string) *File {
	root, errs := xmlpsi.Parse(content)
	Refine(root)

	f := &File{URI: uri, Root: root, Errors: errs}
	itemsTag := xmlpsi.Tag(root, "items")
	if itemsTag == nil {
		return f
	}

	for _, tag := range xmlpsi.Path(itemsTag, "atomictypes", "atomictype") {
		f.Atomics = append(f.Atomics, &Simple{Code: value(tag, "class"), Tag: tag})
	}
	for _, tag := range xmlpsi.Path(itemsTag, "collectiontypes", "collectiontype") {
		f.Collections = append(f.Collections, &Simple{Code: value(tag, "code"), ElementType: xmlpsi.AttrOr(tag, "elementtype", ""), Tag: tag})
	}
	for _, tag := range xmlpsi.Path(itemsTag, "maptypes", "maptype") {
		f.Maps = append(f.Maps, &Simple{Code: value(tag, "code"), ElementType: xmlpsi.AttrOr(tag, "returntype", ""), Tag: tag})
	}
	for _, tag := range xmlpsi.Path(itemsTag, "enumtypes", "enumtype") {
		f.Enums = append(f.Enums, parseEnum(tag))
	}
	for _, tag := range xmlpsi.Path(itemsTag, "relations", "relation") {
		f.Relations = append(f.Relations, parseRelation(tag))
	}
	// itemtypes may be grouped with <typegroup name="...">
	for _, group := range xmlpsi.Tags(itemsTag, "itemtypes") {
		tags := xmlpsi.Tags(group, "itemtype")
		tags = append(tags, xmlpsi.Path(group, "typegroup", "itemtype")...)
		for _, tag := range tags {
			f.Items = append(f.Items, parseItem(tag))
		}
	}

	f.Folds = collectFolds(itemsTag)
	return f
}

func parseItem(tag *psi.Node) *ItemType {
	item := &ItemType{
		Code:       value(tag, "code"),
		Abstract:   xmlpsi.AttrOr(tag, "abstract", "false") == "true",
		Autocreate: xmlpsi.AttrOr(tag, "autocreate", "true") == "true",
		Tag:        tag,
	}
	for _, super := range strings.Split(xmlpsi.AttrOr(tag, "extends", ""), ",") {
		if super = strings.TrimSpace(super); super != "" {
			item.Extends = append(item.Extends, super)
		}
	}
	for _, attrTag := range xmlpsi.Path(tag, "attributes", "attribute") {
		item.Attributes = append(item.Attributes, &Attribute{
			Qualifier: value(attrTag, "qualifier"),
			Type:      value(attrTag, "type"),
			Redeclare: xmlpsi.AttrOr(attrTag, "redeclare", "false") == "true",
			Tag:       attrTag,
		})
	}
	for _, indexTag := range xmlpsi.Path(tag, "indexes", "index") {
		index := &Index{Name: xmlpsi.AttrOr(indexTag, "name", ""), Tag: indexTag}
		for _, key := range xmlpsi.Tags(indexTag, "key") {
			index.Keys = append(index.Keys, value(key, "attribute"))
		}
		item.Indexes = append(item.Indexes, index)
	}
	return item
}

func parseEnum(tag *psi.Node) *EnumType {
	enum := &EnumType{
		Code:    value(tag, "code"),
		Dynamic: xmlpsi.AttrOr(tag, "dynamic", "false") == "true",
		Tag:     tag,
	}
	for _, v := range xmlpsi.Tags(tag, "value") {
		enum.Values = append(enum.Values, &EnumValue{
			Code: value(v, "code"),
			Name: xmlpsi.AttrOr(v, "name", ""),
			Tag:  v,
		})
	}
	return enum
}

func parseRelation(tag *psi.Node) *Relation {
	relation := &Relation{
		Code:      value(tag, "code"),
		Localized: xmlpsi.AttrOr(tag, "localized", "false") == "true",
		Tag:       tag,
	}
	if source := xmlpsi.Tag(tag, "sourceElement"); source != nil {
		relation.Source = parseRelationEnd(source)
	}
	if target := xmlpsi.Tag(tag, "targetElement"); target != nil {
		relation.Target = parseRelationEnd(target)
	}
	return relation
}

func parseRelationEnd(tag *psi.Node) *RelationEnd {
	return &RelationEnd{
		Qualifier:   value(tag, "qualifier"),
		Type:        value(tag, "type"),
		Cardinality: xmlpsi.AttrOr(tag, "cardinality", "many"),
		Navigable:   xmlpsi.AttrOr(tag, "navigable", "true") != "false",
		Ordered:     xmlpsi.AttrOr(tag, "ordered", "false") == "true",
		Tag:         tag,
	}
}

// value reads attribute name of tag. A missing attribute yields an empty value positioned
// at the start of the tag.
func value(tag *psi.Node, name string) Value {
	node := xmlpsi.AttrValueNode(tag, name)
	if node == nil {
		return Value{Range: psi.Range{Start: tag.Range.Start, End: tag.Range.Start}}
	}
	return Value{Text: xmlpsi.Unquote(node.Text()), Range: xmlpsi.ValueRange(node)}
}

func collectFolds(itemsTag *psi.Node) []Fold {
	var folds []Fold
	psi.Walk(itemsTag, func(n *psi.Node) bool {
		if n.Kind != psi.KindXMLTag {
			return false
		}
		if section, ok := sectionTags[n.Name]; ok && spansLines(n) {
			folds = append(folds, Fold{Section: section, Range: n.Range, Label: foldLabel(n)})
		}
		return true
	})
	return folds
}

func foldLabel(n *psi.Node) string {
	count := len(psi.ChildrenOfKind(n, psi.KindXMLTag))
	return fmt.Sprintf("<%s> (%d)", n.Name, count)
}

func spansLines(n *psi.Node) bool {
	return strings.Contains(n.Text(), "\n")
}
