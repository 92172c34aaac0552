package items

import (
	"slices"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

// typeReferences lists tag/attribute pairs whose value names a classifier
var typeReferences = map[string][]string{
	"itemtype":       {"extends"},
	"attribute":      {"type"},
	"sourceElement":  {"type"},
	"targetElement":  {"type"},
	"collectiontype": {"elementtype"},
	"maptype":        {"argumenttype", "returntype"},
}

// Refine rewrites the kind of attribute value nodes that carry references so resolvers can
// dispatch on the kind alone:
//
//   - attribute@qualifier inside an itemtype becomes ItemAttributeQualifier
//   - key@attribute inside an index becomes IndexKeyAttribute
//   - attribute values naming a type become TypeReferenceValue
func Refine(root *psi.Node) {
	psi.Walk(root, func(n *psi.Node) bool {
		if n.Kind != psi.KindXMLAttributeValue {
			return true
		}
		tag := xmlpsi.OwnerTag(n)
		if tag == nil {
			return false
		}
		switch {
		case tag.Name == "attribute" && n.Name == "qualifier" && enclosingTag(tag, "itemtype") != nil:
			n.Kind = psi.KindItemAttributeQualifier
		case tag.Name == "key" && n.Name == "attribute" && enclosingTag(tag, "index") != nil:
			n.Kind = psi.KindIndexKeyAttribute
		case isTypeReference(tag.Name, n.Name):
			n.Kind = psi.KindTypeReferenceValue
		}
		return false
	})
}

// EnclosingItemType returns the <itemtype> tag that contains n
func EnclosingItemType(n *psi.Node) *psi.Node {
	return enclosingTag(n, "itemtype")
}

func enclosingTag(n *psi.Node, name string) *psi.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Kind == psi.KindXMLTag && cur.Name == name {
			return cur
		}
	}
	return nil
}

func isTypeReference(tag, attr string) bool {
	return slices.Contains(typeReferences[tag], attr)
}
