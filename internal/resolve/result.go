package resolve

import (
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
)

// Role tells which meta entity a result points to
type Role int

const (
	RoleAttribute Role = iota + 1
	RoleRelationEnd
	RoleEnum
	RoleItem
	RoleRelation
)

func (r Role) String() string {
	switch r {
	case RoleAttribute:
		return "attribute"
	case RoleRelationEnd:
		return "relation end"
	case RoleEnum:
		return "enum"
	case RoleItem:
		return "item"
	case RoleRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Result is one resolution target. Exactly the field matching Role is set.
type Result struct {
	Role        Role
	Attribute   *meta.Attribute
	RelationEnd *meta.RelationEnd
	Enum        *meta.Enum
	Item        *meta.Item
	Relation    *meta.Relation
}

func attributeResult(a *meta.Attribute) Result {
	return Result{Role: RoleAttribute, Attribute: a}
}

func relationEndResult(e *meta.RelationEnd) Result {
	return Result{Role: RoleRelationEnd, RelationEnd: e}
}

func classifierResult(c meta.Classifier) Result {
	switch v := c.(type) {
	case *meta.Item:
		return Result{Role: RoleItem, Item: v}
	case *meta.Enum:
		return Result{Role: RoleEnum, Enum: v}
	case *meta.Relation:
		return Result{Role: RoleRelation, Relation: v}
	}
	return Result{}
}

// Valid reports whether the result points at an entity
func (r Result) Valid() bool {
	switch r.Role {
	case RoleAttribute:
		return r.Attribute != nil
	case RoleRelationEnd:
		return r.RelationEnd != nil
	case RoleEnum:
		return r.Enum != nil
	case RoleItem:
		return r.Item != nil
	case RoleRelation:
		return r.Relation != nil
	}
	return false
}

// Origin returns the declaring element of the target
func (r Result) Origin() meta.Origin {
	if !r.Valid() {
		return meta.Origin{}
	}
	switch r.Role {
	case RoleAttribute:
		return r.Attribute.Origin
	case RoleRelationEnd:
		return r.RelationEnd.Origin
	case RoleEnum:
		return r.Enum.Origin()
	case RoleItem:
		return r.Item.Origin()
	default:
		return r.Relation.Origin()
	}
}

// Name returns a display name such as Product.code or ArticleApprovalStatus
func (r Result) Name() string {
	if !r.Valid() {
		return ""
	}
	switch r.Role {
	case RoleAttribute:
		return r.Attribute.Owner + "." + r.Attribute.Qualifier
	case RoleRelationEnd:
		return r.RelationEnd.Relation + "." + r.RelationEnd.Qualifier
	case RoleEnum:
		return r.Enum.Name()
	case RoleItem:
		return r.Item.Name()
	default:
		return r.Relation.Name()
	}
}

// ValidResults drops results without a target. The input is not modified.
func ValidResults(results []Result) []Result {
	valid := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	return valid
}
