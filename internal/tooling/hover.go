package tooling

import (
	"fmt"
	"path"
	"strings"

	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
)

// maxHoverValues bounds the enum values listed in a hover
const maxHoverValues = 10

// buildHover renders markdown for the resolution targets, separated by rules
func buildHover(results []resolve.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, hoverFor(r))
	}
	return strings.Join(parts, "\n---\n\n")
}

func hoverFor(r resolve.Result) string {
	var content strings.Builder

	content.WriteString("```hybris\n")
	switch r.Role {
	case resolve.RoleAttribute:
		fmt.Fprintf(&content, "attribute %s: %s", r.Attribute.Qualifier, r.Attribute.Type)
	case resolve.RoleRelationEnd:
		end := r.RelationEnd
		fmt.Fprintf(&content, "%s %s: %s", end.End, end.Qualifier, end.Type)
		if end.Cardinality != "" {
			fmt.Fprintf(&content, " (%s)", end.Cardinality)
		}
	case resolve.RoleItem:
		fmt.Fprintf(&content, "itemtype %s", r.Item.Name())
		if len(r.Item.Extends) > 0 {
			fmt.Fprintf(&content, " extends %s", strings.Join(r.Item.Extends, ", "))
		}
	case resolve.RoleEnum:
		fmt.Fprintf(&content, "enumtype %s", r.Enum.Name())
	case resolve.RoleRelation:
		rel := r.Relation
		fmt.Fprintf(&content, "relation %s: %s -> %s", rel.Name(), rel.Source.Type, rel.Target.Type)
	}
	content.WriteString("\n```\n\n")

	switch r.Role {
	case resolve.RoleAttribute:
		fmt.Fprintf(&content, "*In item type:* `%s`\n\n", r.Attribute.Owner)
		if r.Attribute.Redeclare {
			content.WriteString("*Redeclared*\n\n")
		}
	case resolve.RoleRelationEnd:
		fmt.Fprintf(&content, "*Relation:* `%s`", r.RelationEnd.Relation)
		if r.RelationEnd.Ordered {
			content.WriteString(", ordered")
		}
		content.WriteString("\n\n")
	case resolve.RoleItem:
		if r.Item.Abstract {
			content.WriteString("*Abstract*\n\n")
		}
		fmt.Fprintf(&content, "%d attributes, %d relation ends\n\n", len(r.Item.AllAttributes()), len(r.Item.AllRelationEnds()))
	case resolve.RoleEnum:
		writeEnumValues(&content, r.Enum)
	case resolve.RoleRelation:
		if r.Relation.Localized {
			content.WriteString("*Localized*\n\n")
		}
	}

	content.WriteString(declaredIn(r.Origin()))
	return content.String()
}

func writeEnumValues(content *strings.Builder, enum *meta.Enum) {
	if enum.Dynamic {
		content.WriteString("*Dynamic*\n\n")
	}
	if len(enum.Values) == 0 {
		return
	}
	codes := make([]string, 0, maxHoverValues)
	for i, v := range enum.Values {
		if i == maxHoverValues {
			codes = append(codes, fmt.Sprintf("and %d more", len(enum.Values)-maxHoverValues))
			break
		}
		codes = append(codes, "`"+v.Code+"`")
	}
	fmt.Fprintf(content, "Values: %s\n\n", strings.Join(codes, ", "))
}

func declaredIn(origin meta.Origin) string {
	if origin.IsZero() {
		return "*Platform type*\n"
	}
	return fmt.Sprintf("*Declared in:* `%s`\n", path.Base(origin.URI))
}
