package inspection

import (
	"context"
	"fmt"
	"strings"

	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

const javaLangPrefix = "java.lang."

// OmitJavaLangPackage flags bean property types spelled with the implicit java.lang package
type OmitJavaLangPackage struct{}

func (OmitJavaLangPackage) ID() string                { return "OmitJavaLangPackage" }
func (OmitJavaLangPackage) DefaultSeverity() Severity { return SeverityWarning }

func (OmitJavaLangPackage) Inspect(_ context.Context, c *Context) []Problem {
	if c.Kind != DocumentBeans {
		return nil
	}

	var problems []Problem
	for _, property := range xmlpsi.Path(c.Root, "beans", "bean", "property") {
		name, ok := xmlpsi.Attr(property, "name")
		if !ok {
			continue
		}
		value := xmlpsi.AttrValueNode(property, "type")
		if value == nil {
			continue
		}
		r := xmlpsi.ValueRange(value)
		raw := value.Content()[r.Start:r.End]
		if !strings.Contains(raw, javaLangPrefix) {
			continue
		}

		replacement := strings.ReplaceAll(raw, javaLangPrefix, "")
		problems = append(problems, Problem{
			Range:   r,
			Message: fmt.Sprintf("Property '%s' type can omit the java.lang package", name),
			Fixes:   []QuickFix{replaceFix(fmt.Sprintf("Change type to '%s'", replacement), r, replacement)},
		})
	}
	return problems
}
