package inspection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hybris-tools/tsls/internal/flexsearch"
	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/access"
	"github.com/hybris-tools/tsls/internal/typesystem/items"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

const itemsURI = "file:///core-items.xml"

const declarations = `<items>
    <collectiontypes>
        <collectiontype code="StringCollection" elementtype="java.lang.String"/>
    </collectiontypes>
    <enumtypes>
        <enumtype code="ArticleApprovalStatus"><value code="approved"/></enumtype>
    </enumtypes>
    <relations>
        <relation code="ProductCategoryRelation">
            <sourceElement qualifier="products" type="Product" cardinality="many"/>
            <targetElement qualifier="supercategories" type="Category" cardinality="many"/>
        </relation>
    </relations>
    <itemtypes>
        <itemtype code="Product" extends="GenericItem">
            <attributes>
                <attribute qualifier="code" type="java.lang.String"/>
                <attribute qualifier="keywords" type="StringCollection"/>
                <attribute qualifier="status" type="ArticleApprovalStatus"/>
                <attribute qualifier="count" type="int"/>
                <attribute qualifier="unit" type="Unti"/>
            </attributes>
            <indexes>
                <index name="codeIdx"><key attribute="code"/><key attribute="cdoe"/></index>
            </indexes>
        </itemtype>
        <itemtype code="Category" extends="GenericItem">
            <attributes>
                <attribute qualifier="code" type="java.lang.String"/>
            </attributes>
        </itemtype>
        <itemtype code="Unit" extends="GenericItem"/>
    </itemtypes>
</items>`

func newResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	svc := access.NewService()
	_, err := svc.Rebuild(context.Background(), []access.Source{{URI: itemsURI, Content: declarations}})
	require.NoError(t, err)
	return resolve.New(svc)
}

func run(t *testing.T, r *resolve.Resolver, c *Context) []Problem {
	t.Helper()
	c.Resolver = r
	return NewRunner(Defaults(), nil, zaptest.NewLogger(t)).Run(context.Background(), c)
}

func TestOmitJavaLangPackage(t *testing.T) {
	content := `<beans>
    <bean class="de.hybris.platform.commercefacades.product.data.ProductData">
        <property name="code" type="java.lang.String"/>
        <property name="tags" type="java.util.List&lt;java.lang.String&gt;"/>
        <property name="price" type="PriceData"/>
        <property type="java.lang.Integer"/>
    </bean>
</beans>`
	root, errs := xmlpsi.Parse(content)
	require.Empty(t, errs)

	problems := run(t, newResolver(t), &Context{URI: "file:///core-beans.xml", Kind: DocumentBeans, Root: root})
	require.Len(t, problems, 2)

	assert.Equal(t, "Property 'code' type can omit the java.lang package", problems[0].Message)
	assert.Equal(t, "java.lang.String", content[problems[0].Range.Start:problems[0].Range.End])
	assert.Equal(t, SeverityWarning, problems[0].Severity)
	assert.Equal(t, "OmitJavaLangPackage", problems[0].InspectionID)
	require.Len(t, problems[0].Fixes, 1)
	assert.Equal(t, []TextEdit{{Range: problems[0].Range, NewText: "String"}}, problems[0].Fixes[0].Edits)

	assert.Equal(t, "java.util.List&lt;String&gt;", problems[1].Fixes[0].Edits[0].NewText)
}

func TestUnknownType(t *testing.T) {
	r := newResolver(t)
	f, ok := r.Access().Snapshot().File(itemsURI)
	require.True(t, ok)

	var unknown []Problem
	for _, p := range run(t, r, &Context{URI: itemsURI, Kind: DocumentDeclarations, Root: f.Root}) {
		if p.InspectionID == "UnknownType" {
			unknown = append(unknown, p)
		}
	}
	require.Len(t, unknown, 1)
	assert.Equal(t, "Unknown type 'Unti'", unknown[0].Message)
	assert.Equal(t, SeverityError, unknown[0].Severity)
	assert.Equal(t, "Unti", declarations[unknown[0].Range.Start:unknown[0].Range.End])
	require.NotEmpty(t, unknown[0].Fixes)
	assert.Equal(t, "Change to 'Unit'", unknown[0].Fixes[0].Title)
}

func TestUnresolvedIndexKey(t *testing.T) {
	r := newResolver(t)
	f, ok := r.Access().Snapshot().File(itemsURI)
	require.True(t, ok)

	var unresolved []Problem
	for _, p := range run(t, r, &Context{URI: itemsURI, Kind: DocumentDeclarations, Root: f.Root}) {
		if p.InspectionID == "UnresolvedQualifier" {
			unresolved = append(unresolved, p)
		}
	}
	require.Len(t, unresolved, 1)
	assert.Equal(t, "Unknown attribute 'cdoe' of type Product", unresolved[0].Message)
	assert.Equal(t, "Change to 'code'", unresolved[0].Fixes[0].Title)
}

func TestUnresolvedColumns(t *testing.T) {
	r := newResolver(t)
	query := "SELECT {p.code}, {p.nmae}, {c.code}, {x.code} FROM {Product AS p JOIN Category AS c ON {p.supercategories} = {c.pk}}"
	root, _ := flexsearch.Parse(query)

	problems := run(t, r, &Context{URI: "file:///q.fxs", Kind: DocumentQuery, Root: root})
	var messages []string
	for _, p := range problems {
		messages = append(messages, p.Message)
	}
	assert.Equal(t, []string{"Cannot resolve column 'nmae' of type Product"}, messages)
	assert.Equal(t, "nmae", query[problems[0].Range.Start:problems[0].Range.End])
}

func TestPlatformAttributesResolve(t *testing.T) {
	r := newResolver(t)
	root, errs := flexsearch.Parse("SELECT {p.pk}, {p.creationtime}, {c.modifiedtime} FROM {Product AS p JOIN Category AS c ON {p.supercategories} = {c.pk}} ORDER BY {p.modifiedtime}")
	require.Empty(t, errs)

	assert.Empty(t, run(t, r, &Context{URI: "file:///q.fxs", Kind: DocumentQuery, Root: root}))
}

func TestSeverityOverrides(t *testing.T) {
	r := newResolver(t)
	root, _ := flexsearch.Parse("SELECT {nmae} FROM {Product}")

	runner := NewRunner(Defaults(), map[string]Severity{"UnresolvedQualifier": SeverityHint}, nil)
	problems := runner.Run(context.Background(), &Context{Kind: DocumentQuery, Root: root, Resolver: r})
	require.Len(t, problems, 1)
	assert.Equal(t, SeverityHint, problems[0].Severity)
	assert.Equal(t, []string{"OmitJavaLangPackage", "UnknownType", "UnresolvedQualifier"}, runner.IDs())
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("Warning")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)
	assert.Equal(t, "warning", s.String())

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestDeclarationFileOutsideModel(t *testing.T) {
	r := newResolver(t)
	f := items.Parse("file:///ext-items.xml", `<items><itemtypes>
    <itemtype code="Product"><indexes><index name="x"><key attribute="ean"/></index></indexes></itemtype>
</itemtypes></items>`)

	problems := run(t, r, &Context{URI: f.URI, Kind: DocumentDeclarations, Root: f.Root})
	require.Len(t, problems, 1)
	assert.Equal(t, "Unknown attribute 'ean' of type Product", problems[0].Message)
	assert.Empty(t, psi.DescendantsOfKind(f.Root, psi.KindTypeReferenceValue))
}
