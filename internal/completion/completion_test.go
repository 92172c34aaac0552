package completion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybris-tools/tsls/internal/flexsearch"
	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/access"
	"github.com/hybris-tools/tsls/internal/typesystem/items"
)

const declarations = `<items>
    <enumtypes>
        <enumtype code="ArticleApprovalStatus">
            <value code="approved"/>
        </enumtype>
    </enumtypes>
    <relations>
        <relation code="ProductCategoryRelation">
            <sourceElement qualifier="products" type="Product" cardinality="many"/>
            <targetElement qualifier="supercategories" type="Category" cardinality="many"/>
        </relation>
        <relation code="ProductPriceRelation">
            <sourceElement qualifier="product" type="Product" cardinality="one"/>
            <targetElement qualifier="price" type="PriceRow" cardinality="many"/>
        </relation>
    </relations>
    <itemtypes>
        <itemtype code="Product" extends="GenericItem">
            <attributes>
                <attribute qualifier="code" type="java.lang.String"/>
                <attribute qualifier="name" type="localized:java.lang.String"/>
                <attribute qualifier="price" type="java.lang.Double"/>
                <attribute qualifier="approvalStatus" type="ArticleApprovalStatus"/>
            </attributes>
        </itemtype>
        <itemtype code="Category" extends="GenericItem"/>
        <itemtype code="PriceRow" extends="GenericItem"/>
    </itemtypes>
</items>`

func newProvider(t *testing.T) *Provider {
	t.Helper()
	svc := access.NewService()
	_, err := svc.Rebuild(context.Background(), []access.Source{{URI: "file:///core-items.xml", Content: declarations}})
	require.NoError(t, err)
	return NewProvider(resolve.New(svc))
}

func labels(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Label)
	}
	return out
}

// complete parses query with the caret marked by | and completes there
func complete(t *testing.T, p *Provider, query string) []Candidate {
	t.Helper()
	offset := strings.Index(query, "|")
	require.GreaterOrEqual(t, offset, 0)
	root, _ := flexsearch.Parse(strings.Replace(query, "|", "", 1))
	return p.ForQuery(context.Background(), root, offset)
}

func TestQueryContext(t *testing.T) {
	tests := []struct {
		query  string
		kind   ContextKind
		alias  string
		prefix string
	}{
		{"|", ContextKeyword, "", ""},
		{"SELECT |", ContextQualifier, "", ""},
		{"SELECT {co|", ContextQualifier, "", "co"},
		{"SELECT {p.co|", ContextColumn, "p", "co"},
		{"SELECT {p!.|", ContextColumn, "p", ""},
		{"SELECT {code} FROM |", ContextTable, "", ""},
		{"SELECT {code} FROM {Product AS p JOIN |", ContextTable, "", ""},
		{"SELECT {code} FROM {Product AS |", ContextUnknown, "", ""},
		{"SELECT {code} FROM {Product} |", ContextKeyword, "", ""},
		{"SELECT {p.code} FROM {Product AS p} WHERE {p.code} = |", ContextQualifier, "", ""},
		{"SELECT {p.pk} FROM {Product AS p} WHERE {p.pk} IN ({{SELECT {c.pk} FROM {Category AS c}}}) AND |", ContextQualifier, "", ""},
		{"SELECT x FROM A WHERE EXISTS ({{SELECT y FROM |", ContextTable, "", ""},
		{"SELECT x FROM A WHERE EXISTS ({{SELECT y FROM B AS b WHERE |", ContextQualifier, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			offset := strings.Index(tt.query, "|")
			root, _ := flexsearch.Parse(strings.Replace(tt.query, "|", "", 1))

			c := QueryContext(root, offset)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.alias, c.Alias)
			assert.Equal(t, tt.prefix, c.Prefix)
		})
	}
}

func TestCompleteColumns(t *testing.T) {
	p := newProvider(t)

	got := complete(t, p, "SELECT {p.|} FROM {Product AS p}")
	assert.Equal(t, []string{"approvalStatus", "code", "creationtime", "modifiedtime", "name", "pk", "price", "supercategories"}, labels(got))
	assert.Equal(t, "java.util.Date", got[2].Detail, "root type attributes are inherited")
	assert.Equal(t, KindAttribute, got[6].Kind, "an attribute wins over a relation end of the same name")
	assert.Equal(t, KindRelationEnd, got[7].Kind)
	assert.Equal(t, "Category", got[7].Detail)

	assert.Equal(t, []string{"name"}, labels(complete(t, p, "SELECT {na|} FROM {Product}")))

	got = complete(t, p, "SELECT {r.|} FROM {ProductCategoryRelation AS r}")
	assert.Equal(t, []string{"source", "target", "language", "qualifier", "reverseSequenceNumber", "sequenceNumber"}, labels(got))
	assert.Equal(t, "Product", got[0].Detail)

	assert.Equal(t, []string{"code", "name"}, labels(complete(t, p, "SELECT {e.|} FROM {ArticleApprovalStatus AS e}")))
	assert.Empty(t, complete(t, p, "SELECT {z.|} FROM {Product AS p}"))
}

func TestCompleteTablesAndKeywords(t *testing.T) {
	p := newProvider(t)

	got := complete(t, p, "SELECT * FROM Pro|")
	assert.Equal(t, []string{"Product", "ProductPriceRelation", "ProductCategoryRelation", "PriceRow"}, labels(got))
	assert.Equal(t, KindRelation, got[1].Kind)

	got = complete(t, p, "SELECT {code} FROM {Product} WH|")
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []string{"WHEN", "WHERE"}, labels(got[:2]))
	assert.Equal(t, KindKeyword, got[0].Kind)

	assert.Empty(t, complete(t, p, "SELECT {code} FROM {Product AS |}"))
}

func TestForDeclaration(t *testing.T) {
	p := newProvider(t)
	f := items.Parse("file:///ext-items.xml", `<items><itemtypes>
    <itemtype code="Product"><attributes><attribute qualifier="" type="java.lang.String"/></attributes></itemtype>
    <itemtype code="Media"><attributes><attribute qualifier="" type="java.lang.String"/></attributes></itemtype>
</itemtypes></items>`)
	nodes := psi.DescendantsOfKind(f.Root, psi.KindItemAttributeQualifier)
	require.Len(t, nodes, 2)

	assert.Equal(t,
		[]string{"approvalStatus", "code", "name", "price", "supercategories"},
		labels(p.ForDeclaration(nodes[0])))
	assert.Empty(t, p.ForDeclaration(nodes[1]))
}

func TestTypeNames(t *testing.T) {
	p := newProvider(t)

	got := p.TypeNames("cat")
	require.NotEmpty(t, got)
	assert.Equal(t, "Category", got[0].Label)
	assert.Len(t, p.TypeNames(""), 9)
}

func TestCancelledCompletion(t *testing.T) {
	p := newProvider(t)
	root, _ := flexsearch.Parse("SELECT {p.} FROM {Product AS p}")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, p.ForQuery(ctx, root, 10))
}
