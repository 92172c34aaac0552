package meta

import (
	"testing"

	"github.com/hybris-tools/tsls/internal/typesystem/items"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coreItems = `<items>
    <enumtypes>
        <enumtype code="ArticleApprovalStatus">
            <value code="check"/>
            <value code="approved"/>
        </enumtype>
    </enumtypes>
    <relations>
        <relation code="ProductCategoryRelation">
            <sourceElement qualifier="products" type="Product" cardinality="many"/>
            <targetElement qualifier="category" type="Category" cardinality="one"/>
        </relation>
        <relation code="ProductMediaRelation">
            <sourceElement qualifier="owner" type="Product" cardinality="one" navigable="false"/>
            <targetElement qualifier="medias" type="Media" cardinality="many"/>
        </relation>
    </relations>
    <itemtypes>
        <itemtype code="Product" extends="GenericItem">
            <attributes>
                <attribute qualifier="code" type="java.lang.String"/>
                <attribute qualifier="name" type="localized:java.lang.String"/>
            </attributes>
        </itemtype>
        <itemtype code="Category" extends="GenericItem">
            <attributes>
                <attribute qualifier="code" type="java.lang.String"/>
            </attributes>
        </itemtype>
        <itemtype code="Media" extends="GenericItem"/>
    </itemtypes>
</items>`

const extensionItems = `<items>
    <enumtypes>
        <enumtype code="ArticleApprovalStatus" dynamic="true">
            <value code="approved"/>
            <value code="rejected"/>
        </enumtype>
    </enumtypes>
    <itemtypes>
        <itemtype code="Product">
            <attributes>
                <attribute qualifier="ean" type="java.lang.String"/>
            </attributes>
        </itemtype>
        <itemtype code="VariantProduct" extends="Product">
            <attributes>
                <attribute qualifier="name" type="java.lang.String" redeclare="true"/>
                <attribute qualifier="baseProduct" type="Product"/>
            </attributes>
        </itemtype>
    </itemtypes>
</items>`

func build(t *testing.T, sources ...string) *Registry {
	t.Helper()
	b := NewBuilder()
	for i, src := range sources {
		f := items.Parse("file:///"+string(rune('a'+i))+"-items.xml", src)
		require.Empty(t, f.Errors)
		b.Add(f)
	}
	return b.Build()
}

func qualifiers(attrs []*Attribute) []string {
	result := make([]string, 0, len(attrs))
	for _, a := range attrs {
		result = append(result, a.Owner+"."+a.Qualifier)
	}
	return result
}

func TestLookupsByName(t *testing.T) {
	r := build(t, coreItems)

	product, ok := r.Item("Product")
	require.True(t, ok)
	assert.Equal(t, "Product", product.Name())
	assert.Equal(t, KindItem, product.Kind())

	_, ok = r.Item("product")
	assert.False(t, ok, "exact lookup is case-sensitive")
	folded, ok := r.ItemFold("PRODUCT")
	require.True(t, ok)
	assert.Same(t, product, folded)

	c, ok := r.Classifier("ProductCategoryRelation")
	require.True(t, ok)
	assert.Equal(t, KindRelation, c.Kind())

	c, ok = r.Classifier("ArticleApprovalStatus")
	require.True(t, ok)
	assert.Equal(t, KindEnum, c.Kind())

	_, ok = r.Classifier("Nope")
	assert.False(t, ok)

	c, ok = r.ClassifierFold("productcategoryrelation")
	require.True(t, ok)
	assert.Equal(t, "ProductCategoryRelation", c.Name())
}

func TestSyntheticTypes(t *testing.T) {
	r := build(t, coreItems)

	link, ok := r.Item(TypeLink)
	require.True(t, ok)
	assert.True(t, link.Synthetic)
	assert.Equal(t, []string{"Link.source", "Link.target", "Link.qualifier", "Link.language", "Link.sequenceNumber", "Link.reverseSequenceNumber"}, qualifiers(link.AllAttributes()))

	ev, ok := r.Item(TypeEnumerationValue)
	require.True(t, ok)
	_, ok = ev.Attribute("code")
	assert.True(t, ok)

	generic, ok := r.Item(TypeGenericItem)
	require.True(t, ok, "referenced root types are synthesized")
	assert.True(t, generic.Synthetic)
	assert.Equal(t, []string{"GenericItem.pk", "GenericItem.creationtime", "GenericItem.modifiedtime"}, qualifiers(generic.AllAttributes()))
	pk, ok := generic.Attribute("pk")
	require.True(t, ok)
	assert.Equal(t, "de.hybris.platform.core.PK", pk.Type)
	assert.True(t, pk.Synthetic)

	product, _ := r.Item("Product")
	assert.Subset(t, qualifiers(product.AllAttributes()), []string{"GenericItem.pk", "GenericItem.creationtime", "GenericItem.modifiedtime"})
	assert.Empty(t, r.Problems())
}

func TestRelationEndsAttachToOppositeType(t *testing.T) {
	r := build(t, coreItems)

	product, _ := r.Item("Product")
	category, _ := r.Item("Category")
	media, _ := r.Item("Media")

	require.Len(t, product.AllRelationEnds(), 2)
	assert.Equal(t, "category", product.AllRelationEnds()[0].Qualifier)
	assert.Equal(t, EndTarget, product.AllRelationEnds()[0].End)
	assert.Equal(t, "Product", product.AllRelationEnds()[0].Owner)
	assert.Equal(t, "ProductCategoryRelation", product.AllRelationEnds()[0].Relation)
	assert.Equal(t, "medias", product.AllRelationEnds()[1].Qualifier)

	require.Len(t, category.AllRelationEnds(), 1)
	assert.Equal(t, "products", category.AllRelationEnds()[0].Qualifier)

	assert.Empty(t, media.AllRelationEnds(), "owner end is not navigable")
}

func TestMergeAcrossFiles(t *testing.T) {
	r := build(t, coreItems, extensionItems)

	product, _ := r.Item("Product")
	assert.Equal(t, []string{"GenericItem"}, product.Extends)
	assert.Len(t, product.Declarations, 2)
	assert.Equal(t, []string{"Product.code", "Product.name", "Product.ean"}, qualifiers(product.Attributes()))

	enum, _ := r.Enum("ArticleApprovalStatus")
	assert.True(t, enum.Dynamic)
	var codes []string
	for _, v := range enum.Values {
		codes = append(codes, v.Code)
	}
	assert.Equal(t, []string{"check", "approved", "rejected"}, codes)
}

func TestEffectiveAttributesShadowing(t *testing.T) {
	r := build(t, coreItems, extensionItems)

	variant, ok := r.Item("VariantProduct")
	require.True(t, ok)
	assert.Equal(t, []string{"VariantProduct", "Product", "GenericItem"}, names(variant.Hierarchy()))
	assert.Equal(t,
		[]string{
			"VariantProduct.name", "VariantProduct.baseProduct", "Product.code", "Product.ean",
			"GenericItem.pk", "GenericItem.creationtime", "GenericItem.modifiedtime",
		},
		qualifiers(variant.AllAttributes()))
	require.Len(t, variant.AllRelationEnds(), 2, "relation ends are inherited")
}

func TestDiamondKeepsBothBranches(t *testing.T) {
	r := build(t, `<items><itemtypes>
        <itemtype code="Base"><attributes><attribute qualifier="id" type="int"/></attributes></itemtype>
        <itemtype code="Left" extends="Base"><attributes><attribute qualifier="label" type="String"/></attributes></itemtype>
        <itemtype code="Right" extends="Base"><attributes><attribute qualifier="label" type="String"/><attribute qualifier="id" type="long"/></attributes></itemtype>
        <itemtype code="Both" extends="Left,Right"/>
    </itemtypes></items>`)

	both, _ := r.Item("Both")
	assert.Equal(t, []string{"Both", "Left", "Base", "Right"}, names(both.Hierarchy()))
	// Right.id shadows Base.id because Right derives from Base; the two labels are siblings
	assert.Equal(t, []string{"Left.label", "Right.label", "Right.id"}, qualifiers(both.AllAttributes()))
}

func TestBrokenHierarchies(t *testing.T) {
	r := build(t, `<items><itemtypes>
        <itemtype code="A" extends="B"><attributes><attribute qualifier="a" type="int"/></attributes></itemtype>
        <itemtype code="B" extends="A"><attributes><attribute qualifier="b" type="int"/></attributes></itemtype>
        <itemtype code="C" extends="Missing"/>
        <itemtype code="D"><attributes><attribute qualifier="x"/><attribute qualifier="x"/></attributes></itemtype>
    </itemtypes></items>`)

	a, _ := r.Item("A")
	assert.Equal(t, []string{"A", "B"}, names(a.Hierarchy()))
	assert.Equal(t, []string{"A.a", "B.b"}, qualifiers(a.AllAttributes()))

	c, _ := r.Item("C")
	assert.Equal(t, []string{"C"}, names(c.Hierarchy()))

	d, _ := r.Item("D")
	assert.Len(t, d.Attributes(), 1)

	var messages []string
	for _, p := range r.Problems() {
		messages = append(messages, p.Message)
	}
	assert.Contains(t, messages, "unknown supertype Missing of C")
	assert.Contains(t, messages, `attribute "x" is declared more than once on D`)
	assert.Contains(t, messages, "cyclic inheritance: B extends A")
}

func TestSortedListings(t *testing.T) {
	r := build(t, coreItems)
	assert.Equal(t, []string{"Category", "EnumerationValue", "GenericItem", "Link", "Media", "Product"}, names(r.Items()))
	assert.IsIncreasing(t, names(r.Items()))
	assert.Contains(t, r.ClassifierNames(), "ArticleApprovalStatus")
	assert.Len(t, r.Relations(), 2)
}

func TestEmptyRegistry(t *testing.T) {
	r := Empty()
	_, ok := r.Item(TypeLink)
	assert.True(t, ok)
	_, ok = r.Item("Product")
	assert.False(t, ok)
}

func names[V Classifier](cs []V) []string {
	result := make([]string, 0, len(cs))
	for _, c := range cs {
		result = append(result, c.Name())
	}
	return result
}
