package tooling

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"
	"go.uber.org/zap/zaptest"

	"github.com/hybris-tools/tsls/internal/cli/config"
	"github.com/hybris-tools/tsls/internal/inspection"
	"github.com/hybris-tools/tsls/internal/psi"
)

const (
	itemsURI = "file:///ws/core/resources/core-items.xml"
	beansURI = "file:///ws/core/resources/core-beans.xml"
	queryURI = "file:///ws/queries/products.fxs"
)

const coreItems = `<items>
    <enumtypes>
        <enumtype code="ArticleApprovalStatus">
            <value code="approved"/>
            <value code="check"/>
        </enumtype>
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
                <attribute qualifier="name" type="localized:java.lang.String"/>
                <attribute qualifier="approvalStatus" type="ArticleApprovalStatus"/>
            </attributes>
            <indexes>
                <index name="codeIdx"><key attribute="code"/></index>
            </indexes>
        </itemtype>
        <itemtype code="Category" extends="GenericItem">
            <attributes>
                <attribute qualifier="code" type="java.lang.String"/>
            </attributes>
        </itemtype>
    </itemtypes>
</items>`

func newAPI(t *testing.T, opts ...Option) *API {
	t.Helper()
	return NewAPI(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

// open opens a document and fails the test on error
func open(t *testing.T, api *API, docURI, content string) *Document {
	t.Helper()
	doc, err := api.OpenDocument(context.Background(), docURI, content, 1)
	require.NoError(t, err)
	return doc
}

// at returns the position of the n-th byte after the first occurrence of needle
func at(t *testing.T, content, needle string, n int) Position {
	t.Helper()
	i := strings.Index(content, needle)
	require.GreaterOrEqual(t, i, 0, "needle %q not found", needle)
	return NewLineIndex(content).Position(i + n)
}

// textAt returns the text a range of content covers
func textAt(content string, r Range) string {
	li := NewLineIndex(content)
	span := li.OffsetRange(r)
	return content[span.Start:span.End]
}

func TestAPICreation(t *testing.T) {
	api := NewAPI()
	require.NotNil(t, api)
	assert.NotNil(t, api.Service())
	assert.NotNil(t, api.Resolver())
	assert.NotNil(t, api.Config())
	assert.Empty(t, api.Documents())
}

func TestDocumentKinds(t *testing.T) {
	api := newAPI(t)
	assert.Equal(t, inspection.DocumentDeclarations, api.Kind(itemsURI))
	assert.Equal(t, inspection.DocumentBeans, api.Kind(beansURI))
	assert.Equal(t, inspection.DocumentQuery, api.Kind(queryURI))
	assert.Equal(t, inspection.DocumentKind(0), api.Kind("file:///ws/README.md"))
}

func TestDocumentLifecycle(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	doc := open(t, api, queryURI, "SELECT {code} FROM {Product}")
	assert.Equal(t, inspection.DocumentQuery, doc.Kind)
	assert.NotNil(t, doc.Root)
	assert.Empty(t, doc.ParseErrors)

	updated, err := api.UpdateDocument(ctx, queryURI, "SELECT {name} FROM {Product}", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)

	stale, err := api.UpdateDocument(ctx, queryURI, "SELECT 1", 2)
	require.NoError(t, err)
	assert.Equal(t, "SELECT {name} FROM {Product}", stale.Content)

	got, ok := api.GetDocument(queryURI)
	require.True(t, ok)
	assert.Same(t, updated, got)

	require.NoError(t, api.CloseDocument(ctx, queryURI))
	_, ok = api.GetDocument(queryURI)
	assert.False(t, ok)

	_, err = api.UpdateDocument(ctx, queryURI, "SELECT 1", 4)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = api.GetDiagnostics(ctx, queryURI)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = api.GetDefinition(ctx, queryURI, Position{})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDeclarationEditsRebuildModel(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	stamp := api.Service().Tracker().Count()

	open(t, api, itemsURI, coreItems)
	assert.Greater(t, api.Service().Tracker().Count(), stamp)
	_, ok := api.Service().FindMetaItemByName("Product")
	require.True(t, ok)

	// query documents never rebuild the model
	stamp = api.Service().Tracker().Count()
	open(t, api, queryURI, "SELECT {p.code} FROM {Product AS p}")
	assert.Equal(t, stamp, api.Service().Tracker().Count())

	renamed := strings.Replace(coreItems, `code="Product"`, `code="Article"`, 1)
	_, err := api.UpdateDocument(ctx, itemsURI, renamed, 2)
	require.NoError(t, err)
	_, ok = api.Service().FindMetaItemByName("Product")
	assert.False(t, ok)
	_, ok = api.Service().FindMetaItemByName("Article")
	assert.True(t, ok)

	diagnostics, err := api.GetDiagnostics(ctx, queryURI)
	require.NoError(t, err)
	assert.Empty(t, diagnostics, "columns of unknown types are not reported")

	require.NoError(t, api.CloseDocument(ctx, itemsURI))
	_, ok = api.Service().FindMetaItemByName("Article")
	assert.False(t, ok)
}

func TestRebuildReadsWorkspaceFromDisk(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "core", "resources", "core-items.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(coreItems), 0o644))

	cfg, err := config.Load(root)
	require.NoError(t, err)
	api := newAPI(t, WithConfig(cfg))
	ctx := context.Background()

	require.NoError(t, api.Rebuild(ctx))
	_, ok := api.Service().FindMetaItemByName("Category")
	require.True(t, ok)

	// the editor content wins over the file on disk
	diskURI := string(uri.File(path))
	open(t, api, diskURI, strings.Replace(coreItems, `code="Category"`, `code="Catalog"`, 1))
	_, ok = api.Service().FindMetaItemByName("Category")
	assert.False(t, ok)
	_, ok = api.Service().FindMetaItemByName("Catalog")
	assert.True(t, ok)

	require.NoError(t, api.CloseDocument(ctx, diskURI))
	_, ok = api.Service().FindMetaItemByName("Category")
	assert.True(t, ok)
}

func TestGetDefinition(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	open(t, api, itemsURI, coreItems)
	query := "SELECT {p.code}, {p.supercategories} FROM {Product AS p}"
	open(t, api, queryURI, query)

	locations, err := api.GetDefinition(ctx, queryURI, at(t, query, "p.code", 3))
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, itemsURI, locations[0].URI)
	assert.Equal(t, at(t, coreItems, `qualifier="code"`, len(`qualifier="`)), locations[0].Range.Start)
	assert.Equal(t, "code", textAt(coreItems, locations[0].Range))

	locations, err = api.GetDefinition(ctx, queryURI, at(t, query, "supercategories", 2))
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "supercategories", textAt(coreItems, locations[0].Range))

	locations, err = api.GetDefinition(ctx, queryURI, at(t, query, "Product", 1))
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "Product", textAt(coreItems, locations[0].Range))

	locations, err = api.GetDefinition(ctx, queryURI, Position{Line: 0, Character: 2})
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestGetDefinitionInDeclarations(t *testing.T) {
	api := newAPI(t)
	open(t, api, itemsURI, coreItems)

	locations, err := api.GetDefinition(context.Background(), itemsURI, at(t, coreItems, `type="ArticleApprovalStatus"`, 8))
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, at(t, coreItems, `code="ArticleApprovalStatus"`, len(`code="`)), locations[0].Range.Start)
}

func TestGetDefinitionOfSyntheticType(t *testing.T) {
	api := newAPI(t)
	open(t, api, itemsURI, coreItems)

	// GenericItem is provided by the platform and has no declaration
	locations, err := api.GetDefinition(context.Background(), itemsURI, at(t, coreItems, `extends="GenericItem"`, 10))
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestGetHover(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	open(t, api, itemsURI, coreItems)
	query := "SELECT {p.code}, {p.approvalStatus} FROM {Product AS p}"
	open(t, api, queryURI, query)

	hover, err := api.GetHover(ctx, queryURI, at(t, query, "p.code", 3))
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents, "attribute code: java.lang.String")
	assert.Contains(t, hover.Contents, "*In item type:* `Product`")
	assert.Contains(t, hover.Contents, "`core-items.xml`")
	assert.Equal(t, "code", textAt(query, hover.Range))

	hover, err = api.GetHover(ctx, queryURI, at(t, query, "Product", 0))
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents, "itemtype Product extends GenericItem")

	hover, err = api.GetHover(ctx, itemsURI, at(t, coreItems, `type="ArticleApprovalStatus"`, 8))
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents, "enumtype ArticleApprovalStatus")
	assert.Contains(t, hover.Contents, "Values: `approved`, `check`")

	hover, err = api.GetHover(ctx, queryURI, Position{Line: 0, Character: 1})
	require.NoError(t, err)
	assert.Nil(t, hover)
}

func TestGetCompletions(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	open(t, api, itemsURI, coreItems)

	query := "SELECT {p.} FROM {Product AS p}"
	open(t, api, queryURI, query)
	items, err := api.GetCompletions(ctx, queryURI, at(t, query, "p.", 2))
	require.NoError(t, err)

	var labels []string
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	assert.Equal(t, []string{"approvalStatus", "code", "creationtime", "modifiedtime", "name", "pk", "supercategories"}, labels)
	assert.Equal(t, CompletionKindAttribute, items[0].Kind)
	assert.Equal(t, CompletionKindRelationEnd, items[6].Kind)
	assert.Equal(t, "0000", items[0].SortText)

	edited := strings.Replace(coreItems, `<key attribute="code"/>`, `<key attribute="co"/>`, 1)
	_, err = api.UpdateDocument(ctx, itemsURI, edited, 2)
	require.NoError(t, err)
	items, err = api.GetCompletions(ctx, itemsURI, at(t, edited, `attribute="co"`, len(`attribute="co`)))
	require.NoError(t, err)
	assert.NotEmpty(t, items)

	typed := strings.Replace(coreItems, `type="ArticleApprovalStatus"`, `type="ArticleAppr"`, 1)
	_, err = api.UpdateDocument(ctx, itemsURI, typed, 3)
	require.NoError(t, err)
	items, err = api.GetCompletions(ctx, itemsURI, at(t, typed, `type="ArticleAppr"`, len(`type="ArticleAppr`)))
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "ArticleApprovalStatus", items[0].Label)
	assert.Equal(t, CompletionKindEnum, items[0].Kind)
}

func TestTypedTypePrefix(t *testing.T) {
	content := `<itemtype extends="GenericItem, Descr"/>`
	doc := NewAPI().parse(itemsURI, content, 1)
	value := psi.FirstDescendantOfKind(doc.Root, psi.KindTypeReferenceValue)
	require.NotNil(t, value)

	start := strings.Index(content, `"GenericItem`)
	assert.Equal(t, "Descr", typedTypePrefix(content, value, strings.Index(content, "Descr")+5))
	assert.Equal(t, "Gen", typedTypePrefix(content, value, start+4))
	assert.Equal(t, "", typedTypePrefix(content, value, start))
	assert.Equal(t, "", typedTypePrefix(content, value, start+1))
}

func TestOpenDocuments(t *testing.T) {
	api := newAPI(t)
	query := "SELECT {p.code} FROM {Product AS p}"
	require.NoError(t, api.OpenDocuments(context.Background(), map[string]string{
		itemsURI: coreItems,
		queryURI: query,
	}))
	assert.Len(t, api.Documents(), 2)

	results, err := api.ResolveAt(context.Background(), queryURI, at(t, query, "code", 1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Product.code", results[0].Name())
}

func TestConcurrentRebuildKeepsNewestContent(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	open(t, api, itemsURI, coreItems)

	for i := 0; i < 200; i++ {
		qualifier := fmt.Sprintf("a%d", i)
		content := strings.Replace(coreItems, `<attribute qualifier="code" type="java.lang.String"/>`,
			`<attribute qualifier="code" type="java.lang.String"/><attribute qualifier="`+qualifier+`" type="int"/>`, 1)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, api.Rebuild(ctx))
		}()
		go func() {
			defer wg.Done()
			_, err := api.UpdateDocument(ctx, itemsURI, content, i+2)
			assert.NoError(t, err)
		}()
		wg.Wait()

		product, ok := api.Service().FindMetaItemByName("Product")
		require.True(t, ok)
		_, ok = product.Attribute(qualifier)
		require.True(t, ok, "model lost %s after concurrent rebuilds", qualifier)
	}
}
