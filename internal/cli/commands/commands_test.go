package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
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
                <attribute qualifier="approvalStatus" type="ArticleApprovalStatus"/>
            </attributes>
        </itemtype>
        <itemtype code="Category" extends="GenericItem">
            <attributes>
                <attribute qualifier="code" type="java.lang.String"/>
            </attributes>
        </itemtype>
    </itemtypes>
</items>`

const productQuery = "SELECT {p.code} FROM {Product AS p}"

// newWorkspace writes a workspace with a declaration file and a query and returns its root
func newWorkspace(t *testing.T, items, query string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tsls.yml"), "watch:\n  enabled: false\n")
	writeFile(t, filepath.Join(root, "core", "resources", "core-items.xml"), items)
	writeFile(t, filepath.Join(root, "queries", "products.fxs"), query)
	writeFile(t, filepath.Join(root, "build", "stale-items.xml"), `<items><itemtypes><itemtype code="Stale"/></itemtypes></items>`)
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// execute runs the root command with args and returns stdout and stderr
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "tsls", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))

	logLevel := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, logLevel)
	assert.Equal(t, "warn", logLevel.DefValue)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"version", "serve", "resolve", "check", "model"} {
		assert.Contains(t, names, want)
	}

	serve, _, err := cmd.Find([]string{"lsp"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Regexp(t, `Version: +dev\n`, stdout)
	assert.Regexp(t, `Go version: +go`, stdout)
}

func TestCheckCleanWorkspace(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)

	stdout, _, err := execute(t, "check", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 files checked: 0 errors, 0 warnings")
	assert.NotContains(t, stdout, "stale-items.xml")
}

func TestCheckReportsProblems(t *testing.T) {
	root := newWorkspace(t, coreItems, "SELECT {p.cod} FROM {Product AS p}")
	broken := strings.Replace(coreItems, `qualifier="approvalStatus" type="ArticleApprovalStatus"`,
		`qualifier="approvalStatus" type="ArticleApprovalStatu"`, 1)
	writeFile(t, filepath.Join(root, "core", "resources", "core-items.xml"), broken)

	stdout, _, err := execute(t, "check", root)
	require.ErrorIs(t, err, errProblemsFound)

	itemsPath := filepath.Join("core", "resources", "core-items.xml")
	assert.Contains(t, stdout, itemsPath+":")
	assert.Contains(t, stdout, "error: Unknown type 'ArticleApprovalStatu' [UnknownType]")
	assert.Contains(t, stdout, filepath.Join("queries", "products.fxs")+":1:")
	assert.Contains(t, stdout, "[UnresolvedQualifier]")
	assert.Contains(t, stdout, "files checked: 1 errors")
}

func TestCheckFailOn(t *testing.T) {
	root := newWorkspace(t, coreItems, "SELECT {p.cod} FROM {Product AS p}")

	_, _, err := execute(t, "check", root)
	require.NoError(t, err)

	_, _, err = execute(t, "check", root, "--fail-on", "warning")
	assert.ErrorIs(t, err, errProblemsFound)

	_, _, err = execute(t, "check", root, "--fail-on", "fatal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --fail-on")
}

func TestCheckMissingDirectory(t *testing.T) {
	_, stderr, err := execute(t, "check", filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, errProblemsFound)
	assert.Contains(t, stderr, "WORKSPACE ERROR")
}

func TestModelYAML(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)

	stdout, _, err := execute(t, "model", root)
	require.NoError(t, err)

	var dump modelDump
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &dump))

	product := findItem(dump.Items, "Product")
	require.NotNil(t, product)
	assert.Equal(t, []string{"GenericItem"}, product.Extends)
	assert.Equal(t, []string{"core-items.xml"}, product.DeclaredIn)
	require.Len(t, product.Attributes, 2)
	assert.Equal(t, attributeDump{Qualifier: "code", Type: "java.lang.String"}, product.Attributes[0])
	require.Len(t, product.RelationEnds, 1)
	assert.Equal(t, "supercategories", product.RelationEnds[0].Qualifier)

	assert.Nil(t, findItem(dump.Items, "Stale"))

	var relation *relationDump
	for i := range dump.Relations {
		if dump.Relations[i].Name == "ProductCategoryRelation" {
			relation = &dump.Relations[i]
		}
	}
	require.NotNil(t, relation)
	assert.Equal(t, "Product", relation.Source.Type)
	assert.Equal(t, "Category", relation.Target.Type)
}

func TestModelJSONSingleType(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)

	stdout, _, err := execute(t, "model", root, "--format", "json", "--type", "articleapprovalstatus")
	require.NoError(t, err)

	var dump modelDump
	require.NoError(t, json.Unmarshal([]byte(stdout), &dump))
	assert.Empty(t, dump.Items)
	require.Len(t, dump.Enums, 1)
	want := enumDump{
		Name:       "ArticleApprovalStatus",
		Values:     []string{"approved", "check"},
		DeclaredIn: []string{"core-items.xml"},
	}
	if diff := cmp.Diff(want, dump.Enums[0]); diff != "" {
		t.Errorf("enum mismatch (-want +got):\n%s", diff)
	}
}

func TestModelUnknownType(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)

	_, stderr, err := execute(t, "model", root, "--type", "Prodcut")
	require.ErrorIs(t, err, errProblemsFound)
	assert.Contains(t, stderr, "TYPE NOT FOUND: PRODCUT")
	assert.Contains(t, stderr, "Did you mean: Product")
}

func TestModelInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "model", t.TempDir(), "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --format")
}

func findItem(items []itemDump, name string) *itemDump {
	for i := range items {
		if items[i].Name == name {
			return &items[i]
		}
	}
	return nil
}

func TestResolveByOffset(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)
	query := filepath.Join(root, "queries", "products.fxs")

	stdout, _, err := execute(t, "resolve", query, "--offset", "11")
	require.NoError(t, err)
	assert.Contains(t, stdout, filepath.Join("queries", "products.fxs")+":1:12\n")
	assert.Contains(t, stdout, "ROLE")
	assert.Contains(t, stdout, "Product.code")
	assert.Contains(t, stdout, "String")
	assert.Contains(t, stdout, filepath.Join("core", "resources", "core-items.xml")+":")
}

func TestResolveByLineAndColumn(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)
	items := filepath.Join(root, "core", "resources", "core-items.xml")

	var line, col int
	for i, text := range strings.Split(coreItems, "\n") {
		if j := strings.Index(text, `type="ArticleApprovalStatus"`); j >= 0 {
			line, col = i+1, j+len(`type="`)+2
		}
	}
	require.NotZero(t, line)

	stdout, _, err := execute(t, "resolve", items, "--line", strconv.Itoa(line), "--col", strconv.Itoa(col))
	require.NoError(t, err)
	assert.Contains(t, stdout, "ArticleApprovalStatus")
}

func TestResolveFlagValidation(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)
	query := filepath.Join(root, "queries", "products.fxs")

	_, _, err := execute(t, "resolve", query)
	require.Error(t, err)

	_, _, err = execute(t, "resolve", query, "--line", "1")
	require.Error(t, err)

	_, _, err = execute(t, "resolve", query, "--offset", "3", "--line", "1", "--col", "1")
	require.Error(t, err)

	_, _, err = execute(t, "resolve", query, "--offset", "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "past the end")
}

func TestResolveNothing(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)
	query := filepath.Join(root, "queries", "products.fxs")

	stdout, _, err := execute(t, "resolve", query, "--offset", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Nothing resolves")
}

func TestInvalidConfigIsReported(t *testing.T) {
	root := newWorkspace(t, coreItems, productQuery)
	writeFile(t, filepath.Join(root, "tsls.yml"), "watch:\n  debounce: -1s\n")

	_, stderr, err := execute(t, "check", root)
	require.ErrorIs(t, err, errProblemsFound)
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
	assert.Contains(t, stderr, "watch.debounce must be positive")

	_, stderr, err = execute(t, "model", root)
	require.ErrorIs(t, err, errProblemsFound)
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
}
