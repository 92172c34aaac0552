package tooling

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// largeItems generates a declarations file with n item types of ten attributes each
func largeItems(n int) string {
	var b strings.Builder
	b.WriteString("<items>\n    <itemtypes>\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "        <itemtype code=\"Type%d\" extends=\"GenericItem\">\n            <attributes>\n", i)
		for j := 0; j < 10; j++ {
			fmt.Fprintf(&b, "                <attribute qualifier=\"attr%d\" type=\"java.lang.String\"/>\n", j)
		}
		b.WriteString("            </attributes>\n        </itemtype>\n")
	}
	b.WriteString("    </itemtypes>\n</items>\n")
	return b.String()
}

// Benchmark opening a declarations file, which rebuilds the model
func BenchmarkOpenDeclarations(b *testing.B) {
	ctx := context.Background()
	content := largeItems(200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		api := NewAPI()
		_, _ = api.OpenDocument(ctx, itemsURI, content, 1)
	}
}

// Benchmark parsing a query document
func BenchmarkOpenQuery(b *testing.B) {
	ctx := context.Background()
	api := NewAPI()
	query := "SELECT {p.code}, {p.name} FROM {Product AS p JOIN Category AS c ON {c.pk} = {p.pk}} WHERE {p.pk} IN ({{SELECT {x.pk} FROM {Product AS x}}})"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = api.UpdateDocument(ctx, queryURI, query, i+1)
	}
}

// Benchmark hover over a column, served from the memo cache after the first run
func BenchmarkHover(b *testing.B) {
	ctx := context.Background()
	api := NewAPI()
	_, _ = api.OpenDocument(ctx, itemsURI, largeItems(200), 1)
	query := "SELECT {t.attr5} FROM {Type150 AS t}"
	_, _ = api.OpenDocument(ctx, queryURI, query, 1)
	pos := NewLineIndex(query).Position(strings.Index(query, "attr5"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = api.GetHover(ctx, queryURI, pos)
	}
}

// Benchmark completion of columns on a large model
func BenchmarkCompletion(b *testing.B) {
	ctx := context.Background()
	api := NewAPI()
	_, _ = api.OpenDocument(ctx, itemsURI, largeItems(200), 1)
	query := "SELECT {t.at} FROM {Type10 AS t}"
	_, _ = api.OpenDocument(ctx, queryURI, query, 1)
	pos := NewLineIndex(query).Position(strings.Index(query, "at}") + 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = api.GetCompletions(ctx, queryURI, pos)
	}
}

// Benchmark diagnostics of a declarations file
func BenchmarkDiagnostics(b *testing.B) {
	ctx := context.Background()
	api := NewAPI()
	_, _ = api.OpenDocument(ctx, itemsURI, largeItems(200), 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = api.GetDiagnostics(ctx, itemsURI)
	}
}
