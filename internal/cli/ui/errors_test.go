package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
		absent   []string
	}{
		{
			name: "context and problem",
			opts: ErrorOptions{
				Level:   ErrorLevelError,
				Context: "type not found",
				Problem: "No item type named 'Prodcut'.",
			},
			contains: []string{"✗ TYPE NOT FOUND\n", "   No item type named 'Prodcut'."},
			absent:   []string{"Did you mean"},
		},
		{
			name: "suggestions",
			opts: ErrorOptions{
				Problem:     "Unknown qualifier",
				Suggestions: []string{"code", "name"},
			},
			contains: []string{"Did you mean: code, name?"},
		},
		{
			name: "help commands",
			opts: ErrorOptions{
				Level:        ErrorLevelWarning,
				Problem:      "No declarations",
				HelpCommands: []string{"Get help: tsls --help"},
			},
			contains: []string{"⚠ No declarations", "→ Get help: tsls --help"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			out := FormatError(tt.opts)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestNoColorOmitsEscapes(t *testing.T) {
	out := TypeNotFoundError("Prodcut", []string{"Product"}, true)
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "TYPE NOT FOUND: PRODCUT")
	assert.Contains(t, out, "Did you mean: Product?")
	assert.Contains(t, out, "tsls model")
}

func TestDomainErrors(t *testing.T) {
	assert.Contains(t, WorkspaceError("nothing to load", true), "WORKSPACE ERROR")
	assert.Contains(t, ConfigError("watch.debounce must be positive", true), "watch.debounce must be positive")
	assert.Contains(t, Warning("careful", nil, true), "⚠ careful")
	assert.Contains(t, Info("loaded", true), "ℹ loaded")
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "no problems", true)
	assert.Equal(t, "✓ no problems\n", buf.String())

	buf.Reset()
	WriteError(&buf, ErrorOptions{Problem: "boom", NoColor: true})
	assert.Equal(t, "✗ boom\n", buf.String())
}

func TestFormatProblem(t *testing.T) {
	line := FormatProblem(ProblemLine{
		Path:    "core-items.xml",
		Line:    12,
		Column:  40,
		Level:   ErrorLevelWarning,
		Message: "Unknown type 'Prodcut'",
		Source:  "UnknownType",
	}, true)
	assert.Equal(t, "core-items.xml:12:40: warning: Unknown type 'Prodcut' [UnknownType]", line)

	line = FormatProblem(ProblemLine{Path: "q.fxs", Line: 1, Column: 1, Message: "unexpected token"}, true)
	assert.Equal(t, "q.fxs:1:1: error: unexpected token", line)
}
