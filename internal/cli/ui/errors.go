package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
	ErrorLevelHint
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

func levelStyle(level ErrorLevel, noColor bool) (header, body *color.Color, symbol string) {
	switch level {
	case ErrorLevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "⚠"
	case ErrorLevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "ℹ"
	case ErrorLevelHint:
		header, body, symbol = color.New(color.FgHiBlack, color.Bold), color.New(color.FgHiBlack), "·"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "✗"
	}
	if noColor {
		header.DisableColor()
		body.DisableColor()
	}
	return header, body, symbol
}

// FormatError creates a standardized error message with suggestions and help commands
//
// Example output:
//
//	✗ TYPE NOT FOUND: Prodcut
//	   No item type, enum or relation named 'Prodcut'.
//
//	   Did you mean: Product, ProductReference?
//
//	   → List types: tsls model --format yaml
func FormatError(opts ErrorOptions) string {
	var b strings.Builder
	header, body, symbol := levelStyle(opts.Level, opts.NoColor)

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(opts.Context))
		body.Fprintf(&b, "   %s\n", opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}
	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// TypeNotFoundError reports a classifier name missing from the model
func TypeNotFoundError(name string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:        ErrorLevelError,
		Context:      "type not found: " + name,
		Problem:      fmt.Sprintf("No item type, enum or relation named '%s'.", name),
		Suggestions:  suggestions,
		HelpCommands: []string{"List types: tsls model --format yaml"},
		NoColor:      noColor,
	})
}

// WorkspaceError reports a workspace that could not be loaded
func WorkspaceError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "workspace error",
		Problem: message,
		HelpCommands: []string{
			"Configure declaration globs: workspace.declarations in tsls.yml",
			"Get help: tsls --help",
		},
		NoColor: noColor,
	})
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:        ErrorLevelError,
		Context:      "configuration error",
		Problem:      message,
		HelpCommands: []string{"View config: cat tsls.yml"},
		NoColor:      noColor,
	})
}

// ProblemLine is one diagnostic printed by the check command
type ProblemLine struct {
	Path    string
	Line    int
	Column  int
	Level   ErrorLevel
	Message string
	Source  string
}

// FormatProblem renders a diagnostic as path:line:col: level: message [source].
// Line and Column are 1-based.
func FormatProblem(p ProblemLine, noColor bool) string {
	_, body, _ := levelStyle(p.Level, noColor)
	bold := color.New(color.Bold)
	if noColor {
		bold.DisableColor()
	}

	label := [...]string{"error", "warning", "info", "hint"}[p.Level]
	line := bold.Sprintf("%s:%d:%d:", p.Path, p.Line, p.Column) + " " + body.Sprint(label+":") + " " + p.Message
	if p.Source != "" {
		line += fmt.Sprintf(" [%s]", p.Source)
	}
	return line
}

// Warning creates a standardized warning message
func Warning(message string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelWarning,
		Problem:     message,
		Suggestions: suggestions,
		NoColor:     noColor,
	})
}

// Info creates a standardized info message
func Info(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelInfo,
		Problem: message,
		NoColor: noColor,
	})
}
