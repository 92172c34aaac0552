// Package inspection reports problems in declaration, bean and query documents together
// with quick fixes that edit the offending attribute value.
package inspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
)

// Severity uses the LSP numbering
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

var severityNames = map[Severity]string{
	SeverityError:   "error",
	SeverityWarning: "warning",
	SeverityInfo:    "info",
	SeverityHint:    "hint",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSeverity converts a configured severity name
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// TextEdit replaces a range of the document
type TextEdit struct {
	Range   psi.Range
	NewText string
}

// QuickFix is a named set of edits applied together
type QuickFix struct {
	Title string
	Edits []TextEdit
}

// Problem is one reported finding
type Problem struct {
	Range        psi.Range
	Message      string
	Severity     Severity
	InspectionID string
	Fixes        []QuickFix
}

// DocumentKind selects which inspections apply
type DocumentKind int

const (
	DocumentDeclarations DocumentKind = iota + 1
	DocumentBeans
	DocumentQuery
)

// Context is the document under inspection
type Context struct {
	URI      string
	Kind     DocumentKind
	Root     *psi.Node
	Resolver *resolve.Resolver
}

// Inspection checks one kind of problem
type Inspection interface {
	ID() string
	DefaultSeverity() Severity
	Inspect(ctx context.Context, c *Context) []Problem
}

// Defaults returns every built-in inspection
func Defaults() []Inspection {
	return []Inspection{
		OmitJavaLangPackage{},
		UnknownType{},
		UnresolvedQualifier{},
	}
}

// Runner runs a set of inspections with configured severities
type Runner struct {
	inspections []Inspection
	severities  map[string]Severity
	logger      *zap.Logger
}

// NewRunner creates a runner. severities overrides the default severity per inspection id.
func NewRunner(inspections []Inspection, severities map[string]Severity, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		inspections: inspections,
		severities:  severities,
		logger:      logger,
	}
}

// IDs returns the ids of the inspections the runner knows
func (r *Runner) IDs() []string {
	ids := make([]string, 0, len(r.inspections))
	for _, in := range r.inspections {
		ids = append(ids, in.ID())
	}
	return ids
}

// Run inspects the document and returns the problems ordered by position
func (r *Runner) Run(ctx context.Context, c *Context) []Problem {
	var problems []Problem
	for _, in := range r.inspections {
		if ctx.Err() != nil {
			r.logger.Debug("inspection cancelled", zap.String("uri", c.URI))
			return nil
		}
		severity, ok := r.severities[in.ID()]
		if !ok {
			severity = in.DefaultSeverity()
		}
		for _, p := range in.Inspect(ctx, c) {
			p.InspectionID = in.ID()
			p.Severity = severity
			problems = append(problems, p)
		}
	}
	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].Range.Start < problems[j].Range.Start
	})
	return problems
}

// replaceFix builds a fix replacing r with text
func replaceFix(title string, r psi.Range, text string) QuickFix {
	return QuickFix{Title: title, Edits: []TextEdit{{Range: r, NewText: text}}}
}

// suggestionFixes turns "did you mean" suggestions into one fix each
func suggestionFixes(r psi.Range, suggestions []string) []QuickFix {
	fixes := make([]QuickFix, 0, len(suggestions))
	for _, s := range suggestions {
		fixes = append(fixes, replaceFix(fmt.Sprintf("Change to '%s'", s), r, s))
	}
	return fixes
}
