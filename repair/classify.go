package repair

import (
	"fmt"
	"strings"

	"github.com/c360studio/specforge/spec"
)

// symbolPatterns introduce a backtick-quoted symbol name.
var symbolPatterns = []string{
	"undefined function `",
	"undefined predicate `",
	"undefined identifier `",
	"unknown identifier `",
	"unbound variable `",
}

// bareSymbolPatterns are tried when no quoted form matches.
var bareSymbolPatterns = []string{
	"undefined function ",
	"undefined predicate ",
	"undefined identifier ",
	"unknown identifier ",
	"unbound variable ",
}

// Classification buckets the outstanding issues of a report.
type Classification struct {
	// MissingSymbols are names of undefined functions or predicates.
	MissingSymbols []string
	Syntax         []spec.Issue
	Type           []spec.Issue
}

// Classify sorts issues into missing-symbol, syntax and type buckets by
// keywords in their lower-cased message. Each issue lands in at most one
// bucket; the first matching rule wins.
func Classify(issues []spec.Issue) Classification {
	var c Classification
	for _, issue := range issues {
		msg := strings.ToLower(issue.Message)
		switch {
		case strings.Contains(msg, "undefined") &&
			(strings.Contains(msg, "function") || strings.Contains(msg, "predicate")):
			if name, ok := ExtractSymbol(issue.Message); ok {
				c.MissingSymbols = append(c.MissingSymbols, name)
			}
		case strings.Contains(msg, "syntax"), strings.Contains(msg, "expected"), strings.Contains(msg, "missing"):
			c.Syntax = append(c.Syntax, issue)
		case strings.Contains(msg, "type"):
			c.Type = append(c.Type, issue)
		}
	}
	return c
}

// ExtractSymbol pulls the symbol name out of an "undefined ..." message.
// The quoted form runs to the next backtick; the bare form ends at a space,
// comma, period or colon.
func ExtractSymbol(msg string) (string, bool) {
	for _, p := range symbolPatterns {
		start := strings.Index(msg, p)
		if start < 0 {
			continue
		}
		rest := msg[start+len(p):]
		end := strings.IndexByte(rest, '`')
		if end < 0 {
			continue
		}
		if name := strings.TrimSpace(rest[:end]); name != "" {
			return name, true
		}
	}

	for _, p := range bareSymbolPatterns {
		start := strings.Index(msg, p)
		if start < 0 {
			continue
		}
		rest := msg[start+len(p):]
		if end := strings.IndexAny(rest, " ,.:"); end >= 0 {
			rest = rest[:end]
		}
		if name := strings.TrimSpace(rest); name != "" {
			return name, true
		}
	}

	return "", false
}

// FormatIssues renders issues for the repair prompt, separated by blank lines.
func FormatIssues(issues []spec.Issue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		fix := ""
		if issue.SuggestedFix != nil {
			fix = "Suggested fix: " + *issue.SuggestedFix
		}
		parts[i] = fmt.Sprintf("%s: %s - %s\n%s", issue.Location(), issue.Message, issue.Severity.Label(), fix)
	}
	return strings.Join(parts, "\n\n")
}

// Directives returns the imperative instructions for the non-empty buckets.
func (c Classification) Directives(notation spec.Notation) string {
	var sb strings.Builder

	if len(c.MissingSymbols) > 0 {
		sb.WriteString("IMPORTANT: The following functions/predicates are undefined and MUST be implemented:\n")
		for i, name := range c.MissingSymbols {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "- `%s`", name)
		}
		sb.WriteString("\n\n")
	}

	if len(c.Syntax) > 0 {
		fmt.Fprintf(&sb, "IMPORTANT: Fix all syntax errors, ensuring proper keywords, closing braces, and proper %s syntax.\n\n",
			notation.DisplayName())
	}

	if len(c.Type) > 0 {
		sb.WriteString("IMPORTANT: Fix all type errors, ensuring proper typing for all expressions.\n\n")
	}

	return sb.String()
}

// EscalatedDepth picks the depth for re-validation: type checking when any
// Error issue mentions "type", basic syntax review otherwise.
func EscalatedDepth(report *spec.ValidationReport) spec.Depth {
	for _, issue := range report.Issues {
		if issue.Severity == spec.SeverityError && strings.Contains(issue.Message, "type") {
			return spec.DepthTypeCheck
		}
	}
	return spec.DepthBasic
}
