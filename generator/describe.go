package generator

import (
	"fmt"
	"strings"

	"github.com/c360studio/specforge/parser"
	"github.com/c360studio/specforge/spec"
)

// Describe returns a Markdown overview of s built from its requirements and
// the names declared in its code. No model call is made.
func Describe(s *spec.Specification) string {
	types := parser.ExtractTypes(s.Artifact.Code, s.Notation())
	functions := parser.ExtractFunctions(s.Artifact.Code, s.Notation())

	var sb strings.Builder
	sb.WriteString("# Specification Overview\n\n")
	fmt.Fprintf(&sb, "This is a %s specification that addresses the following requirements:\n\n", s.Notation().DisplayName())
	for _, r := range s.Requirements {
		fmt.Fprintf(&sb, "- %s\n", r)
	}
	sb.WriteString("\n## Key Components\n\n")
	fmt.Fprintf(&sb, "The specification includes %d types and %d functions/properties.\n\n", len(types), len(functions))
	writeNames(&sb, "Types", types)
	writeNames(&sb, "Functions and Properties", functions)
	sb.WriteString("This specification can be used as a basis for implementation and formal verification.\n")
	return sb.String()
}

func writeNames(sb *strings.Builder, title string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n", title)
	for _, n := range names {
		fmt.Fprintf(sb, "- `%s`\n", n)
	}
	sb.WriteString("\n")
}
