package parser

import (
	"slices"
	"strings"

	"github.com/c360studio/specforge/spec"
)

// functionKeywords open a function, method or theorem declaration.
var functionKeywords = map[spec.Notation][]string{
	spec.NotationFStar:    {"val", "let"},
	spec.NotationDafny:    {"method", "function", "predicate"},
	spec.NotationCoq:      {"Theorem", "Lemma", "Definition"},
	spec.NotationIsabelle: {"theorem", "lemma", "definition"},
	spec.NotationLean:     {"def", "theorem", "lemma"},
}

// typeKeywords open a type declaration.
var typeKeywords = map[spec.Notation][]string{
	spec.NotationFStar:    {"type"},
	spec.NotationDafny:    {"class", "datatype", "type"},
	spec.NotationCoq:      {"Inductive", "Record", "Structure"},
	spec.NotationIsabelle: {"datatype", "record", "type_synonym"},
	spec.NotationLean:     {"structure", "inductive"},
}

// modifiers may sit between a keyword and the declared name.
var modifiers = []string{"rec", "inline_for_extraction", "method"}

// ExtractFunctions returns the names of declared functions, methods and
// theorems in source order. Notations without keywords yield nothing.
func ExtractFunctions(code string, n spec.Notation) []string {
	return declaredNames(code, functionKeywords[n])
}

// ExtractTypes returns the names of declared types in source order.
func ExtractTypes(code string, n spec.Notation) []string {
	return declaredNames(code, typeKeywords[n])
}

// declaredNames returns the word after a leading keyword on each line.
func declaredNames(code string, keywords []string) []string {
	names := []string{}
	if len(keywords) == 0 {
		return names
	}
	for line := range strings.Lines(code) {
		fields := strings.Fields(line)
		if len(fields) < 2 || !slices.Contains(keywords, fields[0]) {
			continue
		}
		rest := fields[1:]
		for len(rest) > 1 && slices.Contains(modifiers, rest[0]) {
			rest = rest[1:]
		}
		if name := declName(rest[0]); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// declName strips parameter lists and trailing punctuation from a token.
func declName(tok string) string {
	if i := strings.IndexAny(tok, "(<["); i >= 0 {
		tok = tok[:i]
	}
	return strings.TrimRight(tok, ":={")
}
