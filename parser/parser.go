// Package parser extracts formal artifacts from free-form model answers.
//
// A model answer is scanned line by line. Lines between triple-backtick
// fences are accumulated into the specification code and into a numbered
// component per block. When no block is ever closed the whole answer is used
// as the code. Dependencies are recovered in a second pass from per-notation
// line prefixes.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/specforge/spec"
)

// Fence is the code block delimiter.
const Fence = "```"

// ErrEmptyAnswer is returned when the model answer contains no text at all.
var ErrEmptyAnswer = errors.New("empty model answer")

// dependencyPrefixes lists the import-like line prefixes per notation.
// Custom notations have none and yield no dependencies.
var dependencyPrefixes = map[spec.Notation][]string{
	spec.NotationFStar:    {"open ", "include ", "module "},
	spec.NotationDafny:    {"import "},
	spec.NotationCoq:      {"Require Import ", "Require Export "},
	spec.NotationIsabelle: {"imports "},
	spec.NotationLean:     {"import "},
	spec.NotationTLA:      {"EXTENDS "},
	spec.NotationWhy3:     {"use "},
	spec.NotationZ3:       {"(include "},
}

// Extract parses a model answer into a formal artifact.
func Extract(answer string, notation spec.Notation) (spec.FormalArtifact, error) {
	if strings.TrimSpace(answer) == "" {
		return spec.FormalArtifact{}, ErrEmptyAnswer
	}

	blocks := scanBlocks(answer)

	components := make(map[string]string, len(blocks.components)+1)
	components[spec.DescriptionComponent] = answer
	for i, c := range blocks.components {
		components[componentName(i+1)] = c
	}

	code := blocks.code
	if blocks.closed == 0 || code == "" {
		code = answer
	}

	return spec.FormalArtifact{
		Notation:     notation,
		Code:         code,
		Components:   components,
		Dependencies: ExtractDependencies(code, notation),
	}, nil
}

// ExtractCode returns the concatenated content of all fenced blocks, or the
// whole answer when no block was closed.
func ExtractCode(answer string) string {
	blocks := scanBlocks(answer)
	if blocks.closed == 0 || blocks.code == "" {
		return answer
	}
	return blocks.code
}

// ExtractDependencies returns the first token after each recognized prefix,
// in source order, with trailing ',' and ';' removed.
func ExtractDependencies(code string, notation spec.Notation) []string {
	prefixes := dependencyPrefixes[notation]
	if len(prefixes) == 0 {
		return []string{}
	}

	deps := []string{}
	for line := range strings.Lines(code) {
		trimmed := strings.TrimSpace(line)
		for _, p := range prefixes {
			if !strings.HasPrefix(trimmed, p) {
				continue
			}
			fields := strings.Fields(trimmed[len(p):])
			if len(fields) == 0 {
				continue
			}
			if dep := strings.TrimRight(fields[0], ",;"); dep != "" {
				deps = append(deps, dep)
			}
		}
	}
	return deps
}

func componentName(n int) string {
	return fmt.Sprintf("component_%d", n)
}

type scanResult struct {
	code       string
	components []string
	closed     int
}

func scanBlocks(answer string) scanResult {
	var (
		res     scanResult
		code    strings.Builder
		current strings.Builder
		inBlock bool
	)

	for line := range strings.Lines(answer) {
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(strings.TrimSpace(line), Fence) {
			if inBlock {
				if current.Len() > 0 {
					res.components = append(res.components, current.String())
					current.Reset()
				}
				res.closed++
			}
			inBlock = !inBlock
			continue
		}
		if !inBlock {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		code.WriteString(line)
		code.WriteByte('\n')
	}

	// An unterminated trailing block keeps what it accumulated.
	if inBlock && current.Len() > 0 {
		res.components = append(res.components, current.String())
	}
	res.code = code.String()
	return res
}
