package parser

import (
	"strings"
	"testing"

	"github.com/c360studio/specforge/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_SingleBlock(t *testing.T) {
	answer := "Here is the specification:\n```fstar\ntype key = int\nlet encrypt k = k\n```\nDone."

	art, err := Extract(answer, spec.NotationFStar)
	require.NoError(t, err)

	assert.Equal(t, "type key = int\nlet encrypt k = k\n", art.Code)
	assert.Equal(t, spec.NotationFStar, art.Notation)
	assert.Equal(t, answer, art.Components[spec.DescriptionComponent])
	assert.Equal(t, "type key = int\nlet encrypt k = k\n", art.Components["component_1"])
	assert.Len(t, art.Components, 2)
}

func TestExtract_MultipleBlocks(t *testing.T) {
	answer := strings.Join([]string{
		"Types:",
		"```",
		"type t = nat",
		"```",
		"Functions:",
		"```fstar",
		"let f (x:t) = x",
		"```",
		"```",
		"```",
	}, "\n")

	art, err := Extract(answer, spec.NotationFStar)
	require.NoError(t, err)

	assert.Equal(t, "type t = nat\nlet f (x:t) = x\n", art.Code)
	assert.Equal(t, "type t = nat\n", art.Components["component_1"])
	assert.Equal(t, "let f (x:t) = x\n", art.Components["component_2"])
	// The empty third block is not stored.
	assert.Len(t, art.Components, 3)
}

func TestExtract_NoFences(t *testing.T) {
	answer := "module Spec\nopen FStar.All\nlet x = 1"

	art, err := Extract(answer, spec.NotationFStar)
	require.NoError(t, err)

	assert.Equal(t, answer, art.Code)
	assert.Equal(t, []string{"Spec", "FStar.All"}, art.Dependencies)
	assert.Len(t, art.Components, 1)
}

func TestExtract_UnbalancedFences(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		wantCode string
	}{
		{
			name:     "single unclosed fence falls back to the whole answer",
			answer:   "intro\n```\nlet x = 1\nlet y = 2",
			wantCode: "intro\n```\nlet x = 1\nlet y = 2",
		},
		{
			name:     "closed block followed by unclosed block keeps accumulated code",
			answer:   "```\nlet a = 1\n```\ntext\n```\nlet b = 2\n",
			wantCode: "let a = 1\nlet b = 2\n",
		},
		{
			name:     "lone fence line",
			answer:   "```",
			wantCode: "```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var art spec.FormalArtifact
			require.NotPanics(t, func() {
				var err error
				art, err = Extract(tt.answer, spec.NotationFStar)
				require.NoError(t, err)
			})
			assert.Equal(t, tt.wantCode, art.Code)
			assert.NotEmpty(t, art.Code)
		})
	}
}

func TestExtract_UnclosedTrailingBlockStoredAsComponent(t *testing.T) {
	art, err := Extract("```\nlet a = 1\n```\n```\nlet b = 2\n", spec.NotationFStar)
	require.NoError(t, err)
	assert.Equal(t, "let a = 1\n", art.Components["component_1"])
	assert.Equal(t, "let b = 2\n", art.Components["component_2"])
}

func TestExtract_CRLF(t *testing.T) {
	art, err := Extract("```\r\nlet x = 1\r\n```\r\n", spec.NotationFStar)
	require.NoError(t, err)
	assert.Equal(t, "let x = 1\n", art.Code)
}

func TestExtract_EmptyAnswer(t *testing.T) {
	_, err := Extract("  \n\t", spec.NotationFStar)
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestExtractDependencies_OpenStatements(t *testing.T) {
	code := "open Foo\nlet x = 1\n  open Bar.Baz\n"
	assert.Equal(t, []string{"Foo", "Bar.Baz"}, ExtractDependencies(code, spec.NotationFStar))
}

func TestExtractDependencies_PerNotation(t *testing.T) {
	tests := []struct {
		name     string
		notation spec.Notation
		code     string
		want     []string
	}{
		{"coq", spec.NotationCoq, "Require Import Arith.\nRequire Export Lists;\n", []string{"Arith.", "Lists"}},
		{"dafny", spec.NotationDafny, "import opened Seq\n", []string{"opened"}},
		{"tla", spec.NotationTLA, "EXTENDS Naturals, Sequences\n", []string{"Naturals"}},
		{"why3", spec.NotationWhy3, "use int.Int\n", []string{"int.Int"}},
		{"z3", spec.NotationZ3, "(include lib.smt2)\n", []string{"lib.smt2)"}},
		{"isabelle", spec.NotationIsabelle, "imports Main\n", []string{"Main"}},
		{"fstar duplicates kept", spec.NotationFStar, "open A\nopen A;\n", []string{"A", "A"}},
		{"custom notation has no patterns", spec.Notation("alloy"), "open util/ordering\n", []string{}},
		{"prefix with no token", spec.NotationLean, "import \n", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDependencies(tt.code, tt.notation))
		})
	}
}

func TestExtractCode(t *testing.T) {
	assert.Equal(t, "a\n", ExtractCode("x\n```\na\n```\n"))
	assert.Equal(t, "plain", ExtractCode("plain"))
}

func TestExtractFunctions(t *testing.T) {
	tests := []struct {
		name     string
		notation spec.Notation
		code     string
		want     []string
	}{
		{
			name:     "fstar",
			notation: spec.NotationFStar,
			code:     "module Crypto\nval encrypt: key -> msg -> cipher\nlet rec decrypt k c = c\n  let inner = 1\nletter x\n",
			want:     []string{"encrypt", "decrypt", "inner"},
		},
		{
			name:     "dafny",
			notation: spec.NotationDafny,
			code:     "method Encrypt(k: Key) returns (c: Cipher)\npredicate Valid()\nfunction method Size(): nat\n",
			want:     []string{"Encrypt", "Valid", "Size"},
		},
		{
			name:     "coq",
			notation: spec.NotationCoq,
			code:     "Definition key := nat.\nLemma enc_dec: forall k m, dec k (enc k m) = m.\n",
			want:     []string{"key", "enc_dec"},
		},
		{
			name:     "unsupported notation",
			notation: spec.NotationTLA,
			code:     "Init == x = 0\n",
			want:     []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFunctions(tt.code, tt.notation))
		})
	}
}

func TestExtractTypes(t *testing.T) {
	assert.Equal(t, []string{"key", "cipher"},
		ExtractTypes("type key = int\ntype cipher=\n  | C of int\n", spec.NotationFStar))
	assert.Equal(t, []string{"Account", "Status"},
		ExtractTypes("class Account {\n}\ndatatype Status = Open | Closed\n", spec.NotationDafny))
	assert.Equal(t, []string{"state"},
		ExtractTypes("datatype state = Idle | Busy\nlemma x: True\n", spec.NotationIsabelle))
	assert.Empty(t, ExtractTypes("type key = int\n", spec.Notation("alloy")))
}
