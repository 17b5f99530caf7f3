package validation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/c360studio/specforge/llm/testutil"
	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() *spec.Specification {
	return spec.New("spec_1", []string{"must encrypt data"}, spec.FormalArtifact{
		Notation: spec.NotationFStar,
		Code:     "type key = int\nlet encrypt k = k\n",
	}, spec.DomainCryptography, spec.ConfidenceGenerated)
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		depth  spec.Depth
		want   bool
	}{
		{"basic statement form", "No issues.\nThe specification syntax is valid: true", spec.DepthBasic, true},
		{"basic question form", "IS THE SPECIFICATION SYNTAX VALID? TRUE", spec.DepthBasic, true},
		{"basic false", "the specification syntax is valid: false", spec.DepthBasic, false},
		{"typecheck statement", "the specification passes type checking: true", spec.DepthTypeCheck, true},
		{"typecheck question", "Does the specification pass type checking? true", spec.DepthTypeCheck, true},
		{"formal statement", "The specification can be formally verified: true", spec.DepthFormalVerification, true},
		{"formal question", "Can the specification be formally verified as written? True", spec.DepthFormalVerification, true},
		{"phrase of another depth does not count", "the specification syntax is valid: true", spec.DepthTypeCheck, false},
		{"free-form yes is not a verdict", "Yes, the specification looks valid.", spec.DepthBasic, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verdict(tt.answer, tt.depth))
		})
	}
}

func TestParseIssues(t *testing.T) {
	answer := strings.Join([]string{
		"Here is my review.",
		"Line 3: undefined function `decrypt` - Error",
		"Suggestion: define decrypt before use",
		"Line 7: unused variable k - Warning",
		"Location module header: consider adding docs - Info",
		"Suggestion: add a comment",
		"Is the specification syntax valid? false",
	}, "\n")

	issues := ParseIssues(answer)
	require.Len(t, issues, 3)

	assert.Equal(t, spec.SeverityError, issues[0].Severity)
	assert.Equal(t, "Line 3: undefined function `decrypt` - Error", issues[0].Message)
	require.NotNil(t, issues[0].Line)
	assert.Equal(t, 3, *issues[0].Line)
	assert.Equal(t, "define decrypt before use", issues[0].Fix())

	assert.Equal(t, spec.SeverityWarning, issues[1].Severity)
	require.NotNil(t, issues[1].Line)
	assert.Equal(t, 7, *issues[1].Line)
	assert.Nil(t, issues[1].SuggestedFix)

	assert.Equal(t, spec.SeverityInfo, issues[2].Severity)
	assert.Nil(t, issues[2].Line, "line number must not leak from the previous issue")
	assert.Equal(t, "add a comment", issues[2].Fix())
}

func TestParseIssues_SeverityFromOwnLineOnly(t *testing.T) {
	answer := "Warning: the following review found problems.\n" +
		"Line 1: Warning about naming, but this is an Error in the signature - Info\n" +
		"Line 2: minor style nit - Info\n"

	issues := ParseIssues(answer)
	require.Len(t, issues, 2)
	assert.Equal(t, spec.SeverityError, issues[0].Severity, "Error wins over Warning on the same line")
	assert.Equal(t, spec.SeverityInfo, issues[1].Severity, "earlier Warning text must not leak")
}

func TestParseIssues_EdgeCases(t *testing.T) {
	t.Run("suggestion before any issue ignored", func(t *testing.T) {
		assert.Empty(t, ParseIssues("Suggestion: nothing to attach to\n"))
	})

	t.Run("non numeric line reference", func(t *testing.T) {
		issues := ParseIssues("Line ten: bad - Error")
		require.Len(t, issues, 1)
		assert.Nil(t, issues[0].Line)
	})

	t.Run("indented lines are prose", func(t *testing.T) {
		assert.Empty(t, ParseIssues("The module is short.\n  Line count: 3\n  Location of keys: header\n"))
	})

	t.Run("indented suggestion not attached", func(t *testing.T) {
		issues := ParseIssues("Line 4: missing semicolon - Error\n  Suggestion: add ;\n")
		require.Len(t, issues, 1)
		assert.Nil(t, issues[0].SuggestedFix)
	})

	t.Run("crlf line endings", func(t *testing.T) {
		issues := ParseIssues("Line 4: missing semicolon - Error\r\nSuggestion: add ;\r\n")
		require.Len(t, issues, 1)
		assert.Equal(t, "Line 4: missing semicolon - Error", issues[0].Message)
		assert.Equal(t, "add ;", issues[0].Fix())
	})

	t.Run("empty answer", func(t *testing.T) {
		assert.Empty(t, ParseIssues(""))
	})
}

func TestParseReview_VerdictAndIssuesMayDisagree(t *testing.T) {
	// The verdict is read independently of the issue list and the two are
	// not reconciled.
	answer := "Line 2: type mismatch in encrypt - Error\n" +
		"The specification syntax is valid: true"

	report := ParseReview(answer, spec.DepthBasic)
	assert.True(t, report.Valid)
	assert.True(t, report.HasErrors())
	assert.False(t, report.ToolValidated)
}

func TestParseReview_ToolOutputOnlyForFormal(t *testing.T) {
	answer := "the specification can be formally verified: true"

	assert.Nil(t, ParseReview(answer, spec.DepthBasic).ToolOutput)
	assert.Nil(t, ParseReview(answer, spec.DepthTypeCheck).ToolOutput)

	formal := ParseReview(answer, spec.DepthFormalVerification)
	require.NotNil(t, formal.ToolOutput)
	assert.Equal(t, answer, *formal.ToolOutput)
	assert.True(t, formal.Valid)
}

func TestValidator_Validate(t *testing.T) {
	mock := &testutil.MockModel{Responses: []string{"the specification syntax is valid: true"}}
	v := New(mock, prompt.NewDefaultRenderer())

	report, err := v.Validate(context.Background(), testSpec(), spec.DepthBasic)
	require.NoError(t, err)

	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 1, mock.GetCallCount())

	sent := mock.LastPrompt()
	assert.Contains(t, sent, "Validate the syntax of this F* specification")
	assert.Contains(t, sent, "let encrypt k = k")
}

func TestValidator_Validate_SelectsTemplatePerDepth(t *testing.T) {
	tests := []struct {
		depth spec.Depth
		want  string
	}{
		{spec.DepthBasic, "Validate the syntax"},
		{spec.DepthTypeCheck, "Perform type checking"},
		{spec.DepthFormalVerification, "can be formally verified"},
	}

	for _, tt := range tests {
		t.Run(tt.depth.String(), func(t *testing.T) {
			mock := &testutil.MockModel{Responses: []string{"no verdict"}}
			v := New(mock, prompt.NewDefaultRenderer())

			report, err := v.Validate(context.Background(), testSpec(), tt.depth)
			require.NoError(t, err)
			assert.False(t, report.Valid)
			assert.Contains(t, mock.LastPrompt(), tt.want)
		})
	}
}

func TestValidator_Validate_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	v := New(&testutil.MockModel{Err: boom}, prompt.NewDefaultRenderer())

	report, err := v.Validate(context.Background(), testSpec(), spec.DepthBasic)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, boom)
}

func TestValidator_Validate_TemplateFailure(t *testing.T) {
	mock := &testutil.MockModel{}
	v := New(mock, prompt.NewRenderer(nil))

	_, err := v.Validate(context.Background(), testSpec(), spec.DepthBasic)
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.ErrorIs(t, err, prompt.ErrTemplateNotFound)
	assert.Equal(t, 0, mock.GetCallCount())
}

func TestValidator_Validate_UnknownDepth(t *testing.T) {
	v := New(&testutil.MockModel{}, prompt.NewDefaultRenderer())

	_, err := v.Validate(context.Background(), testSpec(), spec.Depth(42))
	var vErr *Error
	assert.True(t, errors.As(err, &vErr))
}
