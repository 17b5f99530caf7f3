// Package validation asks the model to review a specification and turns the
// textual review into a ValidationReport.
//
// Three depths are supported (syntax, type checking, provability). Each uses
// its own review template and its own pair of verdict phrases. The verdict is
// read from the whole answer, independently of the itemized issues, so the
// two can disagree; callers must treat Valid as the model's claim only.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/spec"
)

// verdictPhrases are matched case-insensitively against the whole answer.
var verdictPhrases = map[spec.Depth][2]string{
	spec.DepthBasic: {
		"the specification syntax is valid: true",
		"is the specification syntax valid? true",
	},
	spec.DepthTypeCheck: {
		"the specification passes type checking: true",
		"does the specification pass type checking? true",
	},
	spec.DepthFormalVerification: {
		"the specification can be formally verified: true",
		"can the specification be formally verified as written? true",
	},
}

var reviewTemplates = map[spec.Depth]string{
	spec.DepthBasic:              prompt.TemplateReviewBasic,
	spec.DepthTypeCheck:          prompt.TemplateReviewTypeCheck,
	spec.DepthFormalVerification: prompt.TemplateReviewFormal,
}

// Error is an internal failure while building or parsing a review.
type Error struct {
	Depth spec.Depth
	Op    string
	err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation (%s) %s: %v", e.Depth, e.Op, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Validator reviews specifications through a model.
type Validator struct {
	model    llm.Model
	renderer *prompt.Renderer
	logger   *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a Validator.
func New(m llm.Model, r *prompt.Renderer, opts ...Option) *Validator {
	v := &Validator{
		model:    m,
		renderer: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reviews s at the given depth. Model errors are returned unchanged.
func (v *Validator) Validate(ctx context.Context, s *spec.Specification, depth spec.Depth) (*spec.ValidationReport, error) {
	name, ok := reviewTemplates[depth]
	if !ok {
		return nil, &Error{Depth: depth, Op: "select template", err: fmt.Errorf("unknown depth %d", int(depth))}
	}

	reviewPrompt, err := v.renderer.Render(name, map[string]string{
		"notation": s.Notation().DisplayName(),
		"code":     s.Artifact.Code,
	})
	if err != nil {
		return nil, &Error{Depth: depth, Op: "render prompt", err: err}
	}

	v.logger.Debug("Requesting review",
		"spec_id", s.ID,
		"depth", depth.String(),
		"code_chars", len(s.Artifact.Code))

	answer, err := v.model.Call(ctx, reviewPrompt)
	if err != nil {
		return nil, err
	}

	report := ParseReview(answer, depth)

	v.logger.Info("Review complete",
		"spec_id", s.ID,
		"depth", depth.String(),
		"valid", report.Valid,
		"issues", len(report.Issues))

	return report, nil
}

// ParseReview converts a review answer into a report. The raw answer is kept
// as tool output for the formal verification depth only.
func ParseReview(answer string, depth spec.Depth) *spec.ValidationReport {
	report := &spec.ValidationReport{
		Valid:  Verdict(answer, depth),
		Issues: ParseIssues(answer),
	}
	if depth == spec.DepthFormalVerification {
		report.ToolOutput = spec.Ptr(answer)
	}
	return report
}

// Verdict reports whether the answer contains one of the depth's success phrases.
func Verdict(answer string, depth spec.Depth) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range verdictPhrases[depth] {
		if phrase != "" && strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ParseIssues extracts issue records. A line starting with "Line " or
// "Location " opens a new issue; a following "Suggestion:" line attaches a fix
// to the open issue. Prefixes must start the line: indented lines are
// treated as prose.
func ParseIssues(answer string) []spec.Issue {
	issues := []spec.Issue{}
	var current *spec.Issue

	flush := func() {
		if current != nil {
			issues = append(issues, *current)
			current = nil
		}
	}

	for line := range strings.Lines(answer) {
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "Line "), strings.HasPrefix(line, "Location "):
			flush()
			current = &spec.Issue{
				Severity: classifySeverity(line),
				Message:  line,
				Line:     lineNumber(line),
			}
		case strings.HasPrefix(line, "Suggestion:") && current != nil:
			current.SuggestedFix = spec.Ptr(strings.TrimSpace(strings.TrimPrefix(line, "Suggestion:")))
		}
	}
	flush()

	return issues
}

// classifySeverity looks only at the issue's own line.
func classifySeverity(line string) spec.Severity {
	switch {
	case strings.Contains(line, "Error"):
		return spec.SeverityError
	case strings.Contains(line, "Warning"):
		return spec.SeverityWarning
	default:
		return spec.SeverityInfo
	}
}

// lineNumber parses the number between "Line " and the next ':'.
func lineNumber(line string) *int {
	start := strings.Index(line, "Line ")
	if start < 0 {
		return nil
	}
	rest := line[start+len("Line "):]
	end := strings.IndexByte(rest, ':')
	if end < 0 {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil || n < 1 {
		return nil
	}
	return &n
}
