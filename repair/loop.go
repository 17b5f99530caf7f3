// Package repair implements the bounded auto-repair loop.
//
// Given a failing report the loop asks the model to rewrite the
// specification, re-validates the rewrite, and repeats until a review passes
// or the attempt budget runs out. Transport errors abort the loop; only
// validation failures are retried.
package repair

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/parser"
	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/spec"
)

// DefaultMaxAttempts is the repair budget.
const DefaultMaxAttempts = 3

// FixedSuffix is appended to the id of a repaired specification.
const FixedSuffix = "fixed"

// Validator re-validates a candidate specification.
type Validator interface {
	Validate(ctx context.Context, s *spec.Specification, depth spec.Depth) (*spec.ValidationReport, error)
}

// Result is the outcome of a repair run.
type Result struct {
	// Report is the final report, including the trailing repair note.
	Report *spec.ValidationReport

	// Spec is the last specification that was validated: the fixed one on
	// success, the last attempt on exhaustion, the input when nothing ran.
	Spec *spec.Specification

	// Attempts is the number of repair prompts sent.
	Attempts int
}

// Fixed reports whether the run ended with a valid report.
func (r *Result) Fixed() bool {
	return r.Attempts > 0 && r.Report.Valid
}

// Loop drives repair attempts.
type Loop struct {
	model       llm.Model
	validator   Validator
	renderer    *prompt.Renderer
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxAttempts overrides the attempt budget. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates a repair loop.
func New(m llm.Model, v Validator, r *prompt.Renderer, opts ...Option) *Loop {
	l := &Loop{
		model:       m,
		validator:   v,
		renderer:    r,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxAttempts returns the configured attempt budget.
func (l *Loop) MaxAttempts() int {
	return l.maxAttempts
}

// Repair tries to fix s until a review passes. A valid input report is
// returned unchanged without contacting the model.
func (l *Loop) Repair(ctx context.Context, s *spec.Specification, report *spec.ValidationReport) (*Result, error) {
	if report.Valid {
		outcomesTotal.WithLabelValues(OutcomeSkipped).Inc()
		return &Result{Report: report.Clone(), Spec: s}, nil
	}

	current := s
	currentReport := report

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			outcomesTotal.WithLabelValues(OutcomeError).Inc()
			return nil, err
		}

		l.logger.Info("Auto-fix attempt",
			"spec_id", s.ID,
			"attempt", attempt,
			"max_attempts", l.maxAttempts,
			"issues", len(currentReport.Issues))
		attemptsTotal.Inc()

		fixed, err := l.attempt(ctx, s, current, currentReport)
		if err != nil {
			outcomesTotal.WithLabelValues(OutcomeError).Inc()
			return nil, fmt.Errorf("repair attempt %d: %w", attempt, err)
		}

		depth := EscalatedDepth(currentReport)
		l.logger.Debug("Validating fixed specification", "spec_id", fixed.ID, "depth", depth.String())

		newReport, err := l.validator.Validate(ctx, fixed, depth)
		if err != nil {
			outcomesTotal.WithLabelValues(OutcomeError).Inc()
			return nil, fmt.Errorf("repair attempt %d: validate: %w", attempt, err)
		}

		if newReport.Valid {
			l.logger.Info("Auto-fixed specification is valid", "spec_id", fixed.ID, "attempts", attempt)
			outcomesTotal.WithLabelValues(OutcomeFixed).Inc()

			out := newReport.Clone()
			out.Issues = append(out.Issues, spec.Issue{
				Severity:     spec.SeverityInfo,
				Message:      fmt.Sprintf("Specification was %s after %d attempts", spec.AutoFixMarker, attempt),
				SuggestedFix: spec.Ptr(fixed.Artifact.Code),
			})
			return &Result{Report: out, Spec: fixed, Attempts: attempt}, nil
		}

		l.logger.Info("Fixed specification still has issues", "spec_id", fixed.ID, "issues", len(newReport.Issues))
		current = fixed
		currentReport = newReport
	}

	outcomesTotal.WithLabelValues(OutcomeExhausted).Inc()
	l.logger.Warn("Auto-fix exhausted", "spec_id", s.ID, "attempts", l.maxAttempts)

	out := currentReport.Clone()
	out.Issues = append(out.Issues, spec.Issue{
		Severity:     spec.SeverityWarning,
		Message:      fmt.Sprintf("%s %d times but issues remain", spec.AutoFixAttemptedMarker, l.maxAttempts),
		SuggestedFix: spec.Ptr(current.Artifact.Code),
	})
	return &Result{Report: out, Spec: current, Attempts: l.maxAttempts}, nil
}

// attempt sends one repair prompt and wraps the answer in a specification
// derived from the original.
func (l *Loop) attempt(ctx context.Context, origin, current *spec.Specification, report *spec.ValidationReport) (*spec.Specification, error) {
	repairPrompt, err := l.Prompt(current, report)
	if err != nil {
		return nil, err
	}

	answer, err := l.model.Call(ctx, repairPrompt)
	if err != nil {
		return nil, err
	}

	artifact, err := parser.Extract(answer, current.Notation())
	if err != nil {
		return nil, err
	}

	return origin.Derive(FixedSuffix, artifact), nil
}

// Prompt renders the repair prompt for s and its failing report.
func (l *Loop) Prompt(s *spec.Specification, report *spec.ValidationReport) (string, error) {
	notation := s.Notation()
	classes := Classify(report.Issues)

	return l.renderer.Render(prompt.TemplateRepair, map[string]string{
		"notation":            notation.DisplayName(),
		"code":                s.Artifact.Code,
		"issues":              FormatIssues(report.Issues),
		"specific_fixes":      classes.Directives(notation),
		"language_guidelines": prompt.Guidelines(notation),
	})
}
