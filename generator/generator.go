// Package generator composes the pipeline stages into the operations exposed
// to callers: generation, refinement, translation, validation with repair,
// requirement analysis and import.
//
// Every operation renders one prompt, makes one model call, and parses the
// answer with the shared parser. Only ValidateAndRepair and Run make more
// than one call.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/parser"
	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/repair"
	"github.com/c360studio/specforge/spec"
	"github.com/c360studio/specforge/validation"
)

var tracer = otel.Tracer("specforge.generator")

// Derived id suffixes.
const (
	RefinedSuffix    = "refined"
	TranslatedSuffix = "translated"
)

// ImportedDomain is the domain assigned to imported specifications.
const ImportedDomain spec.Domain = "imported"

// DefaultPropertyConfidence is used when a property block carries no parsable score.
const DefaultPropertyConfidence = 0.7

// fallbackRequirement is used when an import analysis lists no requirements.
const fallbackRequirement = "Imported specification requirements"

// completenessPhrases are matched case-insensitively against the whole answer.
var completenessPhrases = []string{
	"the specification is complete: true",
	"is the specification complete? true",
}

// Paradigm is the specification style requested when formalizing properties.
type Paradigm string

const (
	ParadigmPrePost    Paradigm = "pre and post conditions"
	ParadigmType       Paradigm = "type theory"
	ParadigmModelCheck Paradigm = "model checking"
	ParadigmTemporal   Paradigm = "temporal logic"
	ParadigmRefinement Paradigm = "refinement types"
	ParadigmHoare      Paradigm = "Hoare logic"
	ParadigmSeparation Paradigm = "separation logic"
)

// Options controls a generation request.
type Options struct {
	Notation spec.Notation
	Depth    spec.Depth
	// Repair enables the auto-repair loop in Run.
	Repair bool
}

// DefaultOptions returns F* at basic depth with repair enabled.
func DefaultOptions() Options {
	return Options{
		Notation: spec.NotationFStar,
		Depth:    spec.DepthBasic,
		Repair:   true,
	}
}

// Outcome is the result of a full pipeline run.
type Outcome struct {
	Spec   *spec.Specification
	Report *spec.ValidationReport
	// Attempts is the number of repair prompts sent.
	Attempts int
}

// Generator is the pipeline facade.
type Generator struct {
	model     llm.Model
	renderer  *prompt.Renderer
	validator *validation.Validator
	repairer  *repair.Loop
	domains   map[spec.Domain]prompt.DomainContext
	logger    *slog.Logger
}

// Option configures a Generator.
type Option func(*config)

type config struct {
	renderer    *prompt.Renderer
	maxAttempts int
	domains     map[spec.Domain]prompt.DomainContext
	logger      *slog.Logger
}

// WithRenderer replaces the default template set.
func WithRenderer(r *prompt.Renderer) Option {
	return func(c *config) {
		c.renderer = r
	}
}

// WithMaxRepairAttempts sets the repair budget.
func WithMaxRepairAttempts(n int) Option {
	return func(c *config) {
		c.maxAttempts = n
	}
}

// WithDomainContexts replaces the domain guidance table.
func WithDomainContexts(table map[spec.Domain]prompt.DomainContext) Option {
	return func(c *config) {
		c.domains = table
	}
}

// WithLogger sets the logger used by every stage.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New creates a Generator over m.
func New(m llm.Model, opts ...Option) *Generator {
	cfg := config{
		renderer:    prompt.NewDefaultRenderer(),
		maxAttempts: repair.DefaultMaxAttempts,
		domains:     prompt.DomainContexts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	v := validation.New(m, cfg.renderer, validation.WithLogger(cfg.logger))
	return &Generator{
		model:     m,
		renderer:  cfg.renderer,
		validator: v,
		repairer: repair.New(m, v, cfg.renderer,
			repair.WithMaxAttempts(cfg.maxAttempts),
			repair.WithLogger(cfg.logger)),
		domains: cfg.domains,
		logger:  cfg.logger,
	}
}

// Generate turns requirements into a new specification.
func (g *Generator) Generate(ctx context.Context, requirements []string, domain spec.Domain, opts Options) (_ *spec.Specification, err error) {
	ctx, span := tracer.Start(ctx, "generator.Generate", trace.WithAttributes(
		attribute.String("domain", string(domain)),
		attribute.String("notation", string(opts.Notation)),
		attribute.Int("requirements", len(requirements)),
	))
	defer func() { endSpan(span, err) }()

	g.logger.Info("Generating specification", "domain", domain, "notation", opts.Notation)

	text, err := g.renderer.Render(prompt.TemplateSpecification, map[string]string{
		"notation":            opts.Notation.DisplayName(),
		"domain":              domain.Label(),
		"requirements":        strings.Join(requirements, "\n"),
		"domain_context":      prompt.RenderDomainContext(g.domains, domain),
		"language_guidelines": prompt.Guidelines(opts.Notation),
	})
	if err != nil {
		return nil, err
	}

	artifact, err := g.ask(ctx, text, opts.Notation)
	if err != nil {
		return nil, err
	}

	s := spec.New(spec.NewID("spec"), requirements, artifact, domain, spec.ConfidenceGenerated)
	span.SetAttributes(attribute.String("spec_id", s.ID))
	return s, nil
}

// Refine asks the model to revise s according to feedback.
func (g *Generator) Refine(ctx context.Context, s *spec.Specification, feedback string) (_ *spec.Specification, err error) {
	ctx, span := tracer.Start(ctx, "generator.Refine", trace.WithAttributes(attribute.String("spec_id", s.ID)))
	defer func() { endSpan(span, err) }()

	g.logger.Info("Refining specification", "spec_id", s.ID)

	text, err := g.renderer.Render(prompt.TemplateRefine, map[string]string{
		"notation": s.Notation().DisplayName(),
		"code":     s.Artifact.Code,
		"feedback": feedback,
	})
	if err != nil {
		return nil, err
	}

	artifact, err := g.ask(ctx, text, s.Notation())
	if err != nil {
		return nil, err
	}
	return s.Derive(RefinedSuffix, artifact), nil
}

// Translate rewrites s in another notation. Translating to the same
// notation returns a copy without calling the model.
func (g *Generator) Translate(ctx context.Context, s *spec.Specification, target spec.Notation) (_ *spec.Specification, err error) {
	ctx, span := tracer.Start(ctx, "generator.Translate", trace.WithAttributes(
		attribute.String("spec_id", s.ID),
		attribute.String("from", string(s.Notation())),
		attribute.String("to", string(target)),
	))
	defer func() { endSpan(span, err) }()

	if s.Notation() == target {
		return s.Clone(), nil
	}

	g.logger.Info("Translating specification", "spec_id", s.ID, "from", s.Notation(), "to", target)

	text, err := g.renderer.Render(prompt.TemplateTranslate, map[string]string{
		"notation":        s.Notation().DisplayName(),
		"target_notation": target.DisplayName(),
		"code":            s.Artifact.Code,
	})
	if err != nil {
		return nil, err
	}

	artifact, err := g.ask(ctx, text, target)
	if err != nil {
		return nil, err
	}

	out := s.Derive(TranslatedSuffix, artifact)
	out.Metadata.System = target.VerificationSystem()
	out.Metadata.Confidence = s.Metadata.Confidence * spec.TranslationDamping
	return out, nil
}

// Validate reviews s at depth without attempting repairs.
func (g *Generator) Validate(ctx context.Context, s *spec.Specification, depth spec.Depth) (_ *spec.ValidationReport, err error) {
	ctx, span := tracer.Start(ctx, "generator.Validate", trace.WithAttributes(
		attribute.String("spec_id", s.ID),
		attribute.String("depth", depth.String()),
	))
	defer func() { endSpan(span, err) }()

	report, err := g.validator.Validate(ctx, s, depth)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("valid", report.Valid), attribute.Int("issues", len(report.Issues)))
	return report, nil
}

// ValidateAndRepair reviews s and runs the repair loop when the review fails.
// Repair failures are returned to the caller.
func (g *Generator) ValidateAndRepair(ctx context.Context, s *spec.Specification, depth spec.Depth) (_ *repair.Result, err error) {
	ctx, span := tracer.Start(ctx, "generator.ValidateAndRepair", trace.WithAttributes(
		attribute.String("spec_id", s.ID),
		attribute.String("depth", depth.String()),
	))
	defer func() { endSpan(span, err) }()

	report, err := g.validator.Validate(ctx, s, depth)
	if err != nil {
		return nil, err
	}
	if report.Valid {
		return &repair.Result{Report: report, Spec: s}, nil
	}

	g.logger.Info("Specification has issues, attempting repair", "spec_id", s.ID, "issues", len(report.Issues))

	res, err := g.repairer.Repair(ctx, s, report)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("repair_attempts", res.Attempts), attribute.Bool("fixed", res.Fixed()))
	return res, nil
}

// Run generates a specification, validates it and repairs it when enabled.
func (g *Generator) Run(ctx context.Context, requirements []string, domain spec.Domain, opts Options) (_ *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "generator.Run")
	defer func() { endSpan(span, err) }()

	requirements = spec.NormalizeRequirements(requirements)
	if len(requirements) == 0 {
		return nil, fmt.Errorf("no requirements given")
	}

	s, err := g.Generate(ctx, requirements, domain, opts)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	if !opts.Repair {
		report, err := g.Validate(ctx, s, opts.Depth)
		if err != nil {
			return nil, fmt.Errorf("validate: %w", err)
		}
		return &Outcome{Spec: s, Report: report}, nil
	}

	res, err := g.ValidateAndRepair(ctx, s, opts.Depth)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &Outcome{Spec: res.Spec, Report: res.Report, Attempts: res.Attempts}, nil
}

// TranslateToProperties asks the model to interpret each requirement as a
// formal property.
func (g *Generator) TranslateToProperties(ctx context.Context, requirements []string, domain spec.Domain) (_ []spec.Translation, err error) {
	ctx, span := tracer.Start(ctx, "generator.TranslateToProperties", trace.WithAttributes(
		attribute.String("domain", string(domain)),
	))
	defer func() { endSpan(span, err) }()

	text, err := g.renderer.Render(prompt.TemplateProperties, map[string]string{
		"domain":       domain.Label(),
		"requirements": strings.Join(requirements, "\n"),
	})
	if err != nil {
		return nil, err
	}

	answer, err := g.model.Call(ctx, text)
	if err != nil {
		return nil, err
	}
	return ParseTranslations(answer, spec.NotationFStar), nil
}

// Formalize converts interpreted properties into a specification artifact.
func (g *Generator) Formalize(ctx context.Context, translations []spec.Translation, target spec.Notation, paradigm Paradigm) (_ spec.FormalArtifact, err error) {
	ctx, span := tracer.Start(ctx, "generator.Formalize", trace.WithAttributes(
		attribute.String("notation", string(target)),
		attribute.String("paradigm", string(paradigm)),
	))
	defer func() { endSpan(span, err) }()

	blocks := make([]string, 0, len(translations))
	for _, t := range translations {
		blocks = append(blocks, fmt.Sprintf("Requirement: %s\nFormal Property: %s\nFormalization: %s",
			t.Requirement, strings.Join(t.Interpreted, ", "), t.Formal))
	}

	text, err := g.renderer.Render(prompt.TemplateFormalize, map[string]string{
		"notation":   target.DisplayName(),
		"paradigm":   string(paradigm),
		"properties": strings.Join(blocks, "\n\n"),
	})
	if err != nil {
		return spec.FormalArtifact{}, err
	}
	return g.ask(ctx, text, target)
}

// CheckCompleteness asks whether s covers requirements and returns the
// requirements the model reported as not or partially covered.
func (g *Generator) CheckCompleteness(ctx context.Context, s *spec.Specification, requirements []string) (_ bool, _ []string, err error) {
	ctx, span := tracer.Start(ctx, "generator.CheckCompleteness", trace.WithAttributes(attribute.String("spec_id", s.ID)))
	defer func() { endSpan(span, err) }()

	bullets := make([]string, 0, len(requirements))
	for _, r := range requirements {
		bullets = append(bullets, "- "+r)
	}

	text, err := g.renderer.Render(prompt.TemplateCompleteness, map[string]string{
		"notation":     s.Notation().DisplayName(),
		"code":         s.Artifact.Code,
		"requirements": strings.Join(bullets, "\n"),
	})
	if err != nil {
		return false, nil, err
	}

	answer, err := g.model.Call(ctx, text)
	if err != nil {
		return false, nil, err
	}

	complete, missing := ParseCompleteness(answer)
	span.SetAttributes(attribute.Bool("complete", complete), attribute.Int("missing", len(missing)))
	return complete, missing, nil
}

// GenerateVerificationCode asks for a tool-ready file for s targeting the
// verifier of notation target.
func (g *Generator) GenerateVerificationCode(ctx context.Context, s *spec.Specification, target spec.Notation) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "generator.GenerateVerificationCode", trace.WithAttributes(
		attribute.String("spec_id", s.ID),
		attribute.String("system", target.VerificationSystem()),
	))
	defer func() { endSpan(span, err) }()

	text, err := g.renderer.Render(prompt.TemplateVerificationCode, map[string]string{
		"notation": s.Notation().DisplayName(),
		"system":   target.VerificationSystem(),
		"code":     s.Artifact.Code,
	})
	if err != nil {
		return "", err
	}

	answer, err := g.model.Call(ctx, text)
	if err != nil {
		return "", err
	}
	return parser.ExtractCode(answer), nil
}

// Import wraps existing specification source and asks the model which
// requirements it fulfils.
func (g *Generator) Import(ctx context.Context, code string, notation spec.Notation) (_ *spec.Specification, err error) {
	ctx, span := tracer.Start(ctx, "generator.Import", trace.WithAttributes(attribute.String("notation", string(notation))))
	defer func() { endSpan(span, err) }()

	artifact, err := parser.Extract(code, notation)
	if err != nil {
		return nil, err
	}

	text, err := g.renderer.Render(prompt.TemplateImport, map[string]string{
		"notation": notation.DisplayName(),
		"code":     code,
	})
	if err != nil {
		return nil, err
	}

	answer, err := g.model.Call(ctx, text)
	if err != nil {
		return nil, err
	}

	s := spec.New(spec.NewID("import"), ParseImportedRequirements(answer), artifact, ImportedDomain, spec.ConfidenceImported)
	g.logger.Info("Imported specification", "spec_id", s.ID, "requirements", len(s.Requirements))
	return s, nil
}

// ask sends one prompt and parses the answer as an artifact in notation n.
func (g *Generator) ask(ctx context.Context, text string, n spec.Notation) (spec.FormalArtifact, error) {
	g.logger.Debug("Prompt rendered", "chars", len(text))

	answer, err := g.model.Call(ctx, text)
	if err != nil {
		return spec.FormalArtifact{}, err
	}
	return parser.Extract(answer, n)
}

// ParseTranslations reads blank-line separated property blocks. Blocks with
// fewer than four lines are skipped.
func ParseTranslations(answer string, n spec.Notation) []spec.Translation {
	var out []spec.Translation
	for section := range strings.SplitSeq(answer, "\n\n") {
		lines := strings.Split(strings.TrimSpace(section), "\n")
		if len(lines) < 4 {
			continue
		}

		confidence := DefaultPropertyConfidence
		if raw, ok := strings.CutPrefix(strings.TrimSpace(lines[3]), "Confidence:"); ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				confidence = v
			}
		}

		out = append(out, spec.Translation{
			Requirement: field(lines[0], "Requirement:"),
			Interpreted: []string{field(lines[1], "Formal property:")},
			Formal:      field(lines[2], "Mathematical form:"),
			Confidence:  confidence,
			Notation:    n,
			NeedsReview: confidence < spec.ReviewThreshold,
		})
	}
	return out
}

func field(line, prefix string) string {
	line = strings.TrimSpace(line)
	if v, ok := strings.CutPrefix(line, prefix); ok {
		return strings.TrimSpace(v)
	}
	return line
}

// ParseCompleteness reads the completeness verdict and the bullet items
// marked as not or partially covered.
func ParseCompleteness(answer string) (bool, []string) {
	lower := strings.ToLower(answer)
	complete := false
	for _, p := range completenessPhrases {
		if strings.Contains(lower, p) {
			complete = true
			break
		}
	}

	missing := []string{}
	for line := range strings.Lines(answer) {
		if !strings.Contains(line, "not covered") && !strings.Contains(line, "partially covered") {
			continue
		}
		if _, item, ok := strings.Cut(line, "- "); ok {
			missing = append(missing, strings.TrimSpace(item))
		}
	}
	return complete, missing
}

// ParseImportedRequirements returns the "-" bullets that follow a
// "Requirements:" heading, or a single placeholder when there are none.
func ParseImportedRequirements(answer string) []string {
	var reqs []string
	inSection := false
	for line := range strings.Lines(answer) {
		line = strings.TrimRight(line, "\r\n")
		if strings.Contains(line, "Requirements:") || strings.Contains(line, "Requirement:") {
			inSection = true
			continue
		}
		if !inSection || !strings.HasPrefix(line, "-") {
			continue
		}
		if r := strings.TrimSpace(strings.TrimLeft(line, "-")); r != "" {
			reqs = append(reqs, r)
		}
	}
	if len(reqs) == 0 {
		return []string{fallbackRequirement}
	}
	return reqs
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
