package generator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/spec"
)

// DefaultTemplateCount is the number of templates requested by ListTemplates.
const DefaultTemplateCount = 3

const noDocumentation = "No documentation provided"

// ErrNoTemplates is returned when an answer contains no usable template.
var ErrNoTemplates = errors.New("no templates in answer")

// VerificationTemplate is a parameterized specification skeleton.
type VerificationTemplate struct {
	Name          string        `json:"name"`
	Notation      spec.Notation `json:"notation"`
	Code          string        `json:"code"`
	Placeholders  []string      `json:"placeholders,omitempty"`
	Documentation string        `json:"documentation"`
}

// ListTemplates asks the model for reusable specification templates for
// domain in notation n.
func (g *Generator) ListTemplates(ctx context.Context, domain spec.Domain, n spec.Notation) (_ []VerificationTemplate, err error) {
	ctx, span := tracer.Start(ctx, "generator.ListTemplates", trace.WithAttributes(
		attribute.String("domain", string(domain)),
		attribute.String("notation", string(n)),
	))
	defer func() { endSpan(span, err) }()

	text, err := g.renderer.Render(prompt.TemplateListTemplates, map[string]string{
		"count":    strconv.Itoa(DefaultTemplateCount),
		"notation": n.DisplayName(),
		"domain":   domain.Label(),
	})
	if err != nil {
		return nil, err
	}

	answer, err := g.model.Call(ctx, text)
	if err != nil {
		return nil, err
	}

	templates := ParseTemplates(answer, n)
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}
	g.logger.Info("Templates received", "domain", domain, "notation", n, "count", len(templates))
	return templates, nil
}

// ApplyTemplate asks the model to fill t's placeholders from props.
func (g *Generator) ApplyTemplate(ctx context.Context, t VerificationTemplate, props []spec.Property) (_ spec.FormalArtifact, err error) {
	ctx, span := tracer.Start(ctx, "generator.ApplyTemplate", trace.WithAttributes(
		attribute.String("template", t.Name),
		attribute.Int("properties", len(props)),
	))
	defer func() { endSpan(span, err) }()

	lines := make([]string, 0, len(props))
	for _, p := range props {
		lines = append(lines, fmt.Sprintf("Property %s: %s - %s", p.ID, p.Description, p.FormalDefinition))
	}
	placeholders := "as marked in the template"
	if len(t.Placeholders) > 0 {
		placeholders = strings.Join(t.Placeholders, ", ")
	}

	text, err := g.renderer.Render(prompt.TemplateApplyTemplate, map[string]string{
		"template_name": t.Name,
		"template_code": t.Code,
		"properties":    strings.Join(lines, "\n"),
		"placeholders":  placeholders,
		"notation":      t.Notation.DisplayName(),
	})
	if err != nil {
		return spec.FormalArtifact{}, err
	}
	return g.ask(ctx, text, t.Notation)
}

// PropertiesFromTranslations numbers interpreted requirements as functional
// properties P1, P2, ...
func PropertiesFromTranslations(ts []spec.Translation) []spec.Property {
	props := make([]spec.Property, 0, len(ts))
	for i, t := range ts {
		desc := strings.Join(t.Interpreted, "; ")
		if desc == "" {
			desc = t.Requirement
		}
		props = append(props, spec.Property{
			ID:               fmt.Sprintf("P%d", i+1),
			Description:      desc,
			FormalDefinition: t.Formal,
			Kind:             spec.PropertyFunctional,
		})
	}
	return props
}

// ParseTemplates reads "Name:" sections. Each needs a fenced code block;
// "Placeholders:" and "Documentation:" after the block are optional.
// Sections without code are dropped.
func ParseTemplates(answer string, n spec.Notation) []VerificationTemplate {
	var out []VerificationTemplate
	for i, section := range templateSections(answer) {
		t, ok := parseTemplate(section, n)
		if !ok {
			continue
		}
		if t.Name == "" {
			t.Name = fmt.Sprintf("Template %d", i+1)
		}
		out = append(out, t)
	}
	return out
}

// templateSections splits answer at lines starting with "Name:" outside
// fenced blocks. Text before the first section is dropped.
func templateSections(answer string) []string {
	var sections []string
	inFence := false
	for line := range strings.Lines(answer) {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, "Name:") {
			sections = append(sections, "")
		}
		if len(sections) > 0 {
			sections[len(sections)-1] += line
		}
	}
	return sections
}

func parseTemplate(section string, n spec.Notation) (VerificationTemplate, bool) {
	head, body, _ := strings.Cut(section, "\n")
	t := VerificationTemplate{
		Name:          strings.TrimSpace(strings.TrimPrefix(head, "Name:")),
		Notation:      n,
		Documentation: noDocumentation,
	}

	_, afterOpen, ok := strings.Cut(body, "```")
	if !ok {
		return t, false
	}
	// The rest of the opening fence line is a language tag.
	_, afterTag, _ := strings.Cut(afterOpen, "\n")
	code, rest, _ := strings.Cut(afterTag, "```")
	if t.Code = strings.TrimSpace(code); t.Code == "" {
		return t, false
	}

	if _, ph, ok := strings.Cut(rest, "Placeholders:"); ok {
		ph, _, _ = strings.Cut(ph, "Documentation:")
		t.Placeholders = splitPlaceholders(ph)
	}
	if _, doc, ok := strings.Cut(rest, "Documentation:"); ok {
		if doc = strings.TrimSpace(doc); doc != "" {
			t.Documentation = doc
		}
	}
	return t, true
}

// splitPlaceholders accepts comma separated and bulleted lists.
func splitPlaceholders(text string) []string {
	var out []string
	for line := range strings.Lines(text) {
		for item := range strings.SplitSeq(line, ",") {
			item = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(item), "-*"))
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
