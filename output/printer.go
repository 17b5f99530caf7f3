// Package output renders specifications, reports and call logs for the
// terminal. Styling is applied only when the destination is a terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/c360studio/specforge/generator"
	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/spec"
	"github.com/c360studio/specforge/storage"
)

// Palette.
var (
	ColorAccent  = lipgloss.Color("#20B9B4")
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#5C7A84")
)

// Icons.
const (
	IconValid   = "✓"
	IconInvalid = "✗"
	IconWarning = "⚠"
	IconInfo    = "•"
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	code    lipgloss.Style
}

func newStyles(styled bool) styles {
	if !styled {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
		label:   lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(ColorMuted),
		success: lipgloss.NewStyle().Foreground(ColorSuccess),
		warning: lipgloss.NewStyle().Foreground(ColorWarning),
		failure: lipgloss.NewStyle().Foreground(ColorError),
		code: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1),
	}
}

// Printer writes human-readable output.
type Printer struct {
	w      io.Writer
	styled bool
	s      styles
	title  cases.Caser
}

// NewPrinter creates a printer. styled enables colors and borders.
func NewPrinter(w io.Writer, styled bool) *Printer {
	return &Printer{
		w:      w,
		styled: styled,
		s:      newStyles(styled),
		title:  cases.Title(language.English),
	}
}

// Spec prints a specification summary followed by its code.
func (p *Printer) Spec(s *spec.Specification) {
	p.heading("Specification " + s.ID)
	p.field("Notation", s.Notation().DisplayName())
	p.field("Domain", p.title.String(s.Metadata.Domain.Label()))
	p.field("Confidence", fmt.Sprintf("%.2f", s.Metadata.Confidence))
	if deps := s.Artifact.Dependencies; len(deps) > 0 {
		p.field("Dependencies", strings.Join(deps, ", "))
	}
	p.field("Requirements", "")
	for _, r := range s.Requirements {
		fmt.Fprintf(p.w, "  %s %s\n", IconInfo, r)
	}
	fmt.Fprintln(p.w)
	p.Code(s.Artifact.Code)
}

// Code prints source code, boxed when styled.
func (p *Printer) Code(code string) {
	code = strings.TrimRight(code, "\n")
	if p.styled {
		fmt.Fprintln(p.w, p.s.code.Render(code))
		return
	}
	fmt.Fprintln(p.w, code)
}

// Report prints a validation report. Repair success notes are omitted; the
// best-effort code of an exhausted repair is printed last.
func (p *Printer) Report(r *spec.ValidationReport) {
	p.heading("Validation")
	if r.Valid {
		fmt.Fprintln(p.w, p.s.success.Render(IconValid+" Specification is valid"))
	} else {
		fmt.Fprintln(p.w, p.s.failure.Render(IconInvalid+" Specification has issues"))
	}

	issues := r.VisibleIssues()
	if len(issues) > 0 {
		fmt.Fprintln(p.w)
	}
	for _, issue := range issues {
		p.issue(issue)
	}

	if !r.Valid {
		if fix, ok := r.BestEffortFix(); ok {
			fmt.Fprintln(p.w)
			p.heading("Best-effort fix")
			p.Code(fix)
		}
	}
}

func (p *Printer) issue(i spec.Issue) {
	style, icon := p.s.muted, IconInfo
	switch i.Severity {
	case spec.SeverityError:
		style, icon = p.s.failure, IconInvalid
	case spec.SeverityWarning:
		style, icon = p.s.warning, IconWarning
	}

	head := fmt.Sprintf("%s %s", icon, i.Severity.Label())
	if i.Line != nil {
		head += " " + p.s.muted.Render("("+i.Location()+")")
	}
	fmt.Fprintf(p.w, "%s: %s\n", style.Render(head), i.Message)
	if fix := i.Fix(); fix != "" && !strings.Contains(fix, "\n") {
		fmt.Fprintf(p.w, "  %s %s\n", p.s.muted.Render("suggestion:"), fix)
	}
}

// Translations prints interpreted properties.
func (p *Printer) Translations(ts []spec.Translation) {
	p.heading("Properties")
	for _, t := range ts {
		fmt.Fprintf(p.w, "%s %s\n", IconInfo, p.s.label.Render(t.Requirement))
		for _, prop := range t.Interpreted {
			p.field("  Property", prop)
		}
		p.field("  Formal", t.Formal)
		conf := fmt.Sprintf("%.2f", t.Confidence)
		if t.NeedsReview {
			conf += " " + p.s.warning.Render(IconWarning+" needs review")
		}
		p.field("  Confidence", conf)
	}
}

// Completeness prints a coverage verdict.
func (p *Printer) Completeness(complete bool, missing []string) {
	p.heading("Coverage")
	if complete {
		fmt.Fprintln(p.w, p.s.success.Render(IconValid+" All requirements covered"))
	} else {
		fmt.Fprintln(p.w, p.s.failure.Render(IconInvalid+" Specification is incomplete"))
	}
	for _, m := range missing {
		fmt.Fprintf(p.w, "  %s %s\n", IconWarning, m)
	}
}

// Calls prints a call log.
func (p *Printer) Calls(calls []*llm.CallRecord) {
	p.heading("Model calls")
	if len(calls) == 0 {
		fmt.Fprintln(p.w, p.s.muted.Render("No calls recorded"))
		return
	}
	for _, c := range calls {
		status := p.s.success.Render(IconValid)
		if c.Status != llm.CallStatusSuccess {
			status = p.s.failure.Render(IconInvalid)
		}
		fmt.Fprintf(p.w, "%s %s %s/%s %dms %d→%d chars\n",
			status, c.StartedAt.Format("2006-01-02 15:04:05"), c.Provider, c.Model,
			c.DurationMs, c.PromptChars, c.ResponseChars)
		if c.Error != "" {
			fmt.Fprintf(p.w, "  %s\n", p.s.failure.Render(c.Error))
		}
	}
}

// Description prints a specification overview.
func (p *Printer) Description(text string) {
	fmt.Fprintln(p.w)
	p.heading("Specification description")
	fmt.Fprintln(p.w, strings.TrimRight(text, "\n"))
}

// Templates prints numbered verification templates.
func (p *Printer) Templates(ts []generator.VerificationTemplate) {
	p.heading("Templates")
	for i, t := range ts {
		fmt.Fprintf(p.w, "%s %s\n", p.s.label.Render(fmt.Sprintf("%d.", i+1)), p.s.label.Render(t.Name))
		if len(t.Placeholders) > 0 {
			p.field("  Placeholders", strings.Join(t.Placeholders, ", "))
		}
		p.field("  Documentation", t.Documentation)
		p.Code(t.Code)
		fmt.Fprintln(p.w)
	}
}

// History prints stored revisions of a project, oldest first.
func (p *Printer) History(project string, records []*storage.Record) {
	p.heading("History of " + project)
	if len(records) == 0 {
		fmt.Fprintln(p.w, p.s.muted.Render("No stored revisions"))
		return
	}
	for _, r := range records {
		verdict := p.s.muted.Render("-")
		if r.Report != nil {
			verdict = p.s.failure.Render(IconInvalid)
			if r.Report.Valid {
				verdict = p.s.success.Render(IconValid)
			}
		}
		fmt.Fprintf(p.w, "%s %s %s %s\n",
			verdict, r.SavedAt.Format("2006-01-02 15:04:05"), r.Spec.ID, p.s.muted.Render(r.Spec.Notation().DisplayName()))
	}
}

// Location prints where something was stored.
func (p *Printer) Location(what, where string) {
	fmt.Fprintf(p.w, "%s %s\n", p.s.success.Render(IconValid), fmt.Sprintf("%s: %s", what, where))
}

func (p *Printer) heading(text string) {
	fmt.Fprintln(p.w, p.s.title.Render(text))
}

func (p *Printer) field(name, value string) {
	fmt.Fprintf(p.w, "%s %s\n", p.s.label.Render(name+":"), value)
}
