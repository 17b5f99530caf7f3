// Package prompt stores prompt templates and renders them by substituting
// {{name}} placeholders. Rendering is a single pass: replacement values are
// inserted verbatim and never re-expanded.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Template names used by the pipeline.
const (
	TemplateSpecification    = "specification"
	TemplateRefine           = "refine"
	TemplateTranslate        = "translate"
	TemplateProperties       = "properties"
	TemplateFormalize        = "formalize"
	TemplateCompleteness     = "completeness"
	TemplateVerificationCode = "verification_code"
	TemplateImport           = "import"
	TemplateReviewBasic      = "review_basic"
	TemplateReviewTypeCheck  = "review_typecheck"
	TemplateReviewFormal     = "review_formal"
	TemplateRepair           = "repair"
	TemplateListTemplates    = "list_templates"
	TemplateApplyTemplate    = "apply_template"
)

// TemplateExt is the file extension picked up by LoadDir.
const TemplateExt = ".tmpl"

// ErrTemplateNotFound is wrapped by TemplateError when a name is unknown.
var ErrTemplateNotFound = errors.New("template not found")

// ErrMalformedTemplate is wrapped by TemplateError when a placeholder is unterminated.
var ErrMalformedTemplate = errors.New("malformed template")

// TemplateError reports a template lookup or structure failure.
type TemplateError struct {
	Name string
	err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %v", e.Name, e.err)
}

func (e *TemplateError) Unwrap() error {
	return e.err
}

// Renderer renders named templates. It is immutable after construction and
// safe for concurrent use.
type Renderer struct {
	templates map[string]string
}

// NewRenderer creates a renderer over a copy of templates.
func NewRenderer(templates map[string]string) *Renderer {
	return &Renderer{templates: maps.Clone(templates)}
}

// NewDefaultRenderer creates a renderer over the built-in templates.
func NewDefaultRenderer() *Renderer {
	return &Renderer{templates: Defaults()}
}

// Render returns template name with every {{key}} replaced by params[key].
// Placeholders with no matching key are left in place.
func (r *Renderer) Render(name string, params map[string]string) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", &TemplateError{Name: name, err: ErrTemplateNotFound}
	}
	if err := checkPlaceholders(tmpl); err != nil {
		return "", &TemplateError{Name: name, err: err}
	}
	if len(params) == 0 {
		return tmpl, nil
	}

	// Sorted keys keep the replacer deterministic.
	keys := slices.Sorted(maps.Keys(params))
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", params[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), nil
}

// Has reports whether a template is registered under name.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Names returns the registered template names, sorted.
func (r *Renderer) Names() []string {
	return slices.Sorted(maps.Keys(r.templates))
}

// With returns a new renderer with overrides layered over r's templates.
func (r *Renderer) With(overrides map[string]string) *Renderer {
	merged := maps.Clone(r.templates)
	maps.Copy(merged, overrides)
	return &Renderer{templates: merged}
}

// checkPlaceholders rejects an opening "{{" that is never closed.
func checkPlaceholders(tmpl string) error {
	rest := tmpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			return nil
		}
		rest = rest[open+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return fmt.Errorf("%w: unterminated placeholder", ErrMalformedTemplate)
		}
		rest = rest[end+2:]
	}
}

// LoadDir reads every *.tmpl file below dir. The template name is the path
// relative to dir without the extension, using forward slashes.
func LoadDir(dir string) (map[string]string, error) {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, "**/*"+TemplateExt)
	if err != nil {
		return nil, fmt.Errorf("glob templates in %s: %w", dir, err)
	}

	out := make(map[string]string, len(matches))
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filepath.Join(dir, m), err)
		}
		name := strings.TrimSuffix(filepath.ToSlash(m), TemplateExt)
		out[name] = string(data)
	}
	return out, nil
}

// NewRendererFromDir layers the templates found in dir over the defaults.
// An empty dir yields the defaults unchanged.
func NewRendererFromDir(dir string) (*Renderer, error) {
	r := NewDefaultRenderer()
	if dir == "" {
		return r, nil
	}
	overrides, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return r.With(overrides), nil
}
