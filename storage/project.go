// Package storage persists specifications, validation reports and model call
// logs.
//
// Two backends are provided. ProjectStore writes one directory per project on
// the local filesystem. KVStore keeps JSON records in a NATS JetStream
// key-value bucket.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/specforge/parser"
	"github.com/c360studio/specforge/spec"
)

// File names inside a project directory.
const (
	SpecFileBase     = "specification"
	MetadataFile     = "metadata.json"
	RequirementsFile = "requirements.txt"
	ReportFile       = "report.json"
)

// DefaultProjectsDir is the root used when none is configured.
const DefaultProjectsDir = "projects"

// Writer persists a specification and, optionally, its latest report.
// It returns a backend specific location.
type Writer interface {
	Write(ctx context.Context, project string, s *spec.Specification, report *spec.ValidationReport) (string, error)
}

// Metadata is the content of metadata.json.
type Metadata struct {
	ID                 string          `json:"id"`
	Domain             spec.Domain     `json:"domain"`
	Notation           spec.Notation   `json:"verification_language"`
	VerificationSystem string          `json:"verification_system"`
	CreatedAt          time.Time       `json:"created_at"`
	Confidence         float64         `json:"confidence_score"`
	FormallyValidated  bool            `json:"is_formally_validated"`
	Properties         []spec.Property `json:"properties,omitempty"`
}

// ProjectStore writes projects below a root directory.
type ProjectStore struct {
	root   string
	logger *slog.Logger
}

// ProjectOption configures a ProjectStore.
type ProjectOption func(*ProjectStore)

// WithProjectLogger sets the logger.
func WithProjectLogger(logger *slog.Logger) ProjectOption {
	return func(s *ProjectStore) {
		s.logger = logger
	}
}

// NewProjectStore creates a store rooted at root.
func NewProjectStore(root string, opts ...ProjectOption) *ProjectStore {
	if root == "" {
		root = DefaultProjectsDir
	}
	s := &ProjectStore{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the root directory.
func (s *ProjectStore) Root() string {
	return s.root
}

// Dir returns the directory of a project.
func (s *ProjectStore) Dir(project string) (string, error) {
	if err := checkProject(project); err != nil {
		return "", err
	}
	return filepath.Join(s.root, project), nil
}

// Write saves the specification source, metadata.json and requirements.txt,
// plus report.json when report is non-nil. Existing files are replaced; a
// report left by an earlier write is removed when report is nil.
func (s *ProjectStore) Write(ctx context.Context, project string, sp *spec.Specification, report *spec.ValidationReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := s.Dir(project)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create project directory: %w", err)
	}

	// Only one specification file per project.
	if old, err := s.specFile(dir); err == nil {
		_ = os.Remove(old)
	}

	specPath := filepath.Join(dir, SpecFileBase+"."+sp.Notation().Extension())
	if err := os.WriteFile(specPath, []byte(sp.Artifact.Code), 0o644); err != nil {
		return "", fmt.Errorf("write specification: %w", err)
	}

	meta := Metadata{
		ID:                 sp.ID,
		Domain:             sp.Metadata.Domain,
		Notation:           sp.Notation(),
		VerificationSystem: sp.Metadata.System,
		CreatedAt:          sp.Metadata.CreatedAt,
		Confidence:         sp.Metadata.Confidence,
		FormallyValidated:  sp.Metadata.FormallyValidated,
		Properties:         sp.Properties,
	}
	if err := writeJSON(filepath.Join(dir, MetadataFile), meta); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	reqs := strings.Join(sp.Requirements, "\n")
	if err := os.WriteFile(filepath.Join(dir, RequirementsFile), []byte(reqs), 0o644); err != nil {
		return "", fmt.Errorf("write requirements: %w", err)
	}

	reportPath := filepath.Join(dir, ReportFile)
	if report != nil {
		if err := writeJSON(reportPath, report); err != nil {
			return "", fmt.Errorf("write report: %w", err)
		}
	} else if err := os.Remove(reportPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove stale report: %w", err)
	}

	s.logger.Info("Specification saved", "project", project, "spec_id", sp.ID, "path", specPath)
	return dir, nil
}

// Load reads back the specification of a project. Components are not
// persisted; dependencies are re-derived from the code.
func (s *ProjectStore) Load(ctx context.Context, project string) (*spec.Specification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.Dir(project)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	specPath, err := s.specFile(dir)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}

	var reqs []string
	if raw, err := os.ReadFile(filepath.Join(dir, RequirementsFile)); err == nil {
		reqs = spec.NormalizeRequirements(strings.Split(string(raw), "\n"))
	}

	notation := meta.Notation
	if notation == "" {
		notation = spec.NotationFromExtension(filepath.Ext(specPath))
	}

	return &spec.Specification{
		ID:           meta.ID,
		Requirements: reqs,
		Properties:   meta.Properties,
		Artifact: spec.FormalArtifact{
			Notation:     notation,
			Code:         string(code),
			Dependencies: parser.ExtractDependencies(string(code), notation),
		},
		Metadata: spec.Metadata{
			CreatedAt:         meta.CreatedAt,
			System:            meta.VerificationSystem,
			Domain:            meta.Domain,
			Confidence:        meta.Confidence,
			FormallyValidated: meta.FormallyValidated,
		},
	}, nil
}

// LoadReport reads report.json of a project.
func (s *ProjectStore) LoadReport(ctx context.Context, project string) (*spec.ValidationReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.Dir(project)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report spec.ValidationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// Projects lists the projects that hold a metadata file, sorted by name.
func (s *ProjectStore) Projects() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(s.root), "*/"+MetadataFile)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if len(matches) == 0 {
		return []string{}, nil
	}
	projects := make([]string, 0, len(matches))
	for _, m := range matches {
		projects = append(projects, path.Dir(m))
	}
	slices.Sort(projects)
	return projects, nil
}

func (s *ProjectStore) specFile(dir string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), SpecFileBase+".*")
	if err != nil {
		return "", fmt.Errorf("find specification: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}
	return filepath.Join(dir, matches[0]), nil
}

func checkProject(project string) error {
	if project == "" || project == "." || project == ".." ||
		strings.ContainsAny(project, `/\`) || filepath.IsAbs(project) {
		return fmt.Errorf("%w: %q", ErrInvalidProject, project)
	}
	return nil
}

func writeJSON(p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}
