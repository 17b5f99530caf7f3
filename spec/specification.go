package spec

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Confidence values assigned by the pipeline.
const (
	// ConfidenceGenerated is the score of a freshly generated specification.
	ConfidenceGenerated = 0.9
	// ConfidenceImported is the score of a specification read from a file.
	ConfidenceImported = 0.8
	// TranslationDamping multiplies the confidence on every notation translation.
	TranslationDamping = 0.9
	// ReviewThreshold is the translation confidence below which a human should look.
	ReviewThreshold = 0.8
)

// DescriptionComponent is the component key holding the full model answer.
const DescriptionComponent = "description"

// PropertyKind classifies a formal property.
type PropertyKind string

const (
	PropertyFunctional    PropertyKind = "functional"
	PropertySafety        PropertyKind = "safety"
	PropertyLiveness      PropertyKind = "liveness"
	PropertySecurity      PropertyKind = "security"
	PropertyResourceUsage PropertyKind = "resource_usage"
)

// Property is a formal property an implementation must satisfy.
type Property struct {
	ID               string       `json:"id"`
	Description      string       `json:"description"`
	FormalDefinition string       `json:"formal_definition"`
	Kind             PropertyKind `json:"kind"`
}

// FormalArtifact is the structured result of parsing a model answer.
type FormalArtifact struct {
	Notation Notation `json:"notation"`
	// Code is the extracted specification source. Never empty after parsing.
	Code string `json:"code"`
	// Components maps synthetic names (component_1, ...) to fenced fragments.
	// The "description" key holds the full answer.
	Components map[string]string `json:"components,omitempty"`
	// Dependencies are imported module names in source order, duplicates kept.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Clone returns a deep copy of the artifact.
func (a FormalArtifact) Clone() FormalArtifact {
	out := a
	if a.Components != nil {
		out.Components = maps.Clone(a.Components)
	}
	out.Dependencies = slices.Clone(a.Dependencies)
	return out
}

// Metadata describes provenance and trust of a specification.
type Metadata struct {
	CreatedAt         time.Time `json:"created_at"`
	System            string    `json:"verification_system"`
	Domain            Domain    `json:"domain"`
	Confidence        float64   `json:"confidence_score"`
	FormallyValidated bool      `json:"is_formally_validated"`
}

// Specification is a formal specification derived from natural-language requirements.
type Specification struct {
	ID           string         `json:"id"`
	Requirements []string       `json:"requirements"`
	Properties   []Property     `json:"properties,omitempty"`
	Artifact     FormalArtifact `json:"artifact"`
	Metadata     Metadata       `json:"metadata"`
}

// New builds a specification for a freshly parsed artifact.
func New(id string, requirements []string, artifact FormalArtifact, domain Domain, confidence float64) *Specification {
	return &Specification{
		ID:           id,
		Requirements: slices.Clone(requirements),
		Artifact:     artifact,
		Metadata: Metadata{
			CreatedAt:  time.Now().UTC(),
			System:     artifact.Notation.VerificationSystem(),
			Domain:     domain,
			Confidence: confidence,
		},
	}
}

// NewID returns a timestamp based identifier with the given prefix.
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().Unix())
}

// Clone returns a deep copy of s.
func (s *Specification) Clone() *Specification {
	if s == nil {
		return nil
	}
	out := *s
	out.Requirements = slices.Clone(s.Requirements)
	out.Properties = slices.Clone(s.Properties)
	out.Artifact = s.Artifact.Clone()
	return &out
}

// Derive returns a new specification with id "<parent>_<suffix>" that shares
// the parent's requirements and properties but carries a new artifact.
// Metadata is copied with a fresh creation time; callers adjust confidence or
// system as needed.
func (s *Specification) Derive(suffix string, artifact FormalArtifact) *Specification {
	out := s.Clone()
	out.ID = s.ID + "_" + suffix
	out.Artifact = artifact
	out.Metadata.CreatedAt = time.Now().UTC()
	out.Metadata.FormallyValidated = false
	return out
}

// Notation returns the notation of the embedded artifact.
func (s *Specification) Notation() Notation {
	return s.Artifact.Notation
}

// NormalizeRequirements trims every entry and drops empty ones, preserving order.
func NormalizeRequirements(reqs []string) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Translation records how one requirement was interpreted as a formal property.
type Translation struct {
	Requirement string   `json:"requirement"`
	Interpreted []string `json:"interpreted_properties"`
	Formal      string   `json:"formal_representation"`
	Confidence  float64  `json:"translation_confidence"`
	Notation    Notation `json:"notation"`
	NeedsReview bool     `json:"requires_human_review"`
}
