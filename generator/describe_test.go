package generator

import (
	"testing"

	"github.com/c360studio/specforge/spec"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	s := spec.New("spec_1", []string{"must encrypt data", "keys rotate"}, spec.FormalArtifact{
		Notation: spec.NotationFStar,
		Code:     "type key = int\nval encrypt: key -> int\nlet rotate k = k + 1\n",
	}, spec.DomainCryptography, spec.ConfidenceGenerated)

	got := Describe(s)

	assert.Contains(t, got, "This is a F* specification that addresses the following requirements:\n\n- must encrypt data\n- keys rotate\n")
	assert.Contains(t, got, "The specification includes 1 types and 2 functions/properties.")
	assert.Contains(t, got, "### Types\n\n- `key`\n")
	assert.Contains(t, got, "### Functions and Properties\n\n- `encrypt`\n- `rotate`\n")
}

func TestDescribe_NoDeclarations(t *testing.T) {
	s := spec.New("spec_2", []string{"liveness"}, spec.FormalArtifact{
		Notation: spec.NotationTLA,
		Code:     "Init == x = 0\n",
	}, spec.DomainDistributedSystems, spec.ConfidenceGenerated)

	got := Describe(s)

	assert.Contains(t, got, "0 types and 0 functions/properties")
	assert.NotContains(t, got, "### Types")
	assert.NotContains(t, got, "### Functions")
}
