// Package spec defines the data model shared by the specification pipeline:
// notations, domains, specifications, formal artifacts and validation reports.
// Values here are plain data. Operations that change a specification return a
// new value rather than mutating the receiver.
package spec

import "strings"

// Notation identifies a formal specification language.
// Any string outside the predefined set is treated as a custom tag.
type Notation string

const (
	NotationFStar    Notation = "fstar"
	NotationDafny    Notation = "dafny"
	NotationCoq      Notation = "coq"
	NotationIsabelle Notation = "isabelle"
	NotationLean     Notation = "lean"
	NotationTLA      Notation = "tla"
	NotationWhy3     Notation = "why3"
	NotationZ3       Notation = "z3"
)

// KnownNotations lists the predefined notations in declaration order.
var KnownNotations = []Notation{
	NotationFStar,
	NotationDafny,
	NotationCoq,
	NotationIsabelle,
	NotationLean,
	NotationTLA,
	NotationWhy3,
	NotationZ3,
}

var notationExtensions = map[Notation]string{
	NotationFStar:    "fst",
	NotationDafny:    "dfy",
	NotationCoq:      "v",
	NotationIsabelle: "thy",
	NotationLean:     "lean",
	NotationTLA:      "tla",
	NotationWhy3:     "why",
	NotationZ3:       "smt2",
}

var notationNames = map[Notation]string{
	NotationFStar:    "F*",
	NotationDafny:    "Dafny",
	NotationCoq:      "Coq",
	NotationIsabelle: "Isabelle",
	NotationLean:     "Lean",
	NotationTLA:      "TLA+",
	NotationWhy3:     "Why3",
	NotationZ3:       "Z3 SMT-LIB",
}

// ParseNotation normalizes a user supplied notation name.
// Common aliases ("f*", "tla+", "smt") map onto the predefined set; anything
// else becomes a custom tag.
func ParseNotation(s string) Notation {
	n := strings.ToLower(strings.TrimSpace(s))
	switch n {
	case "f*", "fst", "fstar":
		return NotationFStar
	case "dfy", "dafny":
		return NotationDafny
	case "v", "coq", "rocq":
		return NotationCoq
	case "thy", "isabelle":
		return NotationIsabelle
	case "lean", "lean4":
		return NotationLean
	case "tla", "tla+", "tlaplus":
		return NotationTLA
	case "why", "why3":
		return NotationWhy3
	case "z3", "smt", "smt2", "smtlib":
		return NotationZ3
	}
	return Notation(n)
}

// IsCustom reports whether n is outside the predefined set.
func (n Notation) IsCustom() bool {
	_, ok := notationExtensions[n]
	return !ok
}

// Extension returns the conventional file extension, "txt" for custom notations.
func (n Notation) Extension() string {
	if ext, ok := notationExtensions[n]; ok {
		return ext
	}
	return "txt"
}

// DisplayName returns the name used in prompts and reports.
func (n Notation) DisplayName() string {
	if name, ok := notationNames[n]; ok {
		return name
	}
	return string(n)
}

// VerificationSystem returns the identifier of the tool family that would
// check specifications written in n.
func (n Notation) VerificationSystem() string {
	if n.IsCustom() {
		return "custom:" + string(n)
	}
	return string(n)
}

// NotationFromExtension infers a notation from a file extension (with or
// without the leading dot). Unknown extensions yield a custom tag.
func NotationFromExtension(ext string) Notation {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for n, e := range notationExtensions {
		if e == ext {
			return n
		}
	}
	return Notation(ext)
}

// Domain tags the application area of a requirement set.
type Domain string

const (
	DomainCryptography       Domain = "cryptography"
	DomainDistributedSystems Domain = "distributed_systems"
	DomainWebSecurity        Domain = "web_security"
	DomainMachineLearning    Domain = "machine_learning"
	DomainSystemsSoftware    Domain = "systems_software"
	DomainBlockchain         Domain = "blockchain"
	DomainSafetyControl      Domain = "safety_control"
	DomainHighAssurance      Domain = "high_assurance"
)

// ParseDomain normalizes a domain name; separators are folded to underscores.
func ParseDomain(s string) Domain {
	d := strings.ToLower(strings.TrimSpace(s))
	d = strings.NewReplacer("-", "_", " ", "_").Replace(d)
	if d == "distributedsystems" {
		return DomainDistributedSystems
	}
	return Domain(d)
}

// Label returns the domain with underscores turned into spaces.
func (d Domain) Label() string {
	return strings.ReplaceAll(string(d), "_", " ")
}

var recommendedNotations = map[Domain]Notation{
	DomainCryptography:       NotationFStar,
	DomainDistributedSystems: NotationTLA,
	DomainWebSecurity:        NotationDafny,
}

// RecommendedNotation returns the notation best suited to d. Domains without
// a recommendation get F*.
func RecommendedNotation(d Domain) Notation {
	if n, ok := recommendedNotations[d]; ok {
		return n
	}
	return NotationFStar
}
