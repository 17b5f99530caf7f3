package prompt

import (
	"fmt"
	"strings"

	"github.com/c360studio/specforge/spec"
)

var notationGuidelines = map[spec.Notation]string{
	spec.NotationFStar: `
## F* Syntax Guidelines

1. Module structure: begin with "module ModuleName" and use "open" for imports ("open FStar.All").
2. Types: use "type"; refined types as "type t = x:int{x > 0}" and always close refinements with "}".
3. Functions: "val" for signatures, "let" for definitions ("val f: int -> int" then "let f x = x + 1").
4. Properties: define lemmas with "let", e.g. "let lemma_name (x: int) : Lemma (x + 0 = x) = ()".
5. Security properties use the Lemma type with "requires" and "ensures" clauses.
6. Use the ST effect for stateful computation and "ref" for references.
7. Use option types for partial operations, e.g. "val safe_div: x:int -> y:int{y <> 0} -> int".
8. Common errors: missing "let", unclosed refinements, wrong signatures, undefined functions or types.
`,
	spec.NotationDafny: `
## Dafny Syntax Guidelines

1. Declare functions with "function" and executable code with "method".
2. Attach contracts with "requires", "ensures", "modifies" and "decreases".
3. Use "predicate" for boolean-valued functions and "lemma" for proofs.
4. Loop bodies need "invariant" clauses strong enough to prove the postcondition.
5. Use "import" for modules and "datatype" for algebraic types.
`,
	spec.NotationCoq: `
## Coq Syntax Guidelines

1. Import libraries with "Require Import".
2. Define data with "Inductive" and functions with "Definition" or "Fixpoint".
3. State properties with "Theorem" or "Lemma" and close each proof with "Qed." or "Admitted.".
4. Every sentence ends with a period.
5. Structural recursion in "Fixpoint" must decrease on an argument.
`,
}

// Guidelines returns style guidance for a notation, or "" when none is defined.
func Guidelines(n spec.Notation) string {
	return notationGuidelines[n]
}

// DomainContext describes what matters when specifying systems in a domain.
type DomainContext struct {
	Description      string
	CommonProperties []string
	ExampleSnippets  []string
	Advice           string
}

// DomainContexts is the built-in domain guidance table.
var DomainContexts = map[spec.Domain]DomainContext{
	spec.DomainCryptography: {
		Description: "Cryptographic systems require formal verification to ensure security properties like confidentiality, integrity, and authenticity.",
		CommonProperties: []string{
			"Confidentiality: Encrypted data cannot be read by unauthorized parties",
			"Integrity: Data cannot be modified without detection",
			"Authentication: The identity of parties can be verified",
			"Non-repudiation: Actions cannot be denied by the party that performed them",
			"Forward secrecy: Compromise of long-term keys does not compromise past session keys",
		},
		ExampleSnippets: []string{
			"lemma confidentiality (m:message, k:key, c:ciphertext):\n  requires enc(m, k) = c\n  ensures forall k'. k' != k ==> dec(c, k') != m",
		},
		Advice: "Focus on proving security properties against active adversaries with defined capabilities. Consider side-channel attacks and timing vulnerabilities.",
	},
	spec.DomainDistributedSystems: {
		Description: "Distributed systems require formal verification to ensure consistency, fault tolerance, and liveness properties across multiple nodes.",
		CommonProperties: []string{
			"Safety: Bad things never happen",
			"Liveness: Good things eventually happen",
			"Fault tolerance: The system can recover from specified types of failures",
			"Consistency: All nodes eventually agree on the state",
			"Deadlock freedom: The system never reaches a state where progress is impossible",
		},
		ExampleSnippets: []string{
			"theorem consensus_safety:\n  forall n1, n2: Node, v1, v2: Value.\n  decided(n1, v1) && decided(n2, v2) => v1 = v2",
		},
		Advice: "Use temporal logic to reason about system behavior over time. Consider all possible interleavings of events across nodes.",
	},
}

// RenderDomainContext formats the guidance for d using the given table.
func RenderDomainContext(table map[spec.Domain]DomainContext, d spec.Domain) string {
	ctx, ok := table[d]
	if !ok {
		return fmt.Sprintf("Domain: %s\nNo specific guidance available for this domain.", d.Label())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Domain: %s\n", d.Label())
	fmt.Fprintf(&sb, "Description: %s\n\n", ctx.Description)
	sb.WriteString("Common properties for this domain:\n")
	for _, p := range ctx.CommonProperties {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	if len(ctx.ExampleSnippets) > 0 {
		sb.WriteString("\nExample:\n")
		for _, s := range ctx.ExampleSnippets {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "\nVerification advice: %s\n", ctx.Advice)
	return sb.String()
}
