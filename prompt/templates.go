package prompt

import "maps"

var defaultTemplates = map[string]string{
	TemplateSpecification: `You are a formal verification expert. Your task is to translate natural language requirements into
formal specifications in the {{notation}} verification language.

Given the following requirements for a {{domain}} system:

{{requirements}}

Generate a complete, formal specification in {{notation}} that captures all the
requirements and ensures correctness, safety, and security properties. Be thorough and precise.

The specification should include:
1. All necessary types and functions
2. Formal properties that must be satisfied
3. Preconditions and postconditions
4. Invariants that must be maintained
5. Security properties (if applicable)
6. Resource usage constraints (if applicable)

Additional context for this domain:
{{domain_context}}
{{language_guidelines}}`,

	TemplateRefine: `You are a formal verification expert. You need to refine a formal specification based on feedback.

Original specification in {{notation}}:
` + "```" + `
{{code}}
` + "```" + `

Feedback to address:
{{feedback}}

Please provide a revised specification that addresses the feedback while maintaining all the original
requirements. Include all necessary types, functions, and properties.`,

	TemplateTranslate: `You are a formal verification expert. Translate this {{notation}} specification to {{target_notation}}:

` + "```" + `
{{code}}
` + "```" + `

Ensure that all properties and semantics are preserved in the translation.
Format your response as a valid {{target_notation}} specification.`,

	TemplateProperties: `You are a formal verification expert. Extract formal properties from these requirements for a {{domain}} system:

{{requirements}}

For each requirement, provide:
1. The formal interpretation as a property
2. The property expressed in a mathematical notation
3. A confidence score (0-1) for your translation
Format each property as: "Requirement: [original text]\nFormal property: [interpretation]\nMathematical form: [formal notation]\nConfidence: [score]"
Separate properties with a blank line.`,

	TemplateFormalize: `You are a formal verification expert. Convert these formal properties into a complete {{notation}} specification using {{paradigm}}:

{{properties}}

Generate a complete, well-structured formal specification that captures all these properties.
Include all necessary type definitions, functions, and verification statements.
Format your response as a valid {{notation}} specification that could be directly input to the verification tool.`,

	TemplateCompleteness: `You are a formal verification expert. Check if this {{notation}} specification completely covers all requirements:

Specification:
` + "```" + `
{{code}}
` + "```" + `

Requirements:
{{requirements}}

For each requirement, indicate whether it is fully covered, partially covered, or not covered by the specification.
List any requirements that are not fully covered as "- [requirement]: not covered" or "- [requirement]: partially covered".
Finally, provide a boolean judgment: Is the specification complete (true/false)?`,

	TemplateVerificationCode: `You are a formal verification expert. Generate executable verification code for this {{notation}} specification
that can be used with {{system}}:

` + "```" + `
{{code}}
` + "```" + `

Add any necessary verification directives, proof scripts, or commands needed to verify this specification.
The result should be a complete file that can be directly verified using the appropriate tool.`,

	TemplateImport: `You are a formal verification expert. Analyze this {{notation}} specification and extract the requirements it fulfills:

` + "```" + `
{{code}}
` + "```" + `

Start a section with "Requirements:" and list each requirement that this specification addresses,
one per line prefixed with "- ", in natural language form.`,

	TemplateReviewBasic: `You are a formal verification expert. Validate the syntax of this {{notation}} specification:

` + "```" + `
{{code}}
` + "```" + `

Check for syntax errors, undefined references, and basic consistency issues.
For each issue found, provide:
1. The line number or location
2. A description of the issue
3. The severity (Error, Warning, or Info)
4. A suggested fix
Format each issue as: "Line [number]: [description] - [severity]\nSuggestion: [fix]"

After listing all issues, provide a final judgment: Is the specification syntax valid (true/false)?`,

	TemplateReviewTypeCheck: `You are a formal verification expert with deep knowledge of {{notation}} type systems.
Perform type checking on this specification:

` + "```" + `
{{code}}
` + "```" + `

Check for type errors, type inconsistencies, and type-related issues.
For each issue found, provide:
1. The line number or location
2. A description of the type error
3. The severity (Error, Warning, or Info)
4. A suggested fix
Format each issue as: "Line [number]: [description] - [severity]\nSuggestion: [fix]"

After listing all issues, provide a final judgment: Does the specification pass type checking (true/false)?`,

	TemplateReviewFormal: `You are a formal verification expert with deep knowledge of {{notation}}.
Validate whether this specification can be formally verified:

` + "```" + `
{{code}}
` + "```" + `

Check for issues that would prevent successful verification, such as:
1. Incompleteness in definitions
2. Unprovable assertions or theorems
3. Missing lemmas or auxiliary functions
4. Inconsistent axioms
For each issue found, provide:
1. The line number or location
2. A description of the verification issue
3. The severity (Error, Warning, or Info)
4. A suggested fix
Format each issue as: "Line [number]: [description] - [severity]\nSuggestion: [fix]"

After listing all issues, provide a final judgment: Can the specification be formally verified as written (true/false)?`,

	TemplateRepair: `You are a formal verification expert. Fix the following issues in this {{notation}} specification:

Original specification:
` + "```" + `
{{code}}
` + "```" + `

Issues to fix:
{{issues}}

{{specific_fixes}}
{{language_guidelines}}
Requirements:
1. Implement ALL missing functions/predicates with simple but valid implementations
2. Ensure proper {{notation}} syntax (including all keywords and braces)
3. Fix ALL identified issues
4. Return a COMPLETE specification that preserves the original functionality

Return only the corrected code, without any explanations.`,

	TemplateListTemplates: `You are a formal verification expert. Generate {{count}} template examples for {{notation}} specifications
in the {{domain}} domain. Each template should be a complete code example that can be parameterized.
For each template, provide:
1. A name describing its purpose
2. The template code
3. A list of placeholders that need to be filled in
4. A brief documentation explaining how to use the template
Format each template as: "Name: [name]\nTemplate:\n` + "```" + `\n[code]\n` + "```" + `\nPlaceholders: [list]\nDocumentation: [explanation]"
Separate templates with a blank line.`,

	TemplateApplyTemplate: `You are a formal verification expert. Apply this template to generate a formal specification for these properties:

Template: {{template_name}}

` + "```" + `
{{template_code}}
` + "```" + `

Properties:
{{properties}}

Fill in the template placeholders ({{placeholders}}) using these properties. The result should be a complete
{{notation}} specification. Return only the filled template, no explanations.`,
}

// Defaults returns a copy of the built-in templates.
func Defaults() map[string]string {
	return maps.Clone(defaultTemplates)
}
