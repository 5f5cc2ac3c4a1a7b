package draft

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/patentsearch/pkg/types"
)

// DefaultModel is the Ollama model used when a request names none
const DefaultModel = "llama3.2:3b"

// Template types
const (
	TemplateUtility  = "utility"
	TemplateSoftware = "software"
	TemplateMedical  = "medical"
)

// Description bounds in characters
const (
	MinDescriptionLength = 50
	MaxDescriptionLength = 5000
)

var knownModels = map[string]string{
	"llama3.2:1b":  "Ultra-fast (1B parameters) - Best for quick drafts",
	"llama3.2:3b":  "Fast (3B parameters) - Balanced speed/quality",
	"mistral:7b":   "Balanced (7B parameters) - Good quality",
	"codellama:7b": "Technical (7B parameters) - Best for technical content",
}

// DescribeModel returns a short description of a model name
func DescribeModel(name string) string {
	if d, ok := knownModels[name]; ok {
		return d
	}
	return "Custom model"
}

// KnownModels returns the names of the described models, sorted
func KnownModels() []string {
	names := make([]string, 0, len(knownModels))
	for name := range knownModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const utilityPrompt = `You are a patent attorney drafting a utility patent application. Based on this invention description: "%s"

Generate a complete patent application draft including:

1. TITLE OF THE INVENTION
   [Generate a clear, descriptive title]

2. ABSTRACT
   [Summarize the invention in a single paragraph]

3. FIELD OF THE INVENTION
   [Describe the technical field this invention relates to]

4. BACKGROUND OF THE INVENTION
   [Describe the problem this invention solves and prior art limitations]

5. SUMMARY OF THE INVENTION
   [Provide a clear summary of the invention and its advantages]

6. DETAILED DESCRIPTION OF THE INVENTION
   [Provide detailed technical description of the invention]

7. CLAIMS
   [Generate at least 3 independent claims and 2-3 dependent claims]

Use formal patent language and proper structure. Be specific and technical.
`

const sectionList = `1. TITLE OF THE INVENTION
2. ABSTRACT
3. FIELD OF THE INVENTION
4. BACKGROUND OF THE INVENTION
5. SUMMARY OF THE INVENTION
6. DETAILED DESCRIPTION OF THE INVENTION
7. CLAIMS
`

var templates = map[string]string{
	TemplateUtility: utilityPrompt,
	TemplateSoftware: `You are a patent attorney specializing in software patents. Based on this software invention: "%s"

Generate a software patent application draft including:

` + sectionList + `
Focus on the technical implementation, algorithms, and system architecture. Avoid abstract ideas and focus on concrete technical solutions.
`,
	TemplateMedical: `You are a patent attorney specializing in medical device patents. Based on this medical invention: "%s"

Generate a medical device patent application draft including:

` + sectionList + `
Focus on medical applications, safety considerations, and regulatory compliance.
`,
}

// TemplateTypes lists the supported template names
func TemplateTypes() []string {
	return []string{TemplateUtility, TemplateSoftware, TemplateMedical}
}

// Prompt renders the prompt for templateType. Unknown types use the utility template.
func Prompt(description, templateType string) string {
	tmpl, ok := templates[templateType]
	if !ok {
		tmpl = templates[TemplateUtility]
	}
	return fmt.Sprintf(tmpl, description)
}

// ValidateDescription checks the invention description length.
// The minimum applies to the trimmed text, the maximum to the raw text.
func ValidateDescription(description string) error {
	trimmed := strings.TrimSpace(description)
	switch {
	case trimmed == "":
		return types.NewValidationError("description", "Description cannot be empty")
	case len(trimmed) < MinDescriptionLength:
		return types.NewValidationError("description",
			fmt.Sprintf("Description too short (minimum %d characters)", MinDescriptionLength))
	case len(description) > MaxDescriptionLength:
		return types.NewValidationError("description",
			fmt.Sprintf("Description too long (maximum %d characters)", MaxDescriptionLength))
	}
	return nil
}
