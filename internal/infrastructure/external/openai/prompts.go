package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the leaf classification prompt and model parameters
type PromptConfig struct {
	Classification struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"classification"`
}

const defaultSystemPrompt = "You are a plant pathologist helping smallholder farmers. " +
	"You classify photos of crop leaves into a fixed set of conditions. Always respond with valid JSON."

const defaultUserTemplate = `Classify this {{.Crop}} leaf photo.

Choose exactly one label from this list:
{{range .Labels}}- {{.}}
{{end}}
Respond with ONLY a JSON object of this exact structure:
{
  "label": one of the labels above, copied exactly,
  "confidence": number between 0.0 and 1.0
}

If the photo is unclear, still pick the closest label and lower the confidence.`

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() *PromptConfig {
	p := &PromptConfig{}
	p.Classification.Temperature = 0.1
	p.Classification.MaxTokens = 300
	p.Classification.System = defaultSystemPrompt
	p.Classification.UserTemplate = defaultUserTemplate
	return p
}

// LoadPrompts loads prompt configuration from a YAML file.
// Fields left empty in the file keep their built-in values.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return prompts, nil
}

type promptData struct {
	Crop   string
	Labels []string
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
