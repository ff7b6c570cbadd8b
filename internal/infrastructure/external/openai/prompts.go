package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the prompts and model parameters used by the letter drafter
type PromptConfig struct {
	LetterDraft struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"letter_draft"`
}

const defaultPrompts = `
letter_draft:
  temperature: 0.2
  max_tokens: 900
  system: >-
    You are an HR letter writer for an Indian company. Write formal, warm and concise
    increment or promotion letters in plain text. Never invent figures that are not given.
  user_template: |-
    Write a {{.Kind}} letter from {{.CompanyName}} to employee {{.EmployeeID}}.
    Current annual CTC: INR {{.CurrentCTC}}
    Revised annual CTC: INR {{.ProposedCTC}}
    {{- if .NewDesignation}}
    New designation: {{.NewDesignation}}
    {{- end}}
    Effective from: {{.EffectiveDate}}
    {{- if .Justification}}
    Reason for the revision: {{.Justification}}
    {{- end}}
    Return only the letter body.
`

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() *PromptConfig {
	var prompts PromptConfig
	if err := yaml.Unmarshal([]byte(defaultPrompts), &prompts); err != nil {
		panic(fmt.Sprintf("invalid built-in prompts: %v", err))
	}
	return &prompts
}

// LoadPrompts loads prompt configuration from a YAML file over the built-in defaults
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
