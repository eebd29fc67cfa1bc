package research

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt names.
const (
	promptExtractProfessor = "extract_professor"
	promptExtractPaper     = "extract_paper"
	promptDedupPaper       = "dedup_paper"
	promptConfirmPapers    = "confirm_papers"
)

var requiredPrompts = []string{
	promptExtractProfessor,
	promptExtractPaper,
	promptDedupPaper,
	promptConfirmPapers,
}

// Prompts holds the system prompt and the compiled step templates.
type Prompts struct {
	System    string
	templates map[string]*template.Template
}

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() *Prompts {
	p, err := ParsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("built-in prompts: %v", err))
	}
	return p
}

// LoadPrompts reads a prompt YAML file. Entries it leaves out fall back to
// the built-in prompts.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var base, override map[string]string
	if err := yaml.Unmarshal(defaultPrompts, &base); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("prompts %s: %w", path, err)
	}
	for k, v := range override {
		base[k] = v
	}
	return compilePrompts(base)
}

// ParsePrompts compiles a complete prompt YAML document.
func ParsePrompts(data []byte) (*Prompts, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	return compilePrompts(raw)
}

func compilePrompts(raw map[string]string) (*Prompts, error) {
	p := &Prompts{
		System:    strings.TrimSpace(raw["system"]),
		templates: make(map[string]*template.Template, len(requiredPrompts)),
	}
	for _, name := range requiredPrompts {
		text, ok := raw[name]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt %q is missing", name)
		}
		t, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

func (p *Prompts) render(name string, data any) (string, error) {
	t, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt %q is not defined", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

type professorPrompt struct {
	School     string
	Department string
	Content    string
}

type paperPrompt struct {
	School     string
	Department string
	Professor  string
	Content    string
}

type confirmPrompt struct {
	School     string
	Department string
	Professor  string
	Papers     string
}
