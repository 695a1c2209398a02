package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var embeddedTemplates []byte

type templateFile struct {
	Fallback   string `yaml:"fallback"`
	Objectives map[string]struct {
		Title  string `yaml:"title"`
		Prompt string `yaml:"prompt"`
	} `yaml:"objectives"`
}

// Templates maps objective ids to base instruction templates.
type Templates struct {
	prompts  map[string]string
	fallback string
}

// LoadTemplates reads a template table from path. An empty path selects the
// built-in table.
func LoadTemplates(path string) (*Templates, error) {
	if path == "" {
		return ParseTemplates(embeddedTemplates)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt templates: %w", err)
	}
	return ParseTemplates(data)
}

// ParseTemplates parses a YAML template table.
func ParseTemplates(data []byte) (*Templates, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	if len(f.Objectives) == 0 {
		return nil, fmt.Errorf("parse prompt templates: no objectives defined")
	}

	t := &Templates{prompts: make(map[string]string, len(f.Objectives))}
	for id, o := range f.Objectives {
		t.prompts[id] = strings.TrimSpace(o.Prompt)
	}

	fb, ok := t.prompts[f.Fallback]
	if !ok {
		return nil, fmt.Errorf("parse prompt templates: fallback %q not defined", f.Fallback)
	}
	t.fallback = fb
	return t, nil
}

// DefaultTemplates returns the built-in template table.
func DefaultTemplates() *Templates {
	t, err := ParseTemplates(embeddedTemplates)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve returns the template for an objective, or the fallback when the id
// is empty or unknown.
func (t *Templates) Resolve(objectiveID string) string {
	if p, ok := t.prompts[objectiveID]; ok && p != "" {
		return p
	}
	return t.fallback
}
