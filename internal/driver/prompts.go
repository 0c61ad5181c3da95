package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/afero"
)

// Template file names looked up in the template directory.
const (
	SpecTemplate  = "spec.md"
	PlanTemplate  = "plan.md"
	BuildTemplate = "build.md"
)

// PromptData is passed to every prompt template.
type PromptData struct {
	Goal           string
	SpecPath       string
	PlanPath       string
	ProgressPath   string
	Task           string
	Iteration      int
	CompletedTasks []string
}

// DefaultTemplates are used when the template directory has no override.
var DefaultTemplates = map[string]string{
	SpecTemplate: `Write a specification for the following goal to {{.SpecPath}}.

Goal: {{.Goal}}
`,
	PlanTemplate: `Read {{.SpecPath}} and write an implementation plan to {{.PlanPath}}.

Use one markdown checkbox per task ("- [ ] ..."), in the order they should be built.
Keep each task small enough to finish in a single session.
`,
	BuildTemplate: `Implement the next task from {{.PlanPath}}:

{{.Task}}

When it is done and verified, check it off in {{.PlanPath}}.
{{- if .CompletedTasks}}

Already completed:
{{range .CompletedTasks}}- {{.}}
{{end}}{{end}}
`,
}

// loadTemplate returns the override in dir when present and the built-in
// template otherwise.
func loadTemplate(fs afero.Fs, dir, name string) (string, error) {
	if dir != "" {
		data, err := afero.ReadFile(fs, filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read template %s: %w", name, err)
		}
	}
	text, ok := DefaultTemplates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s", name)
	}
	return text, nil
}

// renderPrompt executes the named template with data.
func renderPrompt(fs afero.Fs, dir, name string, data PromptData) (string, error) {
	text, err := loadTemplate(fs, dir, name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
