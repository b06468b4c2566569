package util

import (
	"encoding/json"
	"strings"
	"sync"
	"text/template"
)

var (
	templateFuncs = template.FuncMap{
		"default": func(fallback, val any) any {
			if val == nil || val == "" {
				return fallback
			}

			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}

	// Instructions are rendered on every model call; parsed templates are
	// keyed by their source text.
	templateCache sync.Map
)

// RenderTemplate expands an agent instruction against session state. Keys
// are addressed as {{.key}}; {{default "x" .key}} covers absent ones and
// {{json .key}} inlines structured values.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parseTemplate(text)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, state); err != nil {
		return "", err
	}

	return sb.String(), nil
}

func parseTemplate(text string) (*template.Template, error) {
	if cached, ok := templateCache.Load(text); ok {
		return cached.(*template.Template), nil
	}

	tmpl, err := template.New("instruction").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, err
	}

	templateCache.Store(text, tmpl)

	return tmpl, nil
}
