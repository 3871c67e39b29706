package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// TemplateContext — данные, доступные в шаблонах входов и условий outcomes.
//
//   - {{ .Data.order_id }}   — данные workflow
//   - {{ .Item }}            — элемент итерации указателя
//   - {{ .Workflow.ID }}     — экземпляр
//   - {{ .Step }}            — имя текущего шага
//   - {{ .Env.VAR_NAME }}    — переменные окружения
type TemplateContext struct {
	Data     any
	Item     any
	Workflow any
	Step     string
	Env      map[string]string
}

// NewTemplateContext строит контекст шаблона. ec может быть nil.
func NewTemplateContext(data any, ec *ExecutionContext) *TemplateContext {
	tc := &TemplateContext{
		Data: data,
		Env:  environ(),
	}
	if ec != nil {
		tc.Item = ec.Item
		tc.Workflow = ec.Workflow
		if ec.Step != nil {
			tc.Step = ec.Step.DisplayName()
		}
	}
	return tc
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — значение по умолчанию для nil и пустой строки
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"contains": strings.Contains,
	"lower":    strings.ToLower,
	"upper":    strings.ToUpper,
	"trim":     strings.TrimSpace,
}

// Render рендерит строковый шаблон с контекстом.
// Строка без {{ возвращается как есть.
func Render(tmpl string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	return t, nil
}

// RenderCondition рендерит и вычисляет условие.
// Пустое условие истинно.
func RenderCondition(condition string, ctx *TemplateContext) (bool, error) {
	if condition == "" {
		return true, nil
	}

	// Оборачиваем условие в if, чтобы получить bool
	tmpl := fmt.Sprintf(`{{if %s}}true{{else}}false{{end}}`, condition)

	result, err := Render(tmpl, ctx)
	if err != nil {
		return false, err
	}

	return result == "true", nil
}
