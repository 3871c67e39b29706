package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefinitionSpec — декларативное описание определения в YAML или JSON.
//
// Пример:
//
//	id: notify
//	version: 1
//	steps:
//	  - id: 0
//	    type: transform
//	    inputs:
//	      Mappings: {const: {text: "hi {{ .Data.name }}"}}
//	    outputs:
//	      text: Result.text
//	    outcomes: [{next: 1}]
//	  - id: 1
//	    type: delay
//	    inputs:
//	      DurationSec: {const: 5}
type DefinitionSpec struct {
	ID            string        `yaml:"id"`
	Version       int           `yaml:"version"`
	TenantID      string        `yaml:"tenant_id"`
	Description   string        `yaml:"description"`
	ErrorBehavior string        `yaml:"error_behavior"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Steps         []StepSpec    `yaml:"steps"`
}

// StepSpec — декларативное описание шага.
type StepSpec struct {
	ID       int                  `yaml:"id"`
	Name     string               `yaml:"name"`
	Type     string               `yaml:"type"`
	Children []int                `yaml:"children"`
	Outcomes []OutcomeSpec        `yaml:"outcomes"`
	Inputs   map[string]InputSpec `yaml:"inputs"`

	// Outputs — путь в данных → поле тела.
	Outputs map[string]string `yaml:"outputs"`

	ErrorBehavior string        `yaml:"error_behavior"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// OutcomeSpec — декларативный переход.
type OutcomeSpec struct {
	Next      int    `yaml:"next"`
	Label     string `yaml:"label"`
	Value     any    `yaml:"value"`
	Condition string `yaml:"condition"`
}

// InputSpec — источник значения входа. Задаётся ровно одно поле.
type InputSpec struct {
	Const    any    `yaml:"const"`
	Data     string `yaml:"data"`
	Template string `yaml:"template"`
	Item     bool   `yaml:"item"`
}

// ParseDefinition разбирает определение из YAML или JSON и валидирует его.
// knownType проверяет BodyType шагов; nil — проверка пропускается.
func ParseDefinition(raw []byte, knownType func(string) bool) (*Definition, error) {
	var spec DefinitionSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	return spec.Build(knownType)
}

// LoadDefinitions загружает все *.yaml, *.yml и *.json из каталога.
// Файлы читаются в лексикографическом порядке.
func LoadDefinitions(dir string, knownType func(string) bool) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}

	var defs []*Definition
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		def, err := ParseDefinition(raw, knownType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func isDefinitionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Build собирает Definition из описания.
// Данные экземпляров таких определений — map[string]any.
func (s *DefinitionSpec) Build(knownType func(string) bool) (*Definition, error) {
	behavior, err := parseErrorBehavior(s.ErrorBehavior)
	if err != nil {
		return nil, NewValidationError(-1, "error_behavior", err.Error(), err)
	}

	def := &Definition{
		ID:                        s.ID,
		Version:                   s.Version,
		TenantID:                  s.TenantID,
		Description:               s.Description,
		NewData:                   func() any { return map[string]any{} },
		DefaultErrorBehavior:      behavior,
		DefaultErrorRetryInterval: s.RetryInterval,
	}

	for i := range s.Steps {
		step, err := s.Steps[i].build(knownType)
		if err != nil {
			return nil, err
		}
		def.Steps = append(def.Steps, step)
	}

	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *StepSpec) build(knownType func(string) bool) (*Step, error) {
	if s.Type == "" {
		return nil, NewValidationError(s.ID, "type", "step has no type", ErrMissingBody)
	}
	if knownType != nil && !knownType(s.Type) {
		return nil, NewValidationError(s.ID, "type",
			fmt.Sprintf("unknown step type: %s", s.Type), ErrUnknownStepType)
	}

	behavior, err := parseErrorBehavior(s.ErrorBehavior)
	if err != nil {
		return nil, NewValidationError(s.ID, "error_behavior", err.Error(), err)
	}

	step := &Step{
		ID:            s.ID,
		Name:          s.Name,
		BodyType:      s.Type,
		Children:      s.Children,
		ErrorBehavior: behavior,
		RetryInterval: s.RetryInterval,
	}

	for _, o := range s.Outcomes {
		step.Outcomes = append(step.Outcomes, Outcome{
			NextStep:  o.Next,
			Label:     o.Label,
			Value:     o.Value,
			Condition: o.Condition,
		})
	}

	for _, field := range sortedKeys(s.Inputs) {
		in, err := s.Inputs[field].input(field)
		if err != nil {
			return nil, NewValidationError(s.ID, "inputs", err.Error(), err)
		}
		step.Inputs = append(step.Inputs, in)
	}

	for _, target := range sortedKeys(s.Outputs) {
		step.Outputs = append(step.Outputs, ToData(target, s.Outputs[target]))
	}

	return step, nil
}

var errInputSource = errors.New("input needs exactly one of const, data, template, item")

func (in InputSpec) input(field string) (Input, error) {
	var sources int
	for _, set := range []bool{in.Const != nil, in.Data != "", in.Template != "", in.Item} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return Input{}, fmt.Errorf("%s: %w", field, errInputSource)
	}

	switch {
	case in.Data != "":
		return FromData(field, in.Data), nil
	case in.Template != "":
		if _, err := parseTemplate(in.Template); err != nil {
			return Input{}, fmt.Errorf("%s: %w", field, err)
		}
		return FromTemplate(field, in.Template), nil
	case in.Item:
		return FromItem(field), nil
	default:
		return Const(field, in.Const), nil
	}
}

func parseErrorBehavior(s string) (ErrorBehavior, error) {
	switch b := ErrorBehavior(strings.ToUpper(s)); b {
	case "":
		return "", nil
	case ErrorBehaviorRetry, ErrorBehaviorSuspend, ErrorBehaviorTerminate:
		return b, nil
	}
	return "", fmt.Errorf("unknown error behavior: %q", s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
