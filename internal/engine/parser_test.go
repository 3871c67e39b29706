package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notifyYAML = `
id: notify
version: 2
tenant_id: acme
description: notify customer
error_behavior: suspend
retry_interval: 30s
steps:
  - id: 0
    name: prepare
    type: transform
    inputs:
      Name: {data: customer}
      Count: {const: 3}
      Result: {template: "hi {{ .Data.customer }}"}
    outputs:
      greeting: Result
    outcomes:
      - next: 1
        condition: "eq .Data.vip true"
      - next: 2
        value: skip
        label: skipped
  - id: 1
    type: foreach
    children: [3]
    inputs:
      Items: {data: items}
  - id: 2
    type: delay
    error_behavior: terminate
    retry_interval: 5s
  - id: 3
    type: transform
    inputs:
      Name: {item: true}
`

func TestParseDefinition_YAML(t *testing.T) {
	def, err := ParseDefinition([]byte(notifyYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "notify", def.ID)
	assert.Equal(t, 2, def.Version)
	assert.Equal(t, "acme", def.TenantID)
	assert.Equal(t, ErrorBehaviorSuspend, def.DefaultErrorBehavior)
	assert.Equal(t, 30*time.Second, def.DefaultErrorRetryInterval)
	assert.Equal(t, map[string]any{}, def.NewData())
	require.Len(t, def.Steps, 4)

	prepare := def.Steps[0]
	assert.Equal(t, "prepare", prepare.Name)
	assert.Equal(t, "transform", prepare.BodyType)
	require.Len(t, prepare.Outcomes, 2)
	assert.Equal(t, Outcome{NextStep: 1, Condition: "eq .Data.vip true"}, prepare.Outcomes[0])
	assert.Equal(t, Outcome{NextStep: 2, Value: "skip", Label: "skipped"}, prepare.Outcomes[1])

	body := &sampleBody{}
	data := map[string]any{"customer": "ann"}
	require.NoError(t, BindInputs(body, prepare.Inputs, data, &ExecutionContext{}))
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, "ann", body.Name)
	assert.Equal(t, "hi ann", body.Result)

	require.Len(t, prepare.Outputs, 1)
	require.NoError(t, BindOutputs(body, prepare.Outputs, data))
	assert.Equal(t, "hi ann", data["greeting"])

	assert.Equal(t, []int{3}, def.Steps[1].Children)

	delay := def.Steps[2]
	assert.Equal(t, ErrorBehaviorTerminate, delay.ErrorBehavior)
	assert.Equal(t, 5*time.Second, delay.RetryInterval)

	item := &sampleBody{}
	require.NoError(t, BindInputs(item, def.Steps[3].Inputs, data, &ExecutionContext{Item: "x"}))
	assert.Equal(t, "x", item.Name)
}

func TestParseDefinition_JSON(t *testing.T) {
	raw := `{"id": "ping", "steps": [{"id": 0, "type": "http", "inputs": {"Name": {"const": "GET"}}}]}`

	def, err := ParseDefinition([]byte(raw), func(typ string) bool { return typ == "http" })
	require.NoError(t, err)
	assert.Equal(t, "ping", def.ID)
	assert.Equal(t, 0, def.Version)
	require.Len(t, def.Steps, 1)
	assert.Equal(t, ErrorBehavior(""), def.Steps[0].ErrorBehavior)
}

func TestParseDefinition_Errors(t *testing.T) {
	known := func(typ string) bool { return typ == "delay" || typ == "when" }

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"no steps", "id: x", ErrEmptySteps},
		{"no id", "steps: [{id: 0, type: delay}]", ErrEmptyDefinitionID},
		{"no type", "id: x\nsteps: [{id: 0}]", ErrMissingBody},
		{"unknown type", "id: x\nsteps: [{id: 0, type: fax}]", ErrUnknownStepType},
		{"missing next", "id: x\nsteps: [{id: 0, type: delay, outcomes: [{next: 5}]}]", ErrMissingStep},
		{
			name:    "child cycle",
			raw:     "id: x\nsteps: [{id: 0, type: delay, outcomes: [{next: 1}]}, {id: 1, type: when, children: [2]}, {id: 2, type: when, children: [1]}]",
			wantErr: ErrChildCycle,
		},
		{"two sources", "id: x\nsteps: [{id: 0, type: delay, inputs: {Period: {const: 1, data: p}}}]", errInputSource},
		{"no source", "id: x\nsteps: [{id: 0, type: delay, inputs: {Period: {}}}]", errInputSource},
		{"bad template", "id: x\nsteps: [{id: 0, type: delay, inputs: {Name: {template: '{{ .Data.'}}}]", ErrTemplateParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.raw), known)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseDefinition_BadErrorBehavior(t *testing.T) {
	_, err := ParseDefinition([]byte("id: x\nerror_behavior: explode\nsteps: [{id: 0, type: delay}]"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown error behavior")

	_, err = ParseDefinition([]byte("id: x\nsteps: [{id: 0, type: delay, error_behavior: nope}]"), nil)
	assert.Error(t, err)
}

func TestParseDefinition_InvalidYAML(t *testing.T) {
	_, err := ParseDefinition([]byte("id: [unterminated"), nil)
	assert.Error(t, err)
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	write("b.yml", "id: second\nsteps: [{id: 0, type: delay}]")
	write("a.json", `{"id": "first", "steps": [{"id": 0, "type": "delay"}]}`)
	write("notes.txt", "not a definition")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o700))

	defs, err := LoadDefinitions(dir, nil)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "first", defs[0].ID)
	assert.Equal(t, "second", defs[1].ID)

	write("c.yaml", "id: broken")
	_, err = LoadDefinitions(dir, nil)
	require.ErrorIs(t, err, ErrEmptySteps)
	assert.Contains(t, err.Error(), "c.yaml")

	_, err = LoadDefinitions(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}
