package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleBody struct {
	Count   int
	Name    string
	Ratio   float64
	Enabled bool
	Items   []any
	Result  string
}

func (b *sampleBody) Run(context.Context, *ExecutionContext) (*ExecutionResult, error) {
	return Next(), nil
}

type orderData struct {
	Total  float64
	Status string
	Meta   map[string]any
}

func TestBindInputs_Coercion(t *testing.T) {
	body := &sampleBody{}
	data := map[string]any{
		"count":   "42",
		"name":    7,
		"ratio":   3,
		"enabled": "true",
		"items":   []string{"a", "b"},
	}

	inputs := []Input{
		FromData("Count", "count"),
		FromData("Name", "name"),
		FromData("Ratio", "ratio"),
		FromData("Enabled", "enabled"),
		FromData("Items", "items"),
	}

	require.NoError(t, BindInputs(body, inputs, data, &ExecutionContext{}))
	assert.Equal(t, 42, body.Count)
	assert.Equal(t, "7", body.Name)
	assert.Equal(t, 3.0, body.Ratio)
	assert.True(t, body.Enabled)
	assert.Equal(t, []any{"a", "b"}, body.Items)
}

func TestBindInputs_FromItemAndTemplate(t *testing.T) {
	body := &sampleBody{}
	ec := &ExecutionContext{Item: 5}
	data := map[string]any{"customer": "ann"}

	inputs := []Input{
		FromItem("Count"),
		FromTemplate("Name", "hello {{ .Data.customer | upper }}"),
	}

	require.NoError(t, BindInputs(body, inputs, data, ec))
	assert.Equal(t, 5, body.Count)
	assert.Equal(t, "hello ANN", body.Name)
}

func TestBindInputs_UnknownField(t *testing.T) {
	err := BindInputs(&sampleBody{}, []Input{Const("Missing", 1)}, nil, &ExecutionContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBinding)
}

func TestBindInputs_Unconvertible(t *testing.T) {
	err := BindInputs(&sampleBody{}, []Input{Const("Count", "not a number")}, nil, &ExecutionContext{})
	assert.ErrorIs(t, err, ErrBinding)
}

func TestBindOutputs_MapAndStruct(t *testing.T) {
	body := &sampleBody{Result: "done", Count: 3}

	m := map[string]any{}
	require.NoError(t, BindOutputs(body, []Output{
		ToData("result", "Result"),
		ToData("stats.count", "Count"),
	}, m))
	assert.Equal(t, "done", m["result"])
	assert.Equal(t, map[string]any{"count": 3}, m["stats"])

	s := &orderData{}
	require.NoError(t, BindOutputs(body, []Output{
		ToData("Status", "Result"),
		ToData("Total", "Count"),
		ToData("Meta.source", "Result"),
	}, s))
	assert.Equal(t, "done", s.Status)
	assert.Equal(t, 3.0, s.Total)
	assert.Equal(t, "done", s.Meta["source"])
}

func TestGetPath(t *testing.T) {
	data := map[string]any{
		"order": map[string]any{"id": "o-1"},
	}

	v, err := GetPath(data, "order.id")
	require.NoError(t, err)
	assert.Equal(t, "o-1", v)

	v, err = GetPath(data, "order.missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = GetPath(&orderData{}, "Nope")
	assert.Error(t, err)
}

func TestCoerce_Nil(t *testing.T) {
	v, err := Coerce(nil, reflect.TypeOf(0))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Interface())
}

func TestCoerce_Map(t *testing.T) {
	v, err := Coerce(map[string]any{"a": "x", "n": 1}, reflect.TypeOf(map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "x", "n": "1"}, v.Interface())

	_, err = Coerce(map[string]any{"n": "nan"}, reflect.TypeOf(map[string]int{}))
	assert.Error(t, err)
}

type boxed struct{ V any }

func TestOutcomeEquals(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same bool", true, true, true},
		{"bool vs string", true, "true", true},
		{"int vs float", 1, 1.0, true},
		{"different", "yes", "no", false},
		{"nil vs value", nil, "x", false},
		{"both nil", nil, nil, true},
		{"slices by string form", []int{1}, []int{1}, true},
		{"struct with slice in interface", boxed{V: []int{1}}, boxed{V: []int{1}}, true},
		{"struct with different slices", boxed{V: []int{1}}, boxed{V: []int{2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, OutcomeEquals(tt.a, tt.b))
			})
		})
	}
}
