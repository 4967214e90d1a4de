package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleParams struct {
	Task     string   `json:"task" description:"the task"`
	Strategy string   `json:"strategy,omitempty" enum:"auto,fan-out,pipeline"`
	Agents   []string `json:"agents,omitempty"`
	Limit    *int     `json:"limit"`
}

func TestCreateSchema(t *testing.T) {
	s := CreateSchema(sampleParams{})
	props := s["properties"].(map[string]any)

	assert.Equal(t, []string{"task"}, s["required"])
	assert.Equal(t, "the task", props["task"].(map[string]any)["description"])
	assert.Equal(t, []any{"auto", "fan-out", "pipeline"}, props["strategy"].(map[string]any)["enum"])
	assert.Equal(t, map[string]any{"type": "string"}, props["agents"].(map[string]any)["items"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
}

func TestValidateParameters(t *testing.T) {
	s := CreateSchema(sampleParams{})

	require.NoError(t, ValidateParameters(map[string]any{"task": "x", "agents": []any{"a"}}, s))

	err := ValidateParameters(map[string]any{}, s)
	require.Error(t, err)
	assert.Equal(t, "task", err.(*ValidationError).Field)

	err = ValidateParameters(map[string]any{"task": "x", "strategy": "round-robin"}, s)
	require.Error(t, err)
	assert.Equal(t, "strategy", err.(*ValidationError).Field)

	err = ValidateParameters(map[string]any{"task": "x", "agents": []any{"a", 1.0}}, s)
	require.Error(t, err)
	assert.Equal(t, "agents[1]", err.(*ValidationError).Field)

	err = ValidateParameters(map[string]any{"task": 42}, s)
	require.Error(t, err)
}

func TestExecuteTemplate(t *testing.T) {
	tmpl := MustTemplate("t", `{{join ", " .Items}} <{{upper .Name}}> {{default "none" .Mode}}`)

	out, err := Execute(tmpl, map[string]any{"Items": []string{"a", "b"}, "Name": "x", "Mode": ""})
	require.NoError(t, err)
	assert.Equal(t, "a, b <X> none", out, "text/template must not escape")

	assert.Panics(t, func() { MustTemplate("bad", "{{") })
}
