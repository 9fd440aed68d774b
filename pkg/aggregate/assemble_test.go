package aggregate

import (
	"testing"

	"github.com/Sternrassler/epoxy/pkg/client"
	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	result := Result{
		{Endpoint: "a", Outcome: client.Present(map[string]any{"email": "x"})},
		{Endpoint: "b", Outcome: client.Absent()},
		{Endpoint: "c", Outcome: client.Present(nil)},
	}

	assert.Equal(t, map[string]any{
		"a": map[string]any{"email": "x"},
		"b": "failed",
		"c": nil,
	}, Combine(result))
}

func TestCombine_LastDuplicateWins(t *testing.T) {
	result := Result{
		{Endpoint: "a", Outcome: client.Present("first")},
		{Endpoint: "a", Outcome: client.Absent()},
	}
	assert.Equal(t, map[string]any{"a": "failed"}, Combine(result))

	result[0], result[1] = result[1], result[0]
	assert.Equal(t, map[string]any{"a": "first"}, Combine(result))
}

func TestAppend(t *testing.T) {
	result := Result{
		{Endpoint: "a", Outcome: client.Present("first")},
		{Endpoint: "b", Outcome: client.Absent()},
		{Endpoint: "a", Outcome: client.Present("second")},
	}

	appended := Append(result)
	assert.Equal(t, []map[string]any{
		{"a": "first"},
		{"b": "failed"},
		{"a": "second"},
	}, appended)
	for _, entry := range appended {
		assert.Len(t, entry, 1)
	}
}

func TestAssemble_Empty(t *testing.T) {
	assert.Empty(t, Combine(nil))
	assert.NotNil(t, Append(nil))
	assert.Empty(t, Append(nil))
}
