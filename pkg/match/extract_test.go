package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFieldDotPath(t *testing.T) {
	obj := map[string]any{
		"result": map[string]any{
			"tools": []any{
				map[string]any{"name": "echo"},
				map[string]any{"name": "add"},
			},
		},
	}

	v, ok := ExtractField(obj, "result.tools[0].name")
	assert.True(t, ok)
	assert.Equal(t, "echo", v)

	v, ok = ExtractField(obj, "result.tools[1].name")
	assert.True(t, ok)
	assert.Equal(t, "add", v)

	_, ok = ExtractField(obj, "result.tools[5].name")
	assert.False(t, ok)

	_, ok = ExtractField(obj, "result.missing")
	assert.False(t, ok)
}

func TestExtractFieldWildcard(t *testing.T) {
	obj := map[string]any{
		"tools": []any{
			map[string]any{"name": "echo"},
			map[string]any{"name": "add"},
			map[string]any{"name": "ping"},
		},
	}

	v, ok := ExtractField(obj, "tools[*].name")
	assert.True(t, ok)
	assert.Equal(t, []any{"echo", "add", "ping"}, v)
}

func TestExtractFieldWildcardEmptyArray(t *testing.T) {
	obj := map[string]any{"tools": []any{}}
	v, ok := ExtractField(obj, "tools[*].name")
	assert.True(t, ok)
	assert.Equal(t, []any{}, v)
}

func TestExtractFieldEmptyPathReturnsRoot(t *testing.T) {
	obj := map[string]any{"a": 1.0}
	v, ok := ExtractField(obj, "")
	assert.True(t, ok)
	assert.Equal(t, obj, v)
}

func TestExtractFieldThroughWrongType(t *testing.T) {
	obj := map[string]any{"name": "not-an-object"}
	_, ok := ExtractField(obj, "name.nested")
	assert.False(t, ok)
}
