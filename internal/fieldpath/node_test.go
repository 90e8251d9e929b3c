package fieldpath

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	n := mustParse(t, `{"s":"x","n":1.5,"b":true,"z":null,"a":[1,"two"],"o":{}}`)
	assert.Equal(t, KindObject, n.Kind())
	assert.Equal(t, []string{"s", "n", "b", "z", "a", "o"}, n.Keys())

	kinds := map[string]Kind{"s": KindString, "n": KindNumber, "b": KindBool, "z": KindNull, "a": KindArray, "o": KindObject}
	for k, want := range kinds {
		v, ok := n.Field(k)
		require.True(t, ok, k)
		assert.Equal(t, want, v.Kind(), k)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{} {}`))
	assert.Error(t, err)
}

func TestParseOutOfRangeNumber(t *testing.T) {
	n := mustParse(t, `{"big":1e400}`)
	v, _ := n.Field("big")
	f, ok := v.AsNumber()
	require.True(t, ok)
	assert.True(t, math.IsInf(f, 1))

	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `{"big":1e400}`, string(b))
}

func TestMarshalKeepsOrderAndLiterals(t *testing.T) {
	src := `{"z":1,"a":{"y":[1.10,2],"x":"s"},"m":null,"t":false}`
	n := mustParse(t, src)
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"y":[1.10,2],"x":"s"},"m":null,"t":false}`, string(b))
}

func TestUnmarshalInStruct(t *testing.T) {
	var payload struct {
		Value []*Node `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"value":[{"__id":"a"},{"__id":"b"}]}`), &payload))
	require.Len(t, payload.Value, 2)
	id, _ := payload.Value[1].Field("__id")
	s, _ := id.AsString()
	assert.Equal(t, "b", s)
}

func TestFromValue(t *testing.T) {
	n := FromValue(map[string]any{
		"G6":    map[string]any{"Q9_5": map[string]any{"coordinates": []any{79.8, 6.9}}},
		"count": 3,
		"ok":    true,
		"none":  nil,
	})
	v, ok := Resolve(n, "G6/Q9_5")
	require.True(t, ok)
	c, _ := v.Field("coordinates")
	assert.Equal(t, KindArray, c.Kind())
	assert.Equal(t, []string{"G6", "count", "none", "ok"}, n.Keys())

	_, err := json.Marshal(NewNumber(math.NaN()))
	assert.Error(t, err)
}

func TestSetOverwriteKeepsPosition(t *testing.T) {
	n := NewObject().Set("a", NewNumber(1)).Set("b", NewNumber(2)).Set("a", NewNumber(3))
	assert.Equal(t, []string{"a", "b"}, n.Keys())
	v, _ := n.Field("a")
	f, _ := v.AsNumber()
	assert.Equal(t, 3.0, f)
}
