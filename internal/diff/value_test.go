package diff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse([]byte(`{"a": [1, 2.5, "x", null, true]}`))
	require.NoError(t, err)

	obj, ok := v.(map[string]any)
	require.True(t, ok)
	arr, ok := obj["a"].([]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), arr[0])
	assert.Equal(t, json.Number("2.5"), arr[1])
	assert.Equal(t, "x", arr[2])
	assert.Nil(t, arr[3])
	assert.Equal(t, true, arr[4])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ``},
		{name: "truncated", doc: `{"a": `},
		{name: "bare word", doc: `not json`},
		{name: "trailing document", doc: `{} {}`},
		{name: "trailing garbage", doc: `[1] x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidJSON)
		})
	}
}

func TestParse_AllowsSurroundingWhitespace(t *testing.T) {
	v, err := Parse([]byte("\n  [1]\n\t"))
	require.NoError(t, err)
	assert.Len(t, v, 1)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "string is raw", doc: `"hello \"world\""`, want: `hello "world"`},
		{name: "null", doc: `null`, want: "null"},
		{name: "true", doc: `true`, want: "true"},
		{name: "false", doc: `false`, want: "false"},
		{name: "integer", doc: `42`, want: "42"},
		{name: "negative integer", doc: `-7`, want: "-7"},
		{name: "large unsigned", doc: `18446744073709551615`, want: "18446744073709551615"},
		{name: "float", doc: `3.14`, want: "3.14"},
		{name: "integral float", doc: `1.0`, want: "1.0"},
		{name: "exponent", doc: `1e2`, want: "100.0"},
		{name: "empty array", doc: `[]`, want: "[]"},
		{name: "empty object", doc: `{}`, want: "{}"},
		{name: "sorted keys", doc: `{"b": 1, "a": {"d": [1, "x"], "c": null}}`, want: `{"a":{"c":null,"d":[1,"x"]},"b":1}`},
		{name: "no html escaping", doc: `{"url": "https://x.io/?a=1&b=<2>"}`, want: `{"url":"https://x.io/?a=1&b=<2>"}`},
		{name: "escaped string in container", doc: `["line\nbreak"]`, want: `["line\nbreak"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(mustParse(t, tt.doc)))
		})
	}
}

func TestRender_ContainerIsIdempotent(t *testing.T) {
	docs := []string{
		`{"z": [1, 2.5, {"k": "v"}], "a": null}`,
		`[{"id": "x", "tags": ["a", "b"]}, 1.0, -3]`,
	}

	for _, doc := range docs {
		first := Render(mustParse(t, doc))
		second := Render(mustParse(t, first))
		assert.Equal(t, first, second)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(mustParse(t, `{"a": [1, {"b": null}]}`), mustParse(t, `{"a": [1, {"b": null}]}`)))
	assert.True(t, Equal(mustParse(t, `0.1`), mustParse(t, `1e-1`)))
	assert.True(t, Equal(nil, nil))

	assert.False(t, Equal(mustParse(t, `1`), mustParse(t, `1.0`)))
	assert.False(t, Equal(mustParse(t, `"1"`), mustParse(t, `1`)))
	assert.False(t, Equal(mustParse(t, `[1, 2]`), mustParse(t, `[2, 1]`)))
	assert.False(t, Equal(mustParse(t, `{"a": 1}`), mustParse(t, `{"b": 1}`)))
	assert.False(t, Equal(mustParse(t, `{"a": null}`), mustParse(t, `{}`)))
	assert.False(t, Equal(nil, false))
}

func TestDepth(t *testing.T) {
	tests := []struct {
		doc  string
		want int
	}{
		{doc: `1`, want: 0},
		{doc: `"s"`, want: 0},
		{doc: `[]`, want: 1},
		{doc: `{}`, want: 1},
		{doc: `{"a": [1, {"b": {}}]}`, want: 4},
		{doc: `[[[[]]], 1]`, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			assert.Equal(t, tt.want, Depth(mustParse(t, tt.doc)))
		})
	}
}

func TestCanonical(t *testing.T) {
	v := mustParse(t, `{"b": "x<y", "a": [1, true, null]}`)
	assert.Equal(t, `{"a":[1,true,null],"b":"x<y"}`, Canonical(v))
	assert.Equal(t, `"plain"`, Canonical("plain"))
}
