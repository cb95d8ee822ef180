package answer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"string", `"yes"`, String("yes")},
		{"integer", `5`, Number(5)},
		{"fraction", `4.5`, Number(4.5)},
		{"bool", `true`, Bool(true)},
		{"null", `null`, Null{}},
		{"list", `["x","y"]`, List{String("x"), String("y")}},
		{"mixed list", `["x",1,false]`, List{String("x"), Number(1), Bool(false)}},
		{"empty list", `[]`, List{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestParse_RejectsObjectsAndNestedLists(t *testing.T) {
	_, err := Parse([]byte(`{"a":1}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`[["a"]]`))
	assert.Error(t, err)
}

func TestMarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"nil", nil, "null"},
		{"string", String("a<b>&c"), `"a<b>&c"`},
		{"unicode", String("h\u00e9llo"), "\"h\u00e9llo\""},
		{"integral number", Number(10), "10"},
		{"fraction", Number(2.25), "2.25"},
		{"list", List{String("x"), Number(3)}, `["x",3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(b))
		})
	}
}

func TestAnswers_JSON(t *testing.T) {
	var a Answers
	require.NoError(t, json.Unmarshal([]byte(`{"q2":["x"],"q1":"5"}`), &a))
	assert.Equal(t, Answers{"q1": String("5"), "q2": List{String("x")}}, a)

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"q1":"5","q2":["x"]}`, string(b))
}

func TestFlatten(t *testing.T) {
	assert.Nil(t, Flatten(nil))
	assert.Nil(t, Flatten(Null{}))
	assert.Equal(t, []Value{String("a")}, Flatten(String("a")))
	assert.Equal(t, []Value{String("y"), String("y")}, Flatten(List{String("y"), String("y")}))
	assert.Equal(t, []Value{String("x")}, Flatten(List{String("x"), Null{}}))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "5", Key(Number(5)))
	assert.Equal(t, "4.5", Key(Number(4.5)))
	assert.Equal(t, "true", Key(Bool(true)))
	assert.Equal(t, "yes", Key(String("yes")))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(Null{}))
	assert.True(t, IsEmpty(String("")))
	assert.True(t, IsEmpty(List{}))
	assert.False(t, IsEmpty(String(" ")))
	assert.False(t, IsEmpty(Number(0)))
	assert.False(t, IsEmpty(Bool(false)))
}

func TestAsNumber(t *testing.T) {
	n, ok := AsNumber(String(" 12.5 "))
	assert.True(t, ok)
	assert.Equal(t, 12.5, n)

	_, ok = AsNumber(String("twelve"))
	assert.False(t, ok)

	_, ok = AsNumber(List{Number(1)})
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(String("yes"), String("yes")))
	assert.False(t, Equal(String("yes"), String("no")))
	assert.True(t, Equal(String("5"), Number(5)))
	assert.True(t, Equal(Number(5), Number(5.0)))
	assert.False(t, Equal(String("5"), String("5.0")))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.False(t, Equal(Bool(true), String("true")))
	assert.True(t, Equal(List{String("a")}, List{String("a")}))
	assert.False(t, Equal(List{String("a")}, String("a")))
	assert.True(t, Equal(nil, Null{}))
}

func TestFromAny_YAMLShapes(t *testing.T) {
	v, err := FromAny([]any{"x", 2})
	require.NoError(t, err)
	assert.Equal(t, List{String("x"), Number(2)}, v)

	_, err = FromAny(map[string]any{"a": 1})
	assert.Error(t, err)
}
