package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/delete_rebuild.yaml")
	require.NoError(t, err)
	assert.Equal(t, "delete_rebuild", s.Name)
	assert.Equal(t, "Colors", s.Form.Title)
	assert.Equal(t, true, s.Form.Settings["allow_multiple"])
	require.Len(t, s.Steps, 6)
	assert.Equal(t, OpAdvance, s.Steps[1].Op)
	assert.Equal(t, "24h", s.Steps[1].By)
	assert.Equal(t, "r2", s.Steps[5].Ref)
	assert.Len(t, s.Assertions, 6)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\nform: {title: T}\nsteps: [{op: rebuild}]\nassertions: [{type: index_valid}]\n",
			want: "name is required",
		},
		{
			name: "missing form title",
			body: "name: n\ndescription: d\nsteps: [{op: rebuild}]\nassertions: [{type: index_valid}]\n",
			want: "form.title or form.template is required",
		},
		{
			name: "no steps",
			body: "name: n\ndescription: d\nform: {title: T}\nassertions: [{type: index_valid}]\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			body: "name: n\ndescription: d\nform: {title: T}\nsteps: [{op: explode}]\nassertions: [{type: index_valid}]\n",
			want: `unknown op "explode"`,
		},
		{
			name: "append without respondent",
			body: "name: n\ndescription: d\nform: {title: T}\nsteps: [{op: append}]\nassertions: [{type: index_valid}]\n",
			want: "respondent is required",
		},
		{
			name: "dangling delete ref",
			body: "name: n\ndescription: d\nform: {title: T}\nsteps: [{op: delete_response, ref: r9}]\nassertions: [{type: index_valid}]\n",
			want: `ref "r9" does not name an earlier append`,
		},
		{
			name: "bad duration",
			body: "name: n\ndescription: d\nform: {title: T}\nsteps: [{op: advance, by: soon}]\nassertions: [{type: index_valid}]\n",
			want: "steps[0]: by:",
		},
		{
			name: "bad date",
			body: "name: n\ndescription: d\nform: {title: T}\nsteps: [{op: rebuild}]\nassertions: [{type: by_date, date: yesterday}]\n",
			want: "assertions[0]: date:",
		},
		{
			name: "unknown assertion",
			body: "name: n\ndescription: d\nform: {title: T}\nsteps: [{op: rebuild}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "duplicate response name",
			body: "name: n\ndescription: d\nform: {title: T}\nsteps:\n  - {op: append, as: r, respondent: {type: anonymous, fingerprint: a}}\n  - {op: append, as: r, respondent: {type: anonymous, fingerprint: b}}\nassertions: [{type: index_valid}]\n",
			want: `response name "r" already used`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
