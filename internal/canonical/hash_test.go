package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	// SHA-256 of the empty array "[]".
	assert.Equal(t, "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945", Sum([]byte("[]")))
}

func TestDigestIgnoresKeyOrderAndWhitespace(t *testing.T) {
	d1, err := Digest(map[string]any{"a": 1, "b": []any{"x"}})
	require.NoError(t, err)

	var d2 string
	tree, err := Transform([]byte(`{"b": ["x"], "a": 1}`))
	require.NoError(t, err)
	d2 = Sum(tree)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestDigestChangesWithContent(t *testing.T) {
	d1, err := Digest([]any{"a"})
	require.NoError(t, err)
	d2, err := Digest([]any{"b"})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestHashWithDomain(t *testing.T) {
	h1 := HashWithDomain(DomainFingerprint, "form-1", "10.0.0.1")
	h2 := HashWithDomain(DomainFingerprint, "form-1", "10.0.0.1")
	h3 := HashWithDomain(DomainFingerprint, "form-1", "10.0.0.2")
	h4 := HashWithDomain(DomainFingerprint, "form-110.0.0.1")

	assert.Equal(t, h1, h2, "must be deterministic")
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4, "part boundaries must matter")
}
