package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStableAndSensitive(t *testing.T) {
	v, err := Evaluate([]ExtractedDocument{aadhaarDoc(), panDoc()})
	require.NoError(t, err)

	a, err := Fingerprint(v)
	require.NoError(t, err)
	b, err := Fingerprint(v)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, IsDigest(a))

	changed := *v
	changed.Reason = "different"
	c, err := Fingerprint(&changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDocumentDigest(t *testing.T) {
	d := aadhaarDoc()

	first, err := DocumentDigest(d)
	require.NoError(t, err)
	again, err := DocumentDigest(aadhaarDoc())
	require.NoError(t, err)
	assert.Equal(t, first, again)

	d.SourceConfidence = 87
	other, err := DocumentDigest(d)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	raw, err := CanonicalBytes(aadhaarDoc())
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestIsDigest(t *testing.T) {
	assert.False(t, IsDigest(""))
	assert.False(t, IsDigest("abc"))
	assert.False(t, IsDigest("zz"+string(make([]byte, 62))))
	assert.True(t, IsDigest("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"))
}
