package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyLifecycle(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "rk_"))

	other, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	hash, err := HashAPIKey(key)
	require.NoError(t, err)

	assert.NoError(t, CheckAPIKey(key, hash))
	assert.Error(t, CheckAPIKey(other, hash))
}

func TestLookupDigest(t *testing.T) {
	a := LookupDigest("rk_abc")
	b := LookupDigest("rk_abc")
	c := LookupDigest("rk_def")

	assert.Equal(t, a, b, "digest must be deterministic for lookups")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMaskAPIKey(t *testing.T) {
	masked := MaskAPIKey("rk_0123456789abcdef")
	assert.Equal(t, "rk_01234****", masked)

	assert.Equal(t, "****", MaskAPIKey("tiny"))
}

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	assert.True(t, strings.HasPrefix(id, "req_"))
	assert.NotEqual(t, id, GenerateRequestID())
}
