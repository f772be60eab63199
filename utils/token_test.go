package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTokenEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_KEY", "test-access-key")
	t.Setenv("JWT_ACCESS_EXPIRE", "15")
	t.Setenv("JWT_REFRESH_KEY", "test-refresh-key")
	t.Setenv("JWT_REFRESH_EXPIRE", "10080")
}

func TestGenerateAndExtractTokens(t *testing.T) {
	setTokenEnv(t)

	tokens, err := GenerateTokens("42", true)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.Access)
	require.NotEmpty(t, tokens.Refresh)

	access, err := CheckAndExtractTokenMetadata(tokens.Access, "JWT_ACCESS_KEY")
	require.NoError(t, err)
	assert.Equal(t, "42", access.Id)
	assert.True(t, access.Otp)
	assert.Greater(t, access.Exp, int64(0))

	refresh, err := CheckAndExtractTokenMetadata(tokens.Refresh, "JWT_REFRESH_KEY")
	require.NoError(t, err)
	assert.Equal(t, "42", refresh.Id)
}

func TestExtractRejectsWrongKey(t *testing.T) {
	setTokenEnv(t)

	tokens, err := GenerateTokens("42", false)
	require.NoError(t, err)

	_, err = CheckAndExtractTokenMetadata(tokens.Access, "JWT_REFRESH_KEY")
	assert.Error(t, err)
}

func TestExtractRejectsGarbage(t *testing.T) {
	setTokenEnv(t)

	_, err := CheckAndExtractTokenMetadata("not-a-token", "JWT_ACCESS_KEY")
	assert.Error(t, err)
}
