package security

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMFASecret(t *testing.T) {
	enrollment, err := GenerateMFASecret("donor@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.Secret)
	assert.True(t, strings.HasPrefix(enrollment.URI, "otpauth://totp/"))
	assert.Contains(t, enrollment.URI, "issuer="+MFAIssuer)
}

func TestVerifyMFACode(t *testing.T) {
	enrollment, err := GenerateMFASecret("donor@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	assert.True(t, VerifyMFACode(code, enrollment.Secret))
	assert.False(t, VerifyMFACode("000000x", enrollment.Secret))
	assert.False(t, VerifyMFACode(code, ""))
}
