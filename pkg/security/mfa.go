package security

import (
	"fmt"

	"github.com/pquerna/otp/totp"
)

// MFAIssuer is the issuer label shown in authenticator apps.
const MFAIssuer = "Lifeline"

// MFAEnrollment is a freshly generated TOTP secret and its provisioning URI.
type MFAEnrollment struct {
	Secret string
	URI    string
}

// GenerateMFASecret generates a Base32 TOTP secret bound to the account email.
func GenerateMFASecret(email string) (*MFAEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      MFAIssuer,
		AccountName: email,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	// key.URL() is the otpauth:// URI authenticator apps scan as a QR code.
	return &MFAEnrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// VerifyMFACode checks if the provided 6-digit code is valid for the given secret.
func VerifyMFACode(code, secret string) bool {
	if secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
