// Package pkce implements the Proof Key for Code Exchange codec (RFC 7636),
// restricted to the S256 challenge method.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	MethodS256 = "S256"

	MinVerifierLength     = 43
	MaxVerifierLength     = 128
	DefaultVerifierLength = 128
)

// RFC 7636 unreserved characters
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateVerifier returns a cryptographically random code verifier of the
// given length. Pass 0 for the default length of 128.
func GenerateVerifier(length int) (string, error) {
	if length == 0 {
		length = DefaultVerifierLength
	}

	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", fmt.Errorf("verifier length must be between %d and %d", MinVerifierLength, MaxVerifierLength)
	}

	verifier := make([]byte, length)
	max := big.NewInt(int64(len(verifierAlphabet)))

	for i := range verifier {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate verifier: %w", err)
		}
		verifier[i] = verifierAlphabet[n.Int64()]
	}

	return string(verifier), nil
}

// ChallengeS256 computes the S256 code challenge for a verifier,
// base64url-encoded without padding.
func ChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ValidateVerifier checks the RFC 7636 shape of a client-presented verifier
// before it is hashed.
func ValidateVerifier(verifier string) error {
	if len(verifier) < MinVerifierLength {
		return fmt.Errorf("code_verifier must be at least %d characters", MinVerifierLength)
	}
	if len(verifier) > MaxVerifierLength {
		return fmt.Errorf("code_verifier must be at most %d characters", MaxVerifierLength)
	}
	for _, ch := range verifier {
		valid := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '~'
		if !valid {
			return fmt.Errorf("code_verifier contains invalid characters (must be [A-Za-z0-9-._~])")
		}
	}
	return nil
}

// ValidateChallenge checks that a client-supplied code challenge is
// well-formed base64url of a SHA-256 digest.
func ValidateChallenge(challenge string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(challenge)
	if err != nil {
		return fmt.Errorf("code_challenge is not valid base64url: %w", err)
	}
	if len(decoded) != sha256.Size {
		return fmt.Errorf("code_challenge must encode a %d-byte SHA-256 digest", sha256.Size)
	}
	return nil
}

// VerifyS256 recomputes the challenge from the verifier and compares it to the
// stored one in constant time.
func VerifyS256(challenge string, verifier string) error {
	if err := ValidateVerifier(verifier); err != nil {
		return err
	}

	computed := ChallengeS256(verifier)

	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return fmt.Errorf("code_verifier does not match code_challenge")
	}

	return nil
}
