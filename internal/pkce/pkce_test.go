package pkce_test

import (
	"strings"
	"testing"

	"passgate/internal/pkce"

	"gotest.tools/v3/assert"
)

func TestGenerateVerifier(t *testing.T) {
	verifier, err := pkce.GenerateVerifier(0)
	assert.NilError(t, err)
	assert.Equal(t, pkce.DefaultVerifierLength, len(verifier))
	assert.NilError(t, pkce.ValidateVerifier(verifier))

	verifier, err = pkce.GenerateVerifier(43)
	assert.NilError(t, err)
	assert.Equal(t, 43, len(verifier))

	_, err = pkce.GenerateVerifier(42)
	assert.ErrorContains(t, err, "between")

	_, err = pkce.GenerateVerifier(129)
	assert.ErrorContains(t, err, "between")
}

func TestChallengeS256(t *testing.T) {
	verifier, err := pkce.GenerateVerifier(64)
	assert.NilError(t, err)

	// Deterministic for the same verifier
	assert.Equal(t, pkce.ChallengeS256(verifier), pkce.ChallengeS256(verifier))

	// Distinct verifiers give distinct challenges
	other, err := pkce.GenerateVerifier(64)
	assert.NilError(t, err)
	assert.Assert(t, verifier != other)
	assert.Assert(t, pkce.ChallengeS256(verifier) != pkce.ChallengeS256(other))

	// Known vector from RFC 7636 appendix B
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", pkce.ChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}

func TestVerifyS256(t *testing.T) {
	verifier, err := pkce.GenerateVerifier(0)
	assert.NilError(t, err)
	challenge := pkce.ChallengeS256(verifier)

	assert.NilError(t, pkce.VerifyS256(challenge, verifier))

	other, err := pkce.GenerateVerifier(0)
	assert.NilError(t, err)
	assert.ErrorContains(t, pkce.VerifyS256(challenge, other), "does not match")

	// Shape violations are rejected before hashing
	assert.ErrorContains(t, pkce.VerifyS256(challenge, "short"), "at least")
	assert.ErrorContains(t, pkce.VerifyS256(challenge, strings.Repeat("a", 129)), "at most")
	assert.ErrorContains(t, pkce.VerifyS256(challenge, strings.Repeat("a", 42)+"!"), "invalid characters")
}

func TestValidateChallenge(t *testing.T) {
	verifier, err := pkce.GenerateVerifier(0)
	assert.NilError(t, err)

	assert.NilError(t, pkce.ValidateChallenge(pkce.ChallengeS256(verifier)))
	assert.ErrorContains(t, pkce.ValidateChallenge("not/base64url+"), "base64url")
	assert.ErrorContains(t, pkce.ValidateChallenge("dG9vc2hvcnQ"), "digest")
}
