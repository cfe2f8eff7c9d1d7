package services

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "client-id.apps.googleusercontent.com"

func newJWKSFixture(t *testing.T) (*rsa.PrivateKey, *httptest.Server) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := GoogleJWKS{Keys: []GoogleJWK{{
		Kty: "RSA",
		Kid: "test-kid",
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	return key, server
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims GoogleClaims) string {
	t.Helper()

	header := map[string]string{"alg": "RS256", "kid": "test-kid", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	claimsJSON, err := json.Marshal(claims)
	require.NoError(t, err)

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)
	hashed := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	require.NoError(t, err)

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func testGoogleVerifier(server *httptest.Server) *GoogleVerifier {
	v := NewGoogleVerifier(testClientID)
	v.jwksURL = server.URL
	return v
}

func validClaims() GoogleClaims {
	return GoogleClaims{
		Iss:   "https://accounts.google.com",
		Sub:   "sub-123",
		Aud:   testClientID,
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(time.Hour).Unix(),
		Email: "jane@example.com",
		Name:  "Jane Doe",
	}
}

func TestGoogleVerifier_ValidToken(t *testing.T) {
	key, server := newJWKSFixture(t)
	v := testGoogleVerifier(server)

	token := signIDToken(t, key, validClaims())

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "sub-123", claims.Sub)
	assert.Equal(t, "jane@example.com", claims.Email)
}

func TestGoogleVerifier_RejectsWrongAudience(t *testing.T) {
	key, server := newJWKSFixture(t)
	v := testGoogleVerifier(server)

	claims := validClaims()
	claims.Aud = "someone-else"
	_, err := v.Verify(signIDToken(t, key, claims))
	assert.ErrorContains(t, err, "invalid audience")
}

func TestGoogleVerifier_RejectsWrongIssuer(t *testing.T) {
	key, server := newJWKSFixture(t)
	v := testGoogleVerifier(server)

	claims := validClaims()
	claims.Iss = "https://evil.example.com"
	_, err := v.Verify(signIDToken(t, key, claims))
	assert.ErrorContains(t, err, "invalid issuer")
}

func TestGoogleVerifier_RejectsExpiredToken(t *testing.T) {
	key, server := newJWKSFixture(t)
	v := testGoogleVerifier(server)

	claims := validClaims()
	claims.Exp = time.Now().Add(-time.Hour).Unix()
	_, err := v.Verify(signIDToken(t, key, claims))
	assert.ErrorContains(t, err, "expired")
}

func TestGoogleVerifier_RejectsForgedSignature(t *testing.T) {
	_, server := newJWKSFixture(t)
	v := testGoogleVerifier(server)

	// signed with a key Google never published
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = v.Verify(signIDToken(t, otherKey, validClaims()))
	assert.ErrorContains(t, err, "signature verification failed")
}

func TestGoogleVerifier_RejectsGarbage(t *testing.T) {
	_, server := newJWKSFixture(t)
	v := testGoogleVerifier(server)

	_, err := v.Verify("definitely-not-a-jwt")
	assert.Error(t, err)
}
