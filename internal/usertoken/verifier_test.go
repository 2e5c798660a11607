package usertoken

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://id.example"
	testAudience = "contentbrain-api"
	testKeyID    = "key-1"
)

func newJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func signToken(t *testing.T, key *rsa.PrivateKey, subject string, expires time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   subject,
		"email": subject + "@example.com",
		"iat":   time.Now().Unix(),
		"exp":   expires.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwks := newJWKSServer(t, &key.PublicKey)
	defer jwks.Close()

	verifier, err := NewVerifier(Config{
		JWKSURL:  jwks.URL,
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	identity, err := verifier.Verify(signToken(t, key, "user-7", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UserID != "user-7" {
		t.Fatalf("user id = %q", identity.UserID)
	}
	if identity.Email != "user-7@example.com" {
		t.Fatalf("email = %q", identity.Email)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	otherKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	jwks := newJWKSServer(t, &key.PublicKey)
	defer jwks.Close()

	verifier, err := NewVerifier(Config{JWKSURL: jwks.URL, Issuer: testIssuer, Audience: testAudience})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(signToken(t, otherKey, "user-7", time.Now().Add(time.Hour))); err == nil {
		t.Fatalf("token signed by unknown key must fail")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	jwks := newJWKSServer(t, &key.PublicKey)
	defer jwks.Close()

	verifier, err := NewVerifier(Config{JWKSURL: jwks.URL, Issuer: testIssuer, Audience: testAudience})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(signToken(t, key, "user-7", time.Now().Add(-time.Hour))); err == nil {
		t.Fatalf("expired token must fail")
	}
}

func TestNewVerifierRequiresConfig(t *testing.T) {
	if _, err := NewVerifier(Config{Issuer: testIssuer, Audience: testAudience}); err == nil {
		t.Fatalf("missing jwksURL must fail")
	}
}
