package store

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth-chat/gateway/internal/domain"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestJWTVerifyValidToken(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret)

	token := signHS256(t, secret, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	uid, err := v.VerifyIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), uid)
}

func TestJWTVerifyWrongSecret(t *testing.T) {
	v := NewJWTVerifier([]byte("the-real-secret"))
	token := signHS256(t, []byte("a-different-secret"), jwt.MapClaims{"sub": "alice"})

	_, err := v.VerifyIdentity(token)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestJWTVerifyExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret)
	token := signHS256(t, secret, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.VerifyIdentity(token)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestJWTVerifyMissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret)
	token := signHS256(t, secret, jwt.MapClaims{"scope": "chat"})

	_, err := v.VerifyIdentity(token)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestJWTVerifyUnsignedTokenRejected(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.VerifyIdentity(token)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestJWTVerifyGarbage(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	_, err := v.VerifyIdentity("not.a.token")
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}
