package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT(testSecret, time.Hour, "pulse")
	tok, err := j.Issue(Principal{ID: 42, Email: "a@example.com", Username: "alice"})
	require.NoError(t, err)

	p, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, &Principal{ID: 42, Email: "a@example.com", Username: "alice"}, p)
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT(testSecret, time.Minute, "pulse")
	j.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := j.Issue(Principal{ID: 1})
	require.NoError(t, err)

	j.now = time.Now
	_, err = j.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_WrongSecretOrIssuer(t *testing.T) {
	tok, err := NewJWT(testSecret, time.Hour, "pulse").Issue(Principal{ID: 1})
	require.NoError(t, err)

	_, err = NewJWT("another-secret-another-secret-xx", time.Hour, "pulse").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWT(testSecret, time.Hour, "someone-else").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_RejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "pulse",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWT(testSecret, time.Hour, "pulse").Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_RejectsBadSubject(t *testing.T) {
	j := NewJWT(testSecret, time.Hour, "pulse")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-number",
		Issuer:    "pulse",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = j.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_Garbage(t *testing.T) {
	_, err := NewJWT(testSecret, time.Hour, "pulse").Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", h)
	assert.True(t, CheckPassword(h, "correct horse"))
	assert.False(t, CheckPassword(h, "wrong horse"))
	assert.False(t, CheckPassword("not-a-hash", "correct horse"))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &Principal{ID: 7})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), p.ID)
}
