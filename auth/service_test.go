package auth

import (
	"testing"
	"time"

	"github.com/krishkalaria12/snap-detect/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_TokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret")

	tok, err := svc.Token(&models.User{ID: 42, Username: "taro", Email: "taro@example.com"})
	require.NoError(t, err)

	id, err := svc.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestService_ParseRejectsOtherSecret(t *testing.T) {
	tok, err := NewService("one").Token(&models.User{ID: 1})
	require.NoError(t, err)

	_, err = NewService("two").Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ParseRejectsExpired(t *testing.T) {
	svc := NewService("test-secret")
	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	tok, err := svc.Token(&models.User{ID: 7})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Parse(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestService_ParseGarbage(t *testing.T) {
	_, err := NewService("s").Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
