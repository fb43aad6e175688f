package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"zipngo/config"
	"zipngo/models"
)

func newSessions(secret string, ttl time.Duration) *SessionManager {
	return NewSessionManager(config.SessionConfig{Secret: secret, TokenTTL: ttl, CookieTTL: ttl})
}

func TestSessionRoundTrip(t *testing.T) {
	s := newSessions("s3cret", time.Hour)
	u := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	token, err := s.Issue(u)
	require.NoError(t, err)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.Hex(), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestSessionRejectsForeignAndExpiredTokens(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}

	token, err := newSessions("other", time.Hour).Issue(u)
	require.NoError(t, err)
	_, err = newSessions("s3cret", time.Hour).Parse(token)
	assert.Error(t, err)

	expired, err := newSessions("s3cret", -time.Minute).Issue(u)
	require.NoError(t, err)
	_, err = newSessions("s3cret", time.Hour).Parse(expired)
	assert.Error(t, err)

	_, err = newSessions("s3cret", time.Hour).Parse("garbage")
	assert.Error(t, err)
}

func TestSessionCookies(t *testing.T) {
	s := newSessions("s3cret", time.Hour)

	rec := httptest.NewRecorder()
	s.SetCookie(rec, "abc")
	c := findCookie(rec.Result().Cookies(), SessionCookie)
	require.NotNil(t, c)
	assert.Equal(t, "abc", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Expires.After(time.Now()))

	rec = httptest.NewRecorder()
	s.ClearCookie(rec)
	c = findCookie(rec.Result().Cookies(), SessionCookie)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.True(t, c.MaxAge < 0)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
