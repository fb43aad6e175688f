package utils

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"

	"zipngo/config"
	"zipngo/models"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "token"

// Claims represents the JWT claims of a session token.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// SessionManager issues and verifies signed session tokens and writes the
// session cookie.
type SessionManager struct {
	secret       []byte
	tokenTTL     time.Duration
	cookieTTL    time.Duration
	cookieSecure bool
}

func NewSessionManager(cfg config.SessionConfig) *SessionManager {
	return &SessionManager{
		secret:       []byte(cfg.Secret),
		tokenTTL:     cfg.TokenTTL,
		cookieTTL:    cfg.CookieTTL,
		cookieSecure: cfg.CookieSecure,
	}
}

// Issue signs a token for u.
func (s *SessionManager) Issue(u *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: u.ID.Hex(),
		Role:   u.Role,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenStr and returns its claims.
func (s *SessionManager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.UserID == "" {
		return nil, errors.New("session token has no subject")
	}
	return claims, nil
}

// SetCookie writes the HTTP-only session cookie.
func (s *SessionManager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.cookieTTL),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie immediately.
func (s *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
