package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"zipngo/apperror"
	"zipngo/models"
	"zipngo/utils"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// UserFinder loads the user a session token refers to.
type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Authenticator verifies session tokens and attaches the current user to the
// request context.
type Authenticator struct {
	sessions *utils.SessionManager
	users    UserFinder
}

func NewAuthenticator(sessions *utils.SessionManager, users UserFinder) *Authenticator {
	return &Authenticator{sessions: sessions, users: users}
}

// AuthMiddleware rejects requests without a valid session. The token is read
// from the session cookie, falling back to an "Authorization: Bearer" header.
func (a *Authenticator) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := sessionToken(r)
		if tokenStr == "" {
			utils.WriteError(w, r, apperror.Auth("Please login to access this resource"))
			return
		}

		claims, err := a.sessions.Parse(tokenStr)
		if err != nil {
			utils.WriteError(w, r, apperror.Auth("Invalid or expired session"))
			return
		}
		id, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.WriteError(w, r, apperror.Auth("Invalid or expired session"))
			return
		}

		// the user is reloaded so role changes and deletions apply immediately
		user, err := a.users.FindByID(r.Context(), id)
		if err != nil {
			if apperror.Is(err, apperror.KindNotFound) {
				utils.WriteError(w, r, apperror.Auth("User no longer exists"))
				return
			}
			utils.WriteError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// AdminMiddleware ensures that the user has admin privileges
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok {
			utils.WriteError(w, r, apperror.Auth("Please login to access this resource"))
			return
		}
		if !user.IsAdmin() {
			utils.WriteError(w, r, apperror.Forbidden("Forbidden: Admins only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// CurrentUser returns the authenticated user stored by AuthMiddleware.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(utils.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
