package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"zipngo/apperror"
	"zipngo/config"
	"zipngo/logger"
	"zipngo/middleware"
	"zipngo/models"
	"zipngo/utils"
)

// UserStore is the persistence the user controller needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, p models.ProfileUpdate) (*models.User, error)
	UpdateRoleAndProfile(ctx context.Context, id primitive.ObjectID, u models.RoleUpdate) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, hashedToken string, expires time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error
	Delete(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// UserController handles authentication and account management.
type UserController struct {
	Users        UserStore
	Sessions     *utils.SessionManager
	EmailService *utils.EmailService

	appURL   string
	resetTTL time.Duration
	timeout  time.Duration
}

func NewUserController(users UserStore, sessions *utils.SessionManager, emailService *utils.EmailService, cfg config.Config) *UserController {
	return &UserController{
		Users:        users,
		Sessions:     sessions,
		EmailService: emailService,
		appURL:       cfg.Mail.AppURL,
		resetTTL:     cfg.ResetTokenTTL,
		timeout:      cfg.RequestTimeout,
	}
}

// sendToken issues a session for user, sets the cookie and writes the
// {success, user, token} envelope.
func (uc *UserController) sendToken(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, err := uc.Sessions.Issue(user)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Error generating token", err))
		return
	}
	uc.Sessions.SetCookie(w, token)
	utils.WriteJSON(w, status, utils.Envelope{"success": true, "user": user, "token": token})
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	switch {
	case req.Name == "" || req.Email == "" || req.Password == "":
		utils.WriteError(w, r, apperror.Validation("Please provide name, email and password"))
		return
	case !validEmail(req.Email):
		utils.WriteError(w, r, apperror.Validation("Please provide a valid email address"))
		return
	}
	if err := utils.ValidatePasswordLength(req.Password); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	// Check if user already exists
	if _, err := uc.Users.FindByEmail(ctx, req.Email); err == nil {
		utils.WriteError(w, r, apperror.Conflict("Email already exists", nil))
		return
	} else if !apperror.Is(err, apperror.KindNotFound) {
		utils.WriteError(w, r, err)
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Error hashing password", err))
		return
	}
	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hashed,
		Role:     models.RoleUser,
	}
	if err := uc.Users.Create(ctx, user); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	uc.sendToken(w, r, user, http.StatusCreated)

	uc.EmailService.Go(r.Context(), "welcome", func(ctx context.Context) error {
		return uc.EmailService.SendWelcomeEmail(ctx, user)
	})
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &creds); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	creds.Email = normalizeEmail(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		utils.WriteError(w, r, apperror.Validation("Please enter email/password"))
		return
	}

	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	user, err := uc.Users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.NotFound("User not found! Register yourself now!")
		}
		utils.WriteError(w, r, err)
		return
	}
	if !utils.CheckPassword(user.Password, creds.Password) {
		utils.WriteError(w, r, apperror.Auth("Invalid email or password"))
		return
	}

	uc.sendToken(w, r, user, http.StatusOK)
}

// Logout clears the session cookie.
func (uc *UserController) Logout(w http.ResponseWriter, r *http.Request) {
	uc.Sessions.ClearCookie(w)
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "message": "Logout successful"})
}

// ForgotPassword stores a hashed reset token and emails the raw token. When
// the email cannot be sent the token is cleared again.
func (uc *UserController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		utils.WriteError(w, r, apperror.Validation("Please provide an email address"))
		return
	}

	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	user, err := uc.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.NotFound("User not found with this email")
		}
		utils.WriteError(w, r, err)
		return
	}

	token, err := utils.GenerateResetToken(uc.resetTTL)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Failed to reset password", err))
		return
	}
	if err := uc.Users.SetResetToken(ctx, user.ID, token.Hash, token.ExpiresAt); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	resetURL := uc.resetLink(r, token.Raw)
	if err := uc.EmailService.SendPasswordResetEmail(ctx, user, resetURL, token.Raw); err != nil {
		// the request context may already be spent on a slow transport
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeoutOrDefault())
		defer cancel()
		if cerr := uc.Users.ClearResetToken(rollbackCtx, user.ID); cerr != nil {
			logger.FromContext(r.Context()).Error("clear reset token after failed email", "user_id", user.ID.Hex(), "error", cerr)
		}
		utils.WriteError(w, r, apperror.Delivery("Email could not be sent. Please try again later.", err))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Password reset link sent to " + user.Email,
	})
}

// ResetPassword sets a new password for the holder of a valid reset token.
func (uc *UserController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	var req struct {
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if token == "" || req.Password == "" {
		utils.WriteError(w, r, apperror.Validation("Please provide all required fields."))
		return
	}
	if err := utils.ValidatePasswordLength(req.Password); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	user, err := uc.Users.FindByResetToken(ctx, utils.HashToken(token), time.Now())
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.Validation("Invalid or expired reset token")
		}
		utils.WriteError(w, r, err)
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Failed to reset password", err))
		return
	}
	if err := uc.Users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "message": "Password reset successful"})
}

// GetUserDetails returns the authenticated user's profile.
func (uc *UserController) GetUserDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		utils.WriteError(w, r, apperror.Auth("User not authorized"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "userDetails": user})
}

// UpdatePassword changes the password of the authenticated user and issues
// a fresh session.
func (uc *UserController) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		utils.WriteError(w, r, apperror.Auth("User not authorized"))
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	switch {
	case req.CurrentPassword == "":
		utils.WriteError(w, r, apperror.Validation("Please enter current password"))
		return
	case !utils.CheckPassword(user.Password, req.CurrentPassword):
		utils.WriteError(w, r, apperror.Auth("Incorrect current password!"))
		return
	case req.NewPassword == "" || req.NewPassword != req.ConfirmPassword:
		utils.WriteError(w, r, apperror.Validation("Mismatch new password and confirm password!"))
		return
	}
	if err := utils.ValidatePasswordLength(req.NewPassword); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Error hashing password", err))
		return
	}
	if err := uc.Users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	user.Password = hashed

	uc.sendToken(w, r, user, http.StatusOK)
}

// UpdateProfile changes the name and/or email of the authenticated user.
func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		utils.WriteError(w, r, apperror.Auth("User not authorized"))
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	var update models.ProfileUpdate
	if name := strings.TrimSpace(req.Name); name != "" {
		update.Name = &name
	}
	if email := normalizeEmail(req.Email); email != "" {
		if !validEmail(email) {
			utils.WriteError(w, r, apperror.Validation("Please provide a valid email address"))
			return
		}
		update.Email = &email
	}
	if update.Empty() {
		utils.WriteError(w, r, apperror.Validation("Please provide a name or email to update"))
		return
	}

	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	updated, err := uc.Users.UpdateProfile(ctx, user.ID, update)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "updatedUserDetails": updated})
}

// GetAllUsers lists every user. Admin only.
func (uc *UserController) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	users, err := uc.Users.List(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "allUsers": users})
}

// GetUserDetailsForAdmin returns any user by id. Admin only.
func (uc *UserController) GetUserDetailsForAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "No user found with provided id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	user, err := uc.Users.FindByID(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.NotFound("No user found with provided id")
		}
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "userDetails": user})
}

// DeleteUser removes a user by id. Admin only.
func (uc *UserController) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "No user found with provided id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	deleted, err := uc.Users.Delete(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.NotFound("No user found with provided id")
		}
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":     true,
		"message":     "User deleted successfully",
		"deletedUser": deleted,
	})
}

// UpdateUserProfileAndRole sets name, email and role of any user. Admin only.
func (uc *UserController) UpdateUserProfileAndRole(w http.ResponseWriter, r *http.Request) {
	rawID := mux.Vars(r)["id"]
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	update := models.RoleUpdate{
		Name:  strings.TrimSpace(req.Name),
		Email: normalizeEmail(req.Email),
		Role:  strings.TrimSpace(req.Role),
	}
	if rawID == "" || update.Name == "" || update.Email == "" || update.Role == "" {
		utils.WriteError(w, r, apperror.Validation("Please fill all the required fields!"))
		return
	}
	if !models.ValidRole(update.Role) {
		utils.WriteError(w, r, apperror.Validation("Role must be either user or admin"))
		return
	}
	if !validEmail(update.Email) {
		utils.WriteError(w, r, apperror.Validation("Please provide a valid email address"))
		return
	}
	id, err := pathID(r, "User not found with provided id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r, uc.timeout)
	defer cancel()

	updated, err := uc.Users.UpdateRoleAndProfile(ctx, id, update)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.NotFound("User not found with provided id")
		}
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":            true,
		"message":            "User profile and role updated successfully!",
		"updatedUserDetails": updated,
	})
}

func (uc *UserController) timeoutOrDefault() time.Duration {
	if uc.timeout <= 0 {
		return defaultTimeout
	}
	return uc.timeout
}

// resetLink points at the configured frontend. The Host header is only used
// when no APP_URL is configured.
func (uc *UserController) resetLink(r *http.Request, rawToken string) string {
	base := strings.TrimRight(uc.appURL, "/")
	if base == "" {
		base = requestScheme(r) + "://" + r.Host
	}
	return base + "/password/reset/" + rawToken
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		return proto
	}
	return "http"
}
