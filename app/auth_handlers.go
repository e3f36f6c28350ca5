package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Elyes-Bali/UniProfs-UI/app/entitlement"
	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
	"github.com/Elyes-Bali/UniProfs-UI/app/store"
	"github.com/Elyes-Bali/UniProfs-UI/auth"
)

const (
	bcryptCost          = 10
	verificationCodeTTL = 24 * time.Hour
	resetTokenTTL       = time.Hour
)

func authFailure(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message, "code": code})
}

// setSession issues a token for the account and stores it in the cookie.
func (s *Server) setSession(c *gin.Context, a models.Account) error {
	token, err := s.Issuer.Issue(a.ID, a.Email)
	if err != nil {
		return err
	}
	auth.SetTokenCookie(c, token, s.Issuer.TTL(), s.CookieSecure)
	return nil
}

// Signup registers an account, signs it in and emails a verification code.
func (s *Server) Signup(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidRequest, "All fields are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		respondInternal(c, err, "hash password failed")
		return
	}
	code, err := verificationCode()
	if err != nil {
		respondInternal(c, err, "verification code failed")
		return
	}
	expires := s.Now().Add(verificationCodeTTL)
	account := models.Account{
		Email:                 req.Email,
		PasswordHash:          string(hash),
		DisplayName:           strings.TrimSpace(req.Name),
		Role:                  models.RoleClient,
		VerificationCode:      code,
		VerificationExpiresAt: &expires,
	}
	if err := s.Accounts.Create(ctx, &account); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			authFailure(c, http.StatusBadRequest, models.CodeEmailTaken, "User already exists")
			return
		}
		respondInternal(c, err, "create account failed")
		return
	}

	if err := s.setSession(c, account); err != nil {
		respondInternal(c, err, "issue token failed")
		return
	}
	if err := s.Mailer.SendVerification(ctx, account.Email, code); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("account_id", account.ID).Msg("verification email failed")
	}

	c.JSON(http.StatusCreated, models.AuthResponse{
		Success: true,
		Message: "User created successfully",
		User:    publicAccount(account),
	})
}

// VerifyEmail consumes a verification code.
func (s *Server) VerifyEmail(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidRequest, "Verification code is required")
		return
	}

	account, err := s.Accounts.FindByVerificationCode(ctx, strings.TrimSpace(req.Code), s.Now())
	if errors.Is(err, store.ErrNotFound) {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidToken, "Invalid or expired verification code")
		return
	}
	if err != nil {
		respondInternal(c, err, "find verification code failed")
		return
	}
	if err := s.Accounts.MarkVerified(ctx, account.ID); err != nil {
		respondInternal(c, err, "mark verified failed")
		return
	}
	account.Verified = true

	if err := s.Mailer.SendWelcome(ctx, account.Email, account.DisplayName); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("account_id", account.ID).Msg("welcome email failed")
	}
	c.JSON(http.StatusOK, models.AuthResponse{
		Success: true,
		Message: "Email verified successfully",
		User:    publicAccount(account),
	})
}

// Login checks credentials and sets the session cookie.
func (s *Server) Login(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidRequest, "Email and password are required")
		return
	}

	account, err := s.Accounts.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondInternal(c, err, "find account failed")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidLogin, "Invalid credentials")
		return
	}

	if err := s.setSession(c, account); err != nil {
		respondInternal(c, err, "issue token failed")
		return
	}
	now := s.Now()
	if err := s.Accounts.TouchLogin(ctx, account.ID, now); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("account_id", account.ID).Msg("record login failed")
	} else {
		account.LastLoginAt = &now
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Success: true,
		Message: "Logged in successfully",
		User:    publicAccount(account),
	})
}

func (s *Server) Logout(c *gin.Context) {
	auth.ClearTokenCookie(c, s.CookieSecure)
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, Message: "Logged out successfully"})
}

// ForgotPassword emails a one hour reset link.
func (s *Server) ForgotPassword(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidRequest, "Email is required")
		return
	}

	account, err := s.Accounts.FindByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		authFailure(c, http.StatusBadRequest, models.CodeAccountNotFound, "User not found")
		return
	}
	if err != nil {
		respondInternal(c, err, "find account failed")
		return
	}

	token, err := resetToken()
	if err != nil {
		respondInternal(c, err, "reset token failed")
		return
	}
	if err := s.Accounts.SetResetToken(ctx, account.ID, token, s.Now().Add(resetTokenTTL)); err != nil {
		respondInternal(c, err, "store reset token failed")
		return
	}
	if err := s.Mailer.SendPasswordReset(ctx, account.Email, s.clientURL("/reset-password/"+token)); err != nil {
		respondInternal(c, err, "reset email failed")
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, Message: "Password reset link sent to your email"})
}

// ResetPassword sets a new password from a reset link.
func (s *Server) ResetPassword(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidRequest, "Password must be at least 6 characters")
		return
	}

	account, err := s.Accounts.FindByResetToken(ctx, c.Param("token"), s.Now())
	if errors.Is(err, store.ErrNotFound) {
		authFailure(c, http.StatusBadRequest, models.CodeInvalidToken, "Invalid or expired reset token")
		return
	}
	if err != nil {
		respondInternal(c, err, "find reset token failed")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		respondInternal(c, err, "hash password failed")
		return
	}
	if err := s.Accounts.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		respondInternal(c, err, "update password failed")
		return
	}
	if err := s.Mailer.SendResetSuccess(ctx, account.Email); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("account_id", account.ID).Msg("reset confirmation email failed")
	}
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, Message: "Password reset successful"})
}

// CheckAuth returns the caller's account, payment history and entitlement.
func (s *Server) CheckAuth(c *gin.Context) {
	account, verdict, ok := s.loadAccount(c)
	if !ok {
		return
	}
	history, err := s.Accounts.PaymentHistory(c.Request.Context(), account.ID)
	if err != nil {
		respondInternal(c, err, "load payment history failed")
		return
	}

	var remaining *int
	if !verdict.Subscribed {
		r := verdict.RemainingFree
		remaining = &r
	}
	c.JSON(http.StatusOK, models.CheckAuthResponse{
		Success:        true,
		User:           *publicAccount(account),
		PaymentHistory: history,
		DaysRemaining:  entitlement.DaysRemaining(account, s.Now()),
		RemainingFree:  remaining,
		MaxUsage:       s.Policy.FreeLimit,
	})
}

// UpdateProfile changes the caller's display name.
func (s *Server) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "name is required")
		return
	}
	account, err := s.Accounts.UpdateDisplayName(ctx, auth.AccountID(ctx), strings.TrimSpace(req.Name))
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, models.CodeAccountNotFound, "User not found")
		return
	}
	if err != nil {
		respondInternal(c, err, "update profile failed")
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, Message: "Profile updated", User: publicAccount(account)})
}
