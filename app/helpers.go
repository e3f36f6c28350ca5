package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Elyes-Bali/UniProfs-UI/app/entitlement"
	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
	"github.com/Elyes-Bali/UniProfs-UI/app/store"
	"github.com/Elyes-Bali/UniProfs-UI/auth"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: message, Code: code})
}

func respondInternal(c *gin.Context, err error, msg string) {
	logging.FromContext(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
	respondError(c, http.StatusInternalServerError, models.CodeInternal, "internal server error")
}

// loadAccount resolves the caller's account and evaluates its entitlement.
// A lapsed subscription is cleared in storage before the verdict is
// returned. On failure the response has been written and ok is false.
func (s *Server) loadAccount(c *gin.Context) (account models.Account, verdict entitlement.Verdict, ok bool) {
	ctx := c.Request.Context()
	accountID := auth.AccountID(ctx)
	if accountID == "" {
		respondError(c, http.StatusUnauthorized, models.CodeUnauthorized, "missing auth context")
		return models.Account{}, entitlement.Verdict{}, false
	}

	account, err := s.Accounts.FindByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, models.CodeAccountNotFound, "User not found")
		return models.Account{}, entitlement.Verdict{}, false
	}
	if err != nil {
		respondInternal(c, err, "load account failed")
		return models.Account{}, entitlement.Verdict{}, false
	}

	now := s.Now()
	verdict = entitlement.Evaluate(account, now, s.Policy)
	if verdict.Correction != nil {
		if err := s.persistCorrection(ctx, account.ID, verdict.Correction); err != nil {
			respondInternal(c, err, "expire subscription failed")
			return models.Account{}, entitlement.Verdict{}, false
		}
		account = entitlement.Apply(account, verdict.Correction)
	}
	return account, verdict, true
}

func (s *Server) persistCorrection(ctx context.Context, accountID string, corr *entitlement.Correction) error {
	if !corr.ClearSubscription {
		return nil
	}
	changed, err := s.Accounts.ExpireSubscription(ctx, accountID, s.Now())
	if err != nil {
		return err
	}
	if changed {
		logging.FromContext(ctx).Info().Str("account_id", accountID).Msg("subscription expired")
	}
	return nil
}

// verificationCode returns a random six digit code.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// resetToken returns 20 random bytes hex encoded.
func resetToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// publicAccount strips fields that must never leave the service.
func publicAccount(a models.Account) *models.Account {
	a.PasswordHash = ""
	a.VerificationCode = ""
	a.VerificationExpiresAt = nil
	a.ResetToken = ""
	a.ResetExpiresAt = nil
	return &a
}

// clientURL joins a path onto the configured frontend address.
func (s *Server) clientURL(path string) string {
	return strings.TrimRight(s.ClientURL, "/") + path
}
