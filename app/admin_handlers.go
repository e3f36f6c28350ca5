package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

// ListUsers returns every account, newest first.
func (s *Server) ListUsers(c *gin.Context) {
	accounts, err := s.Accounts.List(c.Request.Context())
	if err != nil {
		respondInternal(c, err, "list accounts failed")
		return
	}
	users := make([]*models.Account, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, publicAccount(a))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// Finance reports revenue and payment counts per plan.
func (s *Server) Finance(c *gin.Context) {
	summary, err := s.Accounts.FinanceSummary(c.Request.Context())
	if err != nil {
		respondInternal(c, err, "finance summary failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "finance": summary})
}
