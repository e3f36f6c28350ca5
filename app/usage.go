package app

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Elyes-Bali/UniProfs-UI/app/entitlement"
	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

const (
	// UsageRemainingHeader reports the free actions left after this request,
	// or -1 for subscribed accounts.
	UsageRemainingHeader = "X-Usage-Remaining"

	verdictKey = "usage_verdict"
)

// UsageGate admits a metered request or denies it with 403. Free-tier
// accounts are charged one action before the handler runs, whether or not
// the action later succeeds.
func (s *Server) UsageGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, verdict, ok := s.loadAccount(c)
		if !ok {
			return
		}

		if verdict.Subscribed {
			s.metrics.RecordMetered("subscribed")
			c.Header(UsageRemainingHeader, strconv.Itoa(entitlement.Unlimited))
			c.Set(verdictKey, verdict)
			c.Next()
			return
		}

		if !verdict.Entitled {
			s.denyLimit(c)
			return
		}

		count, granted, err := s.Accounts.ConsumeFreeUsage(c.Request.Context(), account.ID, s.Policy.FreeLimit)
		if err != nil {
			respondInternal(c, err, "consume free usage failed")
			return
		}
		if !granted {
			// Another request took the last free action first.
			s.denyLimit(c)
			return
		}

		verdict.RemainingFree = max(0, s.Policy.FreeLimit-count)
		s.metrics.RecordMetered("allowed")
		logging.FromContext(c.Request.Context()).Debug().
			Str("account_id", account.ID).
			Int("free_usage_count", count).
			Msg("metered action charged")
		c.Header(UsageRemainingHeader, strconv.Itoa(verdict.RemainingFree))
		c.Set(verdictKey, verdict)
		c.Next()
	}
}

func (s *Server) denyLimit(c *gin.Context) {
	s.metrics.RecordMetered("denied")
	c.Header(UsageRemainingHeader, "0")
	c.AbortWithStatusJSON(http.StatusForbidden, models.LimitReachedResponse{
		Error:        "Free usage limit reached. Please subscribe to continue.",
		Code:         models.CodeLimitReached,
		LimitReached: true,
		MaxUsage:     s.Policy.FreeLimit,
	})
}

// verdictFromContext returns the verdict stored by UsageGate.
func verdictFromContext(c *gin.Context) (entitlement.Verdict, bool) {
	v, ok := c.Get(verdictKey)
	if !ok {
		return entitlement.Verdict{}, false
	}
	verdict, ok := v.(entitlement.Verdict)
	return verdict, ok
}

// RequirePlan restricts a route to accounts subscribed to plan or higher.
// An empty plan admits every authenticated account.
func (s *Server) RequirePlan(plan models.Plan) gin.HandlerFunc {
	return func(c *gin.Context) {
		if plan == "" {
			c.Next()
			return
		}
		account, _, ok := s.loadAccount(c)
		if !ok {
			return
		}
		if !entitlement.PlanAllows(account, s.Now(), plan) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.PlanRequiredResponse{
				Error:        "This feature requires the " + string(plan) + " plan.",
				Code:         models.CodePlanRequired,
				RequiredPlan: plan,
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin restricts a route to accounts with the admin role.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, _, ok := s.loadAccount(c)
		if !ok {
			return
		}
		if account.Role != models.RoleAdmin {
			respondError(c, http.StatusForbidden, models.CodeForbidden, "Access denied")
			return
		}
		c.Next()
	}
}
