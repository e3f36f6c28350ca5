package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/metrics"
	"github.com/Elyes-Bali/UniProfs-UI/auth"
)

// NewRouter builds the shared HTTP router for both local and Lambda execution.
func (s *Server) NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestLogger())

	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", logging.RequestIDHeader},
		ExposeHeaders:    []string{UsageRemainingHeader, logging.RequestIDHeader},
		AllowCredentials: len(origins) != 1 || origins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.Health)
	router.GET("/metrics", metrics.Handler())
	router.POST("/api/payment/webhook", s.StripeWebhook)

	authn := auth.Middleware(s.Verifier, auth.MiddlewareConfig{DisableAuth: s.DisableAuth})

	accounts := router.Group("/api/auth")
	accounts.POST("/signup", s.Signup)
	accounts.POST("/verify-email", s.VerifyEmail)
	accounts.POST("/login", s.Login)
	accounts.POST("/logout", s.Logout)
	accounts.POST("/forgot-password", s.ForgotPassword)
	accounts.POST("/reset-password/:token", s.ResetPassword)
	accounts.GET("/check-auth", authn, s.CheckAuth)
	accounts.PUT("/update-profile", authn, s.UpdateProfile)

	protected := router.Group("/")
	protected.Use(authn)
	protected.POST("/api/payment/create-checkout-session", s.CreateCheckoutSession)

	metered := protected.Group("/")
	metered.Use(s.UsageGate())
	metered.POST("/summarize", s.Summarize)
	metered.POST("/improve-cv", s.ImproveCV)

	studyRoutes := protected.Group("/study")
	studyRoutes.Use(s.RequirePlan(s.StudyPlan))
	studyRoutes.POST("/start", s.StartStudy)
	studyRoutes.POST("/answer", s.AnswerStudy)

	admin := protected.Group("/api/admin")
	admin.Use(s.RequireAdmin())
	admin.GET("/users", s.ListUsers)
	admin.GET("/finance", s.Finance)

	return router
}
