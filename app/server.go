// Package app wires shared HTTP routes for both local and Lambda execution.
package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"

	"github.com/Elyes-Bali/UniProfs-UI/app/entitlement"
	"github.com/Elyes-Bali/UniProfs-UI/app/mail"
	"github.com/Elyes-Bali/UniProfs-UI/app/metrics"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
	"github.com/Elyes-Bali/UniProfs-UI/app/store"
	"github.com/Elyes-Bali/UniProfs-UI/app/study"
	"github.com/Elyes-Bali/UniProfs-UI/app/subscription"
	"github.com/Elyes-Bali/UniProfs-UI/auth"
)

// Documents runs the PDF helper scripts. *extract.Runner implements it.
type Documents interface {
	ExtractText(ctx context.Context, pdf io.Reader) (string, error)
	Summarize(ctx context.Context, pdf io.Reader, settings models.SummarizeSettings, onProgress func(int)) (string, error)
	ImproveCV(ctx context.Context, pdf io.Reader) (string, error)
}

// CheckoutCreator creates hosted payment pages.
type CheckoutCreator interface {
	Create(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StudyDialogue runs study sessions. *study.Controller implements it.
type StudyDialogue interface {
	Start(ctx context.Context, sessionID, material string) (string, error)
	Answer(ctx context.Context, sessionID, answer string) (study.Reply, error)
}

// Deps are the collaborators a Server needs. Zero values are replaced with
// defaults where one exists.
type Deps struct {
	Accounts   store.AccountStore
	Study      StudyDialogue
	Lifecycle  *subscription.Lifecycle
	Reconciler subscription.Reconciler
	Documents  Documents
	Mailer     mail.Mailer
	Issuer     *auth.Issuer
	Verifier   *auth.Verifier
	Checkout   CheckoutCreator

	Policy        entitlement.Policy
	Prices        subscription.Prices
	Currency      string
	WebhookSecret string
	ClientURL     string
	CORSOrigins   []string
	CookieSecure  bool
	DisableAuth   bool
	MaxUpload     int64
	StudyPlan     models.Plan

	Now func() time.Time
}

// Server holds the handlers' shared state.
type Server struct {
	Deps
	metrics *metrics.Metrics
}

func NewServer(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Reconciler == nil {
		d.Reconciler = subscription.NewLogReconciler()
	}
	if d.Mailer == nil {
		d.Mailer = mail.NewLogMailer()
	}
	if d.MaxUpload <= 0 {
		d.MaxUpload = defaultMaxUpload
	}
	if d.Currency == "" {
		d.Currency = string(stripe.CurrencyUSD)
	}
	return &Server{
		Deps:    d,
		metrics: metrics.Get(),
	}
}

const defaultMaxUpload = 20 << 20

// Health is a public health check endpoint.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
