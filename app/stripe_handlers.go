package app

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
	"github.com/Elyes-Bali/UniProfs-UI/app/store"
	"github.com/Elyes-Bali/UniProfs-UI/app/subscription"
	"github.com/Elyes-Bali/UniProfs-UI/auth"
)

const maxWebhookBytes = int64(65536)

// CreateCheckoutSession starts a one-off Stripe Checkout payment for a plan.
// The charged amount always comes from configuration.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	accountID := auth.AccountID(c.Request.Context())
	if accountID == "" {
		respondError(c, http.StatusUnauthorized, models.CodeUnauthorized, "missing auth context")
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "planName is required")
		return
	}
	plan, ok := models.ParsePlan(req.PlanName)
	if !ok {
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "unknown plan")
		return
	}
	price, ok := s.Prices[plan]
	if !ok || price <= 0 || s.Checkout == nil || s.ClientURL == "" {
		logging.FromContext(c.Request.Context()).Error().
			Bool("price", ok && price > 0).
			Bool("checkout", s.Checkout != nil).
			Bool("client_url", s.ClientURL != "").
			Msg("missing billing config")
		respondError(c, http.StatusInternalServerError, models.CodeBillingMisconfig, "billing not configured")
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(string(plan) + " Plan"),
					},
					UnitAmount: stripe.Int64(int64(math.Round(price * 100))),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.clientURL("/payment-success?session_id={CHECKOUT_SESSION_ID}")),
		CancelURL:  stripe.String(s.clientURL("/payment-cancel")),
		Metadata: map[string]string{
			subscription.MetaUserID:   accountID,
			subscription.MetaPlanName: string(plan),
			subscription.MetaPrice:    strconv.FormatFloat(price, 'f', -1, 64),
		},
	}

	sess, err := s.Checkout.Create(params)
	if err != nil {
		respondInternal(c, err, "stripe checkout session failed")
		return
	}
	c.JSON(http.StatusOK, models.CheckoutResponse{URL: sess.URL})
}

// StripeWebhook verifies a Stripe event and applies completed checkouts.
// Once the signature is valid the event is always acknowledged; failures
// are logged and sent to the reconciler instead of triggering retries.
func (s *Server) StripeWebhook(c *gin.Context) {
	logger := logging.FromContext(c.Request.Context())
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		logger.Warn().Err(err).Msg("stripe webhook read failed")
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "invalid payload")
		return
	}

	if s.WebhookSecret == "" {
		logger.Error().Msg("stripe webhook secret missing")
		respondError(c, http.StatusInternalServerError, models.CodeBillingMisconfig, "webhook not configured")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		s.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		logger.Warn().Err(err).Msg("stripe webhook signature failed")
		s.metrics.RecordWebhook("unknown", "bad_signature")
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "Webhook Error: signature verification failed")
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		s.applyCheckout(c, event)
	default:
		s.metrics.RecordWebhook(string(event.Type), "ignored")
	}

	c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}

func (s *Server) applyCheckout(c *gin.Context, event stripe.Event) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx).With().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Logger()

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		logger.Error().Err(err).Msg("checkout session payload invalid")
		s.reconcile(c, event, nil, "invalid session payload: "+err.Error())
		return
	}

	completed, err := subscription.ParseCheckout(event.ID, sess.Metadata, s.Prices)
	if err != nil {
		logger.Error().Err(err).Msg("checkout metadata invalid")
		s.reconcile(c, event, sess.Metadata, err.Error())
		return
	}

	err = s.Lifecycle.Activate(ctx, completed)
	switch {
	case err == nil:
		s.metrics.RecordWebhook(string(event.Type), "applied")
	case errors.Is(err, store.ErrAlreadyApplied):
		s.metrics.RecordWebhook(string(event.Type), "duplicate")
	default:
		logger.Error().Err(err).Str("account_id", completed.AccountID).Msg("subscription activation failed")
		s.reconcile(c, event, sess.Metadata, err.Error())
	}
}

func (s *Server) reconcile(c *gin.Context, event stripe.Event, metadata map[string]string, reason string) {
	s.metrics.RecordWebhook(string(event.Type), "failed")
	failed := models.FailedPaymentEvent{
		EventID:    event.ID,
		EventType:  string(event.Type),
		AccountID:  metadata[subscription.MetaUserID],
		PlanName:   metadata[subscription.MetaPlanName],
		Price:      metadata[subscription.MetaPrice],
		Reason:     reason,
		OccurredAt: s.Now(),
	}
	if err := s.Reconciler.Report(c.Request.Context(), failed); err != nil {
		logging.FromContext(c.Request.Context()).Error().Err(err).
			Str("event_id", event.ID).
			Msg("reconciliation report failed")
	}
}
