package app

import (
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

// InitStripe sets the Stripe API key used by checkout creation.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

// StripeCheckout creates checkout sessions through the Stripe API.
type StripeCheckout struct{}

func (StripeCheckout) Create(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}
