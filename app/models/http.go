package models

// Error codes returned in the "code" field so clients can branch without parsing messages.
const (
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeInvalidRequest   = "invalid_request"
	CodeAccountNotFound  = "account_not_found"
	CodeLimitReached     = "limit_reached"
	CodePlanRequired     = "plan_required"
	CodeSessionExists    = "session_exists"
	CodeSessionNotFound  = "session_not_found"
	CodeSessionBusy      = "session_busy"
	CodeInternal         = "internal_error"
	CodeEmailTaken       = "email_taken"
	CodeInvalidLogin     = "invalid_credentials"
	CodeInvalidToken     = "invalid_or_expired_token"
	CodeBillingMisconfig = "billing_not_configured"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// LimitReachedResponse is the 403 body sent when the free allowance is exhausted.
type LimitReachedResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	LimitReached bool   `json:"limitReached"`
	MaxUsage     int    `json:"maxUsage"`
}

// PlanRequiredResponse is the 403 body sent when a feature needs a specific plan.
type PlanRequiredResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	RequiredPlan Plan   `json:"requiredPlan"`
}

type StudyStartRequest struct {
	SessionID string `json:"sessionId" form:"sessionId"`
	Prompt    string `json:"prompt" form:"prompt"`
}

type StudyStartResponse struct {
	Message  string `json:"message"`
	Question string `json:"question"`
}

type StudyAnswerRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Answer    string `json:"answer" binding:"required"`
}

type StudyAnswerResponse struct {
	Correction string `json:"correction"`
	Question   string `json:"question"`
}

type CheckoutRequest struct {
	PlanName string `json:"planName" binding:"required"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// AuthResponse wraps an account for auth endpoints.
type AuthResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	User    *Account `json:"user,omitempty"`
}

// CheckAuthResponse reports the caller's account and entitlement state.
type CheckAuthResponse struct {
	Success        bool            `json:"success"`
	User           Account         `json:"user"`
	PaymentHistory []PaymentRecord `json:"paymentHistory"`
	DaysRemaining  int             `json:"daysRemaining"`
	RemainingFree  *int            `json:"remainingFree"`
	MaxUsage       int             `json:"maxUsage"`
}
