package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LocalIssuer is the iss claim of tokens minted by this service.
const LocalIssuer = "uniprofs-api"

// Issuer mints HS256 session tokens for signed-in accounts.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be set")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens; the session cookie uses the same value.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a signed token for the account.
func (i *Issuer) Issue(accountID, email string) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"iss":   LocalIssuer,
		"sub":   accountID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
