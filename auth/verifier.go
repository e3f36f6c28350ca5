package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	defaultLeeway = 30 * time.Second
)

// VerifierOptions configures which tokens are accepted. Secret enables
// HS256 tokens minted by Issuer; JWKSURL additionally enables RS256 tokens
// from an external identity provider with the given issuer and audience.
type VerifierOptions struct {
	Secret   string
	JWKSURL  string
	Issuer   string
	Audience string
}

// Verifier validates session tokens and, optionally, external JWKS-signed tokens.
type Verifier struct {
	secret     []byte
	issuer     string
	audience   string
	keyfunc    keyfunc.Keyfunc
	hmacParser *jwt.Parser
	rsaParser  *jwt.Parser
}

// NewVerifier builds a verifier. At least one of Secret and JWKSURL must be set.
func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	if opts.Secret == "" && opts.JWKSURL == "" {
		return nil, errors.New("jwt secret or jwks url must be set")
	}

	v := &Verifier{}
	if opts.Secret != "" {
		v.secret = []byte(opts.Secret)
		v.hmacParser = jwt.NewParser(
			jwt.WithIssuer(LocalIssuer),
			jwt.WithLeeway(defaultLeeway),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		)
	}

	if opts.JWKSURL != "" {
		issuer := normalizeIssuer(opts.Issuer)
		if issuer == "" || opts.Audience == "" {
			return nil, errors.New("issuer and audience must be set with a jwks url")
		}
		keyProvider, err := keyfunc.NewDefault([]string{opts.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
		}
		v.issuer = issuer
		v.audience = opts.Audience
		v.keyfunc = keyProvider
		v.rsaParser = jwt.NewParser(
			jwt.WithIssuer(issuer),
			jwt.WithAudience(opts.Audience),
			jwt.WithLeeway(defaultLeeway),
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name, jwt.SigningMethodRS512.Name, jwt.SigningMethodRS384.Name}),
		)
	}
	return v, nil
}

// Verify parses and validates a JWT, returning extracted claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	var token *jwt.Token
	switch unverified.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.hmacParser == nil {
			return nil, errors.New("hmac tokens not accepted")
		}
		token, err = v.hmacParser.Parse(tokenString, func(*jwt.Token) (any, error) {
			return v.secret, nil
		})
	case *jwt.SigningMethodRSA:
		if v.rsaParser == nil {
			return nil, errors.New("rsa tokens not accepted")
		}
		token, err = v.rsaParser.Parse(tokenString, v.keyfunc.Keyfunc)
	default:
		return nil, fmt.Errorf("unexpected signing method %q", unverified.Method.Alg())
	}
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	claims := &Claims{
		Subject: readString(mapClaims, "sub"),
		Email:   readString(mapClaims, "email"),
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub")
	}
	return claims, nil
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return ""
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	return issuer
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// AuthDisabled reports whether auth should be skipped for local development.
// It never applies inside Lambda.
func AuthDisabled() bool {
	if strings.EqualFold(os.Getenv("AUTH_DISABLED"), "true") {
		if strings.EqualFold(os.Getenv("ENV"), "local") || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
			log.Warn().Msg("auth disabled via AUTH_DISABLED for local development")
			return true
		}
	}
	return false
}
