package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// IdentityVerifier maps a bearer credential to a stable identity. The
// cryptographic check belongs to the external identity provider; this
// interface is the seam it plugs in through.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

// AuthService resolves the Authorization header of a request into an
// authenticated principal.
type AuthService interface {
	Resolve(ctx context.Context, authorizationHeader string) (*models.Principal, error)
}

type authService struct {
	verifier IdentityVerifier
}

func NewAuthService(verifier IdentityVerifier) AuthService {
	return &authService{verifier: verifier}
}

func (s *authService) Resolve(ctx context.Context, authorizationHeader string) (*models.Principal, error) {
	if authorizationHeader == "" {
		return nil, ErrTokenMissing
	}

	parts := strings.Split(authorizationHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, ErrTokenMissing
	}
	tokenString := parts[1]

	if s.verifier == nil {
		return nil, ErrAuthUnavailable
	}

	// Expiry is checked here, before the verifier gets a say, so clock
	// skew is handled uniformly regardless of verifier behavior.
	if expired, err := tokenExpired(tokenString); err == nil && expired {
		return nil, ErrTokenExpired
	}

	principal, err := s.verifier.Verify(ctx, tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if principal.UserID == "" {
		return nil, ErrTokenInvalid
	}
	principal.Email = strings.ToLower(strings.TrimSpace(principal.Email))
	return principal, nil
}

// tokenExpired inspects the exp claim without verifying the signature.
func tokenExpired(tokenString string) (bool, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return false, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, err
	}
	return exp.Before(time.Now()), nil
}

// jwtVerifier validates HS256 tokens issued by the identity provider.
type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier returns an IdentityVerifier for HMAC-signed provider
// tokens, or nil when no key is configured.
func NewJWTVerifier(secret string) IdentityVerifier {
	if secret == "" {
		return nil
	}
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(ctx context.Context, tokenString string) (*models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	verified, _ := claims["email_verified"].(bool)

	return &models.Principal{
		UserID:        sub,
		Email:         email,
		EmailVerified: verified,
	}, nil
}
