package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collaborative-docs/internal/domain"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("token invalid")

// Claims are the identity provider's session claims we rely on.
type Claims struct {
	OrgID    string `json:"org_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) identity() *domain.Identity {
	avatar := c.Picture
	if avatar == "" {
		avatar = c.ImageURL
	}
	return &domain.Identity{
		Subject:        c.Subject,
		Name:           c.Name,
		Email:          c.Email,
		AvatarURL:      avatar,
		OrganizationID: c.OrgID,
	}
}

// Verifier checks a bearer token and returns the caller it was issued to.
type Verifier interface {
	Verify(tokenString string) (*domain.Identity, error)
	Close() error
}

type jwtVerifier struct {
	keyFunc jwt.Keyfunc
	methods []string
	cancel  context.CancelFunc
}

// NewHMACVerifier verifies HS256 tokens signed with a shared secret.
func NewHMACVerifier(secret string) (Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	key := []byte(secret)
	return &jwtVerifier{
		keyFunc: func(*jwt.Token) (interface{}, error) { return key, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
	}, nil
}

// NewJWKSVerifier verifies RS256/ES256 tokens against the provider's JWKS.
// Keys are cached and refreshed in the background until Close is called.
func NewJWKSVerifier(jwksURL string) (Verifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}
	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	return &jwtVerifier{
		keyFunc: jwks.Keyfunc,
		methods: []string{"RS256", "ES256"},
		cancel:  cancel,
	}, nil
}

func (v *jwtVerifier) Verify(tokenString string) (*domain.Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims.identity(), nil
}

func (v *jwtVerifier) Close() error {
	if v.cancel != nil {
		v.cancel()
	}
	return nil
}

// SignHS256 issues a token for identity. Used for local development and tests;
// production tokens come from the identity provider.
func SignHS256(secret string, identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OrgID:   identity.OrganizationID,
		Name:    identity.Name,
		Email:   identity.Email,
		Picture: identity.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
