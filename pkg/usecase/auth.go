package usecase

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model/auth"
)

// acceptableSkew tolerates clock drift between us and the identity provider
const acceptableSkew = 10 * time.Second

// AuthUseCaseInterface verifies bearer tokens
type AuthUseCaseInterface interface {
	ValidateToken(ctx context.Context, rawToken string) (*auth.User, error)
	IsNoAuthn() bool
}

// AuthUseCase verifies JWTs issued by an external identity provider,
// against either a JWKS endpoint or a shared HMAC secret
type AuthUseCase struct {
	jwksURL    string
	hmacSecret []byte
	audience   string

	jwksCache *jwk.Cache
	keySet    jwk.Set
	cache     *authCache
}

var _ AuthUseCaseInterface = &AuthUseCase{}

// AuthOption is a functional option for AuthUseCase
type AuthOption func(*AuthUseCase)

// WithJWKSURL verifies tokens with keys fetched from url
func WithJWKSURL(url string) AuthOption {
	return func(uc *AuthUseCase) {
		uc.jwksURL = url
	}
}

// WithHMACSecret verifies HS256 tokens with a shared secret
func WithHMACSecret(secret string) AuthOption {
	return func(uc *AuthUseCase) {
		uc.hmacSecret = []byte(secret)
	}
}

// WithAudience requires the aud claim to contain audience
func WithAudience(audience string) AuthOption {
	return func(uc *AuthUseCase) {
		uc.audience = audience
	}
}

// NewAuthUseCase builds a verifier. Exactly one of WithJWKSURL and
// WithHMACSecret must be given. The JWKS is fetched once here and then
// refreshed in the background for the lifetime of ctx.
func NewAuthUseCase(ctx context.Context, options ...AuthOption) (*AuthUseCase, error) {
	uc := &AuthUseCase{
		cache: newAuthCache(),
	}

	for _, opt := range options {
		opt(uc)
	}

	switch {
	case uc.jwksURL != "" && len(uc.hmacSecret) > 0:
		return nil, goerr.New("JWKS URL and HMAC secret are mutually exclusive")
	case uc.jwksURL == "" && len(uc.hmacSecret) == 0:
		return nil, goerr.New("either JWKS URL or HMAC secret is required")
	}

	if uc.jwksURL != "" {
		uc.jwksCache = jwk.NewCache(ctx)
		if err := uc.jwksCache.Register(uc.jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			return nil, goerr.Wrap(err, "failed to register JWKS URL", goerr.V("jwks_url", uc.jwksURL))
		}
		if _, err := uc.jwksCache.Refresh(ctx, uc.jwksURL); err != nil {
			return nil, goerr.Wrap(err, "failed to fetch JWKS", goerr.V("jwks_url", uc.jwksURL))
		}
		uc.keySet = jwk.NewCachedSet(uc.jwksCache, uc.jwksURL)
	}

	return uc, nil
}

func (uc *AuthUseCase) parseOptions() []jwt.ParseOption {
	opts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(acceptableSkew),
	}
	if uc.keySet != nil {
		opts = append(opts, jwt.WithKeySet(uc.keySet))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, uc.hmacSecret))
	}
	if uc.audience != "" {
		opts = append(opts, jwt.WithAudience(uc.audience))
	}
	return opts
}

// decodeToken verifies the signature and standard claims, then extracts the user
func (uc *AuthUseCase) decodeToken(rawToken string) (*auth.User, error) {
	token, err := jwt.Parse([]byte(rawToken), uc.parseOptions()...)
	if err != nil {
		return nil, goerr.Wrap(model.ErrUnauthorized, "failed to parse or verify JWT token", goerr.V("cause", err.Error()))
	}

	if token.Subject() == "" {
		return nil, goerr.Wrap(model.ErrUnauthorized, "sub claim not found in token")
	}

	user := &auth.User{
		Sub:       token.Subject(),
		ExpiresAt: token.Expiration(),
	}
	if email, ok := token.Get("email"); ok {
		user.Email, _ = email.(string)
	}
	if name, ok := token.Get("name"); ok {
		user.Name, _ = name.(string)
	}

	return user, nil
}

// ValidateToken verifies rawToken and returns the user it asserts
func (uc *AuthUseCase) ValidateToken(ctx context.Context, rawToken string) (*auth.User, error) {
	if rawToken == "" {
		return nil, goerr.Wrap(model.ErrUnauthorized, "token is required")
	}

	if user, ok := uc.cache.get(rawToken); ok {
		return user, nil
	}

	user, err := uc.decodeToken(rawToken)
	if err != nil {
		return nil, err
	}

	uc.cache.set(rawToken, user)
	return user, nil
}

// IsNoAuthn returns false for AuthUseCase
func (uc *AuthUseCase) IsNoAuthn() bool {
	return false
}
