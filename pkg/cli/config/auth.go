package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Auth holds CLI flags for bearer token verification
type Auth struct {
	jwksURL    string
	hmacSecret string `masq:"secret"`
	audience   string
	noAuthSub  string
}

func (a *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "auth-jwks-url",
			Usage:       "JWKS URL of the identity provider",
			Category:    "Authentication",
			Sources:     cli.EnvVars("ZATSUGAKU_AUTH_JWKS_URL"),
			Destination: &a.jwksURL,
		},
		&cli.StringFlag{
			Name:        "auth-hmac-secret",
			Usage:       "Shared secret for HS256 tokens (e.g. Supabase JWT secret)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("ZATSUGAKU_AUTH_HMAC_SECRET"),
			Destination: &a.hmacSecret,
		},
		&cli.StringFlag{
			Name:        "auth-audience",
			Usage:       "Required audience claim",
			Category:    "Authentication",
			Sources:     cli.EnvVars("ZATSUGAKU_AUTH_AUDIENCE"),
			Destination: &a.audience,
		},
		&cli.StringFlag{
			Name:        "no-auth",
			Usage:       "Skip authentication and run as the specified subject (development only). Example: --no-auth=dev-user",
			Category:    "Authentication",
			Sources:     cli.EnvVars("ZATSUGAKU_NO_AUTH"),
			Destination: &a.noAuthSub,
		},
	}
}

func (a Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("jwks_url", a.jwksURL),
		slog.Bool("hmac_secret_set", a.hmacSecret != ""),
		slog.String("audience", a.audience),
		slog.String("no_auth", a.noAuthSub),
	)
}

// IsNoAuthMode reports whether a fixed development user is injected
func (a *Auth) IsNoAuthMode() bool {
	return a.noAuthSub != ""
}

// Configure returns the token verifier. It returns nil when nothing is
// configured, in which case every request is anonymous.
func (a *Auth) Configure(ctx context.Context) (usecase.AuthUseCaseInterface, error) {
	if a.noAuthSub != "" {
		if a.jwksURL != "" || a.hmacSecret != "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "no-auth cannot be combined with token verification")
		}
		logging.From(ctx).Warn("Running in no-auth mode (development only)", "sub", a.noAuthSub)
		return usecase.NewNoAuthnUseCase(a.noAuthSub, "", a.noAuthSub), nil
	}

	if a.jwksURL == "" && a.hmacSecret == "" {
		logging.From(ctx).Warn("Authentication is not configured; write and similarity features are unavailable")
		return nil, nil
	}

	var opts []usecase.AuthOption
	if a.jwksURL != "" {
		opts = append(opts, usecase.WithJWKSURL(a.jwksURL))
	}
	if a.hmacSecret != "" {
		opts = append(opts, usecase.WithHMACSecret(a.hmacSecret))
	}
	if a.audience != "" {
		opts = append(opts, usecase.WithAudience(a.audience))
	}

	authUC, err := usecase.NewAuthUseCase(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure authentication")
	}
	return authUC, nil
}
