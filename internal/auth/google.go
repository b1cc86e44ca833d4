package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

// IdentityVerifier turns a client supplied Google token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (core.Identity, error)
}

// GoogleVerifier accepts Google ID tokens (checked against the client id) and
// OAuth access tokens (resolved through the userinfo endpoint).
type GoogleVerifier struct {
	clientID string
	opts     []option.ClientOption
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

var _ IdentityVerifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier builds a verifier. opts are applied to the userinfo client.
func NewGoogleVerifier(clientID string, opts ...option.ClientOption) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, opts: opts, validate: idtoken.Validate}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (core.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Identity{}, core.Unauthorized("missing Google token")
	}
	if strings.Count(token, ".") == 2 {
		return v.verifyIDToken(ctx, token)
	}
	return v.verifyAccessToken(ctx, token)
}

func (v *GoogleVerifier) verifyIDToken(ctx context.Context, token string) (core.Identity, error) {
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		slog.WarnContext(ctx, "Google ID token rejected", "error", err)
		return core.Identity{}, core.Unauthorized("invalid Google token")
	}
	id := core.Identity{
		Subject: payload.Subject,
		Email:   claim(payload.Claims, "email"),
		Name:    claim(payload.Claims, "name"),
		Picture: claim(payload.Claims, "picture"),
	}
	if id.Subject == "" || id.Email == "" {
		return core.Identity{}, core.Unauthorized("Google token has no subject or email")
	}
	return id, nil
}

func (v *GoogleVerifier) verifyAccessToken(ctx context.Context, token string) (core.Identity, error) {
	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})),
	}, v.opts...)
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return core.Identity{}, core.Upstream("create userinfo client", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		slog.WarnContext(ctx, "Google access token rejected", "error", err)
		return core.Identity{}, core.Unauthorized("invalid Google token")
	}
	if info.Id == "" || info.Email == "" {
		return core.Identity{}, core.Unauthorized("Google account has no id or email")
	}
	return core.Identity{
		Subject: info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

func claim(claims map[string]any, key string) string {
	if v, ok := claims[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}
