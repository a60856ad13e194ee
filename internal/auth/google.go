package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleProfile is the subset of the Google userinfo response used for sign-in.
type GoogleProfile struct {
	ID            string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

type codeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// GoogleOAuth runs the authorization code flow against Google.
type GoogleOAuth struct {
	config codeExchanger
	fetch  func(ctx context.Context, tok *oauth2.Token) (*GoogleProfile, error)
}

// NewGoogleOAuth returns nil unless client id, secret and callback URL are all set.
func NewGoogleOAuth(clientID, clientSecret, callbackURL string) *GoogleOAuth {
	if clientID == "" || clientSecret == "" || callbackURL == "" {
		return nil
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{googleoauth.UserinfoProfileScope, googleoauth.UserinfoEmailScope},
	}
	return &GoogleOAuth{
		config: cfg,
		fetch: func(ctx context.Context, tok *oauth2.Token) (*GoogleProfile, error) {
			return fetchUserinfo(ctx, cfg.TokenSource(ctx, tok))
		},
	}
}

// AuthCodeURL is the consent page URL carrying state.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's profile.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("auth: google: missing authorization code")
	}
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: google: exchange code: %w", err)
	}
	profile, err := g.fetch(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("auth: google: fetch profile: %w", err)
	}
	return profile, nil
}

func fetchUserinfo(ctx context.Context, ts oauth2.TokenSource) (*GoogleProfile, error) {
	svc, err := googleoauth.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &GoogleProfile{
		ID:            info.Id,
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		EmailVerified: info.VerifiedEmail != nil && *info.VerifiedEmail,
	}, nil
}
