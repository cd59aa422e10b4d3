package idp

import (
	"context"
	"fmt"
	"os"

	"github.com/dgellow/gsession/internal/crypto"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleProvider implements Provider for Google OAuth with a fixed scope set
// and redirect URI.
type GoogleProvider struct {
	config oauth2.Config
}

// NewGoogleProvider creates a new Google OAuth provider.
func NewGoogleProvider(clientID, clientSecret, redirectURI string, scopes []string) *GoogleProvider {
	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint:     googleEndpoint(google.Endpoint),
		},
	}
}

// NewGoogleProviderFromSecretFile reads a client_secret.json downloaded from
// the Google Cloud console. The redirect URI always overrides the file's.
func NewGoogleProviderFromSecretFile(path, redirectURI string, scopes []string) (*GoogleProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret file: %w", err)
	}
	cfg.RedirectURL = redirectURI
	cfg.Endpoint = googleEndpoint(cfg.Endpoint)

	return &GoogleProvider{config: *cfg}, nil
}

// googleEndpoint applies endpoint overrides used against local fakes
func googleEndpoint(endpoint oauth2.Endpoint) oauth2.Endpoint {
	if authURL := os.Getenv("GOOGLE_OAUTH_AUTH_URL"); authURL != "" {
		endpoint.AuthURL = authURL
	}
	if tokenURL := os.Getenv("GOOGLE_OAUTH_TOKEN_URL"); tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	return endpoint
}

// Type returns the provider type.
func (p *GoogleProvider) Type() string {
	return "google"
}

// ClientID returns the OAuth client id, which is also the ID token audience.
func (p *GoogleProvider) ClientID() string {
	return p.config.ClientID
}

// AuthURL generates the authorization URL for a given state. Offline access
// is requested so Google returns a refresh token, and the account chooser is
// always shown.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// NewAuthorization generates a state and its authorization URL.
func (p *GoogleProvider) NewAuthorization() (string, string, error) {
	state, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", "", fmt.Errorf("generating state: %w", err)
	}
	return state, p.AuthURL(state), nil
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// NewRefreshConfig returns the OAuth config the front-end needs to refresh
// access tokens issued to clientID.
func NewRefreshConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleEndpoint(google.Endpoint),
	}
}
