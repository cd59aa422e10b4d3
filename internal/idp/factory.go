package idp

import (
	"github.com/dgellow/gsession/internal/config"
)

// NewProvider creates the Google provider described by the backend config.
func NewProvider(cfg config.GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientSecretFile != "" {
		return NewGoogleProviderFromSecretFile(cfg.ClientSecretFile, cfg.RedirectURI, cfg.Scopes)
	}
	return NewGoogleProvider(cfg.ClientID, string(cfg.ClientSecret), cfg.RedirectURI, cfg.Scopes), nil
}
