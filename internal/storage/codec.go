package storage

import (
	"fmt"

	"github.com/dgellow/gsession/internal/crypto"
)

// sealTokens returns a copy of session whose token fields are encrypted.
// Remote stores never see plaintext tokens.
func sealTokens(session *Session, encryptor crypto.Encryptor) (*Session, error) {
	sealed := *session
	for _, field := range []*string{&sealed.AccessToken, &sealed.RefreshToken, &sealed.IDToken} {
		if *field == "" {
			continue
		}
		enc, err := encryptor.Encrypt(*field)
		if err != nil {
			return nil, fmt.Errorf("encrypting session token: %w", err)
		}
		*field = enc
	}
	return &sealed, nil
}

// openTokens reverses sealTokens in place
func openTokens(session *Session, encryptor crypto.Encryptor) error {
	for _, field := range []*string{&session.AccessToken, &session.RefreshToken, &session.IDToken} {
		if *field == "" {
			continue
		}
		plain, err := encryptor.Decrypt(*field)
		if err != nil {
			return fmt.Errorf("decrypting session token: %w", err)
		}
		*field = plain
	}
	return nil
}
