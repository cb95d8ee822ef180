package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/formdoc/internal/form"
)

// SetSharePassword protects the form's public link with a password. An
// empty password removes the protection.
func (s *Service) SetSharePassword(ctx context.Context, id, password string) error {
	return s.mutate(ctx, id, "share-password", func(doc *form.Document, _ time.Time) error {
		if password == "" {
			doc.Settings.SharePasswordHash = nil
			return nil
		}
		hash, err := form.HashSharePassword(password)
		if err != nil {
			return err
		}
		doc.Settings.SharePasswordHash = &hash
		return nil
	})
}

// RotatePublicToken issues a new public link token and returns it.
func (s *Service) RotatePublicToken(ctx context.Context, id string) (string, error) {
	var token string
	err := s.mutate(ctx, id, "public-token", func(doc *form.Document, _ time.Time) error {
		t, err := form.NewPublicToken()
		if err != nil {
			return err
		}
		token = t
		doc.Settings.PublicToken = &token
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// CreateAPIKey adds an API key to the form and returns its plaintext. The
// plaintext is not stored and cannot be recovered.
func (s *Service) CreateAPIKey(ctx context.Context, id, name string, permissions []string) (string, form.APIKey, error) {
	var (
		plaintext string
		key       form.APIKey
	)
	err := s.mutate(ctx, id, "api-key", func(doc *form.Document, now time.Time) error {
		var err error
		plaintext, key, err = form.NewAPIKey(name, permissions, now)
		if err != nil {
			return fmt.Errorf("generate api key: %w", err)
		}
		doc.Settings.APIKeys = append(doc.Settings.APIKeys, key)
		return nil
	})
	if err != nil {
		return "", form.APIKey{}, err
	}
	slog.Info("api key created", "doc", id, "key", key.ID, "name", name)
	return plaintext, key, nil
}

// RevokeAPIKey removes the API key with the given id.
func (s *Service) RevokeAPIKey(ctx context.Context, id, keyID string) error {
	return s.mutate(ctx, id, "api-key-revoke", func(doc *form.Document, _ time.Time) error {
		keys := doc.Settings.APIKeys
		for i := range keys {
			if keys[i].ID == keyID {
				doc.Settings.APIKeys = append(keys[:i:i], keys[i+1:]...)
				return nil
			}
		}
		return newNotFoundError(id, "api key "+keyID, nil)
	})
}
