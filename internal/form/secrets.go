package form

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/formdoc/internal/canonical"
)

const apiKeyPrefix = "fdk_"

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// HashSharePassword returns the bcrypt hash stored in
// Settings.SharePasswordHash.
func HashSharePassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash share password: %w", err)
	}
	return string(hash), nil
}

// CheckSharePassword reports whether password opens a form shared with a
// password. A form without a share password accepts any input.
func CheckSharePassword(s Settings, password string) bool {
	if s.SharePasswordHash == nil || *s.SharePasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(*s.SharePasswordHash), []byte(password)) == nil
}

// NewPublicToken returns a random token for Settings.PublicToken.
func NewPublicToken() (string, error) {
	return randomToken(20)
}

// NewAPIKey creates a key record and returns it together with the plaintext
// key. The plaintext is not recoverable afterwards.
func NewAPIKey(name string, permissions []string, now time.Time) (string, APIKey, error) {
	secret, err := randomToken(30)
	if err != nil {
		return "", APIKey{}, err
	}
	plaintext := apiKeyPrefix + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", APIKey{}, fmt.Errorf("hash api key: %w", err)
	}
	if permissions == nil {
		permissions = []string{}
	}
	return plaintext, APIKey{
		ID:          uuid.NewString(),
		Name:        name,
		Hash:        string(hash),
		Permissions: permissions,
		CreatedAt:   now.UTC(),
	}, nil
}

// VerifyAPIKey returns the key in s that matches plaintext.
func VerifyAPIKey(s Settings, plaintext string) (*APIKey, bool) {
	if !strings.HasPrefix(plaintext, apiKeyPrefix) {
		return nil, false
	}
	for i := range s.APIKeys {
		if bcrypt.CompareHashAndPassword([]byte(s.APIKeys[i].Hash), []byte(plaintext)) == nil {
			return &s.APIKeys[i], true
		}
	}
	return nil, false
}

// Fingerprint derives a stable anonymous fingerprint for a respondent of
// formID from client-supplied parts (address, user agent, ...). The form id
// is mixed in so fingerprints cannot be correlated across forms.
func Fingerprint(formID string, parts ...string) string {
	return canonical.HashWithDomain(canonical.DomainFingerprint, append([]string{formID}, parts...)...)
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return strings.ToLower(tokenEncoding.EncodeToString(b)), nil
}
