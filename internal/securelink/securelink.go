// Package securelink builds and validates the access tokens that gate
// published invitation pages. A token binds an invitation id to its
// current password state, so rotating the password invalidates every
// previously issued link.
package securelink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"davetjet-backend/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type Builder struct {
	Secret  []byte
	BaseURL string
}

type claims struct {
	ID       string `json:"id"`
	Password string `json:"p"`
}

// Token issues a signed access token for the invitation.
func (b *Builder) Token(inv *domain.Invitation) string {
	raw, _ := json.Marshal(claims{ID: inv.InvitationID.String(), Password: inv.PasswordHash})
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + b.sign(raw)
}

// Validate checks signature and that the token still matches the
// invitation's id and password state.
func (b *Builder) Validate(inv *domain.Invitation, token string) bool {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	if !hmac.Equal([]byte(b.sign(raw)), []byte(parts[1])) {
		return false
	}
	var c claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return false
	}
	return c.ID == inv.InvitationID.String() && c.Password == inv.PasswordHash
}

// EntryURL is the public link embedded in outbound messages:
// <base>/i/<slug>/a/<token>/ — the page handler sets a cookie and
// redirects to the clean invitation URL.
func (b *Builder) EntryURL(inv *domain.Invitation) string {
	base := strings.TrimRight(b.BaseURL, "/")
	return fmt.Sprintf("%s/i/%s/a/%s/", base, inv.Slug, url.PathEscape(b.Token(inv)))
}

func (b *Builder) sign(raw []byte) string {
	mac := hmac.New(sha256.New, b.Secret)
	mac.Write(raw)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// HashPassword hashes an invitation password for storage.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword verifies a visitor-entered password against the stored hash.
func CheckPassword(inv *domain.Invitation, plain string) bool {
	if !inv.PasswordProtected {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(inv.PasswordHash), []byte(plain)) == nil
}
