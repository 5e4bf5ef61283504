package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

var ErrMalformedToken = errors.New("malformed admin token")

// NewCapabilityToken returns 32 random bytes as lowercase hex. Holding the
// token is the only proof needed to verify or unsubscribe.
func NewCapabilityToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewAdminToken issues "<id>.<secret>" for an administrator together with
// the argon2id hash to place in ADMIN_TOKENS.
func NewAdminToken(adminID int64) (token, hash string, err error) {
	if adminID <= 0 {
		return "", "", ErrMalformedToken
	}
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	hash, err = HashSecret(secret)
	if err != nil {
		return "", "", err
	}
	return strconv.FormatInt(adminID, 10) + "." + secret, hash, nil
}

func ParseAdminToken(token string) (adminID int64, secret string, err error) {
	idRaw, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || secret == "" {
		return 0, "", ErrMalformedToken
	}
	adminID, err = strconv.ParseInt(idRaw, 10, 64)
	if err != nil || adminID <= 0 {
		return 0, "", ErrMalformedToken
	}
	return adminID, secret, nil
}
