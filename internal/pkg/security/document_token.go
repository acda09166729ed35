package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid document token")
	ErrTokenExpired = errors.New("document token expired")
)

// DocumentTokenClaims grants read access to one stored KYC document.
type DocumentTokenClaims struct {
	VerificationID uint   `json:"vid"`
	Key            string `json:"key"`
	ExpiresAt      int64  `json:"exp"`
}

// GenerateDocumentToken signs claims as base64url(payload).base64url(hmac).
func GenerateDocumentToken(verificationID uint, key string, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for token generation")
	}
	if key == "" {
		return "", errors.New("object key is required")
	}
	claims := DocumentTokenClaims{
		VerificationID: verificationID,
		Key:            key,
		ExpiresAt:      time.Now().Add(ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s",
		base64.RawURLEncoding.EncodeToString(payload),
		base64.RawURLEncoding.EncodeToString(sign(payload, secret)),
	), nil
}

// VerifyDocumentToken checks signature and expiry and returns the claims.
func VerifyDocumentToken(token, secret string) (*DocumentTokenClaims, error) {
	if secret == "" {
		return nil, errors.New("secret is required for token verification")
	}
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal(sig, sign(payload, secret)) {
		return nil, ErrInvalidToken
	}
	var claims DocumentTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

func sign(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
