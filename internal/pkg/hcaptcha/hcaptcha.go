package hcaptcha

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

const defaultVerifyURL = "https://api.hcaptcha.com/siteverify"

var (
	ErrEmptyToken    = errors.New("hCaptcha token is empty")
	ErrMissingSecret = errors.New("hCaptcha secret is not set")
	// ErrRejected wraps the error codes of a failed challenge.
	ErrRejected = errors.New("hCaptcha validation failed")
)

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verifier checks hCaptcha tokens submitted with the provider registration form.
type Verifier struct {
	Secret    string
	VerifyURL string
	Client    *http.Client
}

// NewVerifier reads HCAPTCHA_SECRET from the environment.
func NewVerifier() *Verifier {
	return &Verifier{
		Secret:    env.GetEnv("HCAPTCHA_SECRET", ""),
		VerifyURL: defaultVerifyURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify returns nil when the token passed. remoteIP is optional.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if v.Secret == "" {
		return ErrMissingSecret
	}

	form := url.Values{"secret": {v.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.Client.Do(req)
	if err != nil {
		return fmt.Errorf("hCaptcha request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hCaptcha request: unexpected status %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("hCaptcha response: %w", err)
	}
	if !out.Success {
		if len(out.ErrorCodes) == 0 {
			return ErrRejected
		}
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ", "))
	}
	return nil
}
