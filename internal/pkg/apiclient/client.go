// Package apiclient is a thin client for the FeeBook REST API. Portals
// deployed apart from the API use it as their feeplan and checkout backend.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

const defaultMessage = "Something went wrong. Please try again."

// APIError is a failed API call normalized to one message.
type APIError struct {
	Status  int
	Code    string
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Client calls the API with the caller's session cookie.
type Client struct {
	BaseURL    string
	Cookie     string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewFromEnv uses PORTAL_API_BASE_URL. It returns nil when the portal
// runs in the same process as the API.
func NewFromEnv() *Client {
	base := env.GetEnv("PORTAL_API_BASE_URL", "")
	if base == "" {
		return nil
	}
	return New(base)
}

// WithCookie returns a copy of the client sending cookie on every call.
func (c *Client) WithCookie(cookie string) *Client {
	cp := *c
	cp.Cookie = cookie
	return &cp
}

// do sends the request and decodes the envelope's data into out. Any
// non-2xx status or success=false becomes an *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Cookie != "" {
		req.Header.Set("Cookie", c.Cookie)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &APIError{Message: defaultMessage, Code: "network_error"}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	var res envelope
	decodeErr := json.Unmarshal(raw, &res)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !res.Success) {
		return normalize(resp.StatusCode, res, decodeErr)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	if out == nil || len(res.Data) == 0 || string(res.Data) == "null" {
		return nil
	}
	return json.Unmarshal(res.Data, out)
}

// normalize prefers the server's message, then its error code, then a
// fixed default.
func normalize(status int, res envelope, decodeErr error) *APIError {
	e := &APIError{Status: status, Code: res.Error, Data: res.Data}
	switch {
	case decodeErr == nil && strings.TrimSpace(res.Message) != "":
		e.Message = strings.TrimSpace(res.Message)
	case decodeErr == nil && strings.TrimSpace(res.Error) != "":
		e.Message = strings.TrimSpace(res.Error)
	default:
		e.Message = defaultMessage
	}
	return e
}

func idQuery(pairs ...any) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case uint:
			q.Set(key, strconv.FormatUint(uint64(v), 10))
		case int:
			q.Set(key, strconv.Itoa(v))
		case string:
			if v != "" {
				q.Set(key, v)
			}
		}
	}
	return q
}
