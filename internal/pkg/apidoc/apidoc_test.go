package apidoc

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docPath = "../../../public/docs/v1/openapi.yml"

func TestDocumentIsValid(t *testing.T) {
	doc, err := Load(context.Background(), docPath)
	require.NoError(t, err)

	for _, path := range []string{
		"/api/v1/provider/feeplan",
		"/api/v1/provider/feeplan/mark-paid",
		"/api/v1/fee-plans/{id}",
		"/api/v1/pg/create-order",
		"/api/v1/pg/orders/{orderId}",
		"/api/v1/pg/webhook",
		"/api/v1/consumer/payment-history",
		"/api/v1/provider/payments",
		"/api/v1/provider/kyc",
		"/api/v1/provider/kyc/individual",
		"/api/v1/provider/kyc/organization",
		"/api/v1/admin/kyc",
		"/api/v1/admin/kyc/{id}/review",
		"/api/v1/provider/search",
		"/api/v1/provider/member/by-uniqueid",
		"/api/v1/consumer/claim-membership",
		"/api/v1/consumer/memberships",
		"/api/v1/consumer/memberships/{id}/schedule",
	} {
		assert.NotNil(t, doc.Spec.Paths.Find(path), path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), "does-not-exist.yml")
	require.Error(t, err)
}

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	doc, err := Load(context.Background(), docPath)
	require.NoError(t, err)
	app := fiber.New()
	app.Use(doc.Middleware())
	handler := func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"success": true}) }
	app.Post("/api/v1/pg/create-order", handler)
	app.Get("/api/v1/consumer/payment-history", handler)
	app.Post("/api/v1/admin/kyc/:id/review", handler)
	app.Post("/api/v1/provider/kyc/individual", handler)
	app.Get("/api/v1/undocumented", handler)
	return app
}

func TestMiddleware(t *testing.T) {
	app := testApp(t)
	tests := []struct {
		name       string
		method     string
		path       string
		ctype      string
		body       string
		wantStatus int
		wantInBody string
	}{
		{name: "valid order", method: "POST", path: "/api/v1/pg/create-order", ctype: "application/json",
			body: `{"feePlanId":7}`, wantStatus: 200},
		{name: "order without plan", method: "POST", path: "/api/v1/pg/create-order", ctype: "application/json",
			body: `{"memberId":3}`, wantStatus: 400, wantInBody: "bad_request"},
		{name: "plan id as string", method: "POST", path: "/api/v1/pg/create-order", ctype: "application/json",
			body: `{"feePlanId":"seven"}`, wantStatus: 400, wantInBody: "feePlanId"},
		{name: "bad page parameter", method: "GET", path: "/api/v1/consumer/payment-history?page=abc",
			wantStatus: 400, wantInBody: `parameter \"page\" is invalid`},
		{name: "history without filters", method: "GET", path: "/api/v1/consumer/payment-history", wantStatus: 200},
		{name: "unknown decision", method: "POST", path: "/api/v1/admin/kyc/4/review", ctype: "application/json",
			body: `{"decision":"maybe"}`, wantStatus: 400},
		{name: "valid decision", method: "POST", path: "/api/v1/admin/kyc/4/review", ctype: "application/json",
			body: `{"decision":"approve"}`, wantStatus: 200},
		{name: "multipart body is not validated", method: "POST", path: "/api/v1/provider/kyc/individual",
			ctype: "multipart/form-data; boundary=x", body: "--x--\r\n", wantStatus: 200},
		{name: "undocumented route", method: "GET", path: "/api/v1/undocumented", wantStatus: 200},
	}
	for _, tt := range tests {
		var body io.Reader
		if tt.body != "" {
			body = strings.NewReader(tt.body)
		}
		req := httptest.NewRequest(tt.method, tt.path, body)
		if tt.ctype != "" {
			req.Header.Set("Content-Type", tt.ctype)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tt.wantStatus {
			t.Fatalf("%s: status %d, want %d (%s)", tt.name, resp.StatusCode, tt.wantStatus, raw)
		}
		if tt.wantInBody != "" && !strings.Contains(string(raw), tt.wantInBody) {
			t.Fatalf("%s: body %s does not contain %s", tt.name, raw, tt.wantInBody)
		}
	}
}

func TestValidateRequestsWithoutDocument(t *testing.T) {
	mu.Lock()
	prev := current
	current = nil
	mu.Unlock()
	defer func() {
		mu.Lock()
		current = prev
		mu.Unlock()
	}()

	app := fiber.New()
	app.Use(ValidateRequests())
	app.Post("/api/v1/pg/create-order", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	resp, err := app.Test(httptest.NewRequest("POST", "/api/v1/pg/create-order", strings.NewReader("{}")), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
