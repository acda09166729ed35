package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/checkout"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL)
	c.HTTPClient = srv.Client()
	return c.WithCookie("session_id=abc")
}

func TestErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "message wins", status: 400, body: `{"success":false,"error":"validation_error","message":"Name is required"}`, message: "Name is required"},
		{name: "error code fallback", status: 500, body: `{"success":false,"error":"internal_error"}`, message: "internal_error"},
		{name: "html body", status: 502, body: `<html>bad gateway</html>`, message: defaultMessage},
		{name: "success false on 200", status: 200, body: `{"success":false,"message":"Fee plan not found"}`, message: "Fee plan not found"},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = io.WriteString(w, tt.body)
		})
		err := c.DeletePlan(context.Background(), 1)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != tt.message {
			t.Fatalf("%s: got %v, want message %q", tt.name, err, tt.message)
		}
	}
}

func TestFetchMemberSendsCookieAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/provider/feeplan", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("providerId"))
		assert.Equal(t, "7", r.URL.Query().Get("memberId"))
		assert.Equal(t, "session_id=abc", r.Header.Get("Cookie"))
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":7,"providerId":3,"firstName":"Asha","feePlans":[{"id":1,"name":"June","amount":"500","dueDate":"2024-06-01T00:00:00Z","status":"DUE"}]}}`)
	})
	m, err := c.FetchMember(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Len(t, m.FeePlans, 1)
	assert.Equal(t, "500", m.FeePlans[0].Amount.String())
}

func TestClaimMembershipConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"success":false,"error":"conflict","message":"Membership already exists","data":{"membershipId":12}}`)
	})
	_, err := c.ClaimMembership(context.Background(), membership.ClaimRequest{ProviderID: 1, MemberUniqueID: "STU-1"})
	var conflict *membership.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, uint(12), conflict.MembershipID)

	out := membership.InterpretClaim(0, err)
	assert.Equal(t, "/consumer/memberships/12", out.Navigate)
}

func TestCreateOrderAndNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/pg/create-order":
			_, _ = io.WriteString(w, `{"success":true,"data":{"payment_session_id":"sess","order_id":"order_1"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success":false,"error":"not_found","message":"Member not found"}`)
		}
	})
	out, err := c.CreateOrder(context.Background(), checkout.OrderRequest{FeePlanID: 9})
	require.NoError(t, err)
	assert.Equal(t, "sess", out.PaymentSessionID)

	_, err = c.FindMemberByUniqueID(context.Background(), 1, "X")
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "Member not found")
}

func TestEditorSavesThroughClient(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method)
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":7,"providerId":3,"feePlans":[]}}`)
		case http.MethodPost:
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":11,"name":"June","amount":"500","status":"DUE"}}`)
		}
	})

	ed := feeplan.NewEditor(feeplan.ConfigFor(actor.RoleProvider), 3, 7)
	require.NoError(t, ed.Fetch(context.Background(), c))
	ed.Rows[0].Name = "June"
	ed.Rows[0].Amount = "500"
	due := feeplan.CalendarDate{Year: 2024, Month: 6, Day: 1}
	ed.Rows[0].DueDate = &due

	report, err := ed.Save(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, report.Created, 1)
	assert.Equal(t, []string{http.MethodGet, http.MethodPost, http.MethodGet}, calls)
}
