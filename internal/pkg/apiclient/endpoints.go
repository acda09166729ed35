package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/checkout"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
)

var (
	_ feeplan.Backend  = (*Client)(nil)
	_ checkout.Backend = (*Client)(nil)
)

func (c *Client) FetchMember(ctx context.Context, providerID, memberID uint) (*models.Member, error) {
	var m models.Member
	q := idQuery("providerId", providerID, "memberId", memberID)
	if err := c.do(ctx, http.MethodGet, "/api/v1/provider/feeplan", q, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

type feePlanBody struct {
	FeePlan feeplan.PlanInput `json:"feePlan"`
}

func (c *Client) CreatePlan(ctx context.Context, in feeplan.PlanInput) (*models.FeePlan, error) {
	var p models.FeePlan
	if err := c.do(ctx, http.MethodPost, "/api/v1/provider/feeplan", nil, feePlanBody{FeePlan: in}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdatePlan(ctx context.Context, in feeplan.PlanInput) (*models.FeePlan, error) {
	var p models.FeePlan
	if err := c.do(ctx, http.MethodPut, "/api/v1/provider/feeplan", nil, feePlanBody{FeePlan: in}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePlan(ctx context.Context, feePlanID uint) error {
	body := map[string]uint{"feePlanId": feePlanID}
	return c.do(ctx, http.MethodDelete, "/api/v1/provider/feeplan", nil, body, nil)
}

// MarkPaid toggles the offline-paid state of a plan.
func (c *Client) MarkPaid(ctx context.Context, providerID, feePlanID uint, isOfflinePaid bool) (*models.FeePlan, error) {
	body := struct {
		FeePlanID     uint `json:"feePlanId"`
		IsOfflinePaid bool `json:"isOfflinePaid"`
		ProviderID    uint `json:"providerId"`
	}{feePlanID, isOfflinePaid, providerID}
	var p models.FeePlan
	if err := c.do(ctx, http.MethodPost, "/api/v1/provider/feeplan/mark-paid", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetPaymentView(ctx context.Context, feePlanID uint) (*feeplan.PaymentView, error) {
	var v feeplan.PaymentView
	if err := c.do(ctx, http.MethodGet, "/api/v1/fee-plans/"+strconv.FormatUint(uint64(feePlanID), 10), nil, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.OrderResponse, error) {
	var out checkout.OrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/pg/create-order", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchProviders(ctx context.Context, category, region, search string, limit int) ([]membership.ProviderResult, error) {
	q := idQuery("category", category, "region", region, "search", search, "limit", limit)
	var out struct {
		Providers []membership.ProviderResult `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/provider/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

func (c *Client) FindMemberByUniqueID(ctx context.Context, providerID uint, uniqueID string) (*models.Member, error) {
	q := idQuery("providerId", providerID, "uniqueId", uniqueID)
	var out struct {
		Member *models.Member `json:"member"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/provider/member/by-uniqueid", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Member == nil {
		return nil, &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "Member not found"}
	}
	return out.Member, nil
}

// ClaimMembership returns *membership.ConflictError when the member was
// already claimed.
func (c *Client) ClaimMembership(ctx context.Context, req membership.ClaimRequest) (*models.ConsumerMembership, error) {
	var m models.ConsumerMembership
	err := c.do(ctx, http.MethodPost, "/api/v1/consumer/claim-membership", nil, req, &m)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		var data struct {
			MembershipID uint `json:"membershipId"`
		}
		if len(apiErr.Data) > 0 && json.Unmarshal(apiErr.Data, &data) == nil && data.MembershipID != 0 {
			return nil, &membership.ConflictError{MembershipID: data.MembershipID}
		}
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PaymentHistory fetches one page of the consumer's transactions.
func (c *Client) PaymentHistory(ctx context.Context, page, limit int, status string) (*billing.HistoryPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if status != "" {
		q.Set("status", status)
	}
	var out billing.HistoryPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/consumer/payment-history", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
