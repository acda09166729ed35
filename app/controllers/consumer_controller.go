package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/checkout"
	"github.com/ManuelReschke/FeeBook/internal/pkg/constants"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/flash"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
	"github.com/ManuelReschke/FeeBook/views/fragments"
)

// ConsumerController serves the consumer portal.
type ConsumerController struct {
	d *Deps
}

func NewConsumerController(d *Deps) *ConsumerController {
	return &ConsumerController{d: d}
}

// paymentBackend lets the pay page call the services in-process.
type paymentBackend struct {
	d *Deps
	a actor.Actor
}

func (b paymentBackend) GetPaymentView(ctx context.Context, feePlanID uint) (*feeplan.PaymentView, error) {
	return b.d.FeePlans.GetPaymentView(ctx, feePlanID)
}

func (b paymentBackend) CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.OrderResponse, error) {
	out, err := b.d.Payments.CreateOrder(ctx, b.a, billing.CreateOrderInput{
		FeePlanID:  req.FeePlanID,
		MemberID:   req.MemberID,
		ProviderID: req.ProviderID,
		ConsumerID: req.ConsumerID,
	})
	if err != nil {
		return nil, err
	}
	return &checkout.OrderResponse{OrderID: out.OrderID, PaymentSessionID: out.PaymentSessionID}, nil
}

// HandleDashboard lists the consumer's memberships with their dues.
func (cc *ConsumerController) HandleDashboard(c *fiber.Ctx) error {
	cards, err := cc.d.Memberships.ListForConsumer(c.UserContext(), usercontext.GetActor(c))
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "consumer/dashboard", "My memberships", fiber.Map{"Memberships": cards})
}

// HandleSchedule shows one membership's fee plans.
func (cc *ConsumerController) HandleSchedule(c *fiber.Ctx) error {
	view, err := cc.d.Memberships.Schedule(c.UserContext(), usercontext.GetActor(c), parseID(c.Params("id")))
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "consumer/schedule", view.Provider.Name, fiber.Map{"Schedule": view})
}

// HandleWizard renders the current step of the add-membership wizard.
func (cc *ConsumerController) HandleWizard(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	w := cc.d.Memberships.LoadWizard(c.UserContext(), a.ConsumerID)
	return cc.renderWizard(c, w)
}

func (cc *ConsumerController) renderWizard(c *fiber.Ctx, w *membership.Wizard) error {
	idx, _ := w.Step.Index()
	return render(c, "consumer/wizard", w.Step.Title(), fiber.Map{
		"Wizard":     w,
		"StepIndex":  idx + 1,
		"StepCount":  len(membership.Steps),
		"Categories": models.ProviderCategories,
		"Regions":    membership.Regions,
		"MinSearch":  membership.MinSearchLength,
		"DebounceMs": membership.SearchDebounce.Milliseconds(),
		"Gen":        w.SearchGen,
		"Query":      w.Query,
		"Results":    w.Results,
		"CSRF":       csrfToken(c),
	})
}

// HandleWizardAction applies one form action to the wizard and persists it.
func (cc *ConsumerController) HandleWizardAction(c *fiber.Ctx) error {
	ctx := c.UserContext()
	a := usercontext.GetActor(c)
	w := cc.d.Memberships.LoadWizard(ctx, a.ConsumerID)

	var err error
	switch c.FormValue("action") {
	case "category":
		if err = w.SelectCategory(c.FormValue("category")); err == nil {
			err = w.Next()
		}
	case "region":
		if err = w.SelectRegion(c.FormValue("region")); err == nil {
			err = w.Next()
		}
	case "search":
		// Search persists its own state; saving w here would undo a newer query.
		if _, err := cc.d.Memberships.Search(ctx, a.ConsumerID, c.FormValue("query")); err != nil {
			return flash.Error(c, constants.ConsumerWizardRoute, errorMessage(err))
		}
		return c.Redirect(constants.ConsumerWizardRoute)
	case "provider":
		if err = w.SelectProvider(parseID(c.FormValue("providerId"))); err == nil {
			err = w.Next()
		}
	case "member":
		cc.lookupMember(ctx, w, c.FormValue("uniqueId"))
	case "next":
		err = w.Next()
	case "back":
		err = w.Back()
	case "reset":
		if err := cc.d.Memberships.ResetWizard(ctx, a.ConsumerID); err != nil {
			log.Warnf("[Wizard] Reset for consumer %d failed: %v", a.ConsumerID, err)
		}
		return c.Redirect(constants.ConsumerWizardRoute)
	case "claim":
		return cc.claim(c, a, w)
	default:
		err = errors.New("unknown action")
	}
	if err != nil {
		w.Error = err.Error()
	}
	if err := cc.d.Memberships.SaveWizard(ctx, a.ConsumerID, w); err != nil {
		log.Errorf("[Wizard] Save for consumer %d failed: %v", a.ConsumerID, err)
		return flash.Error(c, constants.ConsumerWizardRoute, msgInternal)
	}
	return c.Redirect(constants.ConsumerWizardRoute)
}

func (cc *ConsumerController) lookupMember(ctx context.Context, w *membership.Wizard, raw string) {
	id, err := w.SetUniqueID(raw)
	if err != nil {
		w.MemberLookupFailed(err.Error())
		return
	}
	if w.Provider == nil {
		w.MemberLookupFailed(membership.ErrStepIncomplete.Error())
		return
	}
	m, err := cc.d.Memberships.FindMemberByUniqueID(ctx, w.Provider.ID, id)
	if err != nil {
		w.MemberLookupFailed(errorMessage(err))
		return
	}
	if err := w.MemberFound(membership.SummarizeMember(m)); err != nil {
		w.MemberLookupFailed(err.Error())
	}
}

func (cc *ConsumerController) claim(c *fiber.Ctx, a actor.Actor, w *membership.Wizard) error {
	ctx := c.UserContext()
	req, err := w.Claim(a.ConsumerID)
	var out membership.ClaimOutcome
	if err != nil {
		out = membership.InterpretClaim(0, err)
	} else {
		m, claimErr := cc.d.Memberships.Claim(ctx, a, req)
		var id uint
		if m != nil {
			id = m.ID
		}
		out = membership.InterpretClaim(id, claimErr)
	}

	if out.Kind == membership.OutcomeFailed {
		w.Apply(out)
		if err := cc.d.Memberships.SaveWizard(ctx, a.ConsumerID, w); err != nil {
			log.Errorf("[Wizard] Save for consumer %d failed: %v", a.ConsumerID, err)
		}
		return flash.Error(c, constants.ConsumerWizardRoute, out.Error)
	}
	if err := cc.d.Memberships.ResetWizard(ctx, a.ConsumerID); err != nil {
		log.Warnf("[Wizard] Reset for consumer %d failed: %v", a.ConsumerID, err)
	}
	if out.Kind == membership.OutcomeConflict {
		// The page shows the toast and follows the link after out.Delay.
		return render(c, "consumer/claim_conflict", "Membership exists", fiber.Map{"Outcome": out})
	}
	return flash.Success(c, out.Navigate, out.Toast)
}

// HandleWizardSearch answers the debounced search box with a result list.
// The echoed gen lets the page ignore responses that arrive out of order.
func (cc *ConsumerController) HandleWizardSearch(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	out, err := cc.d.Memberships.Search(c.UserContext(), a.ConsumerID, c.Query("query"))
	if out == nil {
		log.Errorf("[Wizard] Search for consumer %d failed: %v", a.ConsumerID, err)
		return c.Status(fiber.StatusInternalServerError).SendString(msgInternal)
	}
	data := fiber.Map{
		"Gen":     out.Gen,
		"Query":   out.Query,
		"Results": out.Results,
		"CSRF":    csrfToken(c),
	}
	if err != nil {
		data["Error"] = errorMessage(err)
	}
	return c.Render("consumer/partials/search_results", data)
}

// HandlePay renders the pay page of ?feePlanId=.
func (cc *ConsumerController) HandlePay(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	var backend checkout.Backend = paymentBackend{d: cc.d, a: a}
	if cc.d.PortalAPI != nil {
		backend = cc.d.PortalAPI.WithCookie(c.Get(fiber.HeaderCookie))
	}
	flow := checkout.NewFlow(backend, nil, a)
	page, err := flow.Load(c.UserContext(), c.Query("feePlanId"))
	if err != nil {
		var loadErr *checkout.LoadError
		if errors.As(err, &loadErr) {
			return render(c, "consumer/pay", "Pay", fiber.Map{
				"LoadError": loadErr.Message,
				"Terminal":  loadErr.Terminal,
				"Retry":     c.OriginalURL(),
			})
		}
		return pageError(c, err)
	}
	return render(c, "consumer/pay", "Pay "+page.View.FeePlan.Name, fiber.Map{
		"Page":         page,
		"Badge":        page.DisplayStatus,
		"CheckoutMode": cc.d.CheckoutMode,
		"ModalTarget":  checkout.ModalTarget,
		"ConsumerID":   a.ConsumerID,
	})
}

type payResultRequest struct {
	OrderID string          `json:"orderId"`
	Result  checkout.Result `json:"result"`
}

// HandlePayResult turns the checkout result reported by the pay page into
// the toast and navigation it should follow.
func (cc *ConsumerController) HandlePayResult(c *fiber.Ctx) error {
	var req payResultRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	out := checkout.InterpretResult(req.OrderID, req.Result)
	if out.Kind == checkout.OutcomeProcessing && req.OrderID != "" && cc.d.OrderJobs != nil {
		if err := cc.d.OrderJobs.EnqueueVerifyOrder(c.UserContext(), req.OrderID, "pay_page"); err != nil {
			log.Warnf("[Checkout] Enqueue verification of %s failed: %v", req.OrderID, err)
		}
	}
	return ok(c, out)
}

// HandleVerify renders the verification page of an order.
func (cc *ConsumerController) HandleVerify(c *fiber.Ctx) error {
	t, err := cc.d.Payments.GetOrder(c.UserContext(), usercontext.GetActor(c), c.Params("orderId"))
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "consumer/verify", "Payment status", fiber.Map{
		"Transaction": t,
		"StatusURL":   checkout.VerifyPath(t.OrderID) + "/status",
	})
}

// HandleVerifyStatus re-checks a pending order with the gateway and returns
// the status fragment.
func (cc *ConsumerController) HandleVerifyStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()
	t, err := cc.d.Payments.GetOrder(ctx, usercontext.GetActor(c), c.Params("orderId"))
	if err != nil {
		status, _ := classify(err)
		return c.Status(status).SendString(errorMessage(err))
	}
	if !t.IsFinal() {
		verified, err := cc.d.Payments.VerifyOrder(ctx, t.OrderID)
		if err != nil {
			log.Warnf("[Checkout] Verify %s failed: %v", t.OrderID, err)
			if cc.d.OrderJobs != nil {
				if err := cc.d.OrderJobs.EnqueueVerifyOrder(ctx, t.OrderID, "verify_page"); err != nil {
					log.Warnf("[Checkout] Enqueue verification of %s failed: %v", t.OrderID, err)
				}
			}
		} else {
			t = verified
		}
	}
	return renderComponent(c, fragments.PaymentStatus(t, checkout.VerifyPath(t.OrderID)+"/status"))
}

// HandleHistory renders the consumer's payment history.
func (cc *ConsumerController) HandleHistory(c *fiber.Ctx) error {
	f, err := billing.ParseHistoryFilter(c.Query("page"), c.Query("limit"), c.Query("status"),
		c.Query("from"), c.Query("to"), c.Query("search"))
	if err != nil {
		return flash.Error(c, constants.ConsumerHistoryRoute, err.Error())
	}
	page, err := cc.d.Payments.History(c.UserContext(), usercontext.GetActor(c), f)
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "consumer/history", "Payments", fiber.Map{"History": page, "Filter": f})
}

// HandleReceipt shows the receipt of a successful order.
func (cc *ConsumerController) HandleReceipt(c *fiber.Ctx) error {
	t, err := cc.d.Payments.GetOrder(c.UserContext(), usercontext.GetActor(c), c.Params("orderId"))
	if err != nil {
		return pageError(c, err)
	}
	if t.Status != models.TransactionStatusSuccess {
		return flash.Error(c, checkout.VerifyPath(t.OrderID), "This payment has no receipt yet")
	}
	return render(c, "consumer/receipt", "Receipt", fiber.Map{"Transaction": t})
}
