package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

const webhookTimeout = 15 * time.Second

// HandleCreateOrder opens a gateway order for a fee plan and returns
// {payment_session_id, order_id}.
func (ac *APIController) HandleCreateOrder(c *fiber.Ctx) error {
	var in billing.CreateOrderInput
	if err := c.BodyParser(&in); err != nil || in.FeePlanID == 0 {
		return fail(c, fiber.StatusBadRequest, "bad_request", "feePlanId is required")
	}
	a := usercontext.GetActor(c)
	if a.Role == actor.RoleConsumer {
		cid := a.ConsumerID
		in.ConsumerID = &cid
	}
	order, err := ac.d.Payments.CreateOrder(c.UserContext(), a, in)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, order)
}

// HandleGetOrder returns one order of the actor.
func (ac *APIController) HandleGetOrder(c *fiber.Ctx) error {
	t, err := ac.d.Payments.GetOrder(c.UserContext(), usercontext.GetActor(c), c.Params("orderId"))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, t)
}

// HandlePaymentWebhook records a gateway delivery and applies its status.
// Deliveries that are not final yet are re-verified in the background.
func (ac *APIController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	timestamp := c.Get(billing.TimestampHeader)
	signature := c.Get(billing.SignatureHeader)
	signatureValid := billing.VerifyWebhookSignature(rawBody, timestamp, signature, ac.d.WebhookSecret)

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	t, err := ac.d.Payments.HandleWebhook(ctx, rawBody, signatureValid)
	if !signatureValid {
		log.Warnf("[Billing] Rejected webhook with invalid signature")
		return fail(c, fiber.StatusUnauthorized, "invalid_signature", "invalid webhook signature")
	}
	if err != nil {
		if errors.Is(err, billing.ErrOrderNotFound) {
			return c.JSON(fiber.Map{"success": true, "ignored": true})
		}
		log.Errorf("[Billing] Webhook processing failed: %v", err)
		return fail(c, fiber.StatusInternalServerError, "webhook_failed", msgInternal)
	}
	if t == nil {
		return c.JSON(fiber.Map{"success": true, "duplicate": true})
	}
	if !t.IsFinal() && ac.d.OrderJobs != nil {
		if err := ac.d.OrderJobs.EnqueueVerifyOrder(ctx, t.OrderID, "webhook"); err != nil {
			log.Warnf("[Billing] Failed to enqueue verification of %s: %v", t.OrderID, err)
		}
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"orderId": t.OrderID, "status": t.Status}})
}

func (ac *APIController) history(c *fiber.Ctx) (*billing.HistoryPage, error) {
	f, err := billing.ParseHistoryFilter(c.Query("page"), c.Query("limit"), c.Query("status"),
		c.Query("from"), c.Query("to"), c.Query("search"))
	if err != nil {
		return nil, err
	}
	return ac.d.Payments.History(c.UserContext(), usercontext.GetActor(c), f)
}

// HandleConsumerPaymentHistory lists the consumer's transactions.
func (ac *APIController) HandleConsumerPaymentHistory(c *fiber.Ctx) error {
	page, err := ac.history(c)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, page)
}

// HandleProviderPayments lists the payments received by the provider.
func (ac *APIController) HandleProviderPayments(c *fiber.Ctx) error {
	page, err := ac.history(c)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, fiber.Map{
		"payments":   page.Transactions,
		"pagination": page.Pagination,
		"summary":    page.Summary,
	})
}
