package kyc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/internal/pkg/mail"
)

// Notifier mails providers the outcome of a review.
type Notifier struct {
	repo    Repository
	sender  mail.Sender
	baseURL string
}

func NewNotifier(repo Repository, sender mail.Sender, baseURL string) *Notifier {
	return &Notifier{repo: repo, sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

// NotifyReview sends the status page text of the verification to the
// provider. Providers without an email address are skipped.
func (n *Notifier) NotifyReview(ctx context.Context, verificationID uint) error {
	_ = ctx
	v, err := n.repo.GetByID(verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if v.Provider == nil || strings.TrimSpace(v.Provider.Email) == "" {
		log.Warnf("[KYC] Verification %d has no provider email, skipping notification", v.ID)
		return nil
	}
	status, err := ParseStatus(v.Status)
	if err != nil {
		return err
	}
	page, err := PageFor(status)
	if err != nil {
		return err
	}

	subject, body, err := mail.RenderKYCReview(mail.KYCReviewData{
		ProviderName: v.Provider.Name,
		Title:        page.Title,
		Message:      page.Message,
		Remarks:      v.Remarks,
		Link:         n.baseURL + hrefStatus,
	})
	if err != nil {
		return fmt.Errorf("render review mail: %w", err)
	}
	return n.sender.Send(v.Provider.Email, subject, body)
}
