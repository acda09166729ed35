package fragments

import "github.com/ManuelReschke/FeeBook/app/models"

// PollInterval is how often the verify page refreshes a pending order.
const PollInterval = "3s"

// TransactionTone maps a transaction status to a badge tone.
func TransactionTone(status string) string {
	switch status {
	case models.TransactionStatusSuccess:
		return "success"
	case models.TransactionStatusPending:
		return "info"
	case models.TransactionStatusFailed, models.TransactionStatusFlagged:
		return "error"
	}
	return "neutral"
}

func ReceiptPath(orderID string) string {
	return "/consumer/payments/receipt/" + orderID
}
