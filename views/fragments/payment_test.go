package fragments

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/app/models"
)

func TestBadge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Badge("error", "Overdue <late>").Render(context.Background(), &buf))
	assert.Equal(t, `<span class="badge badge-error">Overdue &lt;late&gt;</span>`, buf.String())
}

func TestPaymentStatus(t *testing.T) {
	amount := decimal.RequireFromString("250")
	tests := []struct {
		name    string
		tx      models.Transaction
		want    []string
		notWant []string
	}{
		{
			name:    "pending polls",
			tx:      models.Transaction{OrderID: "o-1", Status: models.TransactionStatusPending, Amount: amount, Currency: "INR"},
			want:    []string{`hx-get="/status/o-1"`, `hx-trigger="every 3s"`, "badge-info", "Waiting"},
			notWant: []string{"View receipt"},
		},
		{
			name:    "success links receipt",
			tx:      models.Transaction{OrderID: "o-2", Status: models.TransactionStatusSuccess, Amount: amount, Currency: "INR"},
			want:    []string{"250.00 INR", `href="/consumer/payments/receipt/o-2"`, "badge-success"},
			notWant: []string{"hx-get"},
		},
		{
			name:    "failed stops polling",
			tx:      models.Transaction{OrderID: "o-3", Status: models.TransactionStatusFailed, Amount: amount, Currency: "INR"},
			want:    []string{"did not complete", "badge-error"},
			notWant: []string{"hx-get", "View receipt"},
		},
		{
			name: "order id is escaped",
			tx:   models.Transaction{OrderID: `<b>x</b>`, Status: models.TransactionStatusPending},
			want: []string{"&lt;b&gt;x&lt;/b&gt;"},
		},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, PaymentStatus(&tt.tx, "/status/"+tt.tx.OrderID).Render(context.Background(), &buf), tt.name)
		out := buf.String()
		if !strings.HasPrefix(out, `<div id="payment-status"`) {
			t.Fatalf("%s: unexpected wrapper %q", tt.name, out)
		}
		for _, w := range tt.want {
			if !strings.Contains(out, w) {
				t.Fatalf("%s: %q missing %q", tt.name, out, w)
			}
		}
		for _, w := range tt.notWant {
			if strings.Contains(out, w) {
				t.Fatalf("%s: %q should not contain %q", tt.name, out, w)
			}
		}
	}
}

func TestTransactionTone(t *testing.T) {
	assert.Equal(t, "success", TransactionTone(models.TransactionStatusSuccess))
	assert.Equal(t, "error", TransactionTone(models.TransactionStatusFlagged))
	assert.Equal(t, "neutral", TransactionTone(models.TransactionStatusVoid))
}
