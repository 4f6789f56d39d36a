package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/billing"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/queue"
)

// TaskInvoiceEmail is the queue kind consumed by the invoice worker.
const TaskInvoiceEmail = "invoice-email"

// Scheduler implements events.Scheduler by handing purchase.completed events
// to the Redis task queue. The purchase id doubles as the idempotency key so
// re-emitting an event never produces a second invoice.
type Scheduler struct {
	Enqueuer    queue.Enqueuer
	MaxAttempts int
}

var _ events.Scheduler = Scheduler{}

// Schedule enqueues an invoice task for completed purchases; other topics are ignored.
func (s Scheduler) Schedule(ctx context.Context, event events.Event) error {
	if event.Topic != events.TopicPurchaseCompleted {
		return nil
	}
	return s.Enqueuer.Enqueue(ctx, queue.Task{
		Kind:           TaskInvoiceEmail,
		Payload:        event.Payload,
		IdempotencyKey: event.AggregateID.String(),
		MaxAttempts:    s.MaxAttempts,
	})
}

// ComposeInvoice renders the plain-text invoice for a committed purchase.
func ComposeInvoice(receipt billing.Receipt) (subject, body string) {
	subject = fmt.Sprintf("Invoice for purchase %s", receipt.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your purchase.\n\n")
	fmt.Fprintf(&b, "Purchase %s at %s\n\n", receipt.ID, receipt.CreatedAt.Format("2006-01-02 15:04"))
	for _, item := range receipt.Items {
		fmt.Fprintf(&b, "  %s x%d @ %s (tax %s%%) = %s\n",
			item.ProductName, item.Quantity, item.UnitPrice.StringFixed(2),
			item.TaxPercent, item.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal without tax: %s\n", receipt.TotalWithoutTax.StringFixed(2))
	fmt.Fprintf(&b, "Total tax:         %s\n", receipt.TotalTax.StringFixed(2))
	fmt.Fprintf(&b, "Net total:         %s\n", receipt.NetTotal.StringFixed(2))
	fmt.Fprintf(&b, "Amount payable:    %s\n", receipt.RoundedDownNetTotal.StringFixed(2))
	fmt.Fprintf(&b, "Cash paid:         %s\n", receipt.CashPaid.StringFixed(2))
	fmt.Fprintf(&b, "Change returned:   %s\n", receipt.BalancePayable.StringFixed(2))
	if len(receipt.Change) > 0 {
		fmt.Fprintf(&b, "\nChange breakdown:\n")
		for _, c := range receipt.Change {
			fmt.Fprintf(&b, "  %d x %d\n", c.Value, c.Count)
		}
	}
	return subject, b.String()
}
