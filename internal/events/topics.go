package events

// Topic constants for domain events emitted by the billing core.
const (
	TopicPurchaseCompleted = "purchase.completed"
	TopicInvoiceSent       = "invoice.sent"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicPurchaseCompleted,
		TopicInvoiceSent,
	}
}
