package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/billing"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/queue"
)

// ReceiptLoader reads committed purchases for invoice rendering.
type ReceiptLoader interface {
	GetReceipt(ctx context.Context, id uuid.UUID) (billing.Receipt, error)
}

// InvoiceWorker sends invoice emails for completed purchases. A per-purchase
// Redis lock keeps redelivered tasks from racing each other.
type InvoiceWorker struct {
	Receipts ReceiptLoader
	Email    common.EmailSender
	Locker   lock.Locker
	LockTTL  time.Duration
	Logger   zerolog.Logger
}

type invoicePayload struct {
	PurchaseID    string `json:"purchaseId"`
	CustomerEmail string `json:"customerEmail"`
}

// Handle processes one invoice-email task. Returning an error requeues the
// task with backoff; malformed payloads are dropped without retry.
func (w InvoiceWorker) Handle(ctx context.Context, task queue.Task) error {
	var payload invoicePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		w.Logger.Error().Err(err).Msg("invoice task payload malformed, dropping")
		return nil
	}
	purchaseID, err := uuid.Parse(payload.PurchaseID)
	if err != nil {
		w.Logger.Error().Str("purchase_id", payload.PurchaseID).Msg("invoice task has invalid purchase id, dropping")
		return nil
	}

	deliver := func(ctx context.Context) error {
		receipt, err := w.Receipts.GetReceipt(ctx, purchaseID)
		if err != nil {
			return fmt.Errorf("load receipt %s: %w", purchaseID, err)
		}
		subject, body := ComposeInvoice(receipt)
		if err := w.Email.Send(receipt.CustomerEmail, subject, body); err != nil {
			return fmt.Errorf("send invoice %s: %w", purchaseID, err)
		}
		w.Logger.Info().Str("purchase_id", purchaseID.String()).Str("to", receipt.CustomerEmail).Msg("invoice sent")
		return nil
	}

	if w.Locker.R != nil {
		err = w.Locker.WithLock(ctx, "lock:invoice:"+purchaseID.String(), w.LockTTL, deliver)
	} else {
		err = deliver(ctx)
	}
	recordDelivery(err)
	return err
}

func recordDelivery(err error) {
	if obs.InvoiceDeliveriesTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	obs.InvoiceDeliveriesTotal.WithLabelValues(result).Inc()
}
