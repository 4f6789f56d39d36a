package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/till"
)

// ErrPurchaseNotFound indicates an unknown purchase id.
var ErrPurchaseNotFound = common.NewAppError("NOT_FOUND", "purchase not found", http.StatusNotFound, nil)

// CheckoutLine is one structured line item of a checkout request.
type CheckoutLine struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int64  `json:"qty" validate:"required,gt=0"`
}

// TenderedDenomination is cash handed over by the customer, per face value.
type TenderedDenomination struct {
	Value int64 `json:"value" validate:"required,gt=0"`
	Count int64 `json:"count" validate:"required,gt=0"`
}

// CheckoutInput is the full billing request. Cash paid is derived from the
// tendered denominations, never supplied directly.
type CheckoutInput struct {
	CustomerEmail string                 `json:"customerEmail" validate:"required,email"`
	Lines         []CheckoutLine         `json:"lines" validate:"required,min=1,dive"`
	Tendered      []TenderedDenomination `json:"tendered" validate:"required,min=1,dive"`
}

// HistoryResult pages a customer's purchase history.
type HistoryResult struct {
	Items []Purchase
	Total int64
	Page  int
	Limit int
}

// Service orchestrates checkout: resolution, pricing, change and the ledger commit.
type Service struct {
	Store    Store
	Bus      *events.Bus
	Validate *validator.Validate
	Logger   zerolog.Logger

	DefaultLimit int
	MaxLimit     int
}

// Checkout runs the full billing flow inside one transaction. Product and
// denomination rows are locked before any amount is computed so that stock and
// till counts can never go negative under concurrent purchases.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (Receipt, error) {
	if err := s.validateInput(input); err != nil {
		recordPurchaseResult(err)
		return Receipt{}, err
	}

	cashPaid := decimal.Zero
	for _, t := range input.Tendered {
		cashPaid = cashPaid.Add(decimal.NewFromInt(t.Value).Mul(decimal.NewFromInt(t.Count)))
	}

	var receipt Receipt
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		items := make([]pricing.Item, 0, len(input.Lines))
		lineItems := make([]PurchaseItem, 0, len(input.Lines))
		for _, line := range input.Lines {
			product, err := tx.GetProductForUpdate(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return common.NewAppError("NOT_FOUND",
						fmt.Sprintf("product %q not found", line.ProductID), http.StatusNotFound, nil)
				}
				return err
			}
			if product.Stock < line.Qty {
				return common.NewAppError("INSUFFICIENT_STOCK",
					fmt.Sprintf("product %q has %d in stock, %d requested", product.Code, product.Stock, line.Qty),
					http.StatusConflict, nil)
			}
			items = append(items, pricing.Item{Qty: line.Qty, UnitPrice: product.UnitPrice, TaxPercent: product.TaxPercent})
			lineItems = append(lineItems, PurchaseItem{
				ProductID:   product.ID,
				ProductCode: product.Code,
				ProductName: product.Name,
				Quantity:    line.Qty,
				UnitPrice:   product.UnitPrice,
				TaxPercent:  product.TaxPercent,
			})
		}

		summary := pricing.Compute(items)
		for i := range lineItems {
			lineItems[i].PurchasePrice = summary.Lines[i].PurchasePrice
			lineItems[i].TaxPayable = summary.Lines[i].TaxPayable
			lineItems[i].TotalPrice = summary.Lines[i].Total
		}

		inventory, err := tx.ListDenominationsForUpdate(ctx)
		if err != nil {
			return err
		}
		// Change is resolved against the float as it stood before this
		// customer's cash is added.
		changeDue, breakdown, err := till.ResolveChange(summary.RoundedTotalUnits(), cashPaid, inventory)
		if err != nil {
			return err
		}

		purchase := Purchase{
			CustomerEmail:       input.CustomerEmail,
			TotalWithoutTax:     summary.TotalWithoutTax,
			TotalTax:            summary.TotalTax,
			NetTotal:            summary.NetTotal,
			RoundedDownNetTotal: summary.RoundedDownNetTotal,
			CashPaid:            cashPaid,
			BalancePayable:      decimal.NewFromInt(changeDue),
		}
		if err := tx.InsertPurchase(ctx, &purchase); err != nil {
			return err
		}
		for i := range lineItems {
			if err := tx.InsertPurchaseItem(ctx, purchase.ID, &lineItems[i]); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, lineItems[i].ProductID, lineItems[i].Quantity); err != nil {
				return err
			}
		}
		tendered := make([]till.DenomCount, 0, len(input.Tendered))
		for _, t := range input.Tendered {
			if err := tx.InsertCustomerDenomination(ctx, purchase.ID, t.Value, t.Count); err != nil {
				return err
			}
			// A value the till has never held gets a fresh zero-count row
			// before the customer's cash is added to it.
			if err := tx.EnsureDenomination(ctx, t.Value); err != nil {
				return err
			}
			if err := tx.AddDenominationCount(ctx, t.Value, t.Count); err != nil {
				return err
			}
			tendered = append(tendered, till.DenomCount{Value: t.Value, Count: t.Count})
		}
		for _, c := range breakdown {
			if err := tx.InsertPurchaseChange(ctx, purchase.ID, c.Value, c.Count); err != nil {
				return err
			}
			if err := tx.AddDenominationCount(ctx, c.Value, -c.Count); err != nil {
				return err
			}
		}

		receipt = Receipt{Purchase: purchase, Items: lineItems, Tendered: tendered, Change: breakdown}
		return nil
	})
	recordPurchaseResult(err)
	if err != nil {
		return Receipt{}, err
	}

	recordChange(receipt.Change)
	s.emitCompleted(ctx, receipt)
	return receipt, nil
}

// GetReceipt loads a committed purchase for display.
func (s *Service) GetReceipt(ctx context.Context, id uuid.UUID) (Receipt, error) {
	receipt, err := s.Store.GetReceipt(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrPurchaseNotFound
		}
		return Receipt{}, err
	}
	return receipt, nil
}

// History returns a page of a customer's purchases, newest first.
func (s *Service) History(ctx context.Context, email string, page, limit int) (HistoryResult, error) {
	if s.Validate != nil {
		if err := s.Validate.Var(email, "required,email"); err != nil {
			return HistoryResult{}, common.NewAppError("VALIDATION", "a valid email filter is required", http.StatusBadRequest, nil)
		}
	}
	if page < 1 {
		page = 1
	}
	defaultLimit := s.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := s.MaxLimit
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	total, err := s.Store.CountPurchasesByEmail(ctx, email)
	if err != nil {
		return HistoryResult{}, err
	}
	items, err := s.Store.ListPurchasesByEmail(ctx, email, int32(limit), int32((page-1)*limit))
	if err != nil {
		return HistoryResult{}, err
	}
	if items == nil {
		items = []Purchase{}
	}
	return HistoryResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) validateInput(input CheckoutInput) error {
	if s.Validate != nil {
		if err := s.Validate.Struct(input); err != nil {
			return common.NewAppError("VALIDATION", "invalid checkout request", http.StatusBadRequest, err)
		}
	}
	seenCodes := make(map[string]bool, len(input.Lines))
	for _, line := range input.Lines {
		if seenCodes[line.ProductID] {
			return common.NewAppError("VALIDATION",
				fmt.Sprintf("product %q appears on more than one line", line.ProductID), http.StatusBadRequest, nil)
		}
		seenCodes[line.ProductID] = true
	}
	seenValues := make(map[int64]bool, len(input.Tendered))
	for _, t := range input.Tendered {
		if seenValues[t.Value] {
			return common.NewAppError("VALIDATION",
				fmt.Sprintf("denomination %d appears more than once", t.Value), http.StatusBadRequest, nil)
		}
		seenValues[t.Value] = true
	}
	return nil
}

func (s *Service) emitCompleted(ctx context.Context, receipt Receipt) {
	if s.Bus == nil {
		return
	}
	payload := map[string]any{
		"purchaseId":    receipt.ID.String(),
		"customerEmail": receipt.CustomerEmail,
	}
	if _, err := s.Bus.Emit(ctx, events.TopicPurchaseCompleted, receipt.ID, payload); err != nil {
		// Invoice delivery is best effort; the committed purchase stands.
		s.Logger.Error().Err(err).Str("purchase_id", receipt.ID.String()).Msg("emit purchase.completed failed")
	}
}

func recordPurchaseResult(err error) {
	if obs.PurchasesTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Code != "" {
			result = appErr.Code
		}
	}
	obs.PurchasesTotal.WithLabelValues(result).Inc()
}

func recordChange(breakdown []till.DenomCount) {
	if obs.ChangeReturnedTotal == nil {
		return
	}
	for _, c := range breakdown {
		obs.ChangeReturnedTotal.WithLabelValues(strconv.FormatInt(c.Value, 10)).Add(float64(c.Count))
	}
}
