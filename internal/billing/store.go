package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/till"
)

// ErrUnknownDenomination indicates a denomination value with no row in the till.
var ErrUnknownDenomination = errors.New("billing: unknown denomination value")

// Purchase is an immutable ledger snapshot written at checkout.
type Purchase struct {
	ID                  uuid.UUID       `json:"id"`
	CustomerEmail       string          `json:"customerEmail"`
	TotalWithoutTax     decimal.Decimal `json:"totalWithoutTax"`
	TotalTax            decimal.Decimal `json:"totalTax"`
	NetTotal            decimal.Decimal `json:"netTotal"`
	RoundedDownNetTotal decimal.Decimal `json:"roundedDownNetTotal"`
	CashPaid            decimal.Decimal `json:"cashPaid"`
	BalancePayable      decimal.Decimal `json:"balancePayable"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// PurchaseItem is a per-line snapshot decoupled from later product edits.
type PurchaseItem struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	ProductCode   string          `json:"productCode"`
	ProductName   string          `json:"productName"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TaxPercent    decimal.Decimal `json:"taxPercent"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	TaxPayable    decimal.Decimal `json:"taxPayable"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// Receipt is everything needed to render a completed purchase.
type Receipt struct {
	Purchase
	Items    []PurchaseItem    `json:"items"`
	Tendered []till.DenomCount `json:"tendered"`
	Change   []till.DenomCount `json:"change"`
}

// Tx groups the row-locking mutations performed inside a checkout transaction.
type Tx interface {
	GetProductForUpdate(ctx context.Context, code string) (catalog.Product, error)
	ListDenominationsForUpdate(ctx context.Context) ([]till.Denomination, error)
	InsertPurchase(ctx context.Context, p *Purchase) error
	InsertPurchaseItem(ctx context.Context, purchaseID uuid.UUID, item *PurchaseItem) error
	InsertCustomerDenomination(ctx context.Context, purchaseID uuid.UUID, value, count int64) error
	InsertPurchaseChange(ctx context.Context, purchaseID uuid.UUID, value, count int64) error
	EnsureDenomination(ctx context.Context, value int64) error
	AddDenominationCount(ctx context.Context, value, delta int64) error
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int64) error
}

// Store is the persistence boundary consumed by the billing service.
type Store interface {
	WithinTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetReceipt(ctx context.Context, id uuid.UUID) (Receipt, error)
	ListPurchasesByEmail(ctx context.Context, email string, limit, offset int32) ([]Purchase, error)
	CountPurchasesByEmail(ctx context.Context, email string) (int64, error)
}

// PGStore implements Store and events.Store against a pgx pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)
var _ events.Store = (*PGStore)(nil)

// WithinTx runs fn inside a single transaction; rollback on error.
func (s *PGStore) WithinTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

const purchaseColumns = `id, customer_email, total_without_tax::text, total_tax::text,
	net_total::text, rounded_down_net_total::text, cash_paid::text, balance_payable::text, created_at`

// GetReceipt loads a purchase with its items, tendered cash and change breakdown.
func (s *PGStore) GetReceipt(ctx context.Context, id uuid.UUID) (Receipt, error) {
	var r Receipt
	row := s.Pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if err != nil {
		return Receipt{}, err
	}
	r.Purchase = p

	rows, err := s.Pool.Query(ctx, `SELECT id, product_id, product_code, product_name, quantity,
		unit_price::text, tax_percent::text, purchase_price::text, tax_payable::text, total_price::text
		FROM purchase_items WHERE purchase_id = $1 ORDER BY product_code`, id)
	if err != nil {
		return Receipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item PurchaseItem
		var unitPrice, taxPercent, purchasePrice, taxPayable, total string
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductCode, &item.ProductName,
			&item.Quantity, &unitPrice, &taxPercent, &purchasePrice, &taxPayable, &total); err != nil {
			return Receipt{}, err
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return Receipt{}, err
		}
		if item.TaxPercent, err = decimal.NewFromString(taxPercent); err != nil {
			return Receipt{}, err
		}
		if item.PurchasePrice, err = decimal.NewFromString(purchasePrice); err != nil {
			return Receipt{}, err
		}
		if item.TaxPayable, err = decimal.NewFromString(taxPayable); err != nil {
			return Receipt{}, err
		}
		if item.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return Receipt{}, err
		}
		r.Items = append(r.Items, item)
	}
	if err := rows.Err(); err != nil {
		return Receipt{}, err
	}

	if r.Tendered, err = s.denomCounts(ctx, `SELECT value, count_given FROM customer_denominations
		WHERE purchase_id = $1 ORDER BY value DESC`, id); err != nil {
		return Receipt{}, err
	}
	if r.Change, err = s.denomCounts(ctx, `SELECT value, count_returned FROM purchase_changes
		WHERE purchase_id = $1 ORDER BY value DESC`, id); err != nil {
		return Receipt{}, err
	}
	return r, nil
}

func (s *PGStore) denomCounts(ctx context.Context, query string, purchaseID uuid.UUID) ([]till.DenomCount, error) {
	rows, err := s.Pool.Query(ctx, query, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []till.DenomCount
	for rows.Next() {
		var dc till.DenomCount
		if err := rows.Scan(&dc.Value, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// ListPurchasesByEmail returns a customer's purchase history, newest first.
func (s *PGStore) ListPurchasesByEmail(ctx context.Context, email string, limit, offset int32) ([]Purchase, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+purchaseColumns+` FROM purchases
		WHERE customer_email = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, email, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPurchasesByEmail returns the history size for pagination.
func (s *PGStore) CountPurchasesByEmail(ctx context.Context, email string) (int64, error) {
	var total int64
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM purchases WHERE customer_email = $1`, email).Scan(&total)
	return total, err
}

// InsertDomainEvent appends to the outbox table; implements events.Store.
func (s *PGStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	ev := events.Event{Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.Pool.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3) RETURNING id, occurred_at`, topic, aggregateID, payload).
		Scan(&ev.ID, &ev.OccurredAt)
	return ev, err
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var withoutTax, tax, net, rounded, cashPaid, balance string
	if err := row.Scan(&p.ID, &p.CustomerEmail, &withoutTax, &tax, &net, &rounded, &cashPaid, &balance, &p.CreatedAt); err != nil {
		return Purchase{}, err
	}
	var err error
	if p.TotalWithoutTax, err = decimal.NewFromString(withoutTax); err != nil {
		return Purchase{}, err
	}
	if p.TotalTax, err = decimal.NewFromString(tax); err != nil {
		return Purchase{}, err
	}
	if p.NetTotal, err = decimal.NewFromString(net); err != nil {
		return Purchase{}, err
	}
	if p.RoundedDownNetTotal, err = decimal.NewFromString(rounded); err != nil {
		return Purchase{}, err
	}
	if p.CashPaid, err = decimal.NewFromString(cashPaid); err != nil {
		return Purchase{}, err
	}
	if p.BalancePayable, err = decimal.NewFromString(balance); err != nil {
		return Purchase{}, err
	}
	return p, nil
}

type pgTx struct {
	tx pgx.Tx
}

const productForUpdate = `SELECT id, code, name, stock, unit_price::text, tax_percent::text, created_at
	FROM products WHERE code = $1 FOR UPDATE`

func (t *pgTx) GetProductForUpdate(ctx context.Context, code string) (catalog.Product, error) {
	var (
		p          catalog.Product
		unitPrice  string
		taxPercent string
	)
	row := t.tx.QueryRow(ctx, productForUpdate, code)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Stock, &unitPrice, &taxPercent, &p.CreatedAt); err != nil {
		return catalog.Product{}, err
	}
	var err error
	if p.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return catalog.Product{}, err
	}
	if p.TaxPercent, err = decimal.NewFromString(taxPercent); err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func (t *pgTx) ListDenominationsForUpdate(ctx context.Context) ([]till.Denomination, error) {
	rows, err := t.tx.Query(ctx, `SELECT value, count_available FROM denominations ORDER BY value DESC FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []till.Denomination
	for rows.Next() {
		var d till.Denomination
		if err := rows.Scan(&d.Value, &d.CountAvailable); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertPurchase(ctx context.Context, p *Purchase) error {
	return t.tx.QueryRow(ctx, `INSERT INTO purchases
		(customer_email, total_without_tax, total_tax, net_total, rounded_down_net_total, cash_paid, balance_payable)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric)
		RETURNING id, created_at`,
		p.CustomerEmail, p.TotalWithoutTax.String(), p.TotalTax.String(), p.NetTotal.String(),
		p.RoundedDownNetTotal.String(), p.CashPaid.String(), p.BalancePayable.String()).
		Scan(&p.ID, &p.CreatedAt)
}

func (t *pgTx) InsertPurchaseItem(ctx context.Context, purchaseID uuid.UUID, item *PurchaseItem) error {
	return t.tx.QueryRow(ctx, `INSERT INTO purchase_items
		(purchase_id, product_id, product_code, product_name, quantity, unit_price, tax_percent, purchase_price, tax_payable, total_price)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric)
		RETURNING id`,
		purchaseID, item.ProductID, item.ProductCode, item.ProductName, item.Quantity,
		item.UnitPrice.String(), item.TaxPercent.String(), item.PurchasePrice.String(),
		item.TaxPayable.String(), item.TotalPrice.String()).
		Scan(&item.ID)
}

func (t *pgTx) InsertCustomerDenomination(ctx context.Context, purchaseID uuid.UUID, value, count int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO customer_denominations (purchase_id, value, count_given)
		VALUES ($1, $2, $3)`, purchaseID, value, count)
	return err
}

func (t *pgTx) InsertPurchaseChange(ctx context.Context, purchaseID uuid.UUID, value, count int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_changes (purchase_id, value, count_returned)
		VALUES ($1, $2, $3)`, purchaseID, value, count)
	return err
}

// EnsureDenomination creates a zero-count till row for a value the till has
// never held, so customer cash in a new denomination can still be banked.
func (t *pgTx) EnsureDenomination(ctx context.Context, value int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO denominations (value, count_available)
		VALUES ($1, 0) ON CONFLICT (value) DO NOTHING`, value)
	return err
}

func (t *pgTx) AddDenominationCount(ctx context.Context, value, delta int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE denominations SET count_available = count_available + $2
		WHERE value = $1`, value, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownDenomination
	}
	return nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID uuid.UUID, qty int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1`, productID, qty)
	return err
}
