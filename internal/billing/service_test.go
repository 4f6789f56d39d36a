package billing_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/billing"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/till"
)

type fakeStore struct {
	products  map[string]catalog.Product
	denoms    map[int64]int64
	purchases map[uuid.UUID]billing.Purchase
	items     map[uuid.UUID][]billing.PurchaseItem
	tendered  map[uuid.UUID][]till.DenomCount
	change    map[uuid.UUID][]till.DenomCount
	emitted   []events.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  map[string]catalog.Product{},
		denoms:    map[int64]int64{},
		purchases: map[uuid.UUID]billing.Purchase{},
		items:     map[uuid.UUID][]billing.PurchaseItem{},
		tendered:  map[uuid.UUID][]till.DenomCount{},
		change:    map[uuid.UUID][]till.DenomCount{},
	}
}

func (s *fakeStore) addProduct(code, name string, stock int64, unitPrice, taxPercent string) {
	s.products[code] = catalog.Product{
		ID:         uuid.New(),
		Code:       code,
		Name:       name,
		Stock:      stock,
		UnitPrice:  decimal.RequireFromString(unitPrice),
		TaxPercent: decimal.RequireFromString(taxPercent),
		CreatedAt:  time.Now(),
	}
}

func (s *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.denoms {
		cp.denoms[k] = v
	}
	for k, v := range s.purchases {
		cp.purchases[k] = v
	}
	for k, v := range s.items {
		cp.items[k] = append([]billing.PurchaseItem(nil), v...)
	}
	for k, v := range s.tendered {
		cp.tendered[k] = append([]till.DenomCount(nil), v...)
	}
	for k, v := range s.change {
		cp.change[k] = append([]till.DenomCount(nil), v...)
	}
	return cp
}

func (s *fakeStore) restore(from *fakeStore) {
	s.products = from.products
	s.denoms = from.denoms
	s.purchases = from.purchases
	s.items = from.items
	s.tendered = from.tendered
	s.change = from.change
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(context.Context, billing.Tx) error) error {
	saved := s.snapshot()
	if err := fn(ctx, &fakeTx{store: s}); err != nil {
		s.restore(saved)
		return err
	}
	return nil
}

func (s *fakeStore) GetReceipt(_ context.Context, id uuid.UUID) (billing.Receipt, error) {
	p, ok := s.purchases[id]
	if !ok {
		return billing.Receipt{}, pgx.ErrNoRows
	}
	return billing.Receipt{
		Purchase: p,
		Items:    s.items[id],
		Tendered: s.tendered[id],
		Change:   s.change[id],
	}, nil
}

func (s *fakeStore) ListPurchasesByEmail(_ context.Context, email string, limit, offset int32) ([]billing.Purchase, error) {
	var out []billing.Purchase
	for _, p := range s.purchases {
		if p.CustomerEmail == email {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CountPurchasesByEmail(_ context.Context, email string) (int64, error) {
	var total int64
	for _, p := range s.purchases {
		if p.CustomerEmail == email {
			total++
		}
	}
	return total, nil
}

func (s *fakeStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	ev := events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}
	s.emitted = append(s.emitted, ev)
	return ev, nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) GetProductForUpdate(_ context.Context, code string) (catalog.Product, error) {
	p, ok := t.store.products[code]
	if !ok {
		return catalog.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (t *fakeTx) ListDenominationsForUpdate(_ context.Context) ([]till.Denomination, error) {
	out := make([]till.Denomination, 0, len(t.store.denoms))
	for value, count := range t.store.denoms {
		out = append(out, till.Denomination{Value: value, CountAvailable: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out, nil
}

func (t *fakeTx) InsertPurchase(_ context.Context, p *billing.Purchase) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	t.store.purchases[p.ID] = *p
	return nil
}

func (t *fakeTx) InsertPurchaseItem(_ context.Context, purchaseID uuid.UUID, item *billing.PurchaseItem) error {
	item.ID = uuid.New()
	t.store.items[purchaseID] = append(t.store.items[purchaseID], *item)
	return nil
}

func (t *fakeTx) InsertCustomerDenomination(_ context.Context, purchaseID uuid.UUID, value, count int64) error {
	t.store.tendered[purchaseID] = append(t.store.tendered[purchaseID], till.DenomCount{Value: value, Count: count})
	return nil
}

func (t *fakeTx) InsertPurchaseChange(_ context.Context, purchaseID uuid.UUID, value, count int64) error {
	t.store.change[purchaseID] = append(t.store.change[purchaseID], till.DenomCount{Value: value, Count: count})
	return nil
}

func (t *fakeTx) EnsureDenomination(_ context.Context, value int64) error {
	if _, ok := t.store.denoms[value]; !ok {
		t.store.denoms[value] = 0
	}
	return nil
}

func (t *fakeTx) AddDenominationCount(_ context.Context, value, delta int64) error {
	if _, ok := t.store.denoms[value]; !ok {
		return billing.ErrUnknownDenomination
	}
	t.store.denoms[value] += delta
	return nil
}

func (t *fakeTx) DecrementStock(_ context.Context, productID uuid.UUID, qty int64) error {
	for code, p := range t.store.products {
		if p.ID == productID {
			p.Stock -= qty
			t.store.products[code] = p
			return nil
		}
	}
	return errors.New("product not found")
}

func seededStore() *fakeStore {
	store := newFakeStore()
	store.addProduct("A", "Product A", 10, "100", "10")
	store.addProduct("B", "Product B", 5, "50", "5")
	store.denoms = map[int64]int64{500: 2, 50: 5, 20: 5, 10: 5, 5: 5, 2: 5, 1: 5}
	return store
}

func newService(store *fakeStore) *billing.Service {
	return &billing.Service{
		Store:    store,
		Bus:      &events.Bus{Store: store},
		Validate: validator.New(),
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestCheckoutHappyPath(t *testing.T) {
	store := seededStore()
	svc := newService(store)

	receipt, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "jo@example.com",
		Lines: []billing.CheckoutLine{
			{ProductID: "A", Qty: 2},
			{ProductID: "B", Qty: 1},
		},
		Tendered: []billing.TenderedDenomination{{Value: 500, Count: 2}},
	})
	require.NoError(t, err)

	require.True(t, receipt.TotalWithoutTax.Equal(decimal.RequireFromString("250")))
	require.True(t, receipt.TotalTax.Equal(decimal.RequireFromString("22.5")))
	require.True(t, receipt.NetTotal.Equal(decimal.RequireFromString("272.5")))
	require.True(t, receipt.RoundedDownNetTotal.Equal(decimal.RequireFromString("272")))
	require.True(t, receipt.CashPaid.Equal(decimal.RequireFromString("1000")))
	require.True(t, receipt.BalancePayable.Equal(decimal.RequireFromString("728")))

	var changeSum int64
	for i, c := range receipt.Change {
		require.GreaterOrEqual(t, c.Count, int64(1))
		if i > 0 {
			require.Less(t, c.Value, receipt.Change[i-1].Value)
		}
		changeSum += c.Value * c.Count
	}
	require.Equal(t, int64(728), changeSum)

	// Stock decremented, tendered cash added, change paid out.
	require.Equal(t, int64(8), store.products["A"].Stock)
	require.Equal(t, int64(4), store.products["B"].Stock)
	require.Equal(t, int64(3), store.denoms[500])
	require.Equal(t, int64(1), store.denoms[50])
	for value, count := range store.denoms {
		require.GreaterOrEqual(t, count, int64(0), "denomination %d went negative", value)
	}

	require.Len(t, store.emitted, 1)
	require.Equal(t, events.TopicPurchaseCompleted, store.emitted[0].Topic)
	require.Equal(t, receipt.ID, store.emitted[0].AggregateID)
}

func TestCheckoutUnknownProduct(t *testing.T) {
	svc := newService(seededStore())
	_, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "jo@example.com",
		Lines:         []billing.CheckoutLine{{ProductID: "ZZZZ", Qty: 1}},
		Tendered:      []billing.TenderedDenomination{{Value: 500, Count: 1}},
	})
	require.Equal(t, "NOT_FOUND", appCode(t, err))
}

func TestCheckoutInsufficientStock(t *testing.T) {
	svc := newService(seededStore())
	_, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "jo@example.com",
		Lines:         []billing.CheckoutLine{{ProductID: "B", Qty: 6}},
		Tendered:      []billing.TenderedDenomination{{Value: 500, Count: 1}},
	})
	require.Equal(t, "INSUFFICIENT_STOCK", appCode(t, err))
}

func TestCheckoutUnderpaymentRollsBack(t *testing.T) {
	store := seededStore()
	svc := newService(store)
	_, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "jo@example.com",
		Lines: []billing.CheckoutLine{
			{ProductID: "A", Qty: 2},
			{ProductID: "B", Qty: 1},
		},
		Tendered: []billing.TenderedDenomination{{Value: 50, Count: 4}},
	})
	require.Equal(t, "UNDERPAYMENT", appCode(t, err))
	require.Equal(t, int64(10), store.products["A"].Stock)
	require.Empty(t, store.purchases)
	require.Empty(t, store.emitted)
}

func TestCheckoutInsufficientChangeRollsBack(t *testing.T) {
	store := newFakeStore()
	store.addProduct("A", "Product A", 10, "40", "0")
	store.denoms = map[int64]int64{100: 1, 50: 1, 20: 3}
	svc := newService(store)

	// Change due 60: greedy takes 50 then cannot cover the remaining 10.
	_, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "jo@example.com",
		Lines:         []billing.CheckoutLine{{ProductID: "A", Qty: 1}},
		Tendered:      []billing.TenderedDenomination{{Value: 100, Count: 1}},
	})
	require.Equal(t, "INSUFFICIENT_DENOMINATIONS", appCode(t, err))
	require.Equal(t, int64(10), store.products["A"].Stock)
	require.Equal(t, int64(1), store.denoms[100])
	require.Empty(t, store.purchases)
}

func TestCheckoutCreatesTenderedDenominationRow(t *testing.T) {
	store := seededStore()
	require.NotContains(t, store.denoms, int64(100))
	svc := newService(store)

	// Net 52.5 rounds down to 52; change 248 must come from the float as it
	// stood before the 100s were banked.
	receipt, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "jo@example.com",
		Lines:         []billing.CheckoutLine{{ProductID: "B", Qty: 1}},
		Tendered:      []billing.TenderedDenomination{{Value: 100, Count: 3}},
	})
	require.NoError(t, err)

	require.True(t, receipt.BalancePayable.Equal(decimal.RequireFromString("248")))
	require.Equal(t, int64(3), store.denoms[100])
	for _, c := range receipt.Change {
		require.NotEqual(t, int64(100), c.Value)
	}
}

func TestCheckoutRejectsDuplicateLines(t *testing.T) {
	svc := newService(seededStore())
	_, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "jo@example.com",
		Lines: []billing.CheckoutLine{
			{ProductID: "A", Qty: 1},
			{ProductID: "A", Qty: 2},
		},
		Tendered: []billing.TenderedDenomination{{Value: 500, Count: 1}},
	})
	require.Equal(t, "VALIDATION", appCode(t, err))
}

func TestCheckoutValidatesEmail(t *testing.T) {
	svc := newService(seededStore())
	_, err := svc.Checkout(context.Background(), billing.CheckoutInput{
		CustomerEmail: "not-an-email",
		Lines:         []billing.CheckoutLine{{ProductID: "A", Qty: 1}},
		Tendered:      []billing.TenderedDenomination{{Value: 500, Count: 1}},
	})
	require.Equal(t, "VALIDATION", appCode(t, err))
}

func TestHistoryFiltersByEmail(t *testing.T) {
	store := seededStore()
	svc := newService(store)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "a@example.com", "b@example.com"} {
		_, err := svc.Checkout(ctx, billing.CheckoutInput{
			CustomerEmail: email,
			Lines:         []billing.CheckoutLine{{ProductID: "B", Qty: 1}},
			Tendered:      []billing.TenderedDenomination{{Value: 50, Count: 2}},
		})
		require.NoError(t, err)
	}

	result, err := svc.History(ctx, "a@example.com", 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Total)
	require.Len(t, result.Items, 2)
	for _, p := range result.Items {
		require.Equal(t, "a@example.com", p.CustomerEmail)
	}

	_, err = svc.History(ctx, "not-an-email", 1, 10)
	require.Equal(t, "VALIDATION", appCode(t, err))
}

func TestGetReceiptNotFound(t *testing.T) {
	svc := newService(seededStore())
	_, err := svc.GetReceipt(context.Background(), uuid.New())
	require.Equal(t, "NOT_FOUND", appCode(t, err))
}
