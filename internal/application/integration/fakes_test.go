package integration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/inventory"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/google/uuid"
)

// memStore is an in-memory backing store whose transaction scope restores a
// snapshot when the unit of work fails.
type memStore struct {
	mu        sync.Mutex
	orders    map[string]integration.SalesOrder
	movements []inventory.StockMovement
	products  map[string]inventory.Product

	// failure injection
	failAppendForProduct map[uuid.UUID]error
	failFindFor          map[string]error
	failMarkWith         error
}

func newMemStore() *memStore {
	return &memStore{
		orders:               make(map[string]integration.SalesOrder),
		products:             make(map[string]inventory.Product),
		failAppendForProduct: make(map[uuid.UUID]error),
		failFindFor:          make(map[string]error),
	}
}

func orderKey(accountID uuid.UUID, externalID string) string {
	return accountID.String() + "/" + externalID
}

func productKey(userID uuid.UUID, sku string) string {
	return userID.String() + "/" + sku
}

func (s *memStore) addProduct(userID uuid.UUID, sku string) inventory.Product {
	p := inventory.Product{ID: uuid.New(), UserID: userID, SKU: sku, Name: "Product " + sku}
	s.products[productKey(userID, sku)] = p
	return p
}

func (s *memStore) order(accountID uuid.UUID, externalID string) (integration.SalesOrder, bool) {
	o, ok := s.orders[orderKey(accountID, externalID)]
	return o, ok
}

func (s *memStore) movementsFor(productID uuid.UUID) []inventory.StockMovement {
	var out []inventory.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Transaction scope
// ---------------------------------------------------------------------------

type memTxScope struct {
	store *memStore
}

func (t *memTxScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	ordersSnapshot := make(map[string]integration.SalesOrder, len(t.store.orders))
	for k, v := range t.store.orders {
		ordersSnapshot[k] = v
	}
	movementsSnapshot := append([]inventory.StockMovement(nil), t.store.movements...)

	if err := fn(&memRepos{store: t.store}); err != nil {
		t.store.orders = ordersSnapshot
		t.store.movements = movementsSnapshot
		return err
	}
	return nil
}

type memRepos struct {
	store *memStore
}

func (r *memRepos) OrderRepo() integration.SalesOrderRepository {
	return &memOrderRepo{r.store}
}

func (r *memRepos) MovementRepo() inventory.StockMovementRepository {
	return &memMovementRepo{r.store}
}

func (r *memRepos) ProductLookup() inventory.ProductLookup {
	return &memProductLookup{r.store}
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memOrderRepo struct {
	store *memStore
}

func (r *memOrderRepo) FindByExternalID(_ context.Context, accountID uuid.UUID, externalOrderID string) (*integration.SalesOrder, error) {
	if err, ok := r.store.failFindFor[externalOrderID]; ok {
		return nil, err
	}
	o, ok := r.store.orders[orderKey(accountID, externalOrderID)]
	if !ok {
		return nil, integration.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) Create(_ context.Context, order *integration.SalesOrder) error {
	key := orderKey(order.AccountID, order.ExternalOrderID)
	if _, exists := r.store.orders[key]; exists {
		return errors.New("duplicate key")
	}
	r.store.orders[key] = *order
	return nil
}

func (r *memOrderRepo) UpdateSnapshot(_ context.Context, order *integration.SalesOrder) error {
	key := orderKey(order.AccountID, order.ExternalOrderID)
	existing, ok := r.store.orders[key]
	if !ok {
		return integration.ErrOrderNotFound
	}
	existing.OrderNumber = order.OrderNumber
	existing.Status = order.Status
	existing.StatusID = order.StatusID
	existing.CustomerName = order.CustomerName
	existing.TotalAmount = order.TotalAmount
	existing.Items = order.Items
	existing.ExternalCreatedAt = order.ExternalCreatedAt
	existing.UpdatedAt = order.UpdatedAt
	r.store.orders[key] = existing
	return nil
}

func (r *memOrderRepo) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	if r.store.failMarkWith != nil {
		return r.store.failMarkWith
	}
	for key, o := range r.store.orders {
		if o.ID != id {
			continue
		}
		if o.Processed {
			return integration.ErrOrderAlreadyProcessed
		}
		o.Processed = true
		o.ProcessedAt = &processedAt
		r.store.orders[key] = o
		return nil
	}
	return integration.ErrOrderNotFound
}

func (r *memOrderRepo) CountByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	var n int64
	for _, o := range r.store.orders {
		if o.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

type memMovementRepo struct {
	store *memStore
}

func (r *memMovementRepo) Append(_ context.Context, movement *inventory.StockMovement) error {
	if err, ok := r.store.failAppendForProduct[movement.ProductID]; ok {
		return err
	}
	r.store.movements = append(r.store.movements, *movement)
	return nil
}

func (r *memMovementRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	for _, m := range r.store.movements {
		if m.OrderID != nil && *m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMovementRepo) FindByProduct(_ context.Context, productID, userID uuid.UUID) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	for _, m := range r.store.movements {
		if m.ProductID == productID && m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memMovementRepo) CurrentStock(ctx context.Context, productID, userID uuid.UUID) (int64, error) {
	movements, err := r.FindByProduct(ctx, productID, userID)
	if err != nil {
		return 0, err
	}
	return inventory.FoldStock(movements), nil
}

type memProductLookup struct {
	store *memStore
}

func (l *memProductLookup) FindBySKU(_ context.Context, userID uuid.UUID, sku string) (*inventory.Product, error) {
	p, ok := l.store.products[productKey(userID, sku)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}
