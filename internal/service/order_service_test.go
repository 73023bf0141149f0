package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/internal/repository"
	"github.com/hkhalili/shopflow/pkg/logger"
)

type fakeOrderStore struct {
	orders      map[string]*models.Order
	transitions []models.OrderStatusHistory
	created     *models.Order
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	store := &fakeOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		store.orders[o.ID] = o
	}
	return store
}

func (f *fakeOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return order, nil
}

func (f *fakeOrderStore) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	return nil, nil
}

func (f *fakeOrderStore) GetItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	return nil, nil
}

func (f *fakeOrderStore) GetShippingInfo(ctx context.Context, orderID string) (*models.ShippingInfo, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeOrderStore) GetStatusHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error) {
	return nil, nil
}

func (f *fakeOrderStore) CreateFromCart(ctx context.Context, order *models.Order, shipping *models.ShippingInfo, cartID string, cartItems []*models.CartItem, promo *models.PromoCode) ([]*models.OrderItem, error) {
	f.created = order
	f.orders[order.ID] = order

	items := make([]*models.OrderItem, 0, len(cartItems))
	var itemsTotal int64

	for _, ci := range cartItems {
		item := &models.OrderItem{
			OrderID:   order.ID,
			ProductID: ci.ProductID,
			Quantity:  ci.Quantity,
			Price:     100_000,
		}
		items = append(items, item)
		itemsTotal += item.TotalPrice()
	}

	if promo != nil {
		order.PromoCodeID = &promo.ID
		order.DiscountAmount = promo.Discount(itemsTotal)
	}
	order.TotalAmount = itemsTotal + order.ShippingCost - order.DiscountAmount

	return items, nil
}

func (f *fakeOrderStore) Transition(ctx context.Context, order *models.Order, from, to models.OrderStatus, note string) error {
	order.Status = to
	f.transitions = append(f.transitions, models.OrderStatusHistory{
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	})
	return nil
}

type fakeCartStore struct {
	cart  *models.Cart
	items []*models.CartItem
}

func (f *fakeCartStore) GetByID(ctx context.Context, id string) (*models.Cart, error) {
	if f.cart == nil || f.cart.ID != id {
		return nil, repository.ErrNotFound
	}
	return f.cart, nil
}

func (f *fakeCartStore) GetItems(ctx context.Context, cartID string) ([]*models.CartItem, error) {
	return f.items, nil
}

type fakeProductStore struct {
	products map[string]*models.Product
}

func (f *fakeProductStore) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductStore) GetByIDs(ctx context.Context, ids []string) ([]*models.Product, error) {
	var out []*models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestOrderService(orders *fakeOrderStore, carts *fakeCartStore, products *fakeProductStore) *OrderService {
	if products == nil {
		products = &fakeProductStore{products: map[string]*models.Product{}}
	}
	promos := &fakePromoStore{promos: map[string]*models.PromoCode{}}

	return NewOrderService(orders, carts, products, promos, NewShippingCalculator(), logger.NopLogger{})
}

func checkoutParams(cartID string) CreateOrderParams {
	return CreateOrderParams{
		UserID:           "user-1",
		CartID:           cartID,
		Currency:         "IRR",
		PhoneNumber:      "09120000000",
		ShippingMethodID: ShippingMethodStandardPost,
		Shipping: &models.ShippingInfo{
			Address:  "Valiasr St. 12",
			City:     "تهران",
			Province: TehranProvince,
		},
	}
}

func TestCreateFromCart_Success(t *testing.T) {
	orders := newFakeOrderStore()
	carts := &fakeCartStore{
		cart: &models.Cart{ID: "crt-1"},
		items: []*models.CartItem{
			{CartID: "crt-1", ProductID: "prd-1", Quantity: 2},
			{CartID: "crt-1", ProductID: "prd-2", Quantity: 1},
		},
	}
	products := &fakeProductStore{products: map[string]*models.Product{
		"prd-1": {ID: "prd-1", Price: 100_000, Stock: 10, IsAvailable: true},
		"prd-2": {ID: "prd-2", Price: 100_000, Stock: 10, IsAvailable: true},
	}}

	svc := newTestOrderService(orders, carts, products)

	detail, err := svc.CreateFromCart(context.Background(), checkoutParams("crt-1"))

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, detail.Order.Status)
	assert.Len(t, detail.Items, 2)
	assert.Equal(t, int64(50_000), detail.Order.ShippingCost, "Tehran standard rate below the free threshold")
	require.NotNil(t, orders.created)
	assert.Equal(t, "user-1", orders.created.UserID)
}

func TestCreateFromCart_EmptyCart(t *testing.T) {
	orders := newFakeOrderStore()
	carts := &fakeCartStore{cart: &models.Cart{ID: "crt-1"}}

	svc := newTestOrderService(orders, carts, nil)

	_, err := svc.CreateFromCart(context.Background(), checkoutParams("crt-1"))

	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Nil(t, orders.created, "no order row may be written for an empty cart")
}

func TestCreateFromCart_ExpressOutsideTehran(t *testing.T) {
	orders := newFakeOrderStore()
	carts := &fakeCartStore{
		cart:  &models.Cart{ID: "crt-1"},
		items: []*models.CartItem{{CartID: "crt-1", ProductID: "prd-1", Quantity: 1}},
	}

	svc := newTestOrderService(orders, carts, nil)

	params := checkoutParams("crt-1")
	params.ShippingMethodID = ShippingMethodExpress
	params.Shipping.Province = "اصفهان"

	_, err := svc.CreateFromCart(context.Background(), params)

	assert.ErrorIs(t, err, models.ErrInvalidShippingMethod)
	assert.Nil(t, orders.created)
}

func TestCreateFromCart_MissingProduct(t *testing.T) {
	orders := newFakeOrderStore()
	carts := &fakeCartStore{
		cart:  &models.Cart{ID: "crt-1"},
		items: []*models.CartItem{{CartID: "crt-1", ProductID: "prd-gone", Quantity: 1}},
	}

	svc := newTestOrderService(orders, carts, nil)

	_, err := svc.CreateFromCart(context.Background(), checkoutParams("crt-1"))

	assert.ErrorIs(t, err, models.ErrProductUnavailable)
}

func TestTransition_SelfTransitionIsNoOp(t *testing.T) {
	order := &models.Order{ID: "ord-1", Status: models.OrderStatusShipped}
	orders := newFakeOrderStore(order)

	svc := newTestOrderService(orders, &fakeCartStore{}, nil)

	got, err := svc.Transition(context.Background(), "ord-1", models.OrderStatusShipped, "")

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, got.Status)
	assert.Empty(t, orders.transitions, "a no-op transition must not append history")
}

func TestTransition_IllegalEdgeRejected(t *testing.T) {
	order := &models.Order{ID: "ord-1", Status: models.OrderStatusPending}
	orders := newFakeOrderStore(order)

	svc := newTestOrderService(orders, &fakeCartStore{}, nil)

	_, err := svc.Transition(context.Background(), "ord-1", models.OrderStatusDelivered, "")

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusPending, order.Status, "order must be untouched after a rejected transition")
	assert.Empty(t, orders.transitions)
}

func TestConfirmShipping(t *testing.T) {
	order := &models.Order{ID: "ord-1", Status: models.OrderStatusConfirmed}
	orders := newFakeOrderStore(order)

	svc := newTestOrderService(orders, &fakeCartStore{}, nil)

	got, err := svc.ConfirmShipping(context.Background(), "ord-1", "TRK-123")

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, got.Status)
	assert.Equal(t, "TRK-123", got.TrackingCode)
	require.Len(t, orders.transitions, 1)
	assert.Equal(t, models.OrderStatusConfirmed, orders.transitions[0].FromStatus)
}

func TestConfirmShipping_EmptyTrackingCode(t *testing.T) {
	order := &models.Order{ID: "ord-1", Status: models.OrderStatusConfirmed}
	orders := newFakeOrderStore(order)

	svc := newTestOrderService(orders, &fakeCartStore{}, nil)

	_, err := svc.ConfirmShipping(context.Background(), "ord-1", "")

	assert.ErrorIs(t, err, models.ErrTrackingCodeRequired)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
}

func TestReturnRefundPath(t *testing.T) {
	order := &models.Order{ID: "ord-1", Status: models.OrderStatusDelivered}
	orders := newFakeOrderStore(order)

	svc := newTestOrderService(orders, &fakeCartStore{}, nil)

	got, err := svc.ProcessReturn(context.Background(), "ord-1", "damaged on arrival")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReturned, got.Status)

	got, err = svc.ProcessRefund(context.Background(), "ord-1", "refund issued")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, got.Status)

	// REFUNDED is terminal
	_, err = svc.Cancel(context.Background(), "ord-1", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
