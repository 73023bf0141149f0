package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// sessionCartTTL bounds how long an anonymous cart survives in Redis
const sessionCartTTL = 7 * 24 * time.Hour

// CartMutator is the full cart persistence surface for logged-in users
type CartMutator interface {
	GetByID(ctx context.Context, id string) (*models.Cart, error)
	GetOrCreateByUserID(ctx context.Context, userID string) (*models.Cart, error)
	GetItems(ctx context.Context, cartID string) ([]*models.CartItem, error)
	UpsertItem(ctx context.Context, item *models.CartItem) error
	UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID string) error
	Clear(ctx context.Context, cartID string) error
	ApplyPromo(ctx context.Context, cartID string, promoCodeID *string, discount int64) error
}

// CartLine is one priced product line in a cart view
type CartLine struct {
	Product   *models.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal int64           `json:"line_total"`
}

// CartView is the priced representation of a cart returned to callers
type CartView struct {
	Cart       *models.Cart `json:"cart,omitempty"`
	Lines      []CartLine   `json:"lines"`
	ItemsTotal int64        `json:"items_total"`
	Discount   int64        `json:"discount"`
	Total      int64        `json:"total"`
}

// CartService manages carts. Logged-in users get a durable database
// cart; anonymous visitors get a Redis hash keyed by session that is
// merged into the user cart on login.
type CartService struct {
	carts    CartMutator
	products ProductStore
	promos   *PromoService
	redis    *redis.Client
	logger   logger.Logger
}

// NewCartService creates a new CartService
func NewCartService(
	carts CartMutator,
	products ProductStore,
	promos *PromoService,
	redisClient *redis.Client,
	logger logger.Logger,
) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		promos:   promos,
		redis:    redisClient,
		logger:   logger,
	}
}

func sessionCartKey(sessionID string) string {
	return "cart:session:" + sessionID
}

// GetUserCart returns the priced cart view for a user, creating the cart
// row on first access.
func (s *CartService) GetUserCart(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.carts.GetOrCreateByUserID(ctx, userID)

	if err != nil {
		return nil, err
	}

	items, err := s.carts.GetItems(ctx, cart.ID)

	if err != nil {
		return nil, err
	}

	return s.buildView(ctx, cart, items)
}

// AddItem adds a product to the user's cart after an availability check.
// The check is advisory; the authoritative stock decrement happens at
// checkout inside the order assembly transaction.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*CartView, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	product, err := s.products.GetByID(ctx, productID)

	if err != nil {
		return nil, err
	}

	if !product.IsAvailable {
		return nil, models.ErrProductUnavailable
	}

	if product.Stock < quantity {
		return nil, fmt.Errorf("%w: %d available", models.ErrInsufficientStock, product.Stock)
	}

	cart, err := s.carts.GetOrCreateByUserID(ctx, userID)

	if err != nil {
		return nil, err
	}

	item := &models.CartItem{
		ID:        models.GenerateID("cit"),
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: models.GetCurrentTime(),
	}

	if err := s.carts.UpsertItem(ctx, item); err != nil {
		return nil, err
	}

	return s.GetUserCart(ctx, userID)
}

// UpdateQuantity sets a line's quantity; zero removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*CartView, error) {
	cart, err := s.carts.GetOrCreateByUserID(ctx, userID)

	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		err = s.carts.RemoveItem(ctx, cart.ID, productID)
	} else {
		err = s.carts.UpdateQuantity(ctx, cart.ID, productID, quantity)
	}

	if err != nil {
		return nil, err
	}

	return s.GetUserCart(ctx, userID)
}

// RemoveItem deletes a product line from the user's cart
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*CartView, error) {
	cart, err := s.carts.GetOrCreateByUserID(ctx, userID)

	if err != nil {
		return nil, err
	}

	if err := s.carts.RemoveItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}

	return s.GetUserCart(ctx, userID)
}

// ClearCart empties the user's cart and drops any applied promo
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.carts.GetOrCreateByUserID(ctx, userID)

	if err != nil {
		return err
	}

	return s.carts.Clear(ctx, cart.ID)
}

// ApplyPromoCode validates a promo code against the cart total and, when
// valid, records it on the cart for checkout to redeem.
func (s *CartService) ApplyPromoCode(ctx context.Context, userID, code string) (*CartView, error) {
	cart, err := s.carts.GetOrCreateByUserID(ctx, userID)

	if err != nil {
		return nil, err
	}

	items, err := s.carts.GetItems(ctx, cart.ID)

	if err != nil {
		return nil, err
	}

	view, err := s.buildView(ctx, cart, items)

	if err != nil {
		return nil, err
	}

	promo, discount, err := s.promos.ApplyPromoCode(ctx, view.ItemsTotal, code)

	if err != nil {
		return nil, err
	}

	if discount > view.ItemsTotal {
		discount = view.ItemsTotal
	}

	if err := s.carts.ApplyPromo(ctx, cart.ID, &promo.ID, discount); err != nil {
		return nil, err
	}

	cart.PromoCodeID = &promo.ID
	cart.DiscountAmount = discount
	view.Cart = cart
	view.Discount = discount
	view.Total = view.ItemsTotal - discount

	return view, nil
}

// AddSessionItem adds a product to an anonymous session cart in Redis
func (s *CartService) AddSessionItem(ctx context.Context, sessionID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	product, err := s.products.GetByID(ctx, productID)

	if err != nil {
		return err
	}

	if !product.IsAvailable {
		return models.ErrProductUnavailable
	}

	key := sessionCartKey(sessionID)

	pipe := s.redis.TxPipeline()
	pipe.HIncrBy(ctx, key, productID, int64(quantity))
	pipe.Expire(ctx, key, sessionCartTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update session cart: %w", err)
	}

	return nil
}

// GetSessionCart returns the priced view of an anonymous session cart
func (s *CartService) GetSessionCart(ctx context.Context, sessionID string) (*CartView, error) {
	quantities, err := s.redis.HGetAll(ctx, sessionCartKey(sessionID)).Result()

	if err != nil {
		return nil, fmt.Errorf("failed to read session cart: %w", err)
	}

	items := make([]*models.CartItem, 0, len(quantities))

	for productID, raw := range quantities {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			continue
		}
		items = append(items, &models.CartItem{ProductID: productID, Quantity: qty})
	}

	return s.buildView(ctx, nil, items)
}

// RemoveSessionItem deletes a product from an anonymous session cart
func (s *CartService) RemoveSessionItem(ctx context.Context, sessionID, productID string) error {
	if err := s.redis.HDel(ctx, sessionCartKey(sessionID), productID).Err(); err != nil {
		return fmt.Errorf("failed to remove session cart item: %w", err)
	}
	return nil
}

// MergeSession folds an anonymous session cart into the user's durable
// cart, then deletes the session cart. Called on login.
func (s *CartService) MergeSession(ctx context.Context, userID, sessionID string) (*CartView, error) {
	key := sessionCartKey(sessionID)

	quantities, err := s.redis.HGetAll(ctx, key).Result()

	if err != nil {
		return nil, fmt.Errorf("failed to read session cart: %w", err)
	}

	cart, err := s.carts.GetOrCreateByUserID(ctx, userID)

	if err != nil {
		return nil, err
	}

	for productID, raw := range quantities {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			continue
		}

		item := &models.CartItem{
			ID:        models.GenerateID("cit"),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  qty,
			CreatedAt: models.GetCurrentTime(),
		}

		if err := s.carts.UpsertItem(ctx, item); err != nil {
			return nil, err
		}
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("Failed to delete merged session cart", "error", err, "sessionID", sessionID)
	}

	s.logger.Info("Session cart merged", "userID", userID, "sessionID", sessionID, "lines", len(quantities))

	return s.GetUserCart(ctx, userID)
}

func (s *CartService) buildView(ctx context.Context, cart *models.Cart, items []*models.CartItem) (*CartView, error) {
	view := &CartView{Cart: cart, Lines: []CartLine{}}

	if len(items) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)

	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, it := range items {
		product, ok := byID[it.ProductID]
		if !ok {
			continue
		}

		lineTotal := int64(it.Quantity) * product.Price
		view.Lines = append(view.Lines, CartLine{
			Product:   product,
			Quantity:  it.Quantity,
			LineTotal: lineTotal,
		})
		view.ItemsTotal += lineTotal
	}

	if cart != nil {
		view.Discount = cart.DiscountAmount
		if view.Discount > view.ItemsTotal {
			view.Discount = view.ItemsTotal
		}
	}

	view.Total = view.ItemsTotal - view.Discount

	return view, nil
}
