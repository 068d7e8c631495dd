package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopsense/business/offers"
	"shopsense/domain"
	"shopsense/pkg/logger"
)

var (
	ErrEmptyOrder   = errors.New("order has no items")
	ErrOutOfStock   = errors.New("product out of stock")
	ErrOfferInvalid = errors.New("offer cannot be applied")
)

type OrdersRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	ListByUser(ctx context.Context, userID uint, since time.Time) ([]domain.Order, error)
}

type ProductRepository interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
}

// InteractionRecorder feeds completed purchases back into the
// recommendation engine, which also drops the buyer's cached results.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, identity domain.Identity, productID uint64, interactionType string, eventContext map[string]interface{}) error
}

// OfferSource resolves and redeems the buyer's personalized offers at
// checkout.
type OfferSource interface {
	ActiveOffers(ctx context.Context, userID uint) ([]offers.OfferView, error)
	Redeem(ctx context.Context, userID uint, offerID, orderID uint64) (*domain.PersonalizedOffer, error)
}

type LineInput struct {
	ProductID uint64
	Quantity  int
}

type Service struct {
	orderRepo   OrdersRepository
	productRepo ProductRepository
	recorder    InteractionRecorder
	offerSource OfferSource
}

func NewService(orderRepo OrdersRepository, productRepo ProductRepository, recorder InteractionRecorder, offerSource OfferSource) *Service {
	return &Service{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		recorder:    recorder,
		offerSource: offerSource,
	}
}

// Checkout turns a cart into an order. An offer id may be attached; its
// discount replaces the catalog discount on that product's line. Every
// purchased product is recorded as a purchase interaction so the next
// recommendation request sees it.
func (s *Service) Checkout(ctx context.Context, userID uint, lines []LineInput, offerID *uint64) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]uint64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var appliedOffer *domain.PersonalizedOffer
	if offerID != nil {
		offer, err := s.findActiveOffer(ctx, userID, *offerID)
		if err != nil {
			return nil, err
		}
		appliedOffer = offer
	}

	order := &domain.Order{UserID: userID}
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d not found", line.ProductID)
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		if product.StockQuantity < qty {
			return nil, fmt.Errorf("%w: product %d", ErrOutOfStock, product.ID)
		}

		price := product.DiscountedPrice()
		if appliedOffer != nil && appliedOffer.ProductID == product.ID {
			price = appliedOffer.OfferPrice(product)
		}

		order.Items = append(order.Items, domain.OrderItem{
			ProductID: product.ID,
			Quantity:  qty,
			Price:     price,
		})
		order.Total += price * float64(qty)
	}

	if appliedOffer != nil && !offerCoversOrder(appliedOffer, order) {
		return nil, ErrOfferInvalid
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if appliedOffer != nil {
		if _, err := s.offerSource.Redeem(ctx, userID, appliedOffer.ID, order.ID); err != nil {
			// the order stands; the offer stays live and can be disputed
			logger.Error("failed to redeem offer at checkout", "offer_id", appliedOffer.ID, "order_id", order.ID, "error", err)
		}
	}

	s.decrementStock(ctx, order, byID)
	s.recordPurchases(ctx, userID, order)

	return order, nil
}

// Orders lists the user's order history inside the window.
func (s *Service) Orders(ctx context.Context, userID uint, window time.Duration) ([]domain.Order, error) {
	ordersList, err := s.orderRepo.ListByUser(ctx, userID, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return ordersList, nil
}

func (s *Service) findActiveOffer(ctx context.Context, userID uint, offerID uint64) (*domain.PersonalizedOffer, error) {
	views, err := s.offerSource.ActiveOffers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}
	for _, view := range views {
		if view.Offer.ID == offerID {
			offer := view.Offer
			return &offer, nil
		}
	}
	return nil, ErrOfferInvalid
}

func offerCoversOrder(offer *domain.PersonalizedOffer, order *domain.Order) bool {
	for _, item := range order.Items {
		if item.ProductID == offer.ProductID {
			return true
		}
	}
	return false
}

func (s *Service) decrementStock(ctx context.Context, order *domain.Order, byID map[uint64]domain.Product) {
	for _, item := range order.Items {
		product := byID[item.ProductID]
		product.StockQuantity -= item.Quantity
		if product.StockQuantity < 0 {
			product.StockQuantity = 0
		}
		if err := s.productRepo.Update(ctx, &product); err != nil {
			logger.Error("failed to update stock", "product_id", product.ID, "error", err)
		}
	}
}

func (s *Service) recordPurchases(ctx context.Context, userID uint, order *domain.Order) {
	identity := domain.Identity{UserID: userID}
	for _, productID := range order.ProductIDs() {
		err := s.recorder.RecordInteraction(ctx, identity, productID, domain.InteractionPurchase, map[string]interface{}{
			"order_id": order.ID,
		})
		if err != nil {
			logger.Error("failed to record purchase interaction", "product_id", productID, "error", err)
		}
	}
}
