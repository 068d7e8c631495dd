package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopsense/business/recommender"
	"shopsense/domain"
	"shopsense/pkg/logger"
	"shopsense/pkg/metrics"
)

var (
	// ErrNotEligible means the user's segment does not receive offers.
	ErrNotEligible = errors.New("user not eligible for personalized offers")

	ErrOfferNotFound = errors.New("offer not found")

	// ErrOfferUnusable covers expired, already-used, and foreign offers.
	ErrOfferUnusable = errors.New("offer cannot be redeemed")
)

type OfferRepository interface {
	Create(ctx context.Context, offer *domain.PersonalizedOffer) error
	FindByID(ctx context.Context, id uint64) (*domain.PersonalizedOffer, error)
	ListActiveByUser(ctx context.Context, userID uint, now time.Time) ([]domain.PersonalizedOffer, error)
	HasLive(ctx context.Context, userID uint, productID uint64, now time.Time) (bool, error)
	MarkUsed(ctx context.Context, id uint64, orderID uint64, usedAt time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ProductRepository interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
}

// RecommendationSource feeds the generator: offers are only cut for products
// the engine already ranks highly for the user.
type RecommendationSource interface {
	GetRecommendations(ctx context.Context, identity domain.Identity, limit int) (*domain.RecommendationResult, error)
}

// DiscountCurve maps a blended relevance score in [0,1] to a discount
// percentage. Implementations must be monotone so two users cannot see a
// better deal for a worse match.
type DiscountCurve func(score float64) float64

type Config struct {
	MaxPercent     float64       // hard cap on any offer discount
	ScoreThreshold float64       // minimum blended score to cut an offer
	TTL            time.Duration // offer lifetime
	PerUser        int           // target number of live offers per user
}

func DefaultConfig() Config {
	return Config{
		MaxPercent:     30,
		ScoreThreshold: 0.5,
		TTL:            48 * time.Hour,
		PerUser:        4,
	}
}

// DefaultCurve gives deeper discounts to weaker matches: a product the user
// is already sold on needs less of a nudge. Output stays in [5, maxPercent].
func DefaultCurve(maxPercent float64) DiscountCurve {
	const floor = 5.0
	return func(score float64) float64 {
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		return floor + (maxPercent-floor)*(1-score)
	}
}

// OfferView pairs an offer with its product and the presented price.
type OfferView struct {
	Offer      domain.PersonalizedOffer `json:"offer"`
	Product    domain.Product           `json:"product"`
	OfferPrice float64                  `json:"offer_price"`
}

// Service generates, lists, and redeems personalized offers. Generation is
// fed by the recommendation engine; an offer is always for a product the
// engine scored above the threshold for that user.
type Service struct {
	offerRepo   OfferRepository
	productRepo ProductRepository
	recs        RecommendationSource
	cfg         Config
	curve       DiscountCurve

	now func() time.Time
}

func NewService(offerRepo OfferRepository, productRepo ProductRepository, recs RecommendationSource, cfg Config, curve DiscountCurve) *Service {
	if curve == nil {
		curve = DefaultCurve(cfg.MaxPercent)
	}
	return &Service{
		offerRepo:   offerRepo,
		productRepo: productRepo,
		recs:        recs,
		cfg:         cfg,
		curve:       curve,
		now:         time.Now,
	}
}

// RefreshOffers tops the user up to the configured number of live offers and
// returns the full active set. Guests and barely-known users get
// ErrNotEligible.
func (s *Service) RefreshOffers(ctx context.Context, userID uint) ([]OfferView, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if userID == 0 {
		return nil, ErrNotEligible
	}

	now := s.now()
	active, err := s.offerRepo.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load active offers: %w", err)
	}

	missing := s.cfg.PerUser - len(active)
	if missing > 0 {
		created, err := s.generate(ctx, userID, active, missing, now)
		if err != nil {
			if errors.Is(err, ErrNotEligible) {
				return nil, err
			}
			// generation failures degrade to whatever is already live
			logger.Warn("offer generation failed", "user_id", userID, "error", err)
		}
		active = append(active, created...)
	}

	return s.withProducts(ctx, active)
}

// ActiveOffers lists the user's live offers without generating new ones.
func (s *Service) ActiveOffers(ctx context.Context, userID uint) ([]OfferView, error) {
	active, err := s.offerRepo.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load active offers: %w", err)
	}
	return s.withProducts(ctx, active)
}

func (s *Service) generate(ctx context.Context, userID uint, active []domain.PersonalizedOffer, missing int, now time.Time) ([]domain.PersonalizedOffer, error) {
	result, err := s.recs.GetRecommendations(ctx, domain.Identity{UserID: userID}, s.cfg.PerUser*3)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	if !recommender.OfferEligible(result.Segment) {
		return nil, ErrNotEligible
	}

	haveOffer := make(map[uint64]struct{}, len(active))
	for _, offer := range active {
		haveOffer[offer.ProductID] = struct{}{}
	}

	var created []domain.PersonalizedOffer
	for _, item := range result.Items {
		if len(created) == missing {
			break
		}
		if item.BlendedScore < s.cfg.ScoreThreshold {
			continue
		}
		if !item.Product.InStock() {
			continue
		}
		if _, ok := haveOffer[item.ProductID]; ok {
			continue
		}
		live, err := s.offerRepo.HasLive(ctx, userID, item.ProductID, now)
		if err != nil {
			return created, fmt.Errorf("failed to check live offer: %w", err)
		}
		if live {
			continue
		}

		discount := s.curve(item.BlendedScore)
		if discount < 0 {
			discount = 0
		}
		if discount > s.cfg.MaxPercent {
			discount = s.cfg.MaxPercent
		}

		offer := domain.PersonalizedOffer{
			UserID:    userID,
			ProductID: item.ProductID,
			Discount:  discount,
			ExpiresAt: now.Add(s.cfg.TTL),
		}
		if err := s.offerRepo.Create(ctx, &offer); err != nil {
			return created, fmt.Errorf("failed to create offer: %w", err)
		}
		metrics.OffersGenerated.Inc()
		created = append(created, offer)
	}
	return created, nil
}

// Redeem marks the offer used against an order. Only the owner may redeem,
// and only while the offer is live.
func (s *Service) Redeem(ctx context.Context, userID uint, offerID, orderID uint64) (*domain.PersonalizedOffer, error) {
	offer, err := s.offerRepo.FindByID(ctx, offerID)
	if err != nil {
		return nil, ErrOfferNotFound
	}
	if offer.UserID != userID {
		return nil, ErrOfferUnusable
	}

	now := s.now()
	if !offer.Valid(now) {
		return nil, ErrOfferUnusable
	}

	if err := s.offerRepo.MarkUsed(ctx, offerID, orderID, now); err != nil {
		return nil, fmt.Errorf("failed to mark offer used: %w", err)
	}
	offer.IsUsed = true
	offer.UsedAt = &now
	offer.OrderID = &orderID
	return offer, nil
}

// CleanupExpired removes dead offers. Run periodically; redemption already
// checks expiry, so this is hygiene rather than correctness.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := s.offerRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired offers: %w", err)
	}
	if removed > 0 {
		logger.Info("removed expired offers", "count", removed)
	}
	return removed, nil
}

// withProducts resolves products for the offers and drops offers whose
// product has gone out of stock.
func (s *Service) withProducts(ctx context.Context, offersList []domain.PersonalizedOffer) ([]OfferView, error) {
	if len(offersList) == 0 {
		return []OfferView{}, nil
	}

	ids := make([]uint64, 0, len(offersList))
	for _, offer := range offersList {
		ids = append(ids, offer.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer products: %w", err)
	}
	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	views := make([]OfferView, 0, len(offersList))
	for _, offer := range offersList {
		product, ok := byID[offer.ProductID]
		if !ok || !product.InStock() {
			continue
		}
		views = append(views, OfferView{
			Offer:      offer,
			Product:    product,
			OfferPrice: offer.OfferPrice(product),
		})
	}
	return views, nil
}
