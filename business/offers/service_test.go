package offers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopsense/domain"
)

type fakeOfferRepo struct {
	mu     sync.Mutex
	nextID uint64
	offers map[uint64]*domain.PersonalizedOffer
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[uint64]*domain.PersonalizedOffer)}
}

func (f *fakeOfferRepo) Create(_ context.Context, offer *domain.PersonalizedOffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	offer.ID = f.nextID
	offer.CreatedAt = time.Now()
	clone := *offer
	f.offers[offer.ID] = &clone
	return nil
}

func (f *fakeOfferRepo) FindByID(_ context.Context, id uint64) (*domain.PersonalizedOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.offers[id]
	if !ok {
		return nil, errors.New("not found")
	}
	clone := *offer
	return &clone, nil
}

func (f *fakeOfferRepo) ListActiveByUser(_ context.Context, userID uint, now time.Time) ([]domain.PersonalizedOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PersonalizedOffer
	for _, offer := range f.offers {
		if offer.UserID == userID && offer.Valid(now) {
			out = append(out, *offer)
		}
	}
	return out, nil
}

func (f *fakeOfferRepo) HasLive(_ context.Context, userID uint, productID uint64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, offer := range f.offers {
		if offer.UserID == userID && offer.ProductID == productID && offer.Valid(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOfferRepo) MarkUsed(_ context.Context, id uint64, orderID uint64, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.offers[id]
	if !ok {
		return errors.New("not found")
	}
	offer.IsUsed = true
	offer.UsedAt = &usedAt
	offer.OrderID = &orderID
	return nil
}

func (f *fakeOfferRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, offer := range f.offers {
		if !now.Before(offer.ExpiresAt) {
			delete(f.offers, id)
			removed++
		}
	}
	return removed, nil
}

type fakeProductRepo struct {
	products map[uint64]domain.Product
}

func (f *fakeProductRepo) FindByIDs(_ context.Context, ids []uint64) ([]domain.Product, error) {
	var out []domain.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubRecs struct {
	result *domain.RecommendationResult
	err    error
}

func (s *stubRecs) GetRecommendations(_ context.Context, _ domain.Identity, _ int) (*domain.RecommendationResult, error) {
	return s.result, s.err
}

func scoredItem(id uint64, score float64, stock int) domain.ScoredProduct {
	return domain.ScoredProduct{
		ProductID:    id,
		Product:      domain.Product{ID: id, Price: 100, StockQuantity: stock, Category: "coffee"},
		BlendedScore: score,
		Source:       "hybrid",
	}
}

func eligibleResult(items ...domain.ScoredProduct) *domain.RecommendationResult {
	return &domain.RecommendationResult{Items: items, Segment: domain.SegmentAuthEstablished}
}

func newTestService(recs *stubRecs, repo *fakeOfferRepo) *Service {
	products := &fakeProductRepo{products: map[uint64]domain.Product{
		1: {ID: 1, Price: 100, StockQuantity: 5, Category: "coffee"},
		2: {ID: 2, Price: 50, StockQuantity: 5, Category: "tea"},
		3: {ID: 3, Price: 80, StockQuantity: 0, Category: "gear"},
		4: {ID: 4, Price: 60, StockQuantity: 5, Category: "gear"},
		5: {ID: 5, Price: 40, StockQuantity: 5, Category: "tea"},
	}}
	return NewService(repo, products, recs, DefaultConfig(), nil)
}

func TestRefreshOffersGenerates(t *testing.T) {
	recs := &stubRecs{result: eligibleResult(
		scoredItem(1, 0.9, 5),
		scoredItem(2, 0.7, 5),
		scoredItem(3, 0.8, 0),  // out of stock, skipped
		scoredItem(4, 0.3, 5),  // below threshold, skipped
		scoredItem(5, 0.55, 5),
	)}
	svc := newTestService(recs, newFakeOfferRepo())

	views, err := svc.RefreshOffers(context.Background(), 7)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("got %d offers, want 3 qualifying products", len(views))
	}

	byProduct := make(map[uint64]OfferView)
	for _, v := range views {
		byProduct[v.Offer.ProductID] = v
		if v.Offer.Discount < 0 || v.Offer.Discount > DefaultConfig().MaxPercent {
			t.Errorf("discount %f outside [0, max]", v.Offer.Discount)
		}
		if v.Offer.ExpiresAt.Before(time.Now().Add(47 * time.Hour)) {
			t.Errorf("offer expires too early: %v", v.Offer.ExpiresAt)
		}
	}
	if _, ok := byProduct[3]; ok {
		t.Error("out-of-stock product must not receive an offer")
	}
	if _, ok := byProduct[4]; ok {
		t.Error("below-threshold product must not receive an offer")
	}

	// weaker match gets the deeper discount
	if byProduct[1].Offer.Discount >= byProduct[5].Offer.Discount {
		t.Errorf("discounts not monotone: score 0.9 -> %f, score 0.55 -> %f",
			byProduct[1].Offer.Discount, byProduct[5].Offer.Discount)
	}

	// offer price replaces the catalog discount
	if got := byProduct[1].OfferPrice; got != 100*(1-byProduct[1].Offer.Discount/100) {
		t.Errorf("offer price = %f", got)
	}
}

func TestRefreshOffersIdempotentPerProduct(t *testing.T) {
	recs := &stubRecs{result: eligibleResult(scoredItem(1, 0.9, 5), scoredItem(2, 0.8, 5))}
	repo := newFakeOfferRepo()
	svc := newTestService(recs, repo)

	first, err := svc.RefreshOffers(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.RefreshOffers(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Errorf("second refresh changed offer count: %d -> %d", len(first), len(second))
	}
	if len(repo.offers) != 2 {
		t.Errorf("repo holds %d offers, want one per (user, product)", len(repo.offers))
	}
}

func TestRefreshOffersIneligibleSegments(t *testing.T) {
	for _, segment := range []domain.Segment{
		domain.SegmentGuestCold, domain.SegmentGuestWarm, domain.SegmentAuthNew,
	} {
		recs := &stubRecs{result: &domain.RecommendationResult{
			Items:   []domain.ScoredProduct{scoredItem(1, 0.9, 5)},
			Segment: segment,
		}}
		svc := newTestService(recs, newFakeOfferRepo())
		if _, err := svc.RefreshOffers(context.Background(), 7); !errors.Is(err, ErrNotEligible) {
			t.Errorf("segment %s: err = %v, want ErrNotEligible", segment, err)
		}
	}
}

func TestRefreshOffersGuest(t *testing.T) {
	svc := newTestService(&stubRecs{}, newFakeOfferRepo())
	if _, err := svc.RefreshOffers(context.Background(), 0); !errors.Is(err, ErrNotEligible) {
		t.Errorf("err = %v, want ErrNotEligible for anonymous user", err)
	}
}

func TestRedeem(t *testing.T) {
	recs := &stubRecs{result: eligibleResult(scoredItem(1, 0.9, 5))}
	repo := newFakeOfferRepo()
	svc := newTestService(recs, repo)

	views, err := svc.RefreshOffers(context.Background(), 7)
	if err != nil || len(views) == 0 {
		t.Fatalf("setup failed: %v", err)
	}
	offerID := views[0].Offer.ID

	redeemed, err := svc.Redeem(context.Background(), 7, offerID, 42)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if !redeemed.IsUsed || redeemed.OrderID == nil || *redeemed.OrderID != 42 {
		t.Errorf("redeemed offer not marked used against the order: %+v", redeemed)
	}

	// second redemption must fail
	if _, err := svc.Redeem(context.Background(), 7, offerID, 43); !errors.Is(err, ErrOfferUnusable) {
		t.Errorf("double redeem: err = %v, want ErrOfferUnusable", err)
	}
}

func TestRedeemForeignOffer(t *testing.T) {
	recs := &stubRecs{result: eligibleResult(scoredItem(1, 0.9, 5))}
	repo := newFakeOfferRepo()
	svc := newTestService(recs, repo)

	views, err := svc.RefreshOffers(context.Background(), 7)
	if err != nil || len(views) == 0 {
		t.Fatalf("setup failed: %v", err)
	}
	if _, err := svc.Redeem(context.Background(), 8, views[0].Offer.ID, 42); !errors.Is(err, ErrOfferUnusable) {
		t.Errorf("foreign redeem: err = %v, want ErrOfferUnusable", err)
	}
}

func TestRedeemExpired(t *testing.T) {
	recs := &stubRecs{result: eligibleResult(scoredItem(1, 0.9, 5))}
	repo := newFakeOfferRepo()
	svc := newTestService(recs, repo)

	views, err := svc.RefreshOffers(context.Background(), 7)
	if err != nil || len(views) == 0 {
		t.Fatalf("setup failed: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	if _, err := svc.Redeem(context.Background(), 7, views[0].Offer.ID, 42); !errors.Is(err, ErrOfferUnusable) {
		t.Errorf("expired redeem: err = %v, want ErrOfferUnusable", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	recs := &stubRecs{result: eligibleResult(scoredItem(1, 0.9, 5), scoredItem(2, 0.8, 5))}
	repo := newFakeOfferRepo()
	svc := newTestService(recs, repo)

	if _, err := svc.RefreshOffers(context.Background(), 7); err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	removed, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d offers, want 2", removed)
	}
}

func TestActiveOffersDropsOutOfStock(t *testing.T) {
	repo := newFakeOfferRepo()
	svc := newTestService(&stubRecs{}, repo)

	now := time.Now()
	for _, productID := range []uint64{1, 3} { // product 3 is out of stock
		repo.Create(context.Background(), &domain.PersonalizedOffer{
			UserID: 7, ProductID: productID, Discount: 10, ExpiresAt: now.Add(time.Hour),
		})
	}

	views, err := svc.ActiveOffers(context.Background(), 7)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(views) != 1 || views[0].Offer.ProductID != 1 {
		t.Errorf("got %d offers, want only the in-stock product's", len(views))
	}
}
