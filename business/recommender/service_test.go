package recommender

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shopsense/domain"
)

type fakeInteractionRepo struct {
	mu           sync.Mutex
	interactions []domain.Interaction
	listCalls    int32
}

func (f *fakeInteractionRepo) ListByIdentity(_ context.Context, identity domain.Identity, since time.Time) ([]domain.Interaction, error) {
	atomic.AddInt32(&f.listCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Interaction
	for _, in := range f.interactions {
		if in.UserID != identity.UserID || in.SessionID != identity.SessionID {
			continue
		}
		if in.CreatedAt.Before(since) {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

func (f *fakeInteractionRepo) ListSince(_ context.Context, since time.Time) ([]domain.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Interaction
	for _, in := range f.interactions {
		if !in.CreatedAt.Before(since) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeInteractionRepo) Save(_ context.Context, interaction *domain.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	interaction.ID = uint64(len(f.interactions) + 1)
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now()
	}
	f.interactions = append(f.interactions, *interaction)
	return nil
}

type fakeProductRepo struct {
	products []domain.Product
}

func (f *fakeProductRepo) FindAll(_ context.Context) ([]domain.Product, error) {
	return f.products, nil
}

func (f *fakeProductRepo) FindInStock(_ context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		if p.InStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) FindByIDs(_ context.Context, ids []uint64) ([]domain.Product, error) {
	want := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.Product
	for _, p := range f.products {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	orders []domain.Order
}

func (f *fakeOrderRepo) ListSince(_ context.Context, since time.Time) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, userID uint, since time.Time) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID && !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakePopularity struct {
	ids []uint64
}

func (f *fakePopularity) BestSellers(_ context.Context, _ time.Duration, limit int) ([]uint64, error) {
	if len(f.ids) > limit {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

func testCatalog() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "espresso beans", Category: "coffee", Brand: "acme", Price: 30, StockQuantity: 10},
		{ID: 2, Name: "filter beans", Category: "coffee", Brand: "acme", Price: 40, StockQuantity: 10},
		{ID: 3, Name: "green tea", Category: "tea", Brand: "leaf", Price: 20, StockQuantity: 10},
		{ID: 4, Name: "black tea", Category: "tea", Brand: "leaf", Price: 25, StockQuantity: 10},
		{ID: 5, Name: "grinder", Category: "gear", Brand: "steel", Price: 120, StockQuantity: 10, Discount: 15},
		{ID: 6, Name: "kettle", Category: "gear", Brand: "steel", Price: 200, StockQuantity: 10, Discount: 5},
		{ID: 7, Name: "discontinued press", Category: "gear", Brand: "steel", Price: 90, StockQuantity: 0},
	}
}

func seedInteractions(repo *fakeInteractionRepo, now time.Time) {
	add := func(userID uint, productID uint64, typ string, weight float64, age time.Duration) {
		repo.interactions = append(repo.interactions, domain.Interaction{
			UserID: userID, ProductID: productID, Type: typ, Weight: weight,
			CreatedAt: now.Add(-age),
		})
	}

	// target user 1: one purchase and two views
	add(1, 1, domain.InteractionPurchase, 5, 24*time.Hour)
	add(1, 2, domain.InteractionView, 1, 20*time.Hour)
	add(1, 3, domain.InteractionView, 1, 12*time.Hour)

	// neighbor users with overlapping taste plus items user 1 has not seen
	for _, userID := range []uint{2, 3, 4} {
		add(userID, 1, domain.InteractionPurchase, 5, 48*time.Hour)
		add(userID, 2, domain.InteractionClick, 2, 40*time.Hour)
		add(userID, 3, domain.InteractionView, 1, 36*time.Hour)
		add(userID, 4, domain.InteractionPurchase, 5, 30*time.Hour)
		add(userID, 5, domain.InteractionCartAdd, 3, 24*time.Hour)
		add(userID, 6, domain.InteractionView, 1, 12*time.Hour)
	}
}

func testOrderHistory(now time.Time) []domain.Order {
	stamp := func(o domain.Order, age time.Duration) domain.Order {
		o.CreatedAt = now.Add(-age)
		return o
	}
	return []domain.Order{
		stamp(orderOf(2, 1, 2), 48*time.Hour),
		stamp(orderOf(3, 1, 2), 44*time.Hour),
		stamp(orderOf(4, 1, 2, 4), 40*time.Hour),
		stamp(orderOf(2, 1, 4), 30*time.Hour),
		stamp(orderOf(3, 4), 28*time.Hour),
	}
}

type testEnv struct {
	svc          *Service
	trainer      *Trainer
	interactions *fakeInteractionRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Now()

	interactions := &fakeInteractionRepo{}
	seedInteractions(interactions, now)

	products := &fakeProductRepo{products: testCatalog()}
	orders := &fakeOrderRepo{orders: testOrderHistory(now)}
	popularity := &fakePopularity{ids: []uint64{2, 4, 1, 5}}

	cfg := DefaultConfig()
	cache := NewResultCache(cfg.CacheTTL, nil)
	svc := NewService(interactions, products, orders, cache, cfg)
	trainer := NewTrainer(svc, popularity, time.Minute, cfg)

	return &testEnv{svc: svc, trainer: trainer, interactions: interactions}
}

func TestColdIdentityGetsBestSellers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.trainer.TrainOnce(ctx); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	result, err := env.svc.GetRecommendations(ctx, domain.Identity{SessionID: "fresh-session"}, 10)
	if err != nil {
		t.Fatalf("recommendation failed: %v", err)
	}
	if result.Segment != domain.SegmentGuestCold {
		t.Errorf("segment = %s, want guest-cold", result.Segment)
	}
	if len(result.Items) == 0 {
		t.Fatal("a cold identity must still receive recommendations")
	}
	for _, it := range result.Items {
		if it.Source != sourceBestSellers {
			t.Errorf("product %d source = %s, want best-sellers", it.ProductID, it.Source)
		}
		if !it.Product.InStock() {
			t.Errorf("product %d is out of stock", it.ProductID)
		}
	}
	// diversity cap still applies on the fallback path
	if result.Items[0].ProductID != 2 {
		t.Errorf("top item = %d, want the top best seller", result.Items[0].ProductID)
	}
}

func TestRecommendationsBeforeFirstSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.svc.GetRecommendations(ctx, domain.Identity{SessionID: "fresh-session"}, 10)
	if err != nil {
		t.Fatalf("recommendation failed: %v", err)
	}
	if len(result.Items) == 0 {
		t.Fatal("requests before the first training cycle must still be served")
	}
}

func TestEstablishedUserRecommendations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.trainer.TrainOnce(ctx); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	result, err := env.svc.GetRecommendations(ctx, domain.Identity{UserID: 1}, 10)
	if err != nil {
		t.Fatalf("recommendation failed: %v", err)
	}
	if result.Segment != domain.SegmentAuthEstablished {
		t.Errorf("segment = %s, want auth-established", result.Segment)
	}
	if len(result.Items) == 0 {
		t.Fatal("established user should receive recommendations")
	}
	for _, it := range result.Items {
		if it.ProductID == 1 {
			t.Error("recently purchased product must be excluded")
		}
		if !it.Product.InStock() {
			t.Errorf("product %d is out of stock", it.ProductID)
		}
	}
}

func TestCartRecommendationsUseCartContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.trainer.TrainOnce(ctx); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	result, err := env.svc.GetCartRecommendations(ctx, domain.Identity{SessionID: "shopper"}, []uint64{1}, 10)
	if err != nil {
		t.Fatalf("cart recommendation failed: %v", err)
	}
	if len(result.Items) == 0 {
		t.Fatal("cart with co-occurrence history should yield recommendations")
	}
	for _, it := range result.Items {
		if it.ProductID == 1 {
			t.Error("cart contents must not be recommended back")
		}
	}
}

func TestPurchaseInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := domain.Identity{UserID: 1}

	if _, err := env.svc.GetRecommendations(ctx, identity, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.GetRecommendations(ctx, identity, 10); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&env.interactions.listCalls); got != 1 {
		t.Fatalf("profile loaded %d times before invalidation, want 1 (cached)", got)
	}

	if err := env.svc.RecordInteraction(ctx, identity, 4, domain.InteractionPurchase, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.GetRecommendations(ctx, identity, 10); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&env.interactions.listCalls); got != 2 {
		t.Errorf("profile loaded %d times after purchase, want recompute", got)
	}
}

func TestViewDoesNotInvalidateCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := domain.Identity{UserID: 1}

	if _, err := env.svc.GetRecommendations(ctx, identity, 10); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.RecordInteraction(ctx, identity, 4, domain.InteractionView, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.GetRecommendations(ctx, identity, 10); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&env.interactions.listCalls); got != 1 {
		t.Errorf("profile loaded %d times, a view should not drop the cache", got)
	}
}

func TestRecordInteractionRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	if err := env.svc.RecordInteraction(context.Background(), domain.Identity{UserID: 1}, 4, "hover", nil); err == nil {
		t.Error("unknown interaction type must be rejected")
	}
}

func TestSnapshotVersionMonotonic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Snapshot(); err == nil {
		t.Error("expected ErrNoSnapshot before the first training cycle")
	}

	var last int64
	for i := 0; i < 3; i++ {
		if err := env.trainer.TrainOnce(ctx); err != nil {
			t.Fatalf("cycle %d failed: %v", i, err)
		}
		snap, err := env.svc.Snapshot()
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if snap.Version <= last {
			t.Errorf("version %d after %d, want strictly increasing", snap.Version, last)
		}
		last = snap.Version
	}
}

func TestTrainedSnapshotContents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.trainer.TrainOnce(ctx); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	snap, err := env.svc.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Vectors) < 4 {
		t.Errorf("vectors for %d identities, want every identity with history", len(snap.Vectors))
	}
	if snap.Cooccurrence == nil || snap.Cooccurrence.Orders == 0 {
		t.Error("snapshot should carry a mined co-occurrence table")
	}
	if len(snap.BestSellers) == 0 {
		t.Error("snapshot should carry the best-seller ranking")
	}
	if snap.Population == nil {
		t.Error("established purchase histories should train a population model")
	}
}

func TestPopulationModelIgnoresGuestHistory(t *testing.T) {
	now := time.Now()
	interactions := &fakeInteractionRepo{}
	// guests only: enough signal for both classes, but no established user
	for _, sessionID := range []string{"s-1", "s-2", "s-3"} {
		interactions.interactions = append(interactions.interactions,
			domain.Interaction{SessionID: sessionID, ProductID: 1, Type: domain.InteractionPurchase, Weight: 5, CreatedAt: now.Add(-24 * time.Hour)},
			domain.Interaction{SessionID: sessionID, ProductID: 3, Type: domain.InteractionView, Weight: 1, CreatedAt: now.Add(-12 * time.Hour)},
		)
	}

	products := &fakeProductRepo{products: testCatalog()}
	orders := &fakeOrderRepo{}
	cfg := DefaultConfig()
	svc := NewService(interactions, products, orders, NewResultCache(cfg.CacheTTL, nil), cfg)
	trainer := NewTrainer(svc, &fakePopularity{ids: []uint64{1}}, time.Minute, cfg)

	if err := trainer.TrainOnce(context.Background()); err != nil {
		t.Fatalf("training failed: %v", err)
	}
	snap, err := svc.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Population != nil {
		t.Error("guest histories must not train the population fallback model")
	}
	if len(snap.Vectors) != 3 {
		t.Errorf("vectors for %d identities, guests still feed the neighborhood vectors", len(snap.Vectors))
	}
}
