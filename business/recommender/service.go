package recommender

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"shopsense/domain"
	"shopsense/pkg/logger"
	"shopsense/pkg/metrics"
)

type InteractionRepository interface {
	ListByIdentity(ctx context.Context, identity domain.Identity, since time.Time) ([]domain.Interaction, error)
	ListSince(ctx context.Context, since time.Time) ([]domain.Interaction, error)
	Save(ctx context.Context, interaction *domain.Interaction) error
}

type ProductRepository interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
	FindInStock(ctx context.Context) ([]domain.Product, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
}

type OrderRepository interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID uint, since time.Time) ([]domain.Order, error)
}

// Service computes recommendations per request off the published model
// snapshot. Request handling never trains: it reads whatever generation the
// trainer last published and degrades to popularity when there is none.
type Service struct {
	interactionRepo InteractionRepository
	productRepo     ProductRepository
	orderRepo       OrderRepository
	cache           *ResultCache
	cfg             Config

	snapshot   atomic.Pointer[ModelSnapshot]
	experiment atomic.Pointer[Experiment]
}

func NewService(interactionRepo InteractionRepository, productRepo ProductRepository, orderRepo OrderRepository, cache *ResultCache, cfg Config) *Service {
	return &Service{
		interactionRepo: interactionRepo,
		productRepo:     productRepo,
		orderRepo:       orderRepo,
		cache:           cache,
		cfg:             cfg,
	}
}

// Snapshot returns the current model generation, or ErrNoSnapshot before the
// first training cycle completes.
func (s *Service) Snapshot() (*ModelSnapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// publishSnapshot swaps in a new generation. Requests in flight keep the
// pointer they already loaded.
func (s *Service) publishSnapshot(snap *ModelSnapshot) {
	s.snapshot.Store(snap)
	metrics.SnapshotVersion.Set(float64(snap.Version))
}

// SetExperiment activates, replaces, or (with nil) stops the running
// blend-weight experiment. Every cached result is dropped: entries computed
// under the previous weights must not keep serving.
func (s *Service) SetExperiment(ctx context.Context, exp *Experiment) {
	s.experiment.Store(exp)
	s.cache.Flush(ctx)
	if exp != nil {
		logger.Info("experiment activated", "experiment", exp.Name, "variants", len(exp.Variants))
	} else {
		logger.Info("experiment stopped")
	}
}

// Experiment returns the running experiment, or nil.
func (s *Service) Experiment() *Experiment {
	return s.experiment.Load()
}

// GetRecommendations returns the cached ranked list for the identity,
// computing it on a miss. Concurrent misses for the same key collapse into a
// single computation.
func (s *Service) GetRecommendations(ctx context.Context, identity domain.Identity, limit int) (*domain.RecommendationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 || limit > s.cfg.TopK {
		limit = s.cfg.TopK
	}

	key := resultCacheKey(identity, nil, limit)
	result, _, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*domain.RecommendationResult, error) {
		return s.recommend(ctx, identity, nil, limit)
	})
	if err != nil {
		return nil, err
	}
	source := sourceBestSellers
	if len(result.Items) > 0 {
		source = result.Items[0].Source
	}
	metrics.RecommendRequests.WithLabelValues(string(result.Segment), source).Inc()
	s.trackExposure(result)
	return result, nil
}

// GetCartRecommendations ranks complements to the live cart. Cart contents
// are part of the cache key, so different carts never share an entry.
func (s *Service) GetCartRecommendations(ctx context.Context, identity domain.Identity, cartIDs []uint64, limit int) (*domain.RecommendationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 || limit > s.cfg.TopK {
		limit = s.cfg.TopK
	}

	key := resultCacheKey(identity, cartIDs, limit)
	result, _, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*domain.RecommendationResult, error) {
		return s.recommend(ctx, identity, cartIDs, limit)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecommendRequests.WithLabelValues(string(result.Segment), "cart").Inc()
	s.trackExposure(result)
	return result, nil
}

// trackExposure counts one experiment impression per serve, cache hits
// included, so per-variant click and purchase rates have a denominator.
func (s *Service) trackExposure(result *domain.RecommendationResult) {
	if result.Variant == "" {
		return
	}
	exp := s.experiment.Load()
	if exp == nil {
		return
	}
	metrics.ExperimentEvents.WithLabelValues(exp.Name, result.Variant, "impression").Inc()
}

// RecordInteraction appends one implicit-feedback event and, for the types
// that change what should be recommended, drops the identity's cached
// results.
func (s *Service) RecordInteraction(ctx context.Context, identity domain.Identity, productID uint64, interactionType string, eventContext map[string]interface{}) error {
	if !domain.ValidInteractionType(interactionType) {
		return fmt.Errorf("invalid interaction type %q", interactionType)
	}

	interaction := &domain.Interaction{
		UserID:    identity.UserID,
		SessionID: identity.SessionID,
		ProductID: productID,
		Type:      interactionType,
		Weight:    s.cfg.interactionWeight(interactionType),
		Context:   datatypes.JSONMap(eventContext),
	}
	if err := s.interactionRepo.Save(ctx, interaction); err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}

	if interactionType == domain.InteractionCartAdd || interactionType == domain.InteractionPurchase {
		s.cache.InvalidateIdentity(ctx, identity)
	}

	if exp := s.experiment.Load(); exp != nil {
		if interactionType == domain.InteractionClick || interactionType == domain.InteractionPurchase {
			metrics.ExperimentEvents.WithLabelValues(exp.Name, exp.Assign(identity).Name, interactionType).Inc()
		}
	}
	return nil
}

// recommend is the uncached computation: profile, segment, candidates,
// scorer fan-out, blend, diversity, fallback.
func (s *Service) recommend(ctx context.Context, identity domain.Identity, cartIDs []uint64, limit int) (*domain.RecommendationResult, error) {
	started := time.Now()
	defer func() {
		metrics.RecommendLatency.Observe(time.Since(started).Seconds())
	}()

	now := time.Now()

	interactions, err := s.interactionRepo.ListByIdentity(ctx, identity, now.Add(-s.cfg.HistoryWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	profileProducts, err := s.interactedProducts(ctx, interactions)
	if err != nil {
		return nil, err
	}
	profile := s.cfg.BuildProfile(identity, interactions, profileProducts, now)
	segment := DetermineSegment(identity.Authenticated(), profile.Interactions, profile.Purchases)

	candidates, err := s.candidateSet(ctx, identity, profile, cartIDs, now)
	if err != nil {
		return nil, err
	}

	result := &domain.RecommendationResult{
		Segment:     segment,
		CacheKey:    resultCacheKey(identity, cartIDs, limit),
		GeneratedAt: now,
	}
	if len(candidates) == 0 {
		return result, nil
	}

	snapshot := s.snapshot.Load()
	weights, hasWeights := s.cfg.SegmentWeights[segment]

	// a running experiment can reroute this identity onto a variant weight
	// table; guest-cold stays on the fallback path regardless
	if exp := s.experiment.Load(); exp != nil && hasWeights {
		variant := exp.Assign(identity)
		result.Variant = variant.Name
		if variant.Weights != nil {
			weights = *variant.Weights
		}
	}

	var items []domain.ScoredProduct
	if hasWeights && snapshot != nil {
		items = s.scoreAndBlend(ctx, profile, segment, candidates, cartIDs, snapshot, weights)
	}
	if len(items) == 0 {
		items = fallbackBestSellers(candidates, snapshot)
	}

	result.Items = applyDiversity(items, limit, s.cfg.DiversityCap)
	return result, nil
}

// scoreAndBlend fans the three scorers out in parallel, redistributes the
// segment weights over whichever came back available, and blends. An empty
// return means the caller should fall back to popularity.
func (s *Service) scoreAndBlend(ctx context.Context, profile *Profile, segment domain.Segment, candidates []domain.Product, cartIDs []uint64, snapshot *ModelSnapshot, weights BlendWeights) []domain.ScoredProduct {
	candidateIDs := make([]uint64, len(candidates))
	for i, p := range candidates {
		candidateIDs[i] = p.ID
	}

	basketContext := cartIDs
	if len(basketContext) == 0 {
		basketContext = profile.RecentPurchases
	}

	outputs := make(map[string]scorerOutput, 3)
	var linearOut, neighborOut, basketOut scorerOutput

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		linearOut = runScorer(gctx, segment, scorerLinear, func() (map[uint64]float64, error) {
			return scoreLinear(profile, candidates, snapshot)
		})
		return nil
	})
	g.Go(func() error {
		neighborOut = runScorer(gctx, segment, scorerNeighborhood, func() (map[uint64]float64, error) {
			return scoreNeighborhood(s.cfg, profile, candidateIDs, snapshot.Vectors)
		})
		return nil
	})
	g.Go(func() error {
		basketOut = runScorer(gctx, segment, scorerBasket, func() (map[uint64]float64, error) {
			return scoreBasket(s.cfg, basketContext, candidateIDs, snapshot.Cooccurrence)
		})
		return nil
	})
	_ = g.Wait()

	outputs[scorerLinear] = linearOut
	outputs[scorerNeighborhood] = neighborOut
	outputs[scorerBasket] = basketOut

	available := make(map[string]bool, 3)
	for name, out := range outputs {
		available[name] = out.available
	}

	effective := redistributeWeights(weights, available)
	if effective == nil {
		return nil
	}
	return blendScores(candidates, outputs, effective)
}

// runScorer wraps one scorer call: normalizes its scores, records the
// unavailable metric, and never lets a scorer failure become a request
// failure.
func runScorer(ctx context.Context, segment domain.Segment, name string, fn func() (map[uint64]float64, error)) scorerOutput {
	if err := ctx.Err(); err != nil {
		metrics.ScorerUnavailable.WithLabelValues(name).Inc()
		return scorerOutput{}
	}

	scores, err := fn()
	if err != nil {
		metrics.ScorerUnavailable.WithLabelValues(name).Inc()
		logger.Debug("scorer unavailable", "scorer", name, "segment", string(segment), "error", err)
		return scorerOutput{}
	}
	minMaxNormalize(scores)
	return scorerOutput{scores: scores, available: true}
}

// candidateSet is the bounded pool the scorers rank: in-stock products minus
// the requester's recent purchases and live cart, capped for latency.
func (s *Service) candidateSet(ctx context.Context, identity domain.Identity, profile *Profile, cartIDs []uint64, now time.Time) ([]domain.Product, error) {
	products, err := s.productRepo.FindInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate products: %w", err)
	}

	excluded := make(map[uint64]struct{})
	for _, id := range cartIDs {
		excluded[id] = struct{}{}
	}
	if identity.Authenticated() {
		orders, err := s.orderRepo.ListByUser(ctx, identity.UserID, now.Add(-s.cfg.RecentPurchaseWindow))
		if err != nil {
			return nil, fmt.Errorf("failed to load recent orders: %w", err)
		}
		for _, order := range orders {
			for _, id := range order.ProductIDs() {
				excluded[id] = struct{}{}
			}
		}
	}
	for _, id := range profile.RecentPurchases {
		excluded[id] = struct{}{}
	}

	candidates := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		candidates = append(candidates, p)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	if len(candidates) > s.cfg.CandidateCap {
		candidates = candidates[:s.cfg.CandidateCap]
	}
	return candidates, nil
}

// interactedProducts loads catalog rows for the profile's attribute
// preferences, including products that have since gone out of stock.
func (s *Service) interactedProducts(ctx context.Context, interactions []domain.Interaction) (map[uint64]domain.Product, error) {
	if len(interactions) == 0 {
		return nil, nil
	}
	seen := make(map[uint64]struct{}, len(interactions))
	ids := make([]uint64, 0, len(interactions))
	for _, in := range interactions {
		if _, ok := seen[in.ProductID]; ok {
			continue
		}
		seen[in.ProductID] = struct{}{}
		ids = append(ids, in.ProductID)
	}

	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load interacted products: %w", err)
	}
	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// fallbackBestSellers ranks candidates by the snapshot's popularity order.
// Before the first snapshot it degrades further to catalog discount, which
// at least surfaces live deals instead of an arbitrary slice.
func fallbackBestSellers(candidates []domain.Product, snapshot *ModelSnapshot) []domain.ScoredProduct {
	ranked := make([]domain.ScoredProduct, 0, len(candidates))
	for _, p := range candidates {
		score := p.Discount / 100
		if snapshot != nil {
			if rank, ok := snapshot.BestSellerRank[p.ID]; ok {
				score = 1 / float64(rank+1)
			}
		}
		ranked = append(ranked, domain.ScoredProduct{
			ProductID:    p.ID,
			Product:      p,
			BlendedScore: score,
			Source:       sourceBestSellers,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].BlendedScore != ranked[j].BlendedScore {
			return ranked[i].BlendedScore > ranked[j].BlendedScore
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	return ranked
}
