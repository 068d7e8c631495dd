package recommender

import (
	"context"
	"fmt"
	"time"

	"shopsense/domain"
	"shopsense/pkg/logger"
)

// PopularitySource supplies the ranked best-seller list baked into each
// snapshot as the popularity fallback.
type PopularitySource interface {
	BestSellers(ctx context.Context, window time.Duration, limit int) ([]uint64, error)
}

const bestSellerLimit = 100

// Trainer rebuilds every model artifact on an interval and publishes the
// result as one atomic snapshot. A failed cycle is logged and the previous
// snapshot keeps serving.
type Trainer struct {
	svc        *Service
	popularity PopularitySource
	interval   time.Duration
	cfg        Config
}

func NewTrainer(svc *Service, popularity PopularitySource, interval time.Duration, cfg Config) *Trainer {
	return &Trainer{
		svc:        svc,
		popularity: popularity,
		interval:   interval,
		cfg:        cfg,
	}
}

func (t *Trainer) currentVersion() int64 {
	if snap := t.svc.snapshot.Load(); snap != nil {
		return snap.Version
	}
	return 0
}

// Run trains immediately, then on every tick until the context is canceled.
func (t *Trainer) Run(ctx context.Context) {
	if err := t.TrainOnce(ctx); err != nil {
		logger.Error("initial training cycle failed", "error", err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("trainer stopped")
			return
		case <-ticker.C:
			if err := t.TrainOnce(ctx); err != nil {
				logger.Error("training cycle failed, keeping previous snapshot", "error", err)
			}
		}
	}
}

// TrainOnce builds and publishes one snapshot generation.
func (t *Trainer) TrainOnce(ctx context.Context) error {
	started := time.Now()
	snap, err := t.buildSnapshot(ctx, t.currentVersion()+1, started)
	if err != nil {
		return err
	}
	t.svc.publishSnapshot(snap)

	logger.Info("published model snapshot",
		"version", snap.Version,
		"user_models", len(snap.UserModels),
		"vectors", len(snap.Vectors),
		"best_sellers", len(snap.BestSellers),
		"duration", time.Since(started).String(),
	)
	return nil
}

func (t *Trainer) buildSnapshot(ctx context.Context, version int64, now time.Time) (*ModelSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	snap := newSnapshot(version, now)

	interactions, err := t.svc.interactionRepo.ListSince(ctx, now.Add(-t.cfg.HistoryWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions for training: %w", err)
	}

	products, err := t.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	byIdentity := groupByIdentity(interactions)

	var populationExamples []trainingExample
	for key, group := range byIdentity {
		profile := t.cfg.BuildProfile(group.identity, group.interactions, products, now)
		snap.Vectors[key] = profile.Vector()

		examples := labelExamples(profile, products)

		// only established users feed the population fallback model; guest
		// and sparse histories would dilute it with noise
		segment := DetermineSegment(group.identity.Authenticated(), profile.Interactions, profile.Purchases)
		if segment == domain.SegmentAuthEstablished {
			populationExamples = append(populationExamples, examples...)
		}

		if profile.Interactions < t.cfg.PerUserMinInteractions || profile.Purchases < t.cfg.PerUserMinPurchases {
			continue
		}
		model, err := trainLinearModel(examples, t.cfg.LearningRate, t.cfg.Epochs)
		if err != nil {
			continue
		}
		snap.UserModels[key] = model
	}

	if model, err := trainLinearModel(populationExamples, t.cfg.LearningRate, t.cfg.Epochs); err == nil {
		snap.Population = model
	}

	orders, err := t.svc.orderRepo.ListSince(ctx, now.Add(-t.cfg.HistoryWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load orders for training: %w", err)
	}
	snap.Cooccurrence = buildCooccurrence(orders)

	sellers, err := t.popularity.BestSellers(ctx, t.cfg.RecentPurchaseWindow, bestSellerLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load best sellers: %w", err)
	}
	snap.setBestSellers(sellers)

	return snap, nil
}

func (t *Trainer) loadCatalog(ctx context.Context) (map[uint64]domain.Product, error) {
	products, err := t.svc.productRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog for training: %w", err)
	}
	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

type identityGroup struct {
	identity     domain.Identity
	interactions []domain.Interaction
}

func groupByIdentity(interactions []domain.Interaction) map[string]*identityGroup {
	groups := make(map[string]*identityGroup)
	for _, in := range interactions {
		identity := domain.Identity{UserID: in.UserID, SessionID: in.SessionID}
		key := identity.Key()
		group, ok := groups[key]
		if !ok {
			group = &identityGroup{identity: identity}
			groups[key] = group
		}
		group.interactions = append(group.interactions, in)
	}
	return groups
}

// labelExamples turns one profile into labelled rows: purchased products are
// positives, products interacted with but never purchased are negatives.
func labelExamples(profile *Profile, products map[uint64]domain.Product) []trainingExample {
	purchased := make(map[uint64]struct{}, len(profile.RecentPurchases))
	for _, id := range profile.RecentPurchases {
		purchased[id] = struct{}{}
	}

	examples := make([]trainingExample, 0, len(profile.ItemWeights))
	for productID := range profile.ItemWeights {
		product, ok := products[productID]
		if !ok {
			continue
		}
		label := 0.0
		if _, bought := purchased[productID]; bought {
			label = 1.0
		}
		examples = append(examples, trainingExample{
			features: featureVector(profile, product),
			label:    label,
		})
	}
	return examples
}
