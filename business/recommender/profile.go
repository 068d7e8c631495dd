package recommender

import (
	"sort"
	"time"

	"shopsense/domain"
)

// Profile is the per-request view of a requester's history. It is derived
// from the raw interaction rows on every request so that a just-recorded
// event is reflected immediately, without waiting for a training cycle.
type Profile struct {
	Identity domain.Identity

	Interactions int
	Purchases    int
	LastActivity time.Time

	// implicit-feedback weight accumulated per product
	ItemWeights map[uint64]float64

	// normalized preference shares over the attributes of interacted products
	CategoryPrefs map[string]float64
	BrandPrefs    map[string]float64

	AvgPrice float64 // weighted mean price of interacted products

	RecencyScore float64 // 1/(1+days/30) over the mean interaction age
	PurchaseFreq float64 // purchases per 30 days of observed history

	// product ids in most-recent-first order, distinct
	RecentProducts  []uint64
	RecentPurchases []uint64
}

// BuildProfile folds a requester's interactions into a Profile. products maps
// product id to catalog row for attribute lookups; interactions on products
// missing from the map still count toward volume but contribute no attribute
// preference.
func (c Config) BuildProfile(identity domain.Identity, interactions []domain.Interaction, products map[uint64]domain.Product, now time.Time) *Profile {
	p := &Profile{
		Identity:      identity,
		ItemWeights:   make(map[uint64]float64),
		CategoryPrefs: make(map[string]float64),
		BrandPrefs:    make(map[string]float64),
	}
	if len(interactions) == 0 {
		return p
	}

	sorted := make([]domain.Interaction, len(interactions))
	copy(sorted, interactions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var (
		priceSum   float64
		priceNorm  float64
		ageDaysSum float64
		seen       = make(map[uint64]struct{})
		seenBuy    = make(map[uint64]struct{})
		oldest     = sorted[0].CreatedAt
	)

	p.LastActivity = sorted[0].CreatedAt

	for _, in := range sorted {
		w := in.Weight
		if w <= 0 {
			w = c.interactionWeight(in.Type)
		}

		p.Interactions++
		p.ItemWeights[in.ProductID] += w
		ageDaysSum += now.Sub(in.CreatedAt).Hours() / 24

		if in.CreatedAt.Before(oldest) {
			oldest = in.CreatedAt
		}

		if _, ok := seen[in.ProductID]; !ok {
			seen[in.ProductID] = struct{}{}
			p.RecentProducts = append(p.RecentProducts, in.ProductID)
		}

		if in.Type == domain.InteractionPurchase {
			p.Purchases++
			if _, ok := seenBuy[in.ProductID]; !ok {
				seenBuy[in.ProductID] = struct{}{}
				p.RecentPurchases = append(p.RecentPurchases, in.ProductID)
			}
		}

		product, ok := products[in.ProductID]
		if !ok {
			continue
		}
		if product.Category != "" {
			p.CategoryPrefs[product.Category] += w
		}
		if product.Brand != "" {
			p.BrandPrefs[product.Brand] += w
		}
		priceSum += product.Price * w
		priceNorm += w
	}

	normalize(p.CategoryPrefs)
	normalize(p.BrandPrefs)

	if priceNorm > 0 {
		p.AvgPrice = priceSum / priceNorm
	}

	meanAgeDays := ageDaysSum / float64(p.Interactions)
	p.RecencyScore = 1 / (1 + meanAgeDays/30)

	observedDays := now.Sub(oldest).Hours() / 24
	if observedDays < 1 {
		observedDays = 1
	}
	p.PurchaseFreq = float64(p.Purchases) / (observedDays / 30)

	return p
}

// Vector returns the profile's item weights as a neighborhood vector.
func (p *Profile) Vector() UserVector {
	return UserVector{Items: p.ItemWeights, LastActive: p.LastActivity}
}

func normalize(m map[string]float64) {
	var total float64
	for _, v := range m {
		total += v
	}
	if total == 0 {
		return
	}
	for k, v := range m {
		m[k] = v / total
	}
}
