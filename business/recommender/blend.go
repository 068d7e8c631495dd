package recommender

import (
	"sort"

	"shopsense/domain"
)

// Scorer names used for weight redistribution, metrics labels, and the
// per-item source field.
const (
	scorerLinear       = "linear"
	scorerNeighborhood = "neighborhood"
	scorerBasket       = "basket"

	sourceHybrid      = "hybrid"
	sourceBestSellers = "best-sellers"
)

// scorerOutput is one scorer's result for a request: a per-product score map
// or unavailable. A product missing from an available scorer's map simply
// contributes nothing for that product.
type scorerOutput struct {
	scores    map[uint64]float64
	available bool
}

// minMaxNormalize rescales a score map to [0,1] in place. A degenerate map
// where every score is equal normalizes to all ones: present is a signal
// even when it cannot discriminate.
func minMaxNormalize(scores map[uint64]float64) {
	if len(scores) == 0 {
		return
	}
	first := true
	var lo, hi float64
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	span := hi - lo
	for id, s := range scores {
		if span == 0 {
			scores[id] = 1
		} else {
			scores[id] = (s - lo) / span
		}
	}
}

// redistributeWeights scales the segment's weight table over the scorers
// that are actually available so the effective weights always sum to 1.0.
// Returns nil when nothing is available.
func redistributeWeights(w BlendWeights, available map[string]bool) map[string]float64 {
	raw := map[string]float64{
		scorerLinear:       w.Linear,
		scorerNeighborhood: w.Neighborhood,
		scorerBasket:       w.Basket,
	}

	var total float64
	for name, weight := range raw {
		if available[name] && weight > 0 {
			total += weight
		}
	}
	if total == 0 {
		return nil
	}

	effective := make(map[string]float64, len(raw))
	for name, weight := range raw {
		if available[name] && weight > 0 {
			effective[name] = weight / total
		}
	}
	return effective
}

// blendScores combines the normalized scorer outputs under the effective
// weights into a ranked list. Ties break on the lower product id so equal
// inputs always produce the same ranking.
func blendScores(candidates []domain.Product, outputs map[string]scorerOutput, weights map[string]float64) []domain.ScoredProduct {
	items := make([]domain.ScoredProduct, 0, len(candidates))
	for _, product := range candidates {
		item := domain.ScoredProduct{
			ProductID: product.ID,
			Product:   product,
			Source:    sourceHybrid,
		}

		var blended float64
		scored := false
		for name, weight := range weights {
			out := outputs[name]
			score, ok := out.scores[product.ID]
			if !ok {
				continue
			}
			scored = true
			blended += weight * score
			v := score
			switch name {
			case scorerLinear:
				item.LinearScore = &v
			case scorerNeighborhood:
				item.NeighborhoodScore = &v
			case scorerBasket:
				item.BasketScore = &v
			}
		}
		if !scored {
			continue
		}
		item.BlendedScore = blended
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].BlendedScore != items[j].BlendedScore {
			return items[i].BlendedScore > items[j].BlendedScore
		}
		return items[i].ProductID < items[j].ProductID
	})
	return items
}

// applyDiversity greedily re-ranks the blended list so no category exceeds
// capFraction of the top k. The cap is strict: when only over-represented
// categories remain, the result comes up short rather than busting the cap.
func applyDiversity(items []domain.ScoredProduct, k int, capFraction float64) []domain.ScoredProduct {
	if k <= 0 || len(items) == 0 {
		return nil
	}

	perCategory := int(capFraction * float64(k))
	if perCategory < 1 {
		perCategory = 1
	}

	taken := make([]domain.ScoredProduct, 0, k)
	counts := make(map[string]int)
	for _, item := range items {
		if len(taken) == k {
			break
		}
		if counts[item.Product.Category] >= perCategory {
			continue
		}
		counts[item.Product.Category]++
		taken = append(taken, item)
	}
	return taken
}
