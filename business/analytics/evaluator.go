package analytics

import (
	"context"
	"fmt"

	"shopsense/domain"
	"shopsense/pkg/logger"
)

// Recommender is the slice of the recommendation service the evaluator
// exercises.
type Recommender interface {
	GetRecommendations(ctx context.Context, identity domain.Identity, limit int) (*domain.RecommendationResult, error)
}

// Report aggregates offline ranking quality over a holdout set. Precision,
// recall, and diversity are averaged per evaluated identity; coverage is
// global over the whole run.
type Report struct {
	PrecisionAtK float64 `json:"precision_at_k"`
	RecallAtK    float64 `json:"recall_at_k"`
	Diversity    float64 `json:"diversity"`
	Coverage     float64 `json:"coverage"`
	K            int     `json:"k"`
	Evaluated    int     `json:"evaluated"`
	Skipped      int     `json:"skipped"`
}

// PrecisionAtK is the share of the top min(k, len) recommendations that are
// relevant.
func PrecisionAtK(recommended []uint64, relevant map[uint64]struct{}, k int) float64 {
	if k > len(recommended) {
		k = len(recommended)
	}
	if k == 0 {
		return 0
	}
	hits := 0
	for _, id := range recommended[:k] {
		if _, ok := relevant[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// RecallAtK is the share of relevant products recovered in the top k.
func RecallAtK(recommended []uint64, relevant map[uint64]struct{}, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	if k > len(recommended) {
		k = len(recommended)
	}
	hits := 0
	for _, id := range recommended[:k] {
		if _, ok := relevant[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// Diversity is the ratio of distinct categories to list length.
func Diversity(products []domain.Product) float64 {
	if len(products) == 0 {
		return 0
	}
	categories := make(map[string]struct{}, len(products))
	for _, p := range products {
		categories[p.Category] = struct{}{}
	}
	return float64(len(categories)) / float64(len(products))
}

// Coverage is the share of the catalog that appeared in at least one
// recommendation list.
func Coverage(recommended map[uint64]struct{}, catalogSize int) float64 {
	if catalogSize == 0 {
		return 0
	}
	return float64(len(recommended)) / float64(catalogSize)
}

// Evaluator replays a holdout set through a recommender and scores the
// rankings. Identities whose holdout is empty or whose request fails are
// skipped, not fatal: an offline report with gaps beats no report.
type Evaluator struct {
	recommender Recommender
	k           int
}

func NewEvaluator(recommender Recommender, k int) *Evaluator {
	return &Evaluator{recommender: recommender, k: k}
}

// Evaluate scores every identity in the holdout map, where the value is the
// set of products the identity actually went on to buy.
func (e *Evaluator) Evaluate(ctx context.Context, holdout map[domain.Identity][]uint64, catalogSize int) (*Report, error) {
	if len(holdout) == 0 {
		return nil, fmt.Errorf("empty holdout set")
	}

	report := &Report{K: e.k}
	seen := make(map[uint64]struct{})

	var precisionSum, recallSum, diversitySum float64
	for identity, futurePurchases := range holdout {
		if len(futurePurchases) == 0 {
			report.Skipped++
			continue
		}

		result, err := e.recommender.GetRecommendations(ctx, identity, e.k)
		if err != nil {
			logger.Warn("evaluation request failed", "identity", identity.Key(), "error", err)
			report.Skipped++
			continue
		}
		if len(result.Items) == 0 {
			report.Skipped++
			continue
		}

		relevant := make(map[uint64]struct{}, len(futurePurchases))
		for _, id := range futurePurchases {
			relevant[id] = struct{}{}
		}

		recommended := result.ProductIDs()
		products := make([]domain.Product, 0, len(result.Items))
		for _, it := range result.Items {
			products = append(products, it.Product)
			seen[it.ProductID] = struct{}{}
		}

		precisionSum += PrecisionAtK(recommended, relevant, e.k)
		recallSum += RecallAtK(recommended, relevant, e.k)
		diversitySum += Diversity(products)
		report.Evaluated++
	}

	if report.Evaluated == 0 {
		return nil, fmt.Errorf("no identity could be evaluated")
	}

	n := float64(report.Evaluated)
	report.PrecisionAtK = precisionSum / n
	report.RecallAtK = recallSum / n
	report.Diversity = diversitySum / n
	report.Coverage = Coverage(seen, catalogSize)
	return report, nil
}
