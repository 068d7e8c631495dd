package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"shopsense/domain"
)

type OrderRepository interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.Order, error)
}

type InteractionRepository interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.Interaction, error)
}

// Service derives catalog-level popularity signals from the order and
// interaction history. It backs the recommendation fallback and the trending
// shelf; nothing here is personalized.
type Service struct {
	orderRepo       OrderRepository
	interactionRepo InteractionRepository
}

func NewService(orderRepo OrderRepository, interactionRepo InteractionRepository) *Service {
	return &Service{orderRepo: orderRepo, interactionRepo: interactionRepo}
}

// BestSellers ranks products by units sold inside the window. Ties go to the
// lower product id so the ranking is stable across runs.
func (s *Service) BestSellers(ctx context.Context, window time.Duration, limit int) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	orders, err := s.orderRepo.ListSince(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	units := make(map[uint64]int)
	for _, order := range orders {
		for _, item := range order.Items {
			qty := item.Quantity
			if qty < 1 {
				qty = 1
			}
			units[item.ProductID] += qty
		}
	}
	return rankByScore(units, limit), nil
}

// Trending ranks products by accumulated implicit-feedback weight inside the
// window, so a product with many recent views and cart adds surfaces before
// its first sale. Fresher events count more through a log recency boost.
func (s *Service) Trending(ctx context.Context, window time.Duration, limit int) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	now := time.Now()
	interactions, err := s.interactionRepo.ListSince(ctx, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	weights := make(map[uint64]float64)
	for _, in := range interactions {
		w := in.Weight
		if w <= 0 {
			w = 1
		}
		fresh := 1 - now.Sub(in.CreatedAt).Seconds()/window.Seconds()
		if fresh < 0 {
			fresh = 0
		}
		weights[in.ProductID] += w * (1 + math.Log1p(fresh))
	}

	scores := make(map[uint64]int, len(weights))
	for id, w := range weights {
		scores[id] = int(w * 100)
	}
	return rankByScore(scores, limit), nil
}

func rankByScore(scores map[uint64]int, limit int) []uint64 {
	ids := make([]uint64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
