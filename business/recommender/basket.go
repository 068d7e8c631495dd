package recommender

import (
	"math"

	"shopsense/domain"
)

// CooccurrenceTable holds pairwise order co-occurrence counts mined from the
// order history. Built at training time, read-only afterwards.
type CooccurrenceTable struct {
	// Pairs[a][b] = number of orders containing both a and b
	Pairs map[uint64]map[uint64]int
	// Counts[a] = number of orders containing a
	Counts map[uint64]int
	Orders int
}

// buildCooccurrence mines the table from orders. Each distinct pair in an
// order counts once regardless of quantities.
func buildCooccurrence(orders []domain.Order) *CooccurrenceTable {
	t := &CooccurrenceTable{
		Pairs:  make(map[uint64]map[uint64]int),
		Counts: make(map[uint64]int),
	}
	for _, order := range orders {
		ids := order.ProductIDs()
		if len(ids) == 0 {
			continue
		}
		t.Orders++
		for _, id := range ids {
			t.Counts[id]++
		}
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				t.addPair(a, b)
				t.addPair(b, a)
			}
		}
	}
	return t
}

func (t *CooccurrenceTable) addPair(a, b uint64) {
	inner, ok := t.Pairs[a]
	if !ok {
		inner = make(map[uint64]int)
		t.Pairs[a] = inner
	}
	inner[b]++
}

// Affinity scores candidate b against context item a using
// confidence * lift * ln(1+co). Returns false when the pair is below the
// support or confidence floor, which is a missing signal rather than a zero.
func (t *CooccurrenceTable) Affinity(a, b uint64, minSupport int, minConfidence float64) (float64, bool) {
	co := t.Pairs[a][b]
	if co < minSupport || t.Counts[a] == 0 || t.Orders == 0 {
		return 0, false
	}

	confidence := float64(co) / float64(t.Counts[a])
	if confidence < minConfidence {
		return 0, false
	}

	pb := float64(t.Counts[b]) / float64(t.Orders)
	if pb == 0 {
		return 0, false
	}
	lift := confidence / pb

	return confidence * lift * math.Log(1+float64(co)), true
}

// scoreBasket scores candidates by their strongest co-occurrence with any
// context item. The context is the live cart when one is present, otherwise
// the requester's most recent purchases. Candidates with no qualifying pair
// are absent from the result so the blender can tell no-signal from zero.
func scoreBasket(c Config, contextIDs []uint64, candidateIDs []uint64, table *CooccurrenceTable) (map[uint64]float64, error) {
	if table == nil || len(contextIDs) == 0 || table.Orders == 0 {
		return nil, ErrScorerUnavailable
	}

	inContext := make(map[uint64]struct{}, len(contextIDs))
	for _, id := range contextIDs {
		inContext[id] = struct{}{}
	}

	scores := make(map[uint64]float64)
	for _, candidate := range candidateIDs {
		if _, ok := inContext[candidate]; ok {
			continue
		}
		best := 0.0
		found := false
		for _, ctx := range contextIDs {
			if score, ok := table.Affinity(ctx, candidate, c.MinSupport, c.MinConfidence); ok && score > best {
				best = score
				found = true
			}
		}
		if found {
			scores[candidate] = best
		}
	}

	if len(scores) == 0 {
		return nil, ErrScorerUnavailable
	}
	return scores, nil
}
