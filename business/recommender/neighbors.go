package recommender

import (
	"math"
	"sort"
	"time"
)

// UserVector is one requester's item-weight vector, built at training time
// for every identity with history. LastActive breaks similarity ties in
// favor of more recently active neighbors.
type UserVector struct {
	Items      map[uint64]float64
	LastActive time.Time
}

type neighbor struct {
	key        string
	similarity float64
	lastActive time.Time
}

// cosineOverCommon is the cosine similarity restricted to the items both
// vectors share. Vectors with fewer than minCommon shared items are
// incomparable and score zero.
func cosineOverCommon(a, b map[uint64]float64, minCommon int) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}

	var dot, normA, normB float64
	common := 0
	for item, wa := range a {
		wb, ok := b[item]
		if !ok {
			continue
		}
		common++
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}
	if common < minCommon || dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// nearestNeighbors ranks the snapshot's vectors against the target by cosine
// over common items, drops everything under the similarity threshold, and
// keeps the top k. Ties go to the more recently active neighbor so the
// ranking is deterministic.
func nearestNeighbors(c Config, selfKey string, target UserVector, vectors map[string]UserVector) []neighbor {
	neighbors := make([]neighbor, 0, len(vectors))
	for key, vec := range vectors {
		if key == selfKey {
			continue
		}
		sim := cosineOverCommon(target.Items, vec.Items, c.MinCommonItems)
		if sim < c.SimilarityThreshold {
			continue
		}
		neighbors = append(neighbors, neighbor{key: key, similarity: sim, lastActive: vec.LastActive})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].similarity != neighbors[j].similarity {
			return neighbors[i].similarity > neighbors[j].similarity
		}
		return neighbors[i].lastActive.After(neighbors[j].lastActive)
	})

	if len(neighbors) > c.NeighborK {
		neighbors = neighbors[:c.NeighborK]
	}
	return neighbors
}

// scoreNeighborhood aggregates neighbor item weights into candidate scores:
// sum of similarity-weighted item weight, averaged over the neighbor count.
// Unavailable when too few neighbors qualify or the aggregation surfaces too
// few distinct items.
func scoreNeighborhood(c Config, p *Profile, candidateIDs []uint64, vectors map[string]UserVector) (map[uint64]float64, error) {
	if len(p.ItemWeights) == 0 || len(vectors) == 0 {
		return nil, ErrScorerUnavailable
	}

	neighbors := nearestNeighbors(c, p.Identity.Key(), p.Vector(), vectors)
	if len(neighbors) < c.MinNeighbors {
		return nil, ErrScorerUnavailable
	}

	candidates := make(map[uint64]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		candidates[id] = struct{}{}
	}

	sums := make(map[uint64]float64)
	for _, n := range neighbors {
		for item, weight := range vectors[n.key].Items {
			if _, ok := candidates[item]; !ok {
				continue
			}
			if _, interacted := p.ItemWeights[item]; interacted {
				continue
			}
			sums[item] += n.similarity * weight
		}
	}
	if len(sums) < c.MinNeighbors {
		return nil, ErrScorerUnavailable
	}

	scores := make(map[uint64]float64, len(sums))
	for item, sum := range sums {
		scores[item] = sum / float64(len(neighbors))
	}
	return scores, nil
}
