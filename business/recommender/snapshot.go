package recommender

import "time"

// ModelSnapshot is one immutable generation of every trained artifact the
// request path reads. The trainer builds a snapshot off to the side and
// publishes it atomically; requests in flight keep the generation they
// started with. Versions only ever go up.
type ModelSnapshot struct {
	Version int64
	BuiltAt time.Time

	// Population is the catalog-wide linear model used when no per-user
	// model exists for the requester.
	Population *LinearModel

	// UserModels holds per-user linear models keyed by identity key, for
	// requesters with enough labelled history.
	UserModels map[string]*LinearModel

	// Vectors holds every identity's item-weight vector for the
	// neighborhood scorer.
	Vectors map[string]UserVector

	Cooccurrence *CooccurrenceTable

	// BestSellers is the ranked popularity fallback; BestSellerRank is its
	// index by product id.
	BestSellers    []uint64
	BestSellerRank map[uint64]int
}

func newSnapshot(version int64, now time.Time) *ModelSnapshot {
	return &ModelSnapshot{
		Version:        version,
		BuiltAt:        now,
		UserModels:     make(map[string]*LinearModel),
		Vectors:        make(map[string]UserVector),
		BestSellerRank: make(map[uint64]int),
	}
}

func (s *ModelSnapshot) setBestSellers(ids []uint64) {
	s.BestSellers = ids
	s.BestSellerRank = make(map[uint64]int, len(ids))
	for i, id := range ids {
		s.BestSellerRank[id] = i
	}
}
