package recommender

import (
	"time"

	"shopsense/domain"
)

// BlendWeights is a segment's mix of the three scorers. Weights of scorers
// that report unavailable are redistributed proportionally at blend time, so
// a table does not need to sum to 1.0 across only the scorers that happen to
// have data.
type BlendWeights struct {
	Linear       float64
	Neighborhood float64
	Basket       float64
}

type Config struct {
	TopK         int // size of the final ranked list
	CandidateCap int // max candidates scored per request

	// implicit-feedback weight per interaction type, centralized so feature
	// extraction and the neighborhood vectors agree on the signal
	InteractionWeights map[string]float64

	HistoryWindow        time.Duration // how far back interactions feed the profile
	RecentPurchaseWindow time.Duration // window for the not-recently-purchased filter

	// neighborhood scorer
	NeighborK           int     // max neighbors aggregated
	MinNeighbors        int     // below this the scorer is unavailable
	MinCommonItems      int     // min overlapping items to compare two users
	SimilarityThreshold float64 // discard neighbors below this cosine

	// basket scorer
	MinSupport    int     // min co-occurrence count for a pair to count
	MinConfidence float64 // min P(b|a) for a pair to count

	// linear scorer training
	PerUserMinInteractions int // per-user model needs at least this many events
	PerUserMinPurchases    int // and at least this many positives
	LearningRate           float64
	Epochs                 int

	DiversityCap float64       // max fraction of top-k from a single category
	CacheTTL     time.Duration // result cache freshness window

	SegmentWeights map[domain.Segment]BlendWeights
}

const (
	defaultTopK         = 10
	defaultCandidateCap = 500

	defaultHistoryWindow        = 90 * 24 * time.Hour
	defaultRecentPurchaseWindow = 30 * 24 * time.Hour

	defaultNeighborK           = 50
	defaultMinNeighbors        = 3
	defaultMinCommonItems      = 2
	defaultSimilarityThreshold = 0.1

	defaultMinSupport    = 2
	defaultMinConfidence = 0.1

	defaultPerUserMinInteractions = 10
	defaultPerUserMinPurchases    = 3
	defaultLearningRate           = 0.1
	defaultEpochs                 = 50

	defaultDiversityCap = 0.4
	defaultCacheTTL     = time.Hour
)

func DefaultConfig() Config {
	return Config{
		TopK:         defaultTopK,
		CandidateCap: defaultCandidateCap,

		InteractionWeights: map[string]float64{
			domain.InteractionView:     1.0,
			domain.InteractionClick:    2.0,
			domain.InteractionCartAdd:  3.0,
			domain.InteractionPurchase: 5.0,
		},

		HistoryWindow:        defaultHistoryWindow,
		RecentPurchaseWindow: defaultRecentPurchaseWindow,

		NeighborK:           defaultNeighborK,
		MinNeighbors:        defaultMinNeighbors,
		MinCommonItems:      defaultMinCommonItems,
		SimilarityThreshold: defaultSimilarityThreshold,

		MinSupport:    defaultMinSupport,
		MinConfidence: defaultMinConfidence,

		PerUserMinInteractions: defaultPerUserMinInteractions,
		PerUserMinPurchases:    defaultPerUserMinPurchases,
		LearningRate:           defaultLearningRate,
		Epochs:                 defaultEpochs,

		DiversityCap: defaultDiversityCap,
		CacheTTL:     defaultCacheTTL,

		// guest-cold is absent on purpose: it is served straight from the
		// best-sellers fallback, no scorers run.
		SegmentWeights: map[domain.Segment]BlendWeights{
			domain.SegmentGuestWarm:       {Linear: 0.2, Neighborhood: 0.5, Basket: 0.3},
			domain.SegmentAuthNew:         {Linear: 0.3, Neighborhood: 0.4, Basket: 0.3},
			domain.SegmentAuthMinimal:     {Linear: 0.25, Neighborhood: 0.45, Basket: 0.3},
			domain.SegmentAuthEstablished: {Linear: 0.35, Neighborhood: 0.35, Basket: 0.3},
		},
	}
}

// interactionWeight looks up the configured implicit-feedback weight,
// defaulting to the view weight for unknown types.
func (c Config) interactionWeight(interactionType string) float64 {
	if w, ok := c.InteractionWeights[interactionType]; ok {
		return w
	}
	return c.InteractionWeights[domain.InteractionView]
}
