package domain

import (
	"strconv"
	"time"
)

// Segment buckets requesters by interaction volume and purchase history.
// The blender picks its weight table off this value.
type Segment string

const (
	SegmentGuestCold       Segment = "guest-cold"
	SegmentGuestWarm       Segment = "guest-warm"
	SegmentAuthNew         Segment = "auth-new"
	SegmentAuthMinimal     Segment = "auth-minimal"
	SegmentAuthEstablished Segment = "auth-established"
)

// Identity is the requester the engine scores for: an authenticated user id
// or an anonymous session id, never both.
type Identity struct {
	UserID    uint   `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (id Identity) Authenticated() bool {
	return id.UserID != 0
}

// Key returns a stable string form used for cache keys and logging.
func (id Identity) Key() string {
	if id.UserID != 0 {
		return "u:" + strconv.FormatUint(uint64(id.UserID), 10)
	}
	return "s:" + id.SessionID
}

// ScoredProduct carries every per-scorer score next to the blended one so a
// ranking can be explained after the fact. Nil means the scorer was
// unavailable for this request, which is not the same as a zero score.
type ScoredProduct struct {
	ProductID         uint64   `json:"product_id"`
	Product           Product  `json:"product"`
	LinearScore       *float64 `json:"linear_score,omitempty"`
	NeighborhoodScore *float64 `json:"neighborhood_score,omitempty"`
	BasketScore       *float64 `json:"basket_score,omitempty"`
	BlendedScore      float64  `json:"blended_score"`
	Source            string   `json:"source"`
}

// RecommendationResult is immutable once produced; a fresh computation
// supersedes it rather than mutating it in place.
type RecommendationResult struct {
	Items       []ScoredProduct `json:"items"`
	Segment     Segment         `json:"segment"`
	Variant     string          `json:"variant,omitempty"` // experiment arm, when one is running
	CacheKey    string          `json:"cache_key"`
	GeneratedAt time.Time       `json:"generated_at"`
}

func (r RecommendationResult) ProductIDs() []uint64 {
	ids := make([]uint64, 0, len(r.Items))
	for _, it := range r.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
