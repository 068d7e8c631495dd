package recommender

import "shopsense/domain"

// Segment thresholds. An authenticated user with a single purchase is
// established regardless of interaction volume; the boundary counts 5 and 20
// both land in auth-minimal.
const (
	guestWarmMinInteractions      = 3
	authMinimalMinInteractions    = 5
	authEstablishedMinInteraction = 21
)

// DetermineSegment buckets a requester from its interaction and purchase
// counts. Pure function, no storage access.
func DetermineSegment(authenticated bool, interactions, purchases int) domain.Segment {
	if !authenticated {
		if interactions >= guestWarmMinInteractions {
			return domain.SegmentGuestWarm
		}
		return domain.SegmentGuestCold
	}

	if purchases >= 1 || interactions >= authEstablishedMinInteraction {
		return domain.SegmentAuthEstablished
	}
	if interactions >= authMinimalMinInteractions {
		return domain.SegmentAuthMinimal
	}
	return domain.SegmentAuthNew
}

// OfferEligible reports whether personalized offers may be generated for the
// segment. Guests and barely-known users never receive offers.
func OfferEligible(segment domain.Segment) bool {
	return segment == domain.SegmentAuthMinimal || segment == domain.SegmentAuthEstablished
}
