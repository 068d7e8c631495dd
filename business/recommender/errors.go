package recommender

import "errors"

// Engine error taxonomy. Neither is fatal on the request path: an
// unavailable scorer has its weight redistributed, and a missing snapshot
// falls through to the popularity fallback.
var (
	// ErrScorerUnavailable means a scorer has no model or not enough data
	// for this requester. Callers skip the scorer, never fail the request.
	ErrScorerUnavailable = errors.New("scorer unavailable")

	// ErrNoSnapshot means the training job has not published a model yet.
	ErrNoSnapshot = errors.New("no model snapshot published")
)
