package recommender

import (
	"fmt"
	"hash/fnv"
	"math"

	"shopsense/domain"
)

// Variant is one arm of an experiment. A nil weight table means the arm
// serves the default per-segment blend, which makes it the control.
type Variant struct {
	Name    string        `json:"name"`
	Traffic float64       `json:"traffic"` // share of identities, in percent
	Weights *BlendWeights `json:"weights,omitempty"`
}

// Experiment routes a deterministic share of identities onto alternative
// blend-weight tables so ranking strategies can be compared in production.
// Assignment is sticky per identity, and per-variant outcomes are exposed as
// prometheus counters.
type Experiment struct {
	Name     string    `json:"name"`
	Variants []Variant `json:"variants"`
}

func NewExperiment(name string, variants []Variant) (*Experiment, error) {
	if name == "" {
		return nil, fmt.Errorf("experiment needs a name")
	}
	if len(variants) < 2 {
		return nil, fmt.Errorf("experiment needs at least two variants")
	}
	total := 0.0
	for _, v := range variants {
		if v.Name == "" {
			return nil, fmt.Errorf("every variant needs a name")
		}
		if v.Traffic < 0 {
			return nil, fmt.Errorf("variant %q has negative traffic", v.Name)
		}
		total += v.Traffic
	}
	if math.Abs(total-100) > 0.01 {
		return nil, fmt.Errorf("variant traffic must sum to 100, got %g", total)
	}
	return &Experiment{Name: name, Variants: variants}, nil
}

// Assign buckets the identity into a variant. The hash covers the identity
// and the experiment name, so the same identity always lands in the same arm
// of a given experiment while different experiments split independently.
func (e *Experiment) Assign(identity domain.Identity) Variant {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s-%s", identity.Key(), e.Name)
	bucket := float64(h.Sum64() % 100)

	cumulative := 0.0
	for _, v := range e.Variants {
		cumulative += v.Traffic
		if bucket < cumulative {
			return v
		}
	}
	return e.Variants[0]
}
