package recommender

import (
	"math"

	"shopsense/domain"
)

// Fixed feature layout for the linear scorer. Order matters: a trained model
// is only valid against the layout it was trained with.
const (
	featCategoryAffinity = iota
	featBrandAffinity
	featPriceDiff
	featPriceRatio
	featPriceTierLow
	featPriceTierMid
	featPriceTierHigh
	featRecency
	featPurchaseFreq

	linearFeatureDim
)

// Price tier boundaries for the one-hot tier features.
const (
	priceTierLowMax = 50.0
	priceTierMidMax = 150.0
)

// LinearModel is a logistic model over the fixed feature layout. Scores are
// the raw decision values, not probabilities: ranking only needs order.
type LinearModel struct {
	Bias    float64
	Weights [linearFeatureDim]float64
	Samples int
}

func (m *LinearModel) Score(features [linearFeatureDim]float64) float64 {
	s := m.Bias
	for i, w := range m.Weights {
		s += w * features[i]
	}
	return s
}

// featureVector extracts the (profile, product) feature row. The price
// features compare the product against the profile's weighted mean price.
func featureVector(p *Profile, product domain.Product) [linearFeatureDim]float64 {
	var f [linearFeatureDim]float64

	f[featCategoryAffinity] = p.CategoryPrefs[product.Category]
	f[featBrandAffinity] = p.BrandPrefs[product.Brand]

	if p.AvgPrice > 0 {
		f[featPriceDiff] = math.Abs(product.Price-p.AvgPrice) / p.AvgPrice
		f[featPriceRatio] = product.Price / p.AvgPrice
	}

	switch {
	case product.Price < priceTierLowMax:
		f[featPriceTierLow] = 1
	case product.Price < priceTierMidMax:
		f[featPriceTierMid] = 1
	default:
		f[featPriceTierHigh] = 1
	}

	f[featRecency] = p.RecencyScore
	f[featPurchaseFreq] = p.PurchaseFreq

	return f
}

// trainingExample is one labelled row: purchased products are positives,
// viewed-but-never-purchased products are negatives.
type trainingExample struct {
	features [linearFeatureDim]float64
	label    float64
}

// trainLinearModel fits a logistic model with plain SGD. Returns
// ErrScorerUnavailable when the examples do not carry both classes.
func trainLinearModel(examples []trainingExample, learningRate float64, epochs int) (*LinearModel, error) {
	var positives, negatives int
	for _, ex := range examples {
		if ex.label > 0 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return nil, ErrScorerUnavailable
	}

	model := &LinearModel{Samples: len(examples)}
	for epoch := 0; epoch < epochs; epoch++ {
		for _, ex := range examples {
			p := sigmoid(model.Score(ex.features))
			g := p - ex.label
			model.Bias -= learningRate * g
			for i := range model.Weights {
				model.Weights[i] -= learningRate * g * ex.features[i]
			}
		}
	}
	return model, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// scoreLinear scores every candidate with the best model available for the
// profile: the per-user model when one was trained, otherwise the population
// model. With neither, the scorer is unavailable.
func scoreLinear(p *Profile, candidates []domain.Product, snapshot *ModelSnapshot) (map[uint64]float64, error) {
	if snapshot == nil {
		return nil, ErrScorerUnavailable
	}

	model := snapshot.UserModels[p.Identity.Key()]
	if model == nil {
		model = snapshot.Population
	}
	if model == nil {
		return nil, ErrScorerUnavailable
	}

	scores := make(map[uint64]float64, len(candidates))
	for _, product := range candidates {
		scores[product.ID] = model.Score(featureVector(p, product))
	}
	return scores, nil
}
