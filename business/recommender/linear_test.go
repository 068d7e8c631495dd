package recommender

import (
	"errors"
	"testing"
	"time"

	"shopsense/domain"
)

func testProfile(t *testing.T) *Profile {
	t.Helper()
	cfg := DefaultConfig()
	now := time.Now()
	products := map[uint64]domain.Product{
		1: {ID: 1, Category: "coffee", Brand: "acme", Price: 30},
		2: {ID: 2, Category: "coffee", Brand: "acme", Price: 40},
		3: {ID: 3, Category: "stationery", Brand: "other", Price: 200},
	}
	interactions := []domain.Interaction{
		{ProductID: 1, Type: domain.InteractionPurchase, Weight: 5, CreatedAt: now.Add(-24 * time.Hour)},
		{ProductID: 2, Type: domain.InteractionView, Weight: 1, CreatedAt: now.Add(-48 * time.Hour)},
		{ProductID: 3, Type: domain.InteractionView, Weight: 1, CreatedAt: now.Add(-72 * time.Hour)},
	}
	return cfg.BuildProfile(domain.Identity{UserID: 7}, interactions, products, now)
}

func TestTrainLinearModelSeparatesClasses(t *testing.T) {
	profile := testProfile(t)
	liked := domain.Product{ID: 10, Category: "coffee", Brand: "acme", Price: 35}
	disliked := domain.Product{ID: 11, Category: "stationery", Brand: "other", Price: 210}

	examples := []trainingExample{
		{features: featureVector(profile, liked), label: 1},
		{features: featureVector(profile, disliked), label: 0},
	}
	model, err := trainLinearModel(examples, 0.1, 200)
	if err != nil {
		t.Fatalf("training failed: %v", err)
	}

	if model.Score(featureVector(profile, liked)) <= model.Score(featureVector(profile, disliked)) {
		t.Error("trained model should rank the purchased-like product above the rejected one")
	}
}

func TestTrainLinearModelSingleClass(t *testing.T) {
	profile := testProfile(t)
	examples := []trainingExample{
		{features: featureVector(profile, domain.Product{ID: 1, Price: 10}), label: 1},
		{features: featureVector(profile, domain.Product{ID: 2, Price: 20}), label: 1},
	}
	if _, err := trainLinearModel(examples, 0.1, 10); !errors.Is(err, ErrScorerUnavailable) {
		t.Errorf("err = %v, want ErrScorerUnavailable for single-class data", err)
	}
}

func TestFeatureVectorPriceTiers(t *testing.T) {
	profile := testProfile(t)
	tests := []struct {
		price float64
		tier  int
	}{
		{10, featPriceTierLow},
		{49.99, featPriceTierLow},
		{50, featPriceTierMid},
		{149.99, featPriceTierMid},
		{150, featPriceTierHigh},
		{999, featPriceTierHigh},
	}
	for _, tt := range tests {
		f := featureVector(profile, domain.Product{Price: tt.price})
		for _, tier := range []int{featPriceTierLow, featPriceTierMid, featPriceTierHigh} {
			want := 0.0
			if tier == tt.tier {
				want = 1.0
			}
			if f[tier] != want {
				t.Errorf("price %.2f: tier feature %d = %f, want %f", tt.price, tier, f[tier], want)
			}
		}
	}
}

func TestScoreLinearModelSelection(t *testing.T) {
	profile := testProfile(t)
	candidates := []domain.Product{{ID: 20, Price: 30}}

	if _, err := scoreLinear(profile, candidates, nil); !errors.Is(err, ErrScorerUnavailable) {
		t.Errorf("nil snapshot: err = %v, want ErrScorerUnavailable", err)
	}

	empty := newSnapshot(1, time.Now())
	if _, err := scoreLinear(profile, candidates, empty); !errors.Is(err, ErrScorerUnavailable) {
		t.Errorf("no models: err = %v, want ErrScorerUnavailable", err)
	}

	population := &LinearModel{Bias: 0.5}
	personal := &LinearModel{Bias: 2.0}

	withPopulation := newSnapshot(2, time.Now())
	withPopulation.Population = population
	scores, err := scoreLinear(profile, candidates, withPopulation)
	if err != nil {
		t.Fatalf("population scoring failed: %v", err)
	}
	if scores[20] != 0.5 {
		t.Errorf("population score = %f, want 0.5", scores[20])
	}

	withPersonal := newSnapshot(3, time.Now())
	withPersonal.Population = population
	withPersonal.UserModels[profile.Identity.Key()] = personal
	scores, err = scoreLinear(profile, candidates, withPersonal)
	if err != nil {
		t.Fatalf("personal scoring failed: %v", err)
	}
	if scores[20] != 2.0 {
		t.Errorf("per-user model should win over population, score = %f", scores[20])
	}
}
