package analytics

import (
	"context"
	"testing"
	"time"

	"shopsense/domain"
)

type fakeOrderRepo struct {
	orders []domain.Order
}

func (f *fakeOrderRepo) ListSince(_ context.Context, since time.Time) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeInteractionRepo struct {
	interactions []domain.Interaction
}

func (f *fakeInteractionRepo) ListSince(_ context.Context, since time.Time) ([]domain.Interaction, error) {
	var out []domain.Interaction
	for _, in := range f.interactions {
		if !in.CreatedAt.Before(since) {
			out = append(out, in)
		}
	}
	return out, nil
}

func TestBestSellers(t *testing.T) {
	now := time.Now()
	orders := &fakeOrderRepo{orders: []domain.Order{
		{UserID: 1, CreatedAt: now.Add(-time.Hour), Items: []domain.OrderItem{
			{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1},
		}},
		{UserID: 2, CreatedAt: now.Add(-2 * time.Hour), Items: []domain.OrderItem{
			{ProductID: 2, Quantity: 4},
		}},
		// outside the window, must not count
		{UserID: 3, CreatedAt: now.Add(-40 * 24 * time.Hour), Items: []domain.OrderItem{
			{ProductID: 3, Quantity: 100},
		}},
	}}

	svc := NewService(orders, &fakeInteractionRepo{})
	got, err := svc.BestSellers(context.Background(), 30*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("best sellers failed: %v", err)
	}
	want := []uint64{2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBestSellersTieBreaksOnLowerID(t *testing.T) {
	now := time.Now()
	orders := &fakeOrderRepo{orders: []domain.Order{
		{UserID: 1, CreatedAt: now, Items: []domain.OrderItem{
			{ProductID: 9, Quantity: 3}, {ProductID: 4, Quantity: 3},
		}},
	}}

	svc := NewService(orders, &fakeInteractionRepo{})
	got, err := svc.BestSellers(context.Background(), time.Hour, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 4 {
		t.Errorf("tied units should rank product 4 first, got %v", got)
	}
}

func TestTrending(t *testing.T) {
	now := time.Now()
	interactions := &fakeInteractionRepo{interactions: []domain.Interaction{
		{ProductID: 1, Weight: 1, CreatedAt: now.Add(-time.Hour)},
		{ProductID: 2, Weight: 3, CreatedAt: now.Add(-time.Hour)},
		{ProductID: 2, Weight: 3, CreatedAt: now.Add(-30 * time.Minute)},
		{ProductID: 3, Weight: 5, CreatedAt: now.Add(-48 * time.Hour)},
	}}

	svc := NewService(&fakeOrderRepo{}, interactions)
	got, err := svc.Trending(context.Background(), 24*time.Hour, 1)
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("got %v, want the heavily interacted product 2", got)
	}
}
