package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"shopsense/domain"
)

type OrdersRepository struct {
	DB *gorm.DB
}

func NewOrdersRepository(db *gorm.DB) *OrdersRepository {
	return &OrdersRepository{
		DB: db,
	}
}

func (r *OrdersRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *OrdersRepository) ListSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var orders []domain.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("created_at >= ?", since).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

func (r *OrdersRepository) ListByUser(ctx context.Context, userID uint, since time.Time) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var orders []domain.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user orders: %w", err)
	}

	return orders, nil
}
