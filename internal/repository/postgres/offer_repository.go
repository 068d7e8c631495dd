package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"shopsense/domain"
)

type OfferRepository struct {
	DB *gorm.DB
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{
		DB: db,
	}
}

func (r *OfferRepository) Create(ctx context.Context, offer *domain.PersonalizedOffer) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(offer).Error; err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}

	return nil
}

func (r *OfferRepository) FindByID(ctx context.Context, id uint64) (*domain.PersonalizedOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var offer domain.PersonalizedOffer
	err := r.DB.WithContext(ctx).First(&offer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("offer not found")
		}
		return nil, fmt.Errorf("failed to find offer: %w", err)
	}

	return &offer, nil
}

func (r *OfferRepository) ListActiveByUser(ctx context.Context, userID uint, now time.Time) ([]domain.PersonalizedOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var offers []domain.PersonalizedOffer
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND is_used = false AND expires_at > ?", userID, now).
		Order("created_at desc").
		Find(&offers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active offers: %w", err)
	}

	return offers, nil
}

func (r *OfferRepository) HasLive(ctx context.Context, userID uint, productID uint64, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	var count int64
	err := r.DB.WithContext(ctx).
		Model(&domain.PersonalizedOffer{}).
		Where("user_id = ? AND product_id = ? AND is_used = false AND expires_at > ?", userID, productID, now).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count live offers: %w", err)
	}

	return count > 0, nil
}

func (r *OfferRepository) MarkUsed(ctx context.Context, id uint64, orderID uint64, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).
		Model(&domain.PersonalizedOffer{}).
		Where("id = ? AND is_used = false AND expires_at > ?", id, usedAt).
		Updates(map[string]interface{}{
			"is_used":  true,
			"used_at":  usedAt,
			"order_id": orderID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark offer used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("offer not found or no longer redeemable")
	}

	return nil
}

func (r *OfferRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).
		Where("expires_at <= ? OR is_used = true", now).
		Delete(&domain.PersonalizedOffer{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired offers: %w", result.Error)
	}

	return result.RowsAffected, nil
}
