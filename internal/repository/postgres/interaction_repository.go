package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"shopsense/domain"
)

type InteractionRepository struct {
	DB *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{
		DB: db,
	}
}

func (r *InteractionRepository) Save(ctx context.Context, interaction *domain.Interaction) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(interaction).Error; err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}

	return nil
}

func (r *InteractionRepository) ListByIdentity(ctx context.Context, identity domain.Identity, since time.Time) ([]domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	query := r.DB.WithContext(ctx).Where("created_at >= ?", since)
	if identity.Authenticated() {
		query = query.Where("user_id = ?", identity.UserID)
	} else {
		query = query.Where("session_id = ?", identity.SessionID)
	}

	var interactions []domain.Interaction
	err := query.Order("created_at desc").Find(&interactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	return interactions, nil
}

func (r *InteractionRepository) ListSince(ctx context.Context, since time.Time) ([]domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var interactions []domain.Interaction
	err := r.DB.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at asc").
		Find(&interactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	return interactions, nil
}
