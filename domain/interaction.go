package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Interaction types, ordered by implicit-feedback strength.
const (
	InteractionView     = "view"
	InteractionClick    = "click"
	InteractionCartAdd  = "cart_add"
	InteractionPurchase = "purchase"
)

// Interaction is one implicit-feedback event. Rows are append-only: the
// engine derives profiles from them on demand and never updates them.
// Exactly one of UserID / SessionID is set, depending on whether the
// requester was authenticated.
type Interaction struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"column:user_id;index" json:"user_id"`
	SessionID string    `gorm:"column:session_id;type:text;index" json:"session_id"`
	ProductID uint64    `gorm:"column:product_id;not null" json:"product_id"`
	Type      string    `gorm:"column:interaction_type;not null" json:"type"`
	Weight    float64   `gorm:"column:weight;type:numeric" json:"weight"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	Context datatypes.JSONMap `gorm:"column:context;type:jsonb" json:"context"`
}

func (Interaction) TableName() string {
	return "interactions"
}

func ValidInteractionType(t string) bool {
	switch t {
	case InteractionView, InteractionClick, InteractionCartAdd, InteractionPurchase:
		return true
	}
	return false
}
