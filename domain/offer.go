package domain

import "time"

// PersonalizedOffer is a per-(user, product) discount with an expiry.
// At most one live offer exists per pair. The offer replaces the product's
// catalog discount in the presented price; the two never stack.
type PersonalizedOffer struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint       `gorm:"column:user_id;not null;uniqueIndex:idx_offer_user_product" json:"user_id"`
	ProductID uint64     `gorm:"column:product_id;not null;uniqueIndex:idx_offer_user_product" json:"product_id"`
	Discount  float64    `gorm:"column:discount;type:numeric;not null" json:"discount"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	IsUsed    bool       `gorm:"column:is_used;default:false" json:"is_used"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	OrderID   *uint64    `gorm:"column:order_id" json:"order_id,omitempty"`
}

func (PersonalizedOffer) TableName() string {
	return "personalized_offers"
}

func (o PersonalizedOffer) Valid(now time.Time) bool {
	return !o.IsUsed && now.Before(o.ExpiresAt)
}

// OfferPrice is the price presented when the offer applies: the offer
// discount off the full price, in place of the catalog discount.
func (o PersonalizedOffer) OfferPrice(p Product) float64 {
	return p.Price * (1 - o.Discount/100)
}
