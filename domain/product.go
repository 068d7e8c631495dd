package domain

import (
	"strings"
	"time"
)

type Product struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"column:name;type:text;not null" json:"name"`
	CategoryID    uint64    `gorm:"column:category_id;default:0" json:"category_id"`
	Category      string    `gorm:"column:category;type:text;index" json:"category"`
	Brand         string    `gorm:"column:brand;type:text" json:"brand"`
	Price         float64   `gorm:"column:price;type:numeric;not null" json:"price"`
	Discount      float64   `gorm:"column:discount;type:numeric;default:0" json:"discount"`
	StockQuantity int       `gorm:"column:stock_quantity;default:0" json:"stock_quantity"`
	Tags          string    `gorm:"column:tags;type:text" json:"tags"`
	Description   string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// DiscountedPrice returns the catalog price after the product's own discount.
// Personalized offers are applied elsewhere and never stack with this.
func (p Product) DiscountedPrice() float64 {
	if p.Discount > 0 {
		return p.Price * (1 - p.Discount/100)
	}
	return p.Price
}

func (p Product) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	parts := strings.Split(p.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
