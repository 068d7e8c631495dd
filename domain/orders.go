package domain

import "time"

type Order struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Total     float64   `gorm:"column:total;type:numeric;not null" json:"total"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint64  `gorm:"column:order_id;not null;index" json:"order_id"`
	ProductID uint64  `gorm:"column:product_id;not null" json:"product_id"`
	Quantity  int     `gorm:"column:quantity;default:1" json:"quantity"`
	Price     float64 `gorm:"column:price;type:numeric;not null" json:"price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// ProductIDs returns the distinct product ids in the order, preserving item order.
func (o Order) ProductIDs() []uint64 {
	seen := make(map[uint64]struct{}, len(o.Items))
	ids := make([]uint64, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
