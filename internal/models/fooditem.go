package models

import "time"

// discount types
const (
	DiscountNone       = ""
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// FoodItem is a menu entry
type FoodItem struct {
	ID            string    `json:"id"`
	Name          string    `json:"name" validate:"required,max=120"`
	Description   string    `json:"description" validate:"max=1000"`
	Category      string    `json:"category" validate:"required,max=60"`
	Price         float64   `json:"price" validate:"gt=0"`
	DiscountType  string    `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue float64   `json:"discount_value" validate:"gte=0"`
	ImageURL      string    `json:"image_url" validate:"omitempty,url"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
