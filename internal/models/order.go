package models

import "time"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// canonical order statuses
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
)

// OrderStatuses lists every canonical status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusRejected,
}

// Valid reports whether s is a canonical status
func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusRejected
}

// Item is a priced order line
type Item struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
	DiscountType  string  `json:"discount_type,omitempty"`
	DiscountValue float64 `json:"discount_value,omitempty"`
	Image         string  `json:"image,omitempty"`
}

// Milestone is one step of order tracking
type Milestone struct {
	Status    bool       `json:"status"`
	Timestamp *time.Time `json:"timestamp"`
}

// Tracking holds the customer visible progress of an order
type Tracking struct {
	Confirmed Milestone `json:"confirmed"`
	Preparing Milestone `json:"preparing"`
	Ready     Milestone `json:"ready"`
	Delivered Milestone `json:"delivered"`
}

// Advance marks the milestone entered with status at time t
func (tr Tracking) Advance(status OrderStatus, t time.Time) Tracking {
	m := Milestone{Status: true, Timestamp: &t}
	switch status {
	case OrderStatusPending:
		tr.Confirmed = m
	case OrderStatusPreparing:
		tr.Preparing = m
	case OrderStatusReady:
		tr.Ready = m
	case OrderStatusCompleted:
		tr.Delivered = m
	}
	return tr
}

// Order is order entity
type Order struct {
	ID             string      `json:"id"`
	OrderNumber    string      `json:"order_number"`
	UserID         string      `json:"user_id"`
	RestaurantID   string      `json:"restaurant_id"`
	TableNumber    string      `json:"table_number"`
	Items          []Item      `json:"items"`
	Subtotal       float64     `json:"subtotal"`
	GST            float64     `json:"gst"`
	Discount       float64     `json:"discount"`
	Total          float64     `json:"total"`
	PaymentMethod  string      `json:"payment_method"`
	PaymentStatus  string      `json:"payment_status"`
	PaymentID      string      `json:"payment_id"`
	PaymentOrderID string      `json:"payment_order_id"`
	Status         OrderStatus `json:"status"`
	Tracking       Tracking    `json:"tracking"`
	CustomerName   string      `json:"customer_name"`
	CustomerEmail  string      `json:"customer_email"`
	CustomerPhone  string      `json:"customer_phone"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ShortID is the id prefix shown to people
func (o *Order) ShortID() string {
	if len(o.ID) > 8 {
		return o.ID[:8]
	}
	return o.ID
}

// CheckoutLine is a cart line submitted at checkout
type CheckoutLine struct {
	FoodItemID string `json:"food_item_id" validate:"required"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity" validate:"min=1"`
}

// Checkout is a request to place an order after a successful payment
type Checkout struct {
	RestaurantID   string         `json:"restaurant_id"`
	TableNumber    string         `json:"table_number" validate:"required,max=16"`
	Lines          []CheckoutLine `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  string         `json:"payment_method" validate:"required"`
	PaymentID      string         `json:"payment_id" validate:"required"`
	PaymentOrderID string         `json:"payment_order_id"`
	CustomerName   string         `json:"customer_name"`
	CustomerPhone  string         `json:"customer_phone"`
}

// StatusCount is the number of orders in a status and their total value
type StatusCount struct {
	Status  OrderStatus `json:"status"`
	Count   int64       `json:"count"`
	Revenue float64     `json:"revenue"`
}

// OrderStats summarizes orders for the admin dashboard
type OrderStats struct {
	Period    string                `json:"period"`
	Since     *time.Time            `json:"since,omitempty"`
	Total     int64                 `json:"total"`
	ByStatus  map[OrderStatus]int64 `json:"by_status"`
	Revenue   float64               `json:"revenue"`
	Completed int64                 `json:"completed"`
}

// MissedNotification is a status an order went through without its notification
type MissedNotification struct {
	Order  Order
	Status OrderStatus
}
