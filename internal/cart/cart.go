// Package cart keeps a customer's pending selection and prices it.
package cart

import (
	"github.com/rookgm/tableorder/internal/models"
	"math"
	"sort"
	"time"
)

// TaxRate is the flat GST applied to the discounted subtotal
const TaxRate = 0.05

// Key identifies a cart line
type Key struct {
	FoodItemID string
	Category   string
}

// Line is one entry of the cart
type Line struct {
	FoodItemID    string
	Category      string
	Name          string
	Image         string
	Quantity      int
	UnitPrice     float64
	DiscountType  string
	DiscountValue float64
	AddedAt       time.Time
}

// Key returns the identity of the line
func (l Line) Key() Key {
	return Key{FoodItemID: l.FoodItemID, Category: l.Category}
}

// Totals is the priced cart
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"gst"`
	Total    float64 `json:"total"`
}

// Cart holds at most one line per (food item, category).
// It belongs to a single session and is not safe for concurrent use.
type Cart struct {
	lines map[Key]*Line
	now   func() time.Time
}

// New creates an empty cart
func New() *Cart {
	return &Cart{
		lines: make(map[Key]*Line),
		now:   time.Now,
	}
}

// Add puts one unit of item into the cart
func (c *Cart) Add(item Line) {
	c.AddN(item, 1)
}

// AddN puts n units of item into the cart, merging with an existing line
func (c *Cart) AddN(item Line, n int) {
	if n <= 0 {
		return
	}
	if l, ok := c.lines[item.Key()]; ok {
		l.Quantity += n
		return
	}
	item.Quantity = n
	if item.AddedAt.IsZero() {
		item.AddedAt = c.now()
	}
	c.lines[item.Key()] = &item
}

// Increment adds one unit to an existing line
func (c *Cart) Increment(k Key) {
	if l, ok := c.lines[k]; ok {
		l.Quantity++
	}
}

// Decrement removes one unit, dropping the line when it reaches zero
func (c *Cart) Decrement(k Key) {
	if l, ok := c.lines[k]; ok {
		c.SetQuantity(k, l.Quantity-1)
	}
}

// SetQuantity sets the quantity of a line; zero or less removes it
func (c *Cart) SetQuantity(k Key, qty int) {
	l, ok := c.lines[k]
	if !ok {
		return
	}
	if qty <= 0 {
		delete(c.lines, k)
		return
	}
	l.Quantity = qty
}

// Remove deletes a line
func (c *Cart) Remove(k Key) {
	delete(c.lines, k)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.lines = make(map[Key]*Line)
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the lines in the order they were added
func (c *Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.lines))
	for _, l := range c.lines {
		lines = append(lines, *l)
	}
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].AddedAt.Before(lines[j].AddedAt)
		}
		if lines[i].FoodItemID != lines[j].FoodItemID {
			return lines[i].FoodItemID < lines[j].FoodItemID
		}
		return lines[i].Category < lines[j].Category
	})
	return lines
}

// Totals prices the cart
func (c *Cart) Totals() Totals {
	return Price(c.Lines())
}

// EffectivePrice is the unit price after discount, never negative
func EffectivePrice(l Line) float64 {
	switch l.DiscountType {
	case models.DiscountPercentage:
		return l.UnitPrice * (1 - l.DiscountValue/100)
	case models.DiscountFixed:
		return math.Max(0, l.UnitPrice-l.DiscountValue)
	default:
		return l.UnitPrice
	}
}

// Price computes subtotal, tax and total of lines
func Price(lines []Line) Totals {
	var sum float64
	for _, l := range lines {
		sum += EffectivePrice(l) * float64(l.Quantity)
	}
	subtotal := round2(sum)
	tax := round2(subtotal * TaxRate)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    round2(subtotal + tax),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
