package cart

import (
	"github.com/google/go-cmp/cmp"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name string
		line Line
		want float64
	}{
		{
			name: "no_discount",
			line: Line{UnitPrice: 250},
			want: 250,
		},
		{
			name: "percentage",
			line: Line{UnitPrice: 100, DiscountType: models.DiscountPercentage, DiscountValue: 20},
			want: 80,
		},
		{
			name: "fixed",
			line: Line{UnitPrice: 100, DiscountType: models.DiscountFixed, DiscountValue: 30},
			want: 70,
		},
		{
			name: "fixed_above_price_clamped",
			line: Line{UnitPrice: 50, DiscountType: models.DiscountFixed, DiscountValue: 80},
			want: 0,
		},
		{
			name: "unknown_type_ignored",
			line: Line{UnitPrice: 40, DiscountType: "bogus", DiscountValue: 10},
			want: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EffectivePrice(tt.line), 1e-9)
		})
	}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  Totals
	}{
		{
			name:  "empty",
			lines: nil,
			want:  Totals{},
		},
		{
			name: "percentage_discount_times_quantity",
			lines: []Line{
				{FoodItemID: "a", UnitPrice: 100, Quantity: 2, DiscountType: models.DiscountPercentage, DiscountValue: 20},
			},
			want: Totals{Subtotal: 160, Tax: 8, Total: 168},
		},
		{
			name: "two_discounted_lines",
			lines: []Line{
				{FoodItemID: "a", UnitPrice: 499, Quantity: 1, DiscountType: models.DiscountPercentage, DiscountValue: 20},
				{FoodItemID: "b", UnitPrice: 499, Quantity: 2, DiscountType: models.DiscountPercentage, DiscountValue: 20},
			},
			want: Totals{Subtotal: 1197.6, Tax: 59.88, Total: 1257.48},
		},
		{
			name: "tax_in_cents",
			lines: []Line{
				{FoodItemID: "a", UnitPrice: 4.5, Quantity: 2},
			},
			want: Totals{Subtotal: 9, Tax: 0.45, Total: 9.45},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(tt.lines)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, round2(got.Subtotal+got.Tax), got.Total)
		})
	}
}

func TestPriceIgnoresLineOrder(t *testing.T) {
	lines := []Line{
		{FoodItemID: "a", UnitPrice: 12.35, Quantity: 3, DiscountType: models.DiscountFixed, DiscountValue: 1.1},
		{FoodItemID: "b", UnitPrice: 99.99, Quantity: 1, DiscountType: models.DiscountPercentage, DiscountValue: 15},
		{FoodItemID: "c", UnitPrice: 5, Quantity: 7},
	}
	reversed := []Line{lines[2], lines[1], lines[0]}

	assert.Equal(t, Price(lines), Price(reversed))
}

func TestCart_AddMergesByItemAndCategory(t *testing.T) {
	c := New()
	pizza := Line{FoodItemID: "p1", Category: "pizza", Name: "Margherita", UnitPrice: 300}

	c.Add(pizza)
	c.Add(pizza)
	c.Add(Line{FoodItemID: "p1", Category: "combo", Name: "Margherita", UnitPrice: 300})

	assert.Equal(t, 2, c.Len())
	lines := c.Lines()
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "pizza", lines[0].Category)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestCart_QuantityChanges(t *testing.T) {
	c := New()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Second)
	}

	a := Line{FoodItemID: "a", UnitPrice: 100}
	b := Line{FoodItemID: "b", UnitPrice: 50}
	c.Add(a)
	c.Add(b)

	c.Increment(a.Key())
	assert.Equal(t, 2, c.Lines()[0].Quantity)

	c.Decrement(b.Key())
	assert.Equal(t, 1, c.Len(), "decrement to zero removes the line")

	c.SetQuantity(a.Key(), 5)
	assert.Equal(t, Totals{Subtotal: 500, Tax: 25, Total: 525}, c.Totals())

	c.SetQuantity(a.Key(), 0)
	assert.Zero(t, c.Len())

	c.Add(a)
	c.Add(b)
	c.Remove(a.Key())
	assert.Equal(t, "b", c.Lines()[0].FoodItemID)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Equal(t, Totals{}, c.Totals())
}

func TestCart_LinesInInsertionOrder(t *testing.T) {
	c := New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.Add(Line{FoodItemID: "z", AddedAt: base})
	c.Add(Line{FoodItemID: "a", AddedAt: base.Add(time.Minute)})
	c.Add(Line{FoodItemID: "m", AddedAt: base.Add(2 * time.Minute)})

	var ids []string
	for _, l := range c.Lines() {
		ids = append(ids, l.FoodItemID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, ids)
}
