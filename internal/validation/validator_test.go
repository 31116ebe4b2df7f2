package validation

import (
	"errors"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestStruct(t *testing.T) {
	valid := models.Checkout{
		TableNumber:   "7",
		Lines:         []models.CheckoutLine{{FoodItemID: "f-1", Quantity: 2}},
		PaymentMethod: "razorpay",
		PaymentID:     "pay_1",
	}
	require.NoError(t, Struct(&valid))

	invalid := valid
	invalid.TableNumber = ""
	invalid.Lines = []models.CheckoutLine{{FoodItemID: "f-1", Quantity: 0}}

	err := Struct(&invalid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []FieldError{
		{Field: "table_number", Tag: "required"},
		{Field: "items[0].quantity", Tag: "min", Param: "1"},
	}, verr.Fields)
	assert.Contains(t, err.Error(), "table_number is required")
}

func TestStruct_EmptyCart(t *testing.T) {
	err := Struct(&models.Checkout{TableNumber: "1", PaymentMethod: "cash", PaymentID: "p"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "items", verr.Fields[0].Field)
}

func TestStruct_FoodItem(t *testing.T) {
	item := models.FoodItem{Name: "Paneer Tikka", Category: "starters", Price: 249, DiscountType: "bogus"}
	err := Struct(&item)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discount_type must be one of [percentage fixed]")

	item.DiscountType = models.DiscountPercentage
	item.DiscountValue = 10
	assert.NoError(t, Struct(&item))
}
